package models

import (
	"github.com/shopspring/decimal"
)

// Video is a YouTube listing shown on the tutorial site
type Video struct {
	ID          ID     `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link"`
}

// PDF categories
const (
	PDFCategoryFree    = "free"
	PDFCategoryPremium = "premium"
)

// PDF is a downloadable document. Price is only meaningful for premium documents.
type PDF struct {
	ID           ID              `json:"id,omitempty"`
	Title        string          `json:"title"`
	OriginalLink string          `json:"originalLink"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
}

// IsPremium reports whether the document is sold
func (p PDF) IsPremium() bool {
	return p.Category == PDFCategoryPremium
}

// Normalize forces the price of free documents to zero
func (p *PDF) Normalize() {
	if p.Category == "" {
		p.Category = PDFCategoryFree
	}
	if !p.IsPremium() {
		p.Price = decimal.Zero
	}
}
