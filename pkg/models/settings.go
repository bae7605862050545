package models

import "strings"

// PageControlPage is the page-visibility entry that guards the toggle screen itself
const PageControlPage = "pagecontrol"

// PageVisibility toggles a named page of the site
type PageVisibility struct {
	ID      ID     `json:"id,omitempty"`
	Page    string `json:"page"`
	Enabled bool   `json:"enabled"`
}

// Locked reports whether the entry may never be disabled or removed
func (p PageVisibility) Locked() bool {
	return strings.EqualFold(strings.TrimSpace(p.Page), PageControlPage)
}

// SiteConfig holds the site branding
type SiteConfig struct {
	SiteName string `json:"siteName"`
	LogoURL  string `json:"logoUrl"`
}

// UPIConfig holds the payment details shown to paying users
type UPIConfig struct {
	UPIID  string `json:"upiId"`
	QRCode string `json:"qrCode"`
}

// WelcomeNote is shown to users on first visit
type WelcomeNote struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}
