package models

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Plan is a subscription plan offered to users
type Plan struct {
	ID       ID              `json:"id,omitempty"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Days     int             `json:"days"`
	Discount decimal.Decimal `json:"discount"` // percent, zero when absent
}

// FinalPrice returns the price after the percentage discount, rounded to paise
func (p Plan) FinalPrice() decimal.Decimal {
	if p.Discount.IsZero() {
		return p.Price
	}
	off := p.Price.Mul(p.Discount).Div(hundred)
	return p.Price.Sub(off).Round(2)
}

// Pending subscription statuses
const (
	SubscriptionStatusPending  = "pending"
	SubscriptionStatusApproved = "approved"
	SubscriptionStatusRejected = "rejected"
)

// PendingSubscription is a payment waiting for manual approval
type PendingSubscription struct {
	ID            ID              `json:"id,omitempty"`
	Email         string          `json:"email"`
	PlanID        ID              `json:"planId"`
	PlanTitle     string          `json:"planTitle"`
	PlanPrice     decimal.Decimal `json:"planPrice"`
	ScreenshotURL string          `json:"screenshotUrl"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// CanTransition reports whether status may move from -> to.
// pending may be approved or rejected, a rejected payment may still be
// approved, and approved is terminal.
func CanTransition(from, to string) bool {
	switch from {
	case SubscriptionStatusPending, "":
		return to == SubscriptionStatusApproved || to == SubscriptionStatusRejected
	case SubscriptionStatusRejected:
		return to == SubscriptionStatusApproved
	default:
		return false
	}
}

// ApprovalRecord is posted to the approve endpoint once a payment is accepted
type ApprovalRecord struct {
	Email  string `json:"email"`
	PlanID ID     `json:"planId"`
}

// StatusUpdate changes the status of a pending subscription
type StatusUpdate struct {
	Status string `json:"status"`
}
