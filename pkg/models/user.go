package models

import (
	"time"
)

// User represents a site member as reported by the backend
type User struct {
	ID              ID         `json:"id,omitempty"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	IsSubscribed    bool       `json:"isSubscribed"`
	SubscriptionEnd *time.Time `json:"subscriptionEnd"` // nil means unlimited
}

// IsUnlimited reports whether the subscription never ends
func (u User) IsUnlimited() bool {
	return u.IsSubscribed && u.SubscriptionEnd == nil
}

// ActiveAt reports whether the user has a running subscription at t
func (u User) ActiveAt(t time.Time) bool {
	if !u.IsSubscribed {
		return false
	}
	return u.SubscriptionEnd == nil || u.SubscriptionEnd.After(t)
}

// ExpireRequest asks the backend to end a user's subscription
type ExpireRequest struct {
	UserID ID     `json:"userId"`
	Email  string `json:"email,omitempty"`
}
