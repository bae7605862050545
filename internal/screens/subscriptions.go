package screens

import (
	"context"
	"net/url"

	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/internal/overlay"
	"github.com/mechanicbano/admin/pkg/models"
)

// Backend paths outside the screens' own resources
const (
	approvePath      = "approve"
	subscriptionPath = "subscription"
)

// UserScreen lists site members and can end their subscriptions
type UserScreen struct {
	*Screen[models.User]
}

// NewUserScreen creates the users screen
func NewUserScreen(deps Deps) *UserScreen {
	return &UserScreen{Screen: NewScreen(Resource[models.User]{
		Name:    "users",
		Path:    "user",
		Noun:    "User",
		Plural:  "users",
		ID:      func(u models.User) models.ID { return u.ID },
		Fields:  func(u models.User) []string { return []string{u.Name, u.Email} },
		Actions: userActions,
	}, deps)}
}

func userActions(u models.User) []overlay.Item {
	if !u.IsSubscribed {
		return nil
	}
	return []overlay.Item{{ID: "expire", Label: "Expire subscription", Danger: true}}
}

// Expire ends the subscription of the user with id
func (s *UserScreen) Expire(ctx context.Context, n *notify.Notifier, id models.ID) bool {
	user, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	if !user.IsSubscribed {
		n.Warning("This user has no active subscription")
		return false
	}

	query := url.Values{}
	query.Set("type", "expire")
	return s.Mutate(ctx, n, Mutation{
		Action: "expire",
		Target: user.Email,
		Run: func(ctx context.Context) error {
			_, err := s.deps.Backend.Put(ctx, subscriptionPath, query, models.ExpireRequest{
				UserID: user.ID,
				Email:  user.Email,
			})
			return err
		},
		Success: "Subscription expired successfully",
		Failure: "Failed to expire subscription",
	})
}

// Act implements the users row menu
func (s *UserScreen) Act(ctx context.Context, n *notify.Notifier, id models.ID, action string, confirmed bool) bool {
	user, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	return s.choose(ctx, n, user, action, map[string]func() bool{
		"expire": func() bool { return s.Expire(ctx, n, id) },
	})
}

// PendingScreen reviews payments waiting for manual approval
type PendingScreen struct {
	*Screen[models.PendingSubscription]
}

// NewPendingScreen creates the pending subscriptions screen
func NewPendingScreen(deps Deps) *PendingScreen {
	return &PendingScreen{Screen: NewScreen(Resource[models.PendingSubscription]{
		Name:    "pending",
		Path:    "pending-subscriptions",
		Noun:    "Subscription",
		Plural:  "pending subscriptions",
		ID:      func(p models.PendingSubscription) models.ID { return p.ID },
		Fields:  func(p models.PendingSubscription) []string { return []string{p.Email, p.PlanTitle, p.Status} },
		Actions: pendingActions,
	}, deps)}
}

func pendingActions(p models.PendingSubscription) []overlay.Item {
	var items []overlay.Item
	if models.CanTransition(p.Status, models.SubscriptionStatusApproved) {
		items = append(items, overlay.Item{ID: "approve", Label: "Approve"})
	}
	if models.CanTransition(p.Status, models.SubscriptionStatusRejected) {
		items = append(items, overlay.Item{ID: "reject", Label: "Reject", Danger: true})
	}
	return append(items, overlay.Item{ID: "delete", Label: "Delete", Danger: true})
}

// Approve marks the payment approved, then records the approval with the
// subscriber's email and plan so the backend activates the subscription.
// When the status change lands but the record fails, the list is still
// refetched so the row shows its new status.
func (s *PendingScreen) Approve(ctx context.Context, n *notify.Notifier, id models.ID) bool {
	sub, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	if !models.CanTransition(sub.Status, models.SubscriptionStatusApproved) {
		n.Warning("This subscription is already approved")
		return false
	}

	updated := false
	ok = s.Mutate(ctx, n, Mutation{
		Action: "approve",
		Target: id.String(),
		Run: func(ctx context.Context) error {
			update := models.StatusUpdate{Status: models.SubscriptionStatusApproved}
			if _, err := s.deps.Backend.Put(ctx, s.res.Path, s.res.Query(id), update); err != nil {
				return err
			}
			updated = true
			record := models.ApprovalRecord{Email: sub.Email, PlanID: sub.PlanID}
			_, err := s.deps.Backend.Post(ctx, approvePath, nil, record)
			return err
		},
		Success: "Subscription approved successfully",
		Failure: "Failed to approve subscription",
	})
	if !ok && updated {
		s.Refresh(ctx, n)
	}
	return ok
}

// Reject marks a pending payment rejected
func (s *PendingScreen) Reject(ctx context.Context, n *notify.Notifier, id models.ID) bool {
	sub, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	if !models.CanTransition(sub.Status, models.SubscriptionStatusRejected) {
		n.Warning("Only pending subscriptions can be rejected")
		return false
	}

	return s.Mutate(ctx, n, Mutation{
		Action: "reject",
		Target: id.String(),
		Run: func(ctx context.Context) error {
			update := models.StatusUpdate{Status: models.SubscriptionStatusRejected}
			_, err := s.deps.Backend.Put(ctx, s.res.Path, s.res.Query(id), update)
			return err
		},
		Success: "Subscription rejected",
		Failure: "Failed to reject subscription",
	})
}

// Act implements the pending subscriptions row menu
func (s *PendingScreen) Act(ctx context.Context, n *notify.Notifier, id models.ID, action string, confirmed bool) bool {
	sub, ok := s.lookup(ctx, n, id)
	if !ok {
		return false
	}
	return s.choose(ctx, n, sub, action, map[string]func() bool{
		"approve": func() bool { return s.Approve(ctx, n, id) },
		"reject":  func() bool { return s.Reject(ctx, n, id) },
		"delete":  func() bool { return s.Delete(ctx, n, id, confirmed) },
	})
}
