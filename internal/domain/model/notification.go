package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type NotificationType string

const (
	NotificationPaymentSuccess        NotificationType = "payment_success"
	NotificationPaymentFailed         NotificationType = "payment_failed"
	NotificationPaymentPending        NotificationType = "payment_pending"
	NotificationSubscriptionExpiring  NotificationType = "subscription_expiring"
	NotificationSubscriptionCancelled NotificationType = "subscription_cancelled"
	NotificationPlanChanged           NotificationType = "plan_changed"
)

// Notification is a user-facing message written as a side effect of lifecycle
// transitions. The core never reads these back; persistence is best-effort.
type Notification struct {
	ID        string
	UserID    string
	Type      NotificationType
	Title     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

func NewNotification(userID string, typ NotificationType, title, message string) *Notification {
	return &Notification{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
}
