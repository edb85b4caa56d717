package model

import "time"

type RecurringStatus string

const (
	RecurringStatusActive   RecurringStatus = "active"
	RecurringStatusCanceled RecurringStatus = "canceled"
)

// RecurringProfile is the provider-side handle that lets us charge a user
// again without them re-entering payment details. At most one row per
// provider profile id; upserted on every recurring-capable callback and
// never hard-deleted.
type RecurringProfile struct {
	ProfileID     string
	UserID        string
	Status        RecurringStatus
	ExpiresAt     *time.Time
	LastPaymentID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
