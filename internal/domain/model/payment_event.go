package model

import "time"

// PaymentEvent is the canonical form of a provider callback. Each provider's
// normalizer maps its own field names and encodings into this one shape so
// the ledger and settlement code never see provider-specific params.
type PaymentEvent struct {
	Provider           string
	OrderID            string
	ProviderPaymentID  *string
	Status             PaymentStatus // unrecognized provider statuses normalize to failed, never completed
	Amount             *int64        // minor units; nil when the provider omitted it
	Currency           string
	RecurringProfileID *string
	RecurringExpiry    *time.Time
	Raw                map[string]string // full parameter map, retained for audit
}
