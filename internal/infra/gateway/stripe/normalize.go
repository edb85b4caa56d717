package stripe

import (
	"encoding/json"
	"strings"
	"time"

	"story-ai-billing/internal/domain/model"
)

// Event is the webhook envelope. Only the fields the billing flow consumes
// are decoded; the rest of the payload rides along in PaymentEvent.Raw.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object eventObject `json:"object"`
	} `json:"data"`
}

type eventObject struct {
	ID               string            `json:"id"`
	AmountTotal      *int64            `json:"amount_total"`
	AmountPaid       *int64            `json:"amount_paid"`
	Currency         string            `json:"currency"`
	PaymentStatus    string            `json:"payment_status"`
	Status           string            `json:"status"`
	BillingReason    string            `json:"billing_reason"`
	Subscription     string            `json:"subscription"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
	Lines            struct {
		Data []struct {
			Metadata map[string]string `json:"metadata"`
		} `json:"data"`
	} `json:"lines"`
}

// ParseEvent decodes the webhook body.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Normalize maps a webhook event onto the canonical payment event. Event
// types outside the billing flow return nil and are acknowledged without
// side effects. Amounts are already in minor units on this provider's wire.
func Normalize(ev *Event) *model.PaymentEvent {
	obj := ev.Data.Object
	switch ev.Type {
	case "checkout.session.completed":
		out := &model.PaymentEvent{
			Provider: model.ProviderStripe,
			OrderID:  obj.Metadata["order_id"],
			Status:   sessionStatus(obj.PaymentStatus),
			Currency: strings.ToUpper(obj.Currency),
			Raw:      rawFields(ev),
		}
		if obj.ID != "" {
			id := obj.ID
			out.ProviderPaymentID = &id
		}
		if obj.AmountTotal != nil {
			amt := *obj.AmountTotal
			out.Amount = &amt
		}
		if obj.Subscription != "" {
			sub := obj.Subscription
			out.RecurringProfileID = &sub
		}
		return out

	case "invoice.payment_succeeded":
		out := &model.PaymentEvent{
			Provider: model.ProviderStripe,
			Status:   model.PaymentStatusCompleted,
			Currency: strings.ToUpper(obj.Currency),
			Raw:      rawFields(ev),
		}
		if obj.ID != "" {
			id := obj.ID
			out.ProviderPaymentID = &id
		}
		if obj.AmountPaid != nil {
			amt := *obj.AmountPaid
			out.Amount = &amt
		}
		if obj.Subscription != "" {
			sub := obj.Subscription
			out.RecurringProfileID = &sub
		}
		if len(obj.Lines.Data) > 0 {
			lineMeta := obj.Lines.Data[0].Metadata
			out.OrderID = lineMeta["order_id"]
			for _, k := range []string{"user_id", "product_type"} {
				if out.Raw[k] == "" && lineMeta[k] != "" {
					out.Raw[k] = lineMeta[k]
				}
			}
		}
		return out

	case "customer.subscription.deleted":
		out := &model.PaymentEvent{
			Provider: model.ProviderStripe,
			Status:   model.PaymentStatusFailed,
			Raw:      rawFields(ev),
		}
		if obj.ID != "" {
			sub := obj.ID
			out.RecurringProfileID = &sub
		}
		return out

	case "customer.subscription.updated":
		if obj.Status != "active" {
			return nil
		}
		out := &model.PaymentEvent{
			Provider: model.ProviderStripe,
			Status:   model.PaymentStatusPending,
			Raw:      rawFields(ev),
		}
		if obj.ID != "" {
			sub := obj.ID
			out.RecurringProfileID = &sub
		}
		if obj.CurrentPeriodEnd > 0 {
			exp := time.Unix(obj.CurrentPeriodEnd, 0).UTC()
			out.RecurringExpiry = &exp
		}
		return out
	}
	return nil
}

// sessionStatus fails closed: only an explicit "paid" marker completes.
func sessionStatus(paymentStatus string) model.PaymentStatus {
	switch strings.ToLower(paymentStatus) {
	case "paid":
		return model.PaymentStatusCompleted
	case "unpaid", "no_payment_required":
		return model.PaymentStatusPending
	default:
		return model.PaymentStatusFailed
	}
}

func rawFields(ev *Event) map[string]string {
	raw := map[string]string{
		"event_id":   ev.ID,
		"event_type": ev.Type,
		"object_id":  ev.Data.Object.ID,
	}
	if ev.Data.Object.BillingReason != "" {
		raw["billing_reason"] = ev.Data.Object.BillingReason
	}
	for k, v := range ev.Data.Object.Metadata {
		raw["metadata."+k] = v
	}
	// Attribution fields are consumed by the ledger under their plain names.
	for _, k := range []string{"user_id", "product_type"} {
		if v := ev.Data.Object.Metadata[k]; v != "" {
			raw[k] = v
		}
	}
	return raw
}
