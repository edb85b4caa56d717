package freedompay

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"story-ai-billing/internal/domain/model"
)

// ParseRequest flattens a callback body into a string map. The gateway posts
// form-encoded or multipart bodies; JSON is tolerated as a fallback for test
// tooling. A JSON parse failure is swallowed; the empty map then fails
// signature verification downstream instead of producing a 5xx here.
func ParseRequest(r *http.Request) map[string]string {
	ct := r.Header.Get("Content-Type")
	params := make(map[string]string)

	if strings.Contains(ct, "application/x-www-form-urlencoded") || strings.Contains(ct, "multipart/form-data") {
		if strings.Contains(ct, "multipart/form-data") {
			_ = r.ParseMultipartForm(1 << 20)
		} else {
			_ = r.ParseForm()
		}
		for k, vs := range r.PostForm {
			if len(vs) > 0 {
				params[k] = vs[0]
			}
		}
		return params
	}

	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return params
	}
	return NormalizeParams(body)
}

// ScriptNameFromPath extracts the signature script name from the callback
// URL path, e.g. "/api/v1/payments/freedompay/result" -> "result".
func ScriptNameFromPath(path string) string {
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}

// Normalize maps the gateway's callback fields into the canonical event.
// Status precedence: an explicit success marker (pg_payment_status/pg_status
// of "success"/"ok", or pg_result=1) wins; "pending" stays pending; anything
// unrecognized fails closed.
func Normalize(params map[string]string) *model.PaymentEvent {
	ev := &model.PaymentEvent{
		Provider: model.ProviderFreedomPay,
		OrderID:  params["pg_order_id"],
		Currency: params["pg_currency"],
		Status:   normalizeStatus(params),
		Raw:      params,
	}

	if id := params["pg_payment_id"]; id != "" {
		ev.ProviderPaymentID = &id
	}
	if amt, ok := parseAmountMinor(params["pg_amount"]); ok {
		ev.Amount = &amt
	}
	if profile := params["pg_recurring_profile"]; profile != "" {
		ev.RecurringProfileID = &profile
	}
	if exp := parseExpiry(params["pg_recurring_profile_expiry_date"]); exp != nil {
		ev.RecurringExpiry = exp
	}
	return ev
}

func normalizeStatus(params map[string]string) model.PaymentStatus {
	status := strings.ToLower(params["pg_payment_status"])
	if status == "" {
		status = strings.ToLower(params["pg_status"])
	}
	result := strings.ToLower(params["pg_result"])

	switch {
	case status == "success" || status == "ok" || result == "1":
		return model.PaymentStatusCompleted
	case status == "pending":
		return model.PaymentStatusPending
	default:
		return model.PaymentStatusFailed
	}
}

// parseAmountMinor converts the gateway's major-unit decimal amount to minor
// units.
func parseAmountMinor(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int64(math.Round(f * 100)), true
}

var expiryLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
}

func parseExpiry(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
