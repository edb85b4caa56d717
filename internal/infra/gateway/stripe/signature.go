// Package stripe implements the Stripe-like provider: HMAC-SHA256 signed
// webhooks, JSON event payloads, and hosted checkout session creation.
package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"story-ai-billing/internal/domain"
)

// SignatureHeader is the webhook header carrying "t=<unix>,v1=<hex>" pairs.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance bounds how stale a webhook timestamp may be before the
// signature is rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

// VerifyWebhook checks the signed payload "t.body" against every v1 candidate
// in the header (key rotation sends several) using a constant-time compare,
// and rejects timestamps outside the tolerance window.
func VerifyWebhook(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	ts, candidates := parseSignatureHeader(header)
	if ts == 0 || len(candidates) == 0 {
		return domain.ErrSignatureInvalid
	}
	if tolerance > 0 {
		at := time.Unix(ts, 0)
		if now.Sub(at) > tolerance || at.Sub(now) > tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", domain.ErrSignatureInvalid)
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, c := range candidates {
		if hmac.Equal([]byte(expected), []byte(strings.ToLower(c))) {
			return nil
		}
	}
	return domain.ErrSignatureInvalid
}

// SignWebhook produces a header value the verifier accepts; used by the
// webhook tests and the local replay tool.
func SignWebhook(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func parseSignatureHeader(header string) (int64, []string) {
	var ts int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				ts = n
			}
		case "v1":
			candidates = append(candidates, v)
		}
	}
	return ts, candidates
}
