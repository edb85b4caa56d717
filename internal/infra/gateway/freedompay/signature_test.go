package freedompay

import (
	"strings"
	"testing"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	params := map[string]string{
		"pg_order_id":    "1700000000123456",
		"pg_amount":      "2000",
		"pg_currency":    "KZT",
		"pg_merchant_id": "541342",
		"pg_salt":        "abcdef0123456789",
	}
	secret := "test-secret"

	params[SigField] = Sign("result", params, secret)

	if !Verify("result", params, secret) {
		t.Fatal("expected freshly signed params to verify")
	}

	t.Run("uppercase signature accepted", func(t *testing.T) {
		upper := map[string]string{}
		for k, v := range params {
			upper[k] = v
		}
		upper[SigField] = strings.ToUpper(upper[SigField])
		if !Verify("result", upper, secret) {
			t.Fatal("uppercase hex signature should verify")
		}
	})

	t.Run("mutated value rejected", func(t *testing.T) {
		tampered := map[string]string{}
		for k, v := range params {
			tampered[k] = v
		}
		tampered["pg_amount"] = "1"
		if Verify("result", tampered, secret) {
			t.Fatal("tampered params must not verify")
		}
	})

	t.Run("wrong script name rejected", func(t *testing.T) {
		if Verify("check", params, secret) {
			t.Fatal("signature is bound to the script name")
		}
	})

	t.Run("missing signature rejected", func(t *testing.T) {
		unsigned := map[string]string{"pg_order_id": "1"}
		if Verify("result", unsigned, secret) {
			t.Fatal("missing pg_sig must not verify")
		}
	})
}

func TestSignExcludesSigField(t *testing.T) {
	params := map[string]string{"pg_order_id": "42"}
	before := Sign("result", params, "s")
	params[SigField] = "garbage"
	after := Sign("result", params, "s")
	if before != after {
		t.Fatal("pg_sig must not participate in the signature base string")
	}
}

func TestSignTypeDeterminism(t *testing.T) {
	// The same logical payload must sign identically whether values arrived
	// as JSON numbers or as form strings.
	fromJSON := NormalizeParams(map[string]interface{}{
		"pg_amount":  float64(2000),
		"pg_result":  1,
		"pg_can_rec": true,
		"pg_note":    nil,
	})
	fromForm := map[string]string{
		"pg_amount":  "2000",
		"pg_result":  "1",
		"pg_can_rec": "1",
	}

	if got, want := Sign("result", fromJSON, "s"), Sign("result", fromForm, "s"); got != want {
		t.Fatalf("signature differs across value types: %s vs %s", got, want)
	}
}

func TestNormalizeParams(t *testing.T) {
	got := NormalizeParams(map[string]interface{}{
		"s":     "hello",
		"yes":   true,
		"no":    false,
		"n":     float64(3.5),
		"whole": float64(100),
		"gone":  nil,
		"deep":  map[string]interface{}{"x": 1},
	})

	want := map[string]string{
		"s":     "hello",
		"yes":   "1",
		"no":    "0",
		"n":     "3.5",
		"whole": "100",
	}
	if len(got) != len(want) {
		t.Fatalf("got %d keys, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("key %q: got %q, want %q", k, got[k], v)
		}
	}
}

func TestRandomSalt(t *testing.T) {
	a, b := RandomSalt(), RandomSalt()
	if len(a) != 16 {
		t.Fatalf("salt length = %d, want 16 hex chars", len(a))
	}
	if a == b {
		t.Fatal("two salts collided")
	}
}
