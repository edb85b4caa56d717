// Package freedompay implements the signed-form gateway protocol: MD5
// request signatures, flat-XML responses, and check/result callback phases.
package freedompay

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// SigField is the parameter carrying the signature; it is never part of the
// signed set.
const SigField = "pg_sig"

// Sign builds pg_sig per the gateway protocol:
// keys sorted lexicographically (pg_sig excluded), then
// MD5(scriptName;value1;...;valueN;secret), lowercase hex.
//
// MD5 is a wire-format requirement of the provider, not a design choice; it
// is confined to this package so callers never touch the algorithm.
func Sign(scriptName string, params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == SigField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+2)
	parts = append(parts, scriptName)
	for _, k := range keys {
		parts = append(parts, params[k])
	}
	parts = append(parts, secret)

	sum := md5.Sum([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the signature over params minus pg_sig and compares it to
// the supplied value. A missing or malformed signature yields false; Verify
// never panics.
func Verify(scriptName string, params map[string]string, secret string) bool {
	provided, ok := params[SigField]
	if !ok || provided == "" {
		return false
	}
	expected := Sign(scriptName, params, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}

// NormalizeParams stringifies a scalar map so that number 5 and string "5"
// produce identical signature input. Booleans become "1"/"0"; nil values are
// dropped entirely rather than serialized as empty strings.
func NormalizeParams(params map[string]interface{}) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		s, ok := stringifyScalar(v)
		if !ok {
			continue
		}
		out[k] = s
	}
	return out
}

func stringifyScalar(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case bool:
		if t {
			return "1", true
		}
		return "0", true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		// JSON numbers arrive as float64; no locale formatting, no exponent
		// for integral values.
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

// RandomSalt returns the pg_salt value: 8 random bytes, hex encoded.
func RandomSalt() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
