package freedompay

import "fmt"

// Gateway error codes observed in the provider documentation. Unknown codes
// resolve to a templated message, never an empty string.
var errorDescriptions = map[string]string{
	"0":     "Unknown error",
	"100":   "Invalid request",
	"101":   "Invalid merchant",
	"102":   "Invalid signature",
	"103":   "Transaction not found",
	"104":   "Invalid amount",
	"105":   "Invalid currency",
	"9998":  "Merchant not found (check merchant id)",
	"99999": "Unknown payment system error",
}

func ErrorDescription(code string) string {
	if d, ok := errorDescriptions[code]; ok {
		return d
	}
	return fmt.Sprintf("Unknown error (code: %s)", code)
}
