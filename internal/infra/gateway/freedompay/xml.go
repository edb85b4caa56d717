package freedompay

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// ParseXML extracts the gateway's flat response shape into a string map.
// Only leaf tags are captured (a tag containing nested tags is treated as a
// container and skipped, not recursively flattened into its parent); the BOM
// and XML declaration are ignored and the five standard entities decoded.
// Malformed input yields whatever was parsed before the error, never panics.
func ParseXML(raw string) map[string]string {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "\uFEFF")

	out := make(map[string]string)
	dec := xml.NewDecoder(strings.NewReader(raw))
	dec.Strict = false

	type frame struct {
		name    string
		nested  bool
		content strings.Builder
	}
	var stack []*frame

	for {
		tok, err := dec.Token()
		if err == io.EOF || err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) > 0 {
				stack[len(stack)-1].nested = true
			}
			stack = append(stack, &frame{name: t.Name.Local})
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].content.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !f.nested {
				out[f.name] = strings.TrimSpace(f.content.String())
			}
		}
	}
	return out
}

// BuildResponseXML renders the signed callback response body. Every callback
// answer (ok, rejected or error) goes out through here with HTTP 200; the
// transport status code never conveys the business outcome.
func BuildResponseXML(scriptName, status, description, secret string) string {
	salt := RandomSalt()
	params := map[string]string{
		"pg_status":      status,
		"pg_description": description,
		"pg_salt":        salt,
	}
	sig := Sign(scriptName, params, secret)

	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<response>
  <pg_status>%s</pg_status>
  <pg_description>%s</pg_description>
  <pg_salt>%s</pg_salt>
  <pg_sig>%s</pg_sig>
</response>`, escapeXML(status), escapeXML(description), salt, sig)
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
