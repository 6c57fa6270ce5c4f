package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces secrets in log output.
const RedactedValue = "[REDACTED]"

// Keys that name governance identifiers. They are public on-chain data and are
// never masked even if they happen to contain a sensitive fragment.
var governanceKeys = map[string]struct{}{
	"proposal":   {},
	"proposer":   {},
	"voter":      {},
	"delegator":  {},
	"delegatee":  {},
	"caller":     {},
	"target":     {},
	"tx_hash":    {},
	"eta":        {},
	"token":      {},
	"operation":  {},
	"request_id": {},
}

var sensitiveFragments = []string{"secret", "passphrase", "password", "private", "authorization", "bearer", "jwt"}

// IsAllowlisted reports whether key names a governance identifier that is
// always logged verbatim.
func IsAllowlisted(key string) bool {
	_, ok := governanceKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// IsSensitive reports whether values logged under key must be masked.
func IsSensitive(key string) bool {
	if IsAllowlisted(key) {
		return false
	}
	normalized := strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// MaskField always masks a non-empty value unless key is a governance
// identifier. Use it for values the caller knows to be secret regardless of
// the key name.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// redactAttr masks string attributes whose key looks sensitive. It runs for
// every attribute the handler writes.
func redactAttr(attr slog.Attr) slog.Attr {
	if attr.Value.Kind() != slog.KindString || !IsSensitive(attr.Key) {
		return attr
	}
	if strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
