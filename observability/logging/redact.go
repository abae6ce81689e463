package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces secret values in log output.
const RedactedValue = "[REDACTED]"

// plainKeys is kept sorted for binary search.
var plainKeys = []string{
	"account",
	"env",
	"error",
	"escrowid",
	"message",
	"method",
	"nonce",
	"requestid",
	"service",
	"severity",
	"signer",
	"timestamp",
}

// secretKeys are masked by every logger built with New, so a proof or
// passphrase logged as a plain attribute never reaches the sink.
var secretKeys = map[string]struct{}{
	"passphrase": {},
	"privatekey": {},
	"proof":      {},
	"signature":  {},
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// IsAllowlisted reports whether values logged under key are written as-is by
// MaskField. Matching ignores case and surrounding space.
func IsAllowlisted(key string) bool {
	key = normalizeKey(key)
	i := sort.SearchStrings(plainKeys, key)
	return i < len(plainKeys) && plainKeys[i] == key
}

// RedactionAllowlist returns a copy of the keys MaskField leaves in clear.
func RedactionAllowlist() []string {
	return append([]string(nil), plainKeys...)
}

// MaskField builds an attribute for a value of unknown sensitivity. Unless key
// is allowlisted, any non-blank value is replaced with RedactedValue.
func MaskField(key, value string) slog.Attr {
	if IsAllowlisted(key) || strings.TrimSpace(value) == "" {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

func maskSecret(attr slog.Attr) slog.Attr {
	if _, ok := secretKeys[normalizeKey(attr.Key)]; !ok {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
		return attr
	}
	return slog.String(attr.Key, RedactedValue)
}
