package kb

import (
	"strconv"
	"strings"
)

// The portal's payloads are deeply nested and loosely typed: wrapper keys
// vary between endpoints and field names occasionally change. Every semantic
// field is therefore looked up through an ordered list of candidate keys, and
// numeric coercion never fails hard — an unparseable value is simply absent.

// unwrapBody peels the dataBody/data wrapper layers, tolerating payloads that
// arrive already unwrapped.
func unwrapBody(raw any) any {
	data := raw
	if m, ok := data.(map[string]any); ok {
		if inner, ok := m["dataBody"]; ok {
			data = inner
		}
	}
	if m, ok := data.(map[string]any); ok {
		if inner, ok := m["data"]; ok {
			data = inner
		}
	}
	return data
}

// pickList returns the first candidate key holding a list, or data itself if
// the payload is already a list.
func pickList(data any, keys ...string) []any {
	switch v := data.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range keys {
			if list, ok := v[key].([]any); ok {
				return list
			}
		}
	}
	return nil
}

// firstValue returns the first candidate key present with a non-nil,
// non-empty value.
func firstValue(m map[string]any, keys ...string) (any, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr {
			trimmed := strings.TrimSpace(s)
			if trimmed == "" || trimmed == "null" {
				continue
			}
		}
		return v, true
	}
	return nil, false
}

// firstString returns the first candidate present, rendered as a trimmed string.
func firstString(m map[string]any, keys ...string) (string, bool) {
	v, ok := firstValue(m, keys...)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(asString(v)), true
}

// priceWon coerces a price field to an integer in the upstream's native
// 만원 unit. Accepts numeric types or strings with thousands separators;
// returns ok=false on anything unparseable. Never panics, never errors.
func priceWon(v any) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if s == "" {
			return 0, false
		}
		if parsed, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(parsed), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// firstPrice applies priceWon across candidate keys.
func firstPrice(m map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			if won, ok := priceWon(v); ok {
				return won, true
			}
		}
	}
	return 0, false
}

// firstFloat extracts a float through candidate keys, tolerating separators.
func firstFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
			if parsed, err := strconv.ParseFloat(s, 64); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

// firstInt extracts an int through candidate keys.
func firstInt(m map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int(n), true
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
			s = strings.TrimSuffix(s, "층")
			if parsed, err := strconv.Atoi(s); err == nil {
				return parsed, true
			}
		}
	}
	return 0, false
}

// normalizeDate rewrites an 8-digit compact date (YYYYMMDD) to YYYY-MM-DD.
// Dot separators normalize to hyphens; anything else passes through.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if strings.Contains(s, ".") {
		return strings.ReplaceAll(s, ".", "-")
	}
	if len(s) == 8 && isDigits(s) {
		return s[:4] + "-" + s[4:6] + "-" + s[6:8]
	}
	return s
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return ""
	}
}

// truthyTokens are the raw values the portal uses to flag a cancelled deal.
var truthyTokens = map[string]bool{
	"Y": true, "TRUE": true, "1": true, "해제": true,
}

// isTruthy reports whether a raw flag value means "yes".
func isTruthy(v any) bool {
	return truthyTokens[strings.ToUpper(strings.TrimSpace(asString(v)))]
}
