package masking

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Marker replaces every sensitive value before persistence.
const Marker = "**********"

// Field length caps for stored audit text. Truncation is a silent prefix
// cut, matching the gateway_logs column widths.
const (
	MaxQueryLen    = 1000
	MaxHeadersLen  = 1500
	MaxBodyLen     = 2000
	MaxResponseLen = 4000
	MaxUserAgent   = 500
	MaxErrorLen    = 500
)

var sensitiveKeys = map[string]struct{}{
	"authorization":    {},
	"cookie":           {},
	"x-api-key":        {},
	"set-cookie":       {},
	"password":         {},
	"passwd":           {},
	"new_password":     {},
	"confirm_password": {},
	"access_token":     {},
	"refresh_token":    {},
	"token":            {},
	"secret":           {},
	"client_secret":    {},
}

// IsSensitive reports whether the key name is in the redaction set.
// Matching is case-insensitive.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// Truncate cuts s to at most max bytes.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// Headers redacts sensitive header values and serializes the map as a
// bounded JSON string. A serialization failure falls back to a fixed
// error placeholder rather than dropping the record.
func Headers(headers map[string]string) string {
	masked := make(map[string]string, len(headers))
	for k, v := range headers {
		if IsSensitive(k) {
			masked[k] = Marker
		} else {
			masked[k] = v
		}
	}
	out, err := json.Marshal(masked)
	if err != nil {
		return `{"error":"Header parsing failed"}`
	}
	return Truncate(string(out), MaxHeadersLen)
}

// Body redacts a request or response body according to its content type.
// JSON bodies get recursive key masking, form bodies get per-pair masking,
// everything else is stored as-is. Best effort: a parse failure returns
// the raw text.
func Body(body, contentType string) string {
	if body == "" || contentType == "" {
		return body
	}
	switch {
	case strings.Contains(contentType, "application/json"):
		return JSON(body)
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		return Form(body)
	}
	return body
}

// JSON masks sensitive object fields at any nesting depth. Invalid
// documents are returned unchanged.
func JSON(doc string) string {
	if !gjson.Valid(doc) {
		return doc
	}
	return maskValue(doc, "", gjson.Parse(doc))
}

func maskValue(doc, prefix string, v gjson.Result) string {
	switch {
	case v.IsObject():
		v.ForEach(func(key, child gjson.Result) bool {
			path := joinPath(prefix, escapeKey(key.String()))
			if IsSensitive(key.String()) {
				doc, _ = sjson.Set(doc, path, Marker)
			} else {
				doc = maskValue(doc, path, child)
			}
			return true
		})
	case v.IsArray():
		i := 0
		v.ForEach(func(_, child gjson.Result) bool {
			doc = maskValue(doc, joinPath(prefix, strconv.Itoa(i)), child)
			i++
			return true
		})
	}
	return doc
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func escapeKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "\\\\")
	key = strings.ReplaceAll(key, ".", "\\.")
	key = strings.ReplaceAll(key, "*", "\\*")
	key = strings.ReplaceAll(key, "?", "\\?")
	return key
}

// Form masks values of sensitive keys in key=value&key=value bodies.
// Malformed pairs pass through unchanged.
func Form(body string) string {
	pairs := strings.Split(body, "&")
	for i, pair := range pairs {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 && IsSensitive(kv[0]) {
			pairs[i] = kv[0] + "=" + Marker
		}
	}
	return strings.Join(pairs, "&")
}
