package proxy

import (
	"net"
	"strings"
)

// ResolveClientIP extracts the real client address from request headers,
// trusting trustedProxies forwarding hops. Resolution order: trusted-hop
// X-Forwarded-For, left-most X-Forwarded-For entry, X-Real-IP, RFC 7239
// Forwarded, then the transport peer address. Returns "unknown" when
// every source is empty.
func ResolveClientIP(headers map[string]string, remoteAddr string, trustedProxies int) string {
	get := func(name string) string {
		for k, v := range headers {
			if strings.EqualFold(k, name) {
				return v
			}
		}
		return ""
	}

	if xff := get("X-Forwarded-For"); xff != "" {
		if ip := resolveTrustedXFF(xff, trustedProxies); ip != "" {
			return normalizeIP(ip)
		}
		// Plain parse: the left-most entry is the originating client.
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" {
			return normalizeIP(first)
		}
	}

	if xReal := get("X-Real-IP"); xReal != "" {
		return normalizeIP(xReal)
	}

	if forwarded := get("Forwarded"); forwarded != "" {
		if ip := parseForwardedFor(forwarded); ip != "" {
			return normalizeIP(ip)
		}
	}

	if remoteAddr != "" {
		host, _, err := net.SplitHostPort(remoteAddr)
		if err != nil {
			host = remoteAddr
		}
		if host != "" {
			return normalizeIP(host)
		}
	}

	return "unknown"
}

// resolveTrustedXFF walks the X-Forwarded-For chain from the right,
// skipping the configured number of trusted proxy hops, and returns the
// first address those proxies vouch for.
func resolveTrustedXFF(xff string, trustedProxies int) string {
	if trustedProxies <= 0 {
		return ""
	}
	parts := strings.Split(xff, ",")
	entries := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			entries = append(entries, v)
		}
	}
	if len(entries) == 0 {
		return ""
	}
	idx := len(entries) - trustedProxies
	if idx < 0 {
		idx = 0
	}
	return entries[idx]
}

// parseForwardedFor extracts the for= parameter from an RFC 7239
// Forwarded header, stripping quotes and IPv6 brackets.
func parseForwardedFor(forwarded string) string {
	for _, part := range strings.FieldsFunc(forwarded, func(r rune) bool {
		return r == ';' || r == ','
	}) {
		p := strings.TrimSpace(strings.ToLower(part))
		if !strings.HasPrefix(p, "for=") {
			continue
		}
		ip := strings.Trim(strings.TrimPrefix(p, "for="), `"`)
		if strings.HasPrefix(ip, "[") {
			if end := strings.Index(ip, "]"); end > 0 {
				ip = ip[1:end]
			}
		} else if colon := strings.LastIndex(ip, ":"); colon > 0 && strings.Count(ip, ":") == 1 {
			// for=192.0.2.1:8080 carries a port
			ip = ip[:colon]
		}
		if ip != "" {
			return ip
		}
	}
	return ""
}

func normalizeIP(ip string) string {
	if ip == "" {
		return "unknown"
	}
	if ip == "0:0:0:0:0:0:0:1" || ip == "::1" {
		return "127.0.0.1"
	}
	if zone := strings.IndexByte(ip, '%'); zone > -1 {
		ip = ip[:zone]
	}
	if strings.HasPrefix(ip, "::ffff:") && strings.Count(ip[7:], ".") == 3 {
		return ip[7:]
	}
	return ip
}
