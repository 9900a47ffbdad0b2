package util

import (
	"net/http"
	"net/netip"
	"strings"
)

// clientIPHeaders are consulted in order. Only the first hop of X-Forwarded-For is used.
var clientIPHeaders = []string{"X-Forwarded-For", "CF-Connecting-IP", "X-Real-IP"}

// ClientIP returns the public address of the caller as reported by the proxy
// headers, or "" when none of them carries a usable public address.
func ClientIP(h http.Header) string {
	for _, name := range clientIPHeaders {
		v := h.Get(name)
		if v == "" {
			continue
		}
		if name == "X-Forwarded-For" {
			v, _, _ = strings.Cut(v, ",")
		}
		if ip, ok := PublicIP(v); ok {
			return ip
		}
	}
	return ""
}

// PublicIP normalizes raw and reports whether it is a routable public address.
// Loopback, private, link-local, multicast and unspecified addresses are rejected.
func PublicIP(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "unknown") {
		return "", false
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil {
		// "203.0.113.7:51234" or "[2001:db8::1]:443"
		ap, perr := netip.ParseAddrPort(raw)
		if perr != nil {
			return "", false
		}
		addr = ap.Addr()
	}
	addr = addr.Unmap()

	if !addr.IsValid() ||
		addr.IsUnspecified() ||
		addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() {
		return "", false
	}
	return addr.WithZone("").String(), true
}
