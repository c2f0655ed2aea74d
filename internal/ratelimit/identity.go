package ratelimit

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// MaskIP coarsens a caller address into a limiter key. IPv4 addresses keep
// their first three octets ("a.b.c.xxx") and IPv6 addresses are reduced to
// their /64 prefix. A port, if present, is dropped. Anything that does not
// parse as an IP is returned unchanged.
func MaskIP(addr string) string {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return addr
	}
	ip = ip.WithZone("").Unmap()

	if ip.Is4() {
		b := ip.As4()
		return fmt.Sprintf("%d.%d.%d.xxx", b[0], b[1], b[2])
	}

	prefix, err := ip.Prefix(64)
	if err != nil {
		return addr
	}
	return prefix.String()
}
