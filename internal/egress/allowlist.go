package egress

import (
	"net"
	"net/http"
	"strings"

	"axiom/engine/internal/llm"
)

// AllowlistRoundTripper restricts model traffic to a fixed set of hosts.
// Plain HTTP is only accepted for loopback hosts; anything else must use HTTPS.
type AllowlistRoundTripper struct {
	Base      http.RoundTripper
	Allowlist map[string]bool
}

// NewAllowlistRoundTripper returns a RoundTripper that enforces a host allowlist.
func NewAllowlistRoundTripper(base http.RoundTripper, hosts []string) *AllowlistRoundTripper {
	allowlist := make(map[string]bool, len(hosts))
	for _, host := range hosts {
		host = strings.Trim(strings.ToLower(strings.TrimSpace(host)), "[]")
		if host != "" {
			allowlist[host] = true
		}
	}
	return &AllowlistRoundTripper{Base: base, Allowlist: allowlist}
}

func (rt *AllowlistRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL == nil {
		return nil, llm.ErrEgressBlocked
	}
	host := strings.ToLower(req.URL.Hostname())
	if host == "" {
		return nil, llm.ErrEgressBlocked
	}
	if !rt.Allowlist[host] {
		return nil, llm.ErrEgressBlocked
	}
	switch req.URL.Scheme {
	case "https":
	case "http":
		if !IsLoopback(host) {
			return nil, llm.ErrEgressBlocked
		}
	default:
		return nil, llm.ErrEgressBlocked
	}
	base := rt.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

func IsLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
