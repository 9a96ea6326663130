// Package origin derives the browser origins allowed to call the API. When a
// public origin is configured it wins outright; otherwise local origins are
// inferred from the listen address.
package origin

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultOrigin is always allowed when no public origin is configured.
const DefaultOrigin = "http://localhost:8080"

// AllowedOrigins returns the CORS allowlist for the given listen address and
// the (possibly comma-separated) public origin setting.
func AllowedOrigins(listenAddr, publicOrigin string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(o string) {
		if o == "" {
			return
		}
		if _, dup := seen[o]; dup {
			return
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}

	public := splitOrigins(publicOrigin)
	for _, o := range public {
		add(normalize(o))
	}
	if len(out) > 0 {
		return out
	}

	add(DefaultOrigin)
	for _, o := range localOrigins(listenAddr) {
		add(o)
	}
	return out
}

func splitOrigins(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\n' || r == '\r' || r == '\t'
	})
	out := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// normalize reduces an origin URL to lowercase scheme://host[:port], or ""
// when it isn't a usable origin.
func normalize(raw string) string {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host)
}

// localOrigins expands a listen address like ":8080" or "10.0.0.5:8080" into
// the loopback origins a local browser would present.
func localOrigins(listenAddr string) []string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return nil
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	} else if !strings.Contains(addr, ":") {
		addr += ":"
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return nil
	}

	hosts := []string{"localhost", "127.0.0.1"}
	if host != "" && host != "0.0.0.0" && host != "::" {
		hosts = append(hosts, host)
	}

	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if strings.Contains(h, ":") && !strings.HasPrefix(h, "[") {
			h = "[" + h + "]"
		}
		out = append(out, fmt.Sprintf("http://%s:%s", h, port))
	}
	return out
}
