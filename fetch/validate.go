package fetch

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateURL is the default URL validator: http(s) only, no loopback,
// private, or link-local targets. Keeps a misconfigured source list from
// probing the network the monitor runs in.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q not allowed", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("empty host")
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("loopback host not allowed")
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("address %s not allowed", ip)
		}
	}
	return nil
}
