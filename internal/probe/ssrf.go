package probe

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URLGuard validates target URLs before registration so the engine cannot
// be pointed at internal infrastructure or cloud metadata endpoints.
type URLGuard struct {
	allowPrivateIPs bool
}

// NewURLGuard creates a URL validator. allowPrivateIPs is meant for
// self-hosted deployments that monitor internal services.
func NewURLGuard(allowPrivateIPs bool) *URLGuard {
	return &URLGuard{allowPrivateIPs: allowPrivateIPs}
}

// metadata endpoints blocked regardless of the private-IP setting
var blockedMetadataHosts = map[string]bool{
	"169.254.169.254":           true, // AWS, Azure, GCP
	"169.254.170.2":             true, // AWS ECS
	"metadata.google.internal":  true,
	"fd00:ec2::254":             true,
}

// Validate checks that rawURL is an absolute HTTP(S) URL whose host does
// not resolve to a forbidden address.
func (g *URLGuard) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("only http and https URLs are allowed")
	}

	hostname := u.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	if blockedMetadataHosts[strings.ToLower(hostname)] {
		return fmt.Errorf("access to metadata endpoints is not allowed")
	}

	if g.allowPrivateIPs {
		return nil
	}

	if isLocalhostName(hostname) {
		return fmt.Errorf("access to localhost is not allowed")
	}

	// Resolution failures are not rejected here: a site can legitimately be
	// registered before its DNS record exists, and the probe will classify
	// the failure. Only a successful resolution to a private address blocks
	// registration.
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if err := validatePublicIP(ip); err != nil {
			return fmt.Errorf("host %s is not allowed: %w", hostname, err)
		}
	}

	return nil
}

func isLocalhostName(hostname string) bool {
	switch strings.ToLower(hostname) {
	case "localhost", "localhost.localdomain", "127.0.0.1", "::1", "[::1]", "0.0.0.0":
		return true
	}
	return false
}

func validatePublicIP(ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return fmt.Errorf("loopback address")
	case ip.IsPrivate():
		return fmt.Errorf("private address")
	case ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast():
		return fmt.Errorf("link-local address")
	case ip.IsMulticast():
		return fmt.Errorf("multicast address")
	case ip.IsUnspecified():
		return fmt.Errorf("unspecified address")
	}
	return nil
}
