package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// EndpointPolicy says which provider endpoints a user may point xllama at.
type EndpointPolicy struct {
	// AllowHTTP permits plain HTTP, HTTPS is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback, private and link-local targets
	// as well as localhost names, as used by self-hosted model servers.
	AllowLocalNetworks bool
}

// ValidateEndpoint checks a provider base URL against the policy. IP
// literals are checked without DNS lookups, names are only checked for
// well known local suffixes.
func ValidateEndpoint(rawURL string, policy EndpointPolicy) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "invalid URL")
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !policy.AllowHTTP {
			return errors.New("http endpoints are not allowed")
		}
	default:
		return errors.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.New("URL host is required")
	}

	if !policy.AllowLocalNetworks {
		if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
			return errors.Errorf("local hostname %q is not allowed", host)
		}
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	if addr.Zone() != "" && !policy.AllowLocalNetworks {
		return errors.Errorf("zoned IP address %q is not allowed", host)
	}
	addr = addr.Unmap()

	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Errorf("IP address %q cannot be an endpoint", host)
	}
	if !policy.AllowLocalNetworks &&
		(addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()) {
		return errors.Errorf("local network IP %q is not allowed", host)
	}

	return nil
}
