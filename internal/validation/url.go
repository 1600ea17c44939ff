package validation

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/pders01/feedscout/internal/config"
)

// FeedURLValidator checks user-supplied addresses before any fetch is made.
type FeedURLValidator struct {
	// AllowLocalhost determines if localhost URLs are permitted
	AllowLocalhost bool
	// AllowPrivateIPs determines if private IP addresses are permitted
	AllowPrivateIPs bool
	// MaxLength is the maximum allowed URL length
	MaxLength int
}

// NewFeedURLValidator creates a new validator with secure defaults
func NewFeedURLValidator() *FeedURLValidator {
	return &FeedURLValidator{
		AllowLocalhost:  false,
		AllowPrivateIPs: false,
		MaxLength:       2048,
	}
}

// NewPermissiveFeedURLValidator creates a validator that allows local development
func NewPermissiveFeedURLValidator() *FeedURLValidator {
	return &FeedURLValidator{
		AllowLocalhost:  true,
		AllowPrivateIPs: true,
		MaxLength:       2048,
	}
}

// FromConfig builds a validator from the [validation] config section.
func FromConfig(cfg config.ValidationConfig) *FeedURLValidator {
	v := NewFeedURLValidator()
	v.AllowLocalhost = cfg.AllowLocalhost
	v.AllowPrivateIPs = cfg.AllowPrivateIPs
	return v
}

// ValidateAndNormalize validates a feed URL and returns it in absolute form.
// Addresses without a scheme default to https.
func (v *FeedURLValidator) ValidateAndNormalize(input string) (string, error) {
	input = strings.TrimSpace(input)

	if input == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}
	if len(input) > v.MaxLength {
		return "", fmt.Errorf("URL too long (max %d characters)", v.MaxLength)
	}

	if strings.ContainsAny(input, "<>\"'` ") {
		return "", fmt.Errorf("URL contains invalid characters")
	}

	if scheme, _, ok := strings.Cut(input, "://"); ok {
		scheme = strings.ToLower(scheme)
		if scheme != "http" && scheme != "https" {
			return "", fmt.Errorf("URL must use http or https protocol")
		}
	} else {
		input = "https://" + input
	}

	parsedURL, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Host == "" || parsedURL.Hostname() == "" {
		return "", fmt.Errorf("URL must have a valid hostname")
	}

	if err := v.validateHostSecurity(parsedURL.Host); err != nil {
		return "", err
	}

	if err := v.validatePathSecurity(parsedURL); err != nil {
		return "", err
	}

	parsedURL.Scheme = strings.ToLower(parsedURL.Scheme)
	parsedURL.Host = strings.ToLower(parsedURL.Host)
	parsedURL.Fragment = ""

	return parsedURL.String(), nil
}

// validateHostSecurity performs security checks on the hostname
func (v *FeedURLValidator) validateHostSecurity(host string) error {
	hostname := host
	if strings.Contains(host, ":") {
		var err error
		hostname, _, err = net.SplitHostPort(host)
		if err != nil {
			return fmt.Errorf("invalid host format: %w", err)
		}
	}

	if !v.AllowLocalhost && isLocalhost(hostname) {
		return fmt.Errorf("localhost URLs are not permitted")
	}

	if !v.AllowPrivateIPs {
		if ip := net.ParseIP(hostname); ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("private IP addresses are not permitted")
		}
	}

	if isUnroutable(hostname) {
		return fmt.Errorf("unroutable host %q", hostname)
	}

	return nil
}

// validatePathSecurity performs security checks on the URL path and query
func (v *FeedURLValidator) validatePathSecurity(parsedURL *url.URL) error {
	if strings.Contains(parsedURL.Path, "..") {
		return fmt.Errorf("directory traversal patterns not allowed in URL path")
	}

	if strings.Contains(parsedURL.RawQuery, "javascript:") {
		return fmt.Errorf("suspicious query parameters detected")
	}

	return nil
}

func isLocalhost(hostname string) bool {
	hostname = strings.ToLower(hostname)
	return hostname == "localhost" ||
		hostname == "127.0.0.1" ||
		hostname == "::1" ||
		strings.HasSuffix(hostname, ".localhost")
}

var privateBlocks = func() []*net.IPNet {
	var blocks []*net.IPNet
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"169.254.0.0/16",
		"127.0.0.0/8",
		"fc00::/7",
		"fe80::/10",
	} {
		_, block, _ := net.ParseCIDR(cidr)
		blocks = append(blocks, block)
	}
	return blocks
}()

func isPrivateIP(ip net.IP) bool {
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

func isUnroutable(hostname string) bool {
	return hostname == "0.0.0.0" || hostname == "255.255.255.255" || hostname == "::"
}
