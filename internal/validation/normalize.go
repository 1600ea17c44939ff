package validation

import (
	"net"
	"net/url"
	"strings"
)

var trackingParams = map[string]struct{}{
	"ref":     {},
	"ref_src": {},
	"fbclid":  {},
	"gclid":   {},
	"dclid":   {},
	"msclkid": {},
	"yclid":   {},
	"igshid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
	"_ga":     {},
	"_hsenc":  {},
	"_hsmi":   {},
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm_") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

// NormalizeURL returns the comparison form of a feed address. It never
// touches the network and never fails: input that does not parse as an
// absolute address comes back trimmed but otherwise unchanged.
//
// The comparison form lowercases scheme and host, drops a leading "www."
// label, default ports, trailing slashes, the fragment and tracking query
// parameters, and sorts the remaining query parameters by key.
// NormalizeURL(NormalizeURL(u)) == NormalizeURL(u) for every u.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	candidate := trimmed
	if !strings.Contains(candidate, "://") && looksLikeHost(candidate) {
		candidate = "https://" + candidate
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Scheme == "" || u.Host == "" || u.Opaque != "" {
		return trimmed
	}

	u.Scheme = strings.ToLower(u.Scheme)

	hostname := strings.ToLower(u.Hostname())
	for strings.HasPrefix(hostname, "www.") {
		hostname = hostname[len("www."):]
	}
	if hostname == "" {
		return trimmed
	}
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		port = ""
	}
	switch {
	case port != "":
		u.Host = net.JoinHostPort(hostname, port)
	case strings.Contains(hostname, ":"):
		u.Host = "[" + hostname + "]"
	default:
		u.Host = hostname
	}

	// every trailing slash, so "/a//" and "/a" compare equal in one pass
	escaped := strings.TrimRight(u.EscapedPath(), "/")
	if unescaped, err := url.PathUnescape(escaped); err == nil {
		u.Path = unescaped
		u.RawPath = escaped
	} else {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = ""
	}

	if u.RawQuery != "" {
		values := u.Query()
		for key := range values {
			if isTrackingParam(key) {
				values.Del(key)
			}
		}
		u.RawQuery = values.Encode()
	}
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""

	return u.String()
}

// looksLikeHost reports whether a scheme-less string starts with something
// shaped like a domain name, e.g. "example.com/feed".
func looksLikeHost(s string) bool {
	if strings.ContainsAny(s, " \t") {
		return false
	}
	host, _, _ := strings.Cut(s, "/")
	host, _, _ = strings.Cut(host, "?")
	return strings.Contains(host, ".") && !strings.HasPrefix(host, ".") && !strings.Contains(host, ":")
}

// Origin returns scheme://host for an absolute address, or "" when raw has
// no host.
func Origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
