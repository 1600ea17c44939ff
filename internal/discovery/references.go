package discovery

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pders01/feedscout/internal/feed"
)

// Confidence assigned per discovery method.
const (
	ConfidenceCommonPath  = 0.9
	ConfidenceLinkTag     = 0.9
	ConfidenceMetaTag     = 0.6
	ConfidenceContentScan = 0.5
)

var linkTypes = map[string]feed.FeedType{
	"application/rss+xml":  feed.TypeRSS,
	"application/atom+xml": feed.TypeAtom,
	"application/rdf+xml":  feed.TypeRDF,
}

// meta names that sites use to advertise a feed address
var metaNames = map[string]bool{
	"rss":             true,
	"feed":            true,
	"atom":            true,
	"rss-feed":        true,
	"application-rss": true,
	"og:rss":          true,
	"og:feed":         true,
}

var feedHref = regexp.MustCompile(`(?i)(\.(rss|atom|rdf)$|[/.](rss|atom|feed)\.xml$|/(rss|feed|atom)/?$|/feeds?/|[?&]feed=(rss|rss2|atom))`)

// Reference is a feed address found in a page, not yet fetched.
type Reference struct {
	URL        string
	Title      string
	TypeHint   feed.FeedType
	Method     feed.DiscoveryMethod
	Confidence float64
}

// FindFeedReferences extracts feed references from an HTML page. Relative
// hrefs resolve against the page's own address (or its <base href>), never
// the site root. Anchors are only considered up to maxContentScan.
func FindFeedReferences(html []byte, pageURL string, maxContentScan int) []Reference {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	var refs []Reference
	seen := make(map[string]bool)
	add := func(ref Reference) {
		if ref.URL == "" || seen[ref.URL] {
			return
		}
		seen[ref.URL] = true
		refs = append(refs, ref)
	}

	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		if i := strings.IndexByte(typ, ';'); i >= 0 {
			typ = strings.TrimSpace(typ[:i])
		}
		hint, isFeedType := linkTypes[typ]

		relAlternate := hasToken(rel, "alternate")
		relFeed := hasToken(rel, "feed")
		if !(relAlternate && isFeedType) && !relFeed {
			return
		}
		add(Reference{
			URL:        resolve(base, s.AttrOr("href", "")),
			Title:      strings.TrimSpace(s.AttrOr("title", "")),
			TypeHint:   hint,
			Method:     feed.DiscoveryLinkTag,
			Confidence: ConfidenceLinkTag,
		})
	})

	doc.Find("meta[content]").Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(s.AttrOr("name", s.AttrOr("property", ""))))
		if !metaNames[name] {
			return
		}
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" || strings.ContainsAny(content, " \t\n") {
			return
		}
		add(Reference{
			URL:        resolve(base, content),
			Method:     feed.DiscoveryMetaTag,
			Confidence: ConfidenceMetaTag,
		})
	})

	scanned := 0
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if scanned >= maxContentScan {
			return false
		}
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if !feedHref.MatchString(stripQueryForMatch(href)) {
			return true
		}
		ref := Reference{
			URL:        resolve(base, href),
			Title:      strings.TrimSpace(s.Text()),
			Method:     feed.DiscoveryContentScan,
			Confidence: ConfidenceContentScan,
		}
		if ref.URL != "" && !seen[ref.URL] {
			scanned++
		}
		add(ref)
		return true
	})

	return refs
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if f == token {
			return true
		}
	}
	return false
}

// stripQueryForMatch keeps ?feed= queries visible to the pattern but drops
// unrelated query strings and fragments.
func stripQueryForMatch(href string) string {
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href = href[:i]
	}
	if strings.Contains(strings.ToLower(href), "feed=") {
		return href
	}
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	return href
}

// resolve turns href into an absolute http(s) address, or "" when it cannot.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme == "feed" {
		// feed:https://example.com/rss and feed://example.com/rss
		inner := strings.TrimPrefix(strings.TrimPrefix(href, "feed:"), "//")
		if !strings.Contains(inner, "://") {
			inner = "http://" + inner
		}
		return resolve(base, inner)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
