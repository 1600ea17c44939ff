package feed

import (
	"bytes"
	"fmt"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/mmcdole/gofeed"
)

var (
	rootSignature = regexp.MustCompile(`(?is)<(rss|feed|rdf:RDF)[\s>]`)
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>\s*(<!\[CDATA\[.*?(?:\]\]>|$)|[^<]*)`)
	descTag       = regexp.MustCompile(`(?is)<(?:description|subtitle|tagline)[^>]*>\s*(<!\[CDATA\[.*?(?:\]\]>|$)|[^<]*)`)
	cdata         = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)(?:\]\]>|$)`)
)

// Parser is safe for concurrent use. gofeed parsers keep per-document state,
// so each call borrows one from a pool.
type Parser struct {
	pool sync.Pool
}

func NewParser() *Parser {
	return &Parser{
		pool: sync.Pool{New: func() any { return gofeed.NewParser() }},
	}
}

// ExtractMetadata classifies content as rss/atom/rdf and pulls out its title
// and description. Documents that carry a feed root element but do not parse
// cleanly still yield a best-effort title. Anything else is a parse_error.
func (p *Parser) ExtractMetadata(content []byte) (*Metadata, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, NewError(KindParse, "", fmt.Errorf("%w: empty document", ErrNotFeed))
	}

	detected := gofeed.DetectFeedType(bytes.NewReader(trimmed))
	if detected != gofeed.FeedTypeRSS && detected != gofeed.FeedTypeAtom {
		return p.bestEffort(trimmed)
	}

	gp := p.pool.Get().(*gofeed.Parser)
	parsed, err := gp.Parse(bytes.NewReader(trimmed))
	p.pool.Put(gp)
	if err != nil {
		return p.bestEffort(trimmed)
	}

	meta := &Metadata{
		Title:       strings.TrimSpace(parsed.Title),
		Description: strings.TrimSpace(parsed.Description),
		Type:        typeOf(parsed.FeedType, parsed.FeedVersion, trimmed),
	}
	return meta, nil
}

func typeOf(feedType, version string, content []byte) FeedType {
	if feedType == "atom" {
		return TypeAtom
	}
	if version == "1.0" || version == "0.9" || signatureType(content) == TypeRDF {
		return TypeRDF
	}
	return TypeRSS
}

func signatureType(content []byte) FeedType {
	m := rootSignature.FindSubmatch(content)
	if m == nil {
		return ""
	}
	switch strings.ToLower(string(m[1])) {
	case "feed":
		return TypeAtom
	case "rdf:rdf":
		return TypeRDF
	default:
		return TypeRSS
	}
}

// bestEffort recovers metadata from a document that has a feed root element
// but is malformed (unterminated tags, stray markup).
func (p *Parser) bestEffort(content []byte) (*Metadata, error) {
	kind := signatureType(content)
	if kind == "" {
		return nil, NewError(KindParse, "", ErrNotFeed)
	}

	meta := &Metadata{Type: kind}
	if m := titleTag.FindSubmatch(content); m != nil {
		meta.Title = cleanText(string(m[1]))
	}
	if m := descTag.FindSubmatch(content); m != nil {
		meta.Description = cleanText(string(m[1]))
	}
	return meta, nil
}

func cleanText(s string) string {
	if m := cdata.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.TrimSpace(html.UnescapeString(s))
}
