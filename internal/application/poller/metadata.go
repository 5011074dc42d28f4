package poller

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Resolution errors. Each marker missing from the session page maps to
// exactly one of these.
var (
	ErrSessionNotFound       = errors.New("session not found")
	ErrChatUnavailable       = errors.New("no live chat available for this session")
	ErrAccessKeyNotFound     = errors.New("access key not found")
	ErrClientVersionNotFound = errors.New("client version not found")
	ErrContinuationNotFound  = errors.New("continuation not found")
)

const chatRendererMarker = "liveChatRenderer"

// Metadata holds what a session page yields for polling its chat.
// All fields are non-empty.
type Metadata struct {
	APIKey        string
	ClientVersion string
	Continuation  string
}

type tokenExtractor struct {
	pattern *regexp.Regexp
	err     error
	field   func(md *Metadata) *string
}

// ordered: the first missing token decides the error
var tokenExtractors = []tokenExtractor{
	{
		pattern: regexp.MustCompile(`"INNERTUBE_API_KEY":"([^"]+)"`),
		err:     ErrAccessKeyNotFound,
		field:   func(md *Metadata) *string { return &md.APIKey },
	},
	{
		pattern: regexp.MustCompile(`clientVersion":"([^"]+)"`),
		err:     ErrClientVersionNotFound,
		field:   func(md *Metadata) *string { return &md.ClientVersion },
	},
	{
		pattern: regexp.MustCompile(`continuation":"([^"]+)"`),
		err:     ErrContinuationNotFound,
		field:   func(md *Metadata) *string { return &md.Continuation },
	},
}

// ExtractMetadata scans a session page for the markers needed to poll its
// chat. It fails on the first missing marker.
func ExtractMetadata(sessionID, page string) (*Metadata, error) {
	if id := canonicalSessionID(page); id == "" || id != sessionID {
		return nil, ErrSessionNotFound
	}

	if !strings.Contains(page, chatRendererMarker) {
		return nil, ErrChatUnavailable
	}

	md := &Metadata{}
	for _, t := range tokenExtractors {
		m := t.pattern.FindStringSubmatch(page)
		if m == nil || m[1] == "" {
			return nil, t.err
		}
		*t.field(md) = m[1]
	}

	return md, nil
}

// canonicalSessionID returns the id carried by the page's canonical watch
// link, or "" when there is none
func canonicalSessionID(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}

	href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	if !ok {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil || u.Path != "/watch" {
		return ""
	}

	return u.Query().Get("v")
}
