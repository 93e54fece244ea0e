// Package content validates and canonicalizes extracted page content before
// it reaches analysis.
package content

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/pagelens-ai/pagelens/pkg/models"
)

// ErrEmptyText is returned when a submission has no visible text left after
// whitespace is collapsed.
var ErrEmptyText = errors.New("content has no visible text")

// DefaultMaxTextBytes bounds submitted text when no limit is configured.
const DefaultMaxTextBytes = 256 * 1024

// platformHosts maps URL host fragments to platform tags. Ordered so the
// first match wins.
var platformHosts = []struct {
	fragment string
	platform string
}{
	{"github.com", "github"},
	{"gitlab.com", "gitlab"},
	{"slack.com", "slack"},
	{"atlassian.net", "jira"},
	{"salesforce.com", "salesforce"},
	{"lightning.force.com", "salesforce"},
	{"notion.so", "notion"},
	{"linear.app", "linear"},
	{"asana.com", "asana"},
	{"hubspot.com", "hubspot"},
	{"zendesk.com", "zendesk"},
	{"intercom.com", "intercom"},
	{"stripe.com", "stripe"},
	{"trello.com", "trello"},
	{"figma.com", "figma"},
	{"monday.com", "monday"},
	{"airtable.com", "airtable"},
	{"zoom.us", "zoom"},
}

// Normalizer cleans extracted page content and fills in metadata the
// extension left blank.
type Normalizer struct {
	maxTextBytes int
}

// NewNormalizer creates a Normalizer clipping text to maxTextBytes.
// Non-positive limits fall back to DefaultMaxTextBytes.
func NewNormalizer(maxTextBytes int) *Normalizer {
	if maxTextBytes <= 0 {
		maxTextBytes = DefaultMaxTextBytes
	}
	return &Normalizer{maxTextBytes: maxTextBytes}
}

// Normalize returns a cleaned copy of ec: whitespace collapsed, text clipped
// to the byte budget on a rune boundary, platform derived from the URL when
// missing, and word count recomputed when missing. It fails on empty text or
// an unparseable URL.
func (n *Normalizer) Normalize(ec models.ExtractedContent) (models.ExtractedContent, error) {
	ec.MainText = strings.Join(strings.Fields(ec.MainText), " ")
	if ec.MainText == "" {
		return ec, ErrEmptyText
	}
	ec.MainText = clipRunes(ec.MainText, n.maxTextBytes)

	if ec.URL != "" {
		if _, err := url.ParseRequestURI(ec.URL); err != nil {
			return ec, fmt.Errorf("invalid url: %w", err)
		}
	}

	if ec.Metadata.Platform == "" {
		ec.Metadata.Platform = DetectPlatform(ec.URL)
	}
	if ec.Metadata.ContentType == "" {
		ec.Metadata.ContentType = "page"
	}
	if ec.Metadata.WordCount == 0 {
		ec.Metadata.WordCount = len(strings.Fields(ec.MainText))
	}
	return ec, nil
}

// DetectPlatform maps a page URL to a known SaaS platform tag, or "unknown".
func DetectPlatform(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Host)
	for _, p := range platformHosts {
		if strings.Contains(host, p.fragment) {
			return p.platform
		}
	}
	return "unknown"
}

// clipRunes cuts s to at most max bytes without splitting a rune.
func clipRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
