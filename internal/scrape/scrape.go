// Package scrape extracts structured catalog records from site markup.
//
// The upstream markup is uncooperative: field extraction is best-effort,
// and every optional field read degrades to its zero value instead of
// failing the surrounding record.
package scrape

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"tfgsapi/internal/fetch"
)

// Getter issues a single GET request.
type Getter interface {
	Get(ctx context.Context, url string) (fetch.Response, error)
}

// Poster issues a single form-encoded POST request.
type Poster interface {
	PostForm(ctx context.Context, url string, form url.Values) (fetch.Response, error)
}

// Slugify normalizes display text to a lowercase underscore-separated slug.
func Slugify(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// hrefID extracts the integer value of the named query parameter from an
// anchor href. Returns false when the parameter is absent or non-numeric.
func hrefID(href, param string) (int, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return 0, false
	}
	raw := u.Query().Get(param)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return id, true
}

// resolveURL resolves href against base, returning href untouched when
// either side fails to parse.
func resolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
