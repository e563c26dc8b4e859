package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"tfgsapi/internal/catalog"
	"tfgsapi/internal/fetch"
)

// fakeGetter serves canned bodies keyed by URL substring.
type fakeGetter struct {
	pages map[string]string
	errs  map[string]error
}

func (f *fakeGetter) Get(_ context.Context, url string) (fetch.Response, error) {
	for key, err := range f.errs {
		if strings.Contains(url, key) {
			return fetch.Response{}, err
		}
	}
	for key, body := range f.pages {
		if strings.Contains(url, key) {
			return fetch.Response{URL: url, StatusCode: 200, Body: []byte(body)}, nil
		}
	}
	return fetch.Response{}, fmt.Errorf("no fixture for %s", url)
}

func browsePage(kind string, entries map[int]string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for id, name := range entries {
		fmt.Fprintf(&sb, `<div class="browsecontainer"><a href="/?module=search&%s=%d">%s</a></div>`, kind, id, name)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

func TestParseTaxonomyListing(t *testing.T) {
	t.Parallel()

	body := browsePage("engine", map[int]string{7: "Ren'Py", 12: "RAGS"})
	entries, err := ParseTaxonomyListing([]byte(body), catalog.KindEngine)
	if err != nil {
		t.Fatalf("ParseTaxonomyListing() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[7] != "ren'py" {
		t.Fatalf("expected slugged name, got %q", entries[7])
	}
	if entries[12] != "rags" {
		t.Fatalf("expected slugged name, got %q", entries[12])
	}
}

func TestParseTaxonomyListingSkipsForeignAnchors(t *testing.T) {
	t.Parallel()

	body := `<html><body>
<div class="browsecontainer"><a href="/?module=search&engine=3">Twine</a></div>
<div class="browsecontainer"><a href="/about.php">About</a></div>
<div class="browsecontainer"><a href="/?module=search&engine=nope">Broken</a></div>
</body></html>`

	entries, err := ParseTaxonomyListing([]byte(body), catalog.KindEngine)
	if err != nil {
		t.Fatalf("ParseTaxonomyListing() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[3] != "twine" {
		t.Fatalf("expected twine at id 3, got %v", entries)
	}
}

func TestParseTaxonomyListingDuplicateIDLastWins(t *testing.T) {
	t.Parallel()

	body := `<html><body>
<div class="browsecontainer"><a href="/?module=search&rating=5">Teen</a></div>
<div class="browsecontainer"><a href="/?module=search&rating=5">Adult</a></div>
</body></html>`

	entries, err := ParseTaxonomyListing([]byte(body), catalog.KindRating)
	if err != nil {
		t.Fatalf("ParseTaxonomyListing() error = %v", err)
	}
	if entries[5] != "adult" {
		t.Fatalf("expected later entry to win, got %q", entries[5])
	}
}

func TestCategoryFetcherFetchAll(t *testing.T) {
	t.Parallel()

	client := &fakeGetter{pages: map[string]string{}}
	for _, kind := range catalog.Kinds() {
		client.pages["by="+string(kind)] = browsePage(string(kind), map[int]string{1: "One"})
	}

	f := NewCategoryFetcher(client, "https://example.test", nil)
	set, failures := f.FetchAll(context.Background())
	if failures != 0 {
		t.Fatalf("expected no failures, got %d", failures)
	}
	if len(set) != len(catalog.Kinds()) {
		t.Fatalf("expected %d kinds, got %d", len(catalog.Kinds()), len(set))
	}
	for _, kind := range catalog.Kinds() {
		if set[kind][1] != "one" {
			t.Fatalf("kind %s: unexpected entries %v", kind, set[kind])
		}
	}
}

func TestCategoryFetcherFetchAllPartialFailure(t *testing.T) {
	t.Parallel()

	client := &fakeGetter{
		pages: map[string]string{},
		errs:  map[string]error{"by=rating": errors.New("upstream 500")},
	}
	for _, kind := range catalog.Kinds() {
		client.pages["by="+string(kind)] = browsePage(string(kind), map[int]string{1: "One"})
	}

	f := NewCategoryFetcher(client, "https://example.test", nil)
	set, failures := f.FetchAll(context.Background())
	if failures != 1 {
		t.Fatalf("expected 1 failure, got %d", failures)
	}
	if len(set[catalog.KindRating]) != 0 {
		t.Fatalf("expected empty taxonomy for failed kind, got %v", set[catalog.KindRating])
	}
	if len(set[catalog.KindEngine]) != 1 {
		t.Fatalf("expected other kinds unaffected, got %v", set[catalog.KindEngine])
	}
}
