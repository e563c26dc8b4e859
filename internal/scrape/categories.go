package scrape

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"tfgsapi/internal/catalog"
)

// CategoryFetcher fetches and parses the browse-by-taxonomy listing pages.
type CategoryFetcher struct {
	client  Getter
	baseURL string
	logger  *zap.Logger
}

// NewCategoryFetcher builds a CategoryFetcher.
func NewCategoryFetcher(client Getter, baseURL string, logger *zap.Logger) *CategoryFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryFetcher{client: client, baseURL: baseURL, logger: logger}
}

// FetchAll fetches every taxonomy kind in parallel. One kind's failure is
// logged and counted without blocking the others; its entry in the returned
// set is an empty taxonomy.
func (f *CategoryFetcher) FetchAll(ctx context.Context) (catalog.TaxonomySet, int) {
	set := make(catalog.TaxonomySet, len(catalog.Kinds()))
	failures := 0

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, kind := range catalog.Kinds() {
		wg.Add(1)
		go func(kind catalog.TaxonomyKind) {
			defer wg.Done()
			entries, err := f.fetchOne(ctx, kind)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				f.logger.Warn("taxonomy fetch failed",
					zap.String("kind", string(kind)),
					zap.Error(err),
				)
				failures++
				set[kind] = catalog.Taxonomy{}
				return
			}
			set[kind] = entries
		}(kind)
	}
	wg.Wait()
	return set, failures
}

func (f *CategoryFetcher) fetchOne(ctx context.Context, kind catalog.TaxonomyKind) (catalog.Taxonomy, error) {
	resp, err := f.client.Get(ctx, fmt.Sprintf("%s/?module=browse&by=%s", f.baseURL, kind))
	if err != nil {
		return nil, err
	}
	return ParseTaxonomyListing(resp.Body, kind)
}

// ParseTaxonomyListing extracts (id, slug) pairs from one browse page.
// The numeric id lives in each anchor's query parameter named after the
// taxonomy kind. Duplicate ids: last write wins.
func ParseTaxonomyListing(body []byte, kind catalog.TaxonomyKind) (catalog.Taxonomy, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s listing: %w", kind, err)
	}

	entries := catalog.Taxonomy{}
	doc.Find("div.browsecontainer").Each(func(_ int, s *goquery.Selection) {
		a := s.Find("a").First()
		id, ok := hrefID(a.AttrOr("href", ""), string(kind))
		if !ok {
			return
		}
		entries[id] = Slugify(a.Text())
	})
	return entries, nil
}
