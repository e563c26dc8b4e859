package scrape

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Development-stage codes included in the game index search. The search is
// otherwise unfiltered (likesmin/likesmax of 0 disable like filtering).
var developmentStages = []string{"11", "12", "18", "41", "46", "47"}

// GameRef identifies one game discovered in the index.
type GameRef struct {
	ID  int
	URL string
}

// GameListFetcher fetches the filtered game index.
type GameListFetcher struct {
	client  Poster
	baseURL string
}

// NewGameListFetcher builds a GameListFetcher.
func NewGameListFetcher(client Poster, baseURL string) *GameListFetcher {
	return &GameListFetcher{client: client, baseURL: baseURL}
}

// Fetch posts the fixed search filter and extracts game ids and absolute
// detail URLs from the results table. Any request failure, including a
// non-2xx response, is fatal: without the index there is nothing to crawl.
// The returned set is unsorted; capping and ordering belong to the caller.
func (f *GameListFetcher) Fetch(ctx context.Context) ([]GameRef, error) {
	form := url.Values{
		"module":        {"search"},
		"search":        {"1"},
		"likesmin":      {"0"},
		"likesmax":      {"0"},
		"development[]": developmentStages,
	}
	resp, err := f.client.PostForm(ctx, f.baseURL+"/index.php", form)
	if err != nil {
		return nil, fmt.Errorf("game index: %w", err)
	}
	return parseGameList(resp.Body, f.baseURL)
}

func parseGameList(body []byte, baseURL string) ([]GameRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse game index: %w", err)
	}

	var refs []GameRef
	doc.Find("table").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cell := row.Find("td").First()
		if cell.Length() == 0 {
			return
		}
		href := cell.Find("a").First().AttrOr("href", "")
		if href == "" {
			return
		}
		abs := resolveURL(baseURL, href)
		id, ok := hrefID(abs, "id")
		if !ok {
			return
		}
		refs = append(refs, GameRef{ID: id, URL: abs})
	})
	return refs, nil
}
