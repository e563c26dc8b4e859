package crawl

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tfgsapi/internal/metrics"
	"tfgsapi/internal/scrape"
)

// PageSet holds the raw markup for one game, both page kinds.
type PageSet struct {
	GameID  int
	Detail  []byte
	Reviews []byte
}

// PageFetcher fetches every selected game's detail and reviews pages under
// a single global in-flight bound.
type PageFetcher struct {
	client  scrape.Getter
	baseURL string
	limit   int
	logger  *zap.Logger
}

// NewPageFetcher builds a PageFetcher with the given pool limit.
func NewPageFetcher(client scrape.Getter, baseURL string, limit int, logger *zap.Logger) *PageFetcher {
	if limit <= 0 {
		limit = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageFetcher{client: client, baseURL: baseURL, limit: limit, logger: logger}
}

type fetchedPage struct {
	gameID int
	kind   string
	body   []byte
	err    error
}

// FetchAll submits all games' fetches together and consumes results in
// completion order. A game whose detail or reviews fetch ultimately fails
// (after the client's bounded retries) is skipped, not fatal: the cycle
// proceeds with the games that fetched cleanly.
func (f *PageFetcher) FetchAll(ctx context.Context, refs []scrape.GameRef) (map[int]*PageSet, int) {
	type target struct {
		gameID int
		kind   string
		url    string
	}
	targets := make([]target, 0, len(refs)*2)
	for _, ref := range refs {
		targets = append(targets,
			target{gameID: ref.ID, kind: "detail", url: ref.URL},
			target{gameID: ref.ID, kind: "reviews", url: f.reviewsURL(ref.ID)},
		)
	}

	results := make(chan fetchedPage, len(targets))

	var g errgroup.Group
	g.SetLimit(f.limit)
	for _, t := range targets {
		g.Go(func() error {
			metrics.IncInFlight()
			defer metrics.DecInFlight()

			resp, err := f.client.Get(ctx, t.url)
			if err != nil {
				results <- fetchedPage{gameID: t.gameID, kind: t.kind, err: err}
				return nil
			}
			metrics.ObserveFetch(t.kind, resp.Duration)
			results <- fetchedPage{gameID: t.gameID, kind: t.kind, body: resp.Body}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	pages := make(map[int]*PageSet, len(refs))
	failed := make(map[int]bool)
	for page := range results {
		if page.err != nil {
			if !failed[page.gameID] {
				f.logger.Warn("page fetch failed, skipping game",
					zap.Int("game_id", page.gameID),
					zap.String("kind", page.kind),
					zap.Error(page.err),
				)
			}
			failed[page.gameID] = true
			delete(pages, page.gameID)
			continue
		}
		if failed[page.gameID] {
			continue
		}
		set, ok := pages[page.gameID]
		if !ok {
			set = &PageSet{GameID: page.gameID}
			pages[page.gameID] = set
		}
		switch page.kind {
		case "detail":
			set.Detail = page.body
		case "reviews":
			set.Reviews = page.body
		}
	}
	return pages, len(failed)
}

func (f *PageFetcher) reviewsURL(gameID int) string {
	return fmt.Sprintf("%s/modules/viewgame/viewreviews.php?id=%d", f.baseURL, gameID)
}
