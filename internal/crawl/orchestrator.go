// Package crawl sequences one crawl cycle: taxonomies, game index, page
// fetches, parsing, and the atomic catalog replacement.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"tfgsapi/internal/catalog"
	"tfgsapi/internal/metrics"
	"tfgsapi/internal/scrape"
	"tfgsapi/internal/store"
)

// ErrCycleRunning is returned when a cycle is triggered while another one
// is still executing. Interleaved cycles would corrupt the replace step, so
// concurrent triggers are rejected, not queued.
var ErrCycleRunning = errors.New("crawl cycle already running")

// Summary reports the outcome of one crawl cycle.
type Summary struct {
	GamesWritten     int       `json:"games_written"`
	GamesSkipped     int       `json:"games_skipped"`
	TaxonomyFailures int       `json:"taxonomy_failures"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// TaxonomyFetcher fetches all taxonomy kinds, reporting the failure count.
type TaxonomyFetcher interface {
	FetchAll(ctx context.Context) (catalog.TaxonomySet, int)
}

// GameLister fetches the filtered game index.
type GameLister interface {
	Fetch(ctx context.Context) ([]scrape.GameRef, error)
}

// PageLister fetches detail and review pages for the selected games.
type PageLister interface {
	FetchAll(ctx context.Context, refs []scrape.GameRef) (map[int]*PageSet, int)
}

// Config controls orchestrator behavior.
type Config struct {
	BaseURL string

	// GameCap truncates the discovered index, selecting by ascending URL
	// sort.
	GameCap int

	PoolLimit int
}

// Orchestrator runs crawl cycles and enforces process-wide exclusivity.
type Orchestrator struct {
	cfg        Config
	taxonomies TaxonomyFetcher
	gameList   GameLister
	pages      PageLister
	catalog    store.Catalog
	logger     *zap.Logger

	busy atomic.Bool

	mu      sync.RWMutex
	last    *Summary
	lastErr error
}

// New builds an Orchestrator.
func New(
	cfg Config,
	taxonomies TaxonomyFetcher,
	gameList GameLister,
	pages PageLister,
	cat store.Catalog,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.GameCap <= 0 {
		cfg.GameCap = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		taxonomies: taxonomies,
		gameList:   gameList,
		pages:      pages,
		catalog:    cat,
		logger:     logger,
	}
}

// Status describes the orchestrator's current and most recent cycle state.
type Status struct {
	Running   bool     `json:"running"`
	Last      *Summary `json:"last_cycle,omitempty"`
	LastError string   `json:"last_error,omitempty"`
}

// Running reports whether a cycle is currently executing.
func (o *Orchestrator) Running() bool {
	return o.busy.Load()
}

// Status returns the current running state and the last finished cycle.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st := Status{Running: o.busy.Load()}
	if o.last != nil {
		last := *o.last
		st.Last = &last
	}
	if o.lastErr != nil {
		st.LastError = o.lastErr.Error()
	}
	return st
}

// RunCycle executes one full crawl cycle. Only one cycle runs at a time;
// a trigger received while one is running gets ErrCycleRunning. Either the
// cycle fully succeeds (new snapshot published) or fully fails (prior
// snapshot remains visible).
func (o *Orchestrator) RunCycle(ctx context.Context) (Summary, error) {
	if !o.busy.CompareAndSwap(false, true) {
		return Summary{}, ErrCycleRunning
	}
	return o.finishCycle(ctx)
}

// StartCycle claims cycle exclusivity and runs the cycle in the background.
// The claim happens before StartCycle returns, so of any number of
// concurrent triggers exactly one gets nil and the rest get ErrCycleRunning.
func (o *Orchestrator) StartCycle(ctx context.Context) error {
	if !o.busy.CompareAndSwap(false, true) {
		return ErrCycleRunning
	}
	go func() {
		if _, err := o.finishCycle(ctx); err != nil {
			o.logger.Error("crawl cycle failed", zap.Error(err))
		}
	}()
	return nil
}

// finishCycle runs the cycle and releases the exclusivity claim. The caller
// must hold the claim.
func (o *Orchestrator) finishCycle(ctx context.Context) (Summary, error) {
	defer o.busy.Store(false)

	summary, err := o.runCycle(ctx)
	status := "succeeded"
	if err != nil {
		status = "failed"
	}
	metrics.ObserveCycle(status, summary.GamesWritten, summary.GamesSkipped, summary.TaxonomyFailures)

	o.mu.Lock()
	o.last = &summary
	o.lastErr = err
	o.mu.Unlock()

	return summary, err
}

func (o *Orchestrator) runCycle(ctx context.Context) (Summary, error) {
	summary := Summary{StartedAt: time.Now().UTC()}
	defer func() { summary.FinishedAt = time.Now().UTC() }()

	o.logger.Info("crawl cycle started")

	taxonomies, failures := o.taxonomies.FetchAll(ctx)
	summary.TaxonomyFailures = failures

	refs, err := o.gameList.Fetch(ctx)
	if err != nil {
		return summary, fmt.Errorf("fetch game index: %w", err)
	}
	refs = selectGames(refs, o.cfg.GameCap)
	o.logger.Info("game index fetched", zap.Int("selected", len(refs)))

	pages, fetchSkipped := o.pages.FetchAll(ctx, refs)
	summary.GamesSkipped += fetchSkipped

	authorTax := taxonomies[catalog.KindAuthor]
	if authorTax == nil {
		authorTax = catalog.Taxonomy{}
		taxonomies[catalog.KindAuthor] = authorTax
	}

	games := make([]catalog.Game, 0, len(pages))
	for _, ref := range refs {
		set, ok := pages[ref.ID]
		if !ok {
			continue
		}
		game, err := scrape.ParseGame(ref.ID, set.Detail, set.Reviews, authorTax, o.cfg.BaseURL)
		if err != nil {
			o.logger.Warn("game skipped", zap.Int("game_id", ref.ID), zap.Error(err))
			summary.GamesSkipped++
			continue
		}
		// Author ids discovered inline in hyperlinked bylines join the
		// author taxonomy for this cycle.
		for slug, id := range game.Authors {
			if _, ok := authorTax[id]; !ok {
				authorTax[id] = slug
			}
		}
		games = append(games, game)
	}

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("cycle canceled before write: %w", err)
	}

	if err := o.writeCatalog(ctx, taxonomies, games); err != nil {
		return summary, err
	}
	summary.GamesWritten = len(games)

	o.logger.Info("crawl cycle finished",
		zap.Int("games_written", summary.GamesWritten),
		zap.Int("games_skipped", summary.GamesSkipped),
		zap.Int("taxonomy_failures", summary.TaxonomyFailures),
	)
	return summary, nil
}

// writeCatalog replaces the persisted catalog in one transaction. Any error
// aborts the whole replace; no partial catalog becomes visible.
func (o *Orchestrator) writeCatalog(ctx context.Context, taxonomies catalog.TaxonomySet, games []catalog.Game) error {
	tx, err := o.catalog.BeginReplace(ctx)
	if err != nil {
		return fmt.Errorf("begin catalog replace: %w", err)
	}

	for kind, entries := range taxonomies {
		for id, name := range entries {
			if err := tx.UpsertTaxonomy(ctx, kind, id, name); err != nil {
				_ = tx.Abort(ctx)
				return fmt.Errorf("write taxonomy: %w", err)
			}
		}
	}
	for _, game := range games {
		if err := tx.UpsertGame(ctx, game); err != nil {
			_ = tx.Abort(ctx)
			return fmt.Errorf("write catalog: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit catalog: %w", err)
	}
	return nil
}

// selectGames truncates the discovered set to cap, choosing the lowest
// entries by ascending URL sort. An index that lists the same game id more
// than once contributes it once; game ids are unique within a cycle.
func selectGames(refs []scrape.GameRef, limit int) []scrape.GameRef {
	sorted := make([]scrape.GameRef, len(refs))
	copy(sorted, refs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URL < sorted[j].URL })

	seen := make(map[int]bool, len(sorted))
	out := sorted[:0]
	for _, ref := range sorted {
		if seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true
		out = append(out, ref)
		if len(out) == limit {
			break
		}
	}
	return out
}
