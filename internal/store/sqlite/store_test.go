package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tfgsapi/internal/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func sampleGame() catalog.Game {
	release := time.Date(2019, time.June, 14, 20, 15, 0, 0, time.UTC)
	return catalog.Game{
		ID:          7,
		Title:       "Shifting Sands",
		Authors:     map[string]int{"jane_doe": 42},
		Engine:      "ren'py",
		Rating:      "all_adult",
		Language:    "English",
		ReleaseDate: &release,
		Version:     "1.2",
		Development: "Complete",
		Likes:       37,
		AdultThemes: map[string]int{"Growth": 9},
		Thread:      "https://forum.example.test/t/123",
		Versions: map[string][]catalog.Download{
			"1.2": {
				{Link: "https://dl.example.test/game.zip", Report: "https://example.test/report", Note: "Windows build"},
				{Link: "https://dl.example.test/gone.zip", Report: "https://example.test/report", Dead: true},
			},
		},
		Sections: map[string]catalog.Section{
			"synopsis": {Text: "A desert adventure.", HTML: "<p>A desert adventure.</p>"},
		},
		Reviews: []catalog.Review{
			{Seq: 0, Author: "Sam", Version: "1.2", Date: release, Text: "Great game."},
		},
	}
}

func TestReplaceCycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	tx, err := s.BeginReplace(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertTaxonomy(ctx, catalog.KindEngine, 3, "ren'py"))
	require.NoError(t, tx.UpsertGame(ctx, sampleGame()))
	require.NoError(t, tx.Commit(ctx))

	var title string
	var likes int
	row := s.DB().QueryRowContext(ctx, "SELECT title, likes FROM games WHERE id = ?", 7)
	require.NoError(t, row.Scan(&title, &likes))
	require.Equal(t, "Shifting Sands", title)
	require.Equal(t, 37, likes)

	var downloads int
	row = s.DB().QueryRowContext(ctx, `
		SELECT COUNT(*) FROM downloads d
		JOIN game_versions v ON v.id = d.version_id
		WHERE v.game_id = ?`, 7)
	require.NoError(t, row.Scan(&downloads))
	require.Equal(t, 2, downloads)

	var reviewText string
	row = s.DB().QueryRowContext(ctx, "SELECT text FROM reviews WHERE game_id = ? AND seq = 0", 7)
	require.NoError(t, row.Scan(&reviewText))
	require.Equal(t, "Great game.", reviewText)
}

func TestReplaceRemovesStaleRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	tx, err := s.BeginReplace(ctx)
	require.NoError(t, err)
	game := sampleGame()
	require.NoError(t, tx.UpsertGame(ctx, game))
	stale := sampleGame()
	stale.ID = 8
	stale.Title = "Soon Gone"
	require.NoError(t, tx.UpsertGame(ctx, stale))
	require.NoError(t, tx.Commit(ctx))

	// Next cycle only sees game 7; game 8 and all its child rows go away.
	tx, err = s.BeginReplace(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertGame(ctx, game))
	require.NoError(t, tx.Commit(ctx))

	var games int
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM games").Scan(&games))
	require.Equal(t, 1, games)

	var orphanReviews int
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews WHERE game_id = 8").Scan(&orphanReviews))
	require.Zero(t, orphanReviews)
}

func TestAbortLeavesPriorCatalog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	tx, err := s.BeginReplace(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertGame(ctx, sampleGame()))
	require.NoError(t, tx.Commit(ctx))

	tx, err = s.BeginReplace(ctx)
	require.NoError(t, err)
	replacement := sampleGame()
	replacement.ID = 9
	require.NoError(t, tx.UpsertGame(ctx, replacement))
	require.NoError(t, tx.Abort(ctx))

	var count int
	require.NoError(t, s.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM games WHERE id = 7").Scan(&count))
	require.Equal(t, 1, count, "aborted replace must leave the prior catalog intact")
}

func TestDuplicateGameRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	tx, err := s.BeginReplace(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertGame(ctx, sampleGame()))
	err = tx.UpsertGame(ctx, sampleGame())
	require.Error(t, err)
	require.Contains(t, err.Error(), "game 7")
	require.NoError(t, tx.Abort(ctx))
}
