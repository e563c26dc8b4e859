// Package sqlite provides a sqlite-backed catalog using the pure Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure Go sqlite driver

	"tfgsapi/internal/catalog"
	"tfgsapi/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS taxonomies (
	kind TEXT NOT NULL,
	id INTEGER NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (kind, id)
);
CREATE TABLE IF NOT EXISTS games (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	engine TEXT NOT NULL,
	rating TEXT NOT NULL,
	language TEXT NOT NULL,
	release_date TIMESTAMP,
	last_update TIMESTAMP,
	version TEXT NOT NULL,
	development TEXT NOT NULL,
	likes INTEGER NOT NULL DEFAULT 0,
	contest TEXT,
	orig_pc_gender TEXT,
	thread TEXT,
	play_online TEXT
);
CREATE TABLE IF NOT EXISTS game_authors (
	game_id INTEGER NOT NULL,
	author_id INTEGER NOT NULL,
	slug TEXT NOT NULL,
	PRIMARY KEY (game_id, author_id)
);
CREATE TABLE IF NOT EXISTS game_themes (
	game_id INTEGER NOT NULL,
	kind TEXT NOT NULL,
	theme_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (game_id, kind, theme_id)
);
CREATE TABLE IF NOT EXISTS game_sections (
	game_id INTEGER NOT NULL,
	label TEXT NOT NULL,
	text TEXT NOT NULL,
	html TEXT NOT NULL,
	PRIMARY KEY (game_id, label)
);
CREATE TABLE IF NOT EXISTS game_versions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id INTEGER NOT NULL,
	version TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS downloads (
	version_id INTEGER NOT NULL,
	link TEXT NOT NULL,
	report TEXT NOT NULL,
	note TEXT,
	dead INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS reviews (
	game_id INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	author TEXT NOT NULL,
	version TEXT NOT NULL,
	date TIMESTAMP NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (game_id, seq)
);
`

var replaceOrder = []string{
	"reviews", "downloads", "game_versions", "game_sections",
	"game_themes", "game_authors", "games", "taxonomies",
}

// Store persists the catalog in a sqlite database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// DB exposes the handle for read-side queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// BeginReplace opens a transaction and clears the prior catalog inside it.
// Readers outside the transaction keep seeing the prior state until Commit.
func (s *Store) BeginReplace(ctx context.Context) (store.ReplaceTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace: %w", err)
	}
	for _, table := range replaceOrder {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return &replaceTx{tx: tx}, nil
}

type replaceTx struct {
	tx *sql.Tx
}

func (r *replaceTx) UpsertTaxonomy(ctx context.Context, kind catalog.TaxonomyKind, id int, name string) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO taxonomies (kind, id, name) VALUES (?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET name = excluded.name`,
		string(kind), id, name,
	)
	if err != nil {
		return fmt.Errorf("upsert taxonomy %s/%d: %w", kind, id, err)
	}
	return nil
}

func (r *replaceTx) UpsertGame(ctx context.Context, game catalog.Game) error {
	if err := r.insertGame(ctx, game); err != nil {
		return fmt.Errorf("game %d: %w", game.ID, err)
	}
	return nil
}

func (r *replaceTx) insertGame(ctx context.Context, game catalog.Game) error {
	_, err := r.tx.ExecContext(ctx,
		`INSERT INTO games (id, title, engine, rating, language, release_date,
			last_update, version, development, likes, contest, orig_pc_gender,
			thread, play_online)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		game.ID, game.Title, game.Engine, game.Rating, game.Language,
		game.ReleaseDate, game.LastUpdate, game.Version, game.Development,
		game.Likes, game.Contest, game.OrigPCGender, game.Thread, game.PlayOnline,
	)
	if err != nil {
		return fmt.Errorf("insert game row: %w", err)
	}

	for slug, authorID := range game.Authors {
		if _, err := r.tx.ExecContext(ctx,
			`INSERT INTO game_authors (game_id, author_id, slug) VALUES (?, ?, ?)`,
			game.ID, authorID, slug,
		); err != nil {
			return fmt.Errorf("insert author %s: %w", slug, err)
		}
	}

	themeSets := map[catalog.TaxonomyKind]map[string]int{
		catalog.KindAdultTheme:     game.AdultThemes,
		catalog.KindTransformation: game.TFThemes,
		catalog.KindMultimedia:     game.MultimediaThemes,
	}
	for kind, themes := range themeSets {
		for name, themeID := range themes {
			if _, err := r.tx.ExecContext(ctx,
				`INSERT INTO game_themes (game_id, kind, theme_id, name) VALUES (?, ?, ?, ?)`,
				game.ID, string(kind), themeID, name,
			); err != nil {
				return fmt.Errorf("insert theme %s/%s: %w", kind, name, err)
			}
		}
	}

	for label, section := range game.Sections {
		if _, err := r.tx.ExecContext(ctx,
			`INSERT INTO game_sections (game_id, label, text, html) VALUES (?, ?, ?, ?)`,
			game.ID, label, section.Text, section.HTML,
		); err != nil {
			return fmt.Errorf("insert section %s: %w", label, err)
		}
	}

	for version, downloads := range game.Versions {
		res, err := r.tx.ExecContext(ctx,
			`INSERT INTO game_versions (game_id, version) VALUES (?, ?)`,
			game.ID, version,
		)
		if err != nil {
			return fmt.Errorf("insert version %s: %w", version, err)
		}
		versionID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("version id: %w", err)
		}
		for _, dl := range downloads {
			if _, err := r.tx.ExecContext(ctx,
				`INSERT INTO downloads (version_id, link, report, note, dead) VALUES (?, ?, ?, ?, ?)`,
				versionID, dl.Link, dl.Report, dl.Note, dl.Dead,
			); err != nil {
				return fmt.Errorf("insert download: %w", err)
			}
		}
	}

	for _, review := range game.Reviews {
		if _, err := r.tx.ExecContext(ctx,
			`INSERT INTO reviews (game_id, seq, author, version, date, text) VALUES (?, ?, ?, ?, ?, ?)`,
			game.ID, review.Seq, review.Author, review.Version, review.Date, review.Text,
		); err != nil {
			return fmt.Errorf("insert review %d: %w", review.Seq, err)
		}
	}
	return nil
}

func (r *replaceTx) Commit(_ context.Context) error {
	if err := r.tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func (r *replaceTx) Abort(_ context.Context) error {
	if err := r.tx.Rollback(); err != nil {
		return fmt.Errorf("abort replace: %w", err)
	}
	return nil
}
