// Package postgres provides a Postgres-backed catalog using pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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
	release_date TIMESTAMPTZ,
	last_update TIMESTAMPTZ,
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
	id BIGSERIAL PRIMARY KEY,
	game_id INTEGER NOT NULL,
	version TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS downloads (
	version_id BIGINT NOT NULL,
	link TEXT NOT NULL,
	report TEXT NOT NULL,
	note TEXT,
	dead BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE TABLE IF NOT EXISTS reviews (
	game_id INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	author TEXT NOT NULL,
	version TEXT NOT NULL,
	date TIMESTAMPTZ NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (game_id, seq)
);
`

var replaceOrder = []string{
	"reviews", "downloads", "game_versions", "game_sections",
	"game_themes", "game_authors", "games", "taxonomies",
}

// PgxIface is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type PgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

// Store persists the catalog in Postgres.
type Store struct {
	db PgxIface
}

// New connects a pool to dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: pool}, nil
}

// NewWithDB constructs a store from an existing pool (primarily for testing).
func NewWithDB(db PgxIface) *Store {
	return &Store{db: db}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.db.Close()
}

// BeginReplace opens a transaction and clears the prior catalog inside it.
// The transaction isolates the deletes, so concurrent readers keep the
// prior snapshot until Commit.
func (s *Store) BeginReplace(ctx context.Context) (store.ReplaceTx, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin replace: %w", err)
	}
	for _, table := range replaceOrder {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			_ = tx.Rollback(ctx)
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return &replaceTx{tx: tx}, nil
}

type replaceTx struct {
	tx pgx.Tx
}

func (r *replaceTx) UpsertTaxonomy(ctx context.Context, kind catalog.TaxonomyKind, id int, name string) error {
	_, err := r.tx.Exec(ctx,
		`INSERT INTO taxonomies (kind, id, name) VALUES ($1, $2, $3)
		 ON CONFLICT (kind, id) DO UPDATE SET name = EXCLUDED.name`,
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
	_, err := r.tx.Exec(ctx,
		`INSERT INTO games (id, title, engine, rating, language, release_date,
			last_update, version, development, likes, contest, orig_pc_gender,
			thread, play_online)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		game.ID, game.Title, game.Engine, game.Rating, game.Language,
		game.ReleaseDate, game.LastUpdate, game.Version, game.Development,
		game.Likes, game.Contest, game.OrigPCGender, game.Thread, game.PlayOnline,
	)
	if err != nil {
		return fmt.Errorf("insert game row: %w", err)
	}

	for slug, authorID := range game.Authors {
		if _, err := r.tx.Exec(ctx,
			`INSERT INTO game_authors (game_id, author_id, slug) VALUES ($1, $2, $3)`,
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
			if _, err := r.tx.Exec(ctx,
				`INSERT INTO game_themes (game_id, kind, theme_id, name) VALUES ($1, $2, $3, $4)`,
				game.ID, string(kind), themeID, name,
			); err != nil {
				return fmt.Errorf("insert theme %s/%s: %w", kind, name, err)
			}
		}
	}

	for label, section := range game.Sections {
		if _, err := r.tx.Exec(ctx,
			`INSERT INTO game_sections (game_id, label, text, html) VALUES ($1, $2, $3, $4)`,
			game.ID, label, section.Text, section.HTML,
		); err != nil {
			return fmt.Errorf("insert section %s: %w", label, err)
		}
	}

	for version, downloads := range game.Versions {
		var versionID int64
		if err := r.tx.QueryRow(ctx,
			`INSERT INTO game_versions (game_id, version) VALUES ($1, $2) RETURNING id`,
			game.ID, version,
		).Scan(&versionID); err != nil {
			return fmt.Errorf("insert version %s: %w", version, err)
		}
		for _, dl := range downloads {
			if _, err := r.tx.Exec(ctx,
				`INSERT INTO downloads (version_id, link, report, note, dead) VALUES ($1, $2, $3, $4, $5)`,
				versionID, dl.Link, dl.Report, dl.Note, dl.Dead,
			); err != nil {
				return fmt.Errorf("insert download: %w", err)
			}
		}
	}

	for _, review := range game.Reviews {
		if _, err := r.tx.Exec(ctx,
			`INSERT INTO reviews (game_id, seq, author, version, date, text) VALUES ($1, $2, $3, $4, $5, $6)`,
			game.ID, review.Seq, review.Author, review.Version, review.Date, review.Text,
		); err != nil {
			return fmt.Errorf("insert review %d: %w", review.Seq, err)
		}
	}
	return nil
}

func (r *replaceTx) Commit(ctx context.Context) error {
	if err := r.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

func (r *replaceTx) Abort(ctx context.Context) error {
	if err := r.tx.Rollback(ctx); err != nil {
		return fmt.Errorf("abort replace: %w", err)
	}
	return nil
}
