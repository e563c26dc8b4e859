// Package store defines the catalog persistence interface.
//
// The crawl pipeline needs exactly one write primitive: an all-or-nothing
// replacement of the whole catalog. Readers must never observe an empty or
// half-populated state, so every backend publishes only on Commit.
package store

import (
	"context"

	"tfgsapi/internal/catalog"
)

// Catalog is the persistent catalog collaborator.
type Catalog interface {
	// BeginReplace opens a replacement of the entire catalog. The prior
	// snapshot stays visible to readers until Commit.
	BeginReplace(ctx context.Context) (ReplaceTx, error)
}

// ReplaceTx accumulates one cycle's catalog and publishes it atomically.
type ReplaceTx interface {
	UpsertTaxonomy(ctx context.Context, kind catalog.TaxonomyKind, id int, name string) error
	UpsertGame(ctx context.Context, game catalog.Game) error

	// Commit publishes the accumulated catalog as one indivisible transition.
	Commit(ctx context.Context) error

	// Abort discards the accumulated state; the prior snapshot remains.
	Abort(ctx context.Context) error
}
