package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/launchradar/launchradar/internal/models"
)

// ErrArgumentConflict is returned by Delete when the selector options
// do not name exactly one deletion criterion.
var ErrArgumentConflict = errors.New("provide exactly one of: ids, metadata filter, or delete all")

// SearchOptions bound and filter a store search.
type SearchOptions struct {
	Limit          int
	MetadataFilter map[string]string // Equality predicates over metadata fields
	TimeRange      *TimeRange        // Restrict by record creation time
	Rerank         bool              // Hybrid only: rerank the union by relevance
}

// TimeRange is an inclusive [Start, End] creation-time filter.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// DeleteOptions selects records for deletion. Exactly one of IDs,
// MetadataFilter, or DeleteAll must be set.
type DeleteOptions struct {
	IDs            []string
	MetadataFilter map[string]string
	DeleteAll      bool
}

// CompanyStore is the hybrid (vector + keyword) persistence gateway.
type CompanyStore interface {
	// EnsureSchema creates the table, ANN index, and full-text index if
	// they do not exist. Idempotent.
	EnsureSchema(ctx context.Context) error

	// UpsertBatch performs one bulk upsert of the given records. A failed
	// bulk call fails the whole batch.
	UpsertBatch(ctx context.Context, records []models.CompanyRecord) error

	// SemanticSearch embeds the query and performs an ANN lookup.
	SemanticSearch(ctx context.Context, query string, opts SearchOptions) ([]models.SearchResult, error)

	// KeywordSearch issues a full-text rank query.
	KeywordSearch(ctx context.Context, query string, opts SearchOptions) ([]models.SearchResult, error)

	// HybridSearch unions keyword and semantic results, deduplicated by ID
	// with keyword results first, optionally reranked.
	HybridSearch(ctx context.Context, query string, opts SearchOptions) ([]models.SearchResult, error)

	// Delete removes records per opts; ErrArgumentConflict when not
	// exactly one selector is supplied.
	Delete(ctx context.Context, opts DeleteOptions) (int64, error)

	// LatestRows returns the most recently inserted records.
	LatestRows(ctx context.Context, limit int) ([]models.SearchResult, error)

	// Count returns the number of persisted records.
	Count(ctx context.Context) (int64, error)

	// Close releases the underlying connection pool.
	Close() error
}

// SeenStore is the durable cross-run URL seen-set.
type SeenStore interface {
	// Seen reports whether the URL was recorded by a previous run.
	Seen(url string) (bool, error)

	// MarkSeen records the URL.
	MarkSeen(url string) error

	// Len returns the number of recorded URLs.
	Len() (int, error)

	Close() error
}
