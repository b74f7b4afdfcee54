package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/models"
)

// Store is the Postgres-backed hybrid store: pgvector for semantic
// lookups, a GIN full-text index over contents for keyword lookups.
type Store struct {
	db        *sql.DB
	embedder  interfaces.EmbeddingService
	tableName string
	logger    arbor.ILogger
}

// NewStore opens a connection pool and verifies connectivity. embedder
// may be nil when the store only serves keyword queries and row reads.
func NewStore(ctx context.Context, dsn, tableName string, embedder interfaces.EmbeddingService, logger arbor.ILogger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database service URL is required")
	}
	if tableName == "" {
		tableName = "ycombinator_companies"
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info().Str("table", tableName).Msg("Connected to Postgres vector store")

	return &Store{
		db:        db,
		embedder:  embedder,
		tableName: tableName,
		logger:    logger,
	}, nil
}

// EnsureSchema creates the extension, table, ANN index, and full-text
// index if missing. Safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	dimensions := 1536
	if s.embedder != nil {
		dimensions = s.embedder.Dimension()
	}

	for _, stmt := range schemaStatements(s.tableName, dimensions) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}

	s.logger.Info().Str("table", s.tableName).Int("dimensions", dimensions).Msg("Schema ensured")
	return nil
}

// schemaStatements returns the bootstrap DDL in execution order. The
// vectorscale extension supplies the diskann access method and must be
// installed before the ANN index is created.
func schemaStatements(tableName string, dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE EXTENSION IF NOT EXISTS vectorscale CASCADE`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			metadata JSONB NOT NULL,
			contents TEXT NOT NULL,
			embedding VECTOR(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, tableName, dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING diskann (embedding)`,
			tableName, tableName),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_contents_fts_idx ON %s USING gin (to_tsvector('english', contents))`,
			tableName, tableName),
	}
}

// UpsertBatch inserts the records in one multi-row statement, replacing
// metadata, contents, and embedding on ID conflict.
func (s *Store) UpsertBatch(ctx context.Context, records []models.CompanyRecord) error {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (id, metadata, contents, embedding, created_at) VALUES ", s.tableName)

	args := make([]interface{}, 0, len(records)*5)
	for i, record := range records {
		metadata, err := json.Marshal(record.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for %s: %w", record.ID, err)
		}

		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 5
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4, base+5)

		args = append(args, record.ID, string(metadata), record.Contents,
			vectorLiteral(record.Embedding), record.CreatedAt)
	}

	sb.WriteString(` ON CONFLICT (id) DO UPDATE SET
		metadata = EXCLUDED.metadata,
		contents = EXCLUDED.contents,
		embedding = EXCLUDED.embedding`)

	if _, err := s.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("upserting %d records: %w", len(records), err)
	}

	s.logger.Info().Int("records", len(records)).Str("table", s.tableName).Msg("Batch upserted")
	return nil
}

// vectorLiteral renders an embedding as a pgvector input literal. An
// empty embedding becomes NULL so degraded records stay insertable.
func vectorLiteral(embedding []float32) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// SemanticSearch embeds the query and runs a nearest-neighbor lookup by
// cosine distance.
func (s *Store) SemanticSearch(ctx context.Context, query string, opts interfaces.SearchOptions) ([]models.SearchResult, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("semantic search requires an embedding service")
	}

	queryembedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	where, args := buildFilters(opts, 2)
	args = append([]interface{}{vectorLiteral(queryembedding)}, args...)
	args = append(args, limit)

	stmt := fmt.Sprintf(`SELECT id, contents, metadata, embedding <=> $1 AS distance
		FROM %s WHERE embedding IS NOT NULL%s
		ORDER BY distance LIMIT $%d`, s.tableName, where, len(args))

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	defer rows.Close()

	results, err := scanResults(rows, "semantic")
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("results", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("Vector search completed")

	return results, nil
}

// KeywordSearch runs a websearch-syntax full-text query ranked by
// ts_rank_cd.
func (s *Store) KeywordSearch(ctx context.Context, query string, opts interfaces.SearchOptions) ([]models.SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	where, args := buildFilters(opts, 2)
	args = append([]interface{}{query}, args...)
	args = append(args, limit)

	stmt := fmt.Sprintf(`SELECT id, contents, metadata,
			ts_rank_cd(to_tsvector('english', contents), websearch_to_tsquery('english', $1)) AS rank
		FROM %s
		WHERE to_tsvector('english', contents) @@ websearch_to_tsquery('english', $1)%s
		ORDER BY rank DESC LIMIT $%d`, s.tableName, where, len(args))

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	results, err := scanResults(rows, "keyword")
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Int("results", len(results)).
		Dur("elapsed", time.Since(start)).
		Msg("Keyword search completed")

	return results, nil
}

// HybridSearch unions keyword and semantic results, deduplicated by ID
// with keyword hits kept first. With Rerank set the union is reordered
// by embedding distance to the query.
func (s *Store) HybridSearch(ctx context.Context, query string, opts interfaces.SearchOptions) ([]models.SearchResult, error) {
	keyword, err := s.KeywordSearch(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	semantic, err := s.SemanticSearch(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(keyword)+len(semantic))
	combined := make([]models.SearchResult, 0, len(keyword)+len(semantic))
	for _, r := range append(keyword, semantic...) {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		combined = append(combined, r)
	}

	if opts.Rerank {
		return s.rerank(ctx, query, combined, opts.Limit)
	}
	return combined, nil
}

// rerank reorders the combined results by embedding distance to the
// query, scoring keyword-only hits that semantic search never visited.
func (s *Store) rerank(ctx context.Context, query string, combined []models.SearchResult, topN int) ([]models.SearchResult, error) {
	if len(combined) == 0 {
		return combined, nil
	}
	if s.embedder == nil {
		return combined, nil
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding rerank query: %w", err)
	}

	ids := make([]string, len(combined))
	byID := make(map[string]int, len(combined))
	for i, r := range combined {
		ids[i] = r.ID
		byID[r.ID] = i
	}

	stmt := fmt.Sprintf(`SELECT id, embedding <=> $1 AS distance
		FROM %s WHERE id = ANY($2) AND embedding IS NOT NULL
		ORDER BY distance`, s.tableName)

	rows, err := s.db.QueryContext(ctx, stmt, vectorLiteral(queryEmbedding), ids)
	if err != nil {
		return nil, fmt.Errorf("reranking: %w", err)
	}
	defer rows.Close()

	reranked := make([]models.SearchResult, 0, len(combined))
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("scanning rerank row: %w", err)
		}
		r := combined[byID[id]]
		r.RelevanceScore = 1.0 / (1.0 + distance)
		reranked = append(reranked, r)
		delete(byID, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows without embeddings keep their original relative order at the tail
	for _, r := range combined {
		if _, pending := byID[r.ID]; pending {
			reranked = append(reranked, r)
		}
	}

	if topN > 0 && len(reranked) > topN {
		reranked = reranked[:topN]
	}
	return reranked, nil
}

// Delete removes records by exactly one of: IDs, metadata filter, or
// the delete-all flag.
func (s *Store) Delete(ctx context.Context, opts interfaces.DeleteOptions) (int64, error) {
	selectors := 0
	if len(opts.IDs) > 0 {
		selectors++
	}
	if len(opts.MetadataFilter) > 0 {
		selectors++
	}
	if opts.DeleteAll {
		selectors++
	}
	if selectors != 1 {
		return 0, interfaces.ErrArgumentConflict
	}

	var result sql.Result
	var err error

	switch {
	case opts.DeleteAll:
		result, err = s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.tableName))
	case len(opts.IDs) > 0:
		result, err = s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", s.tableName), opts.IDs)
	default:
		filter, marshalErr := json.Marshal(opts.MetadataFilter)
		if marshalErr != nil {
			return 0, fmt.Errorf("marshaling metadata filter: %w", marshalErr)
		}
		result, err = s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE metadata @> $1", s.tableName), string(filter))
	}
	if err != nil {
		return 0, fmt.Errorf("deleting records: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}

	s.logger.Info().Int64("deleted", deleted).Str("table", s.tableName).Msg("Records deleted")
	return deleted, nil
}

// LatestRows returns the most recent records. IDs are time-sortable
// UUIDs, so descending ID order is insertion order.
func (s *Store) LatestRows(ctx context.Context, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	stmt := fmt.Sprintf(`SELECT id, contents, metadata, 0::float8
		FROM %s ORDER BY id DESC LIMIT $1`, s.tableName)

	rows, err := s.db.QueryContext(ctx, stmt, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching latest rows: %w", err)
	}
	defer rows.Close()

	return scanResults(rows, "latest")
}

// Count returns the number of persisted records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.tableName)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return count, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// buildFilters renders the metadata and time-range predicates starting
// at placeholder $start. Returns the WHERE fragment (with a leading
// " AND" per clause) and its arguments.
func buildFilters(opts interfaces.SearchOptions, start int) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}
	next := start

	for key, value := range opts.MetadataFilter {
		fmt.Fprintf(&sb, " AND metadata->>$%d = $%d", next, next+1)
		args = append(args, key, value)
		next += 2
	}

	if opts.TimeRange != nil {
		fmt.Fprintf(&sb, " AND created_at BETWEEN $%d AND $%d", next, next+1)
		args = append(args, opts.TimeRange.Start, opts.TimeRange.End)
		next += 2
	}

	return sb.String(), args
}

func scanResults(rows *sql.Rows, searchType string) ([]models.SearchResult, error) {
	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		var metadataRaw []byte
		var score float64

		if err := rows.Scan(&r.ID, &r.Contents, &metadataRaw, &score); err != nil {
			return nil, fmt.Errorf("scanning result row: %w", err)
		}
		if err := json.Unmarshal(metadataRaw, &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata for %s: %w", r.ID, err)
		}

		switch searchType {
		case "semantic":
			r.Distance = score
		case "keyword":
			r.Rank = score
		}
		r.SearchType = searchType
		results = append(results, r)
	}
	return results, rows.Err()
}
