package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/models"
	"github.com/launchradar/launchradar/internal/scraper"
	"github.com/launchradar/launchradar/internal/storage/vector"
)

type fakeScraper struct {
	result *scraper.Result
	err    error
}

func (f *fakeScraper) Run(ctx context.Context) (*scraper.Result, error) {
	return f.result, f.err
}

type memorySeen struct {
	urls map[string]struct{}
}

func newMemorySeen() *memorySeen { return &memorySeen{urls: make(map[string]struct{})} }

func (m *memorySeen) Seen(url string) (bool, error) {
	_, ok := m.urls[url]
	return ok, nil
}

func (m *memorySeen) MarkSeen(url string) error {
	m.urls[url] = struct{}{}
	return nil
}

func (m *memorySeen) Len() (int, error) { return len(m.urls), nil }

func (m *memorySeen) Close() error { return nil }

// captureStore records upserts and satisfies the store interface; the
// search operations are unused by the pipeline.
type captureStore struct {
	upserts   [][]models.CompanyRecord
	upsertErr error
}

func (c *captureStore) EnsureSchema(ctx context.Context) error { return nil }

func (c *captureStore) UpsertBatch(ctx context.Context, records []models.CompanyRecord) error {
	if c.upsertErr != nil {
		return c.upsertErr
	}
	c.upserts = append(c.upserts, records)
	return nil
}

func (c *captureStore) SemanticSearch(ctx context.Context, q string, o interfaces.SearchOptions) ([]models.SearchResult, error) {
	return nil, nil
}

func (c *captureStore) KeywordSearch(ctx context.Context, q string, o interfaces.SearchOptions) ([]models.SearchResult, error) {
	return nil, nil
}

func (c *captureStore) HybridSearch(ctx context.Context, q string, o interfaces.SearchOptions) ([]models.SearchResult, error) {
	return nil, nil
}

func (c *captureStore) Delete(ctx context.Context, o interfaces.DeleteOptions) (int64, error) {
	return 0, nil
}

func (c *captureStore) LatestRows(ctx context.Context, limit int) ([]models.SearchResult, error) {
	return nil, nil
}

func (c *captureStore) Count(ctx context.Context) (int64, error) { return 0, nil }

func (c *captureStore) Close() error { return nil }

func scrapeResult(names ...string) *scraper.Result {
	companies := make([]models.RawCompany, 0, len(names))
	for i, name := range names {
		companies = append(companies, models.RawCompany{
			Index: i,
			Name:  name,
			URL:   fmt.Sprintf("https://www.ycombinator.com/companies/%s", name),
			Tags:  []string{},
		})
	}
	return &scraper.Result{Companies: companies, Outcome: scraper.OutcomeNoMoreContent, Pages: 1}
}

func newTestPipeline(scr Scraper, store interfaces.CompanyStore, seenStore interfaces.SeenStore) *Pipeline {
	logger := arbor.NewLogger()
	gateway := vector.NewGateway(nil, nil, "2.0", logger)
	return New(common.NewDefaultConfig(), scr, gateway, store, seenStore, logger)
}

func TestRun_PersistsNewCompanies(t *testing.T) {
	store := &captureStore{}
	p := newTestPipeline(&fakeScraper{result: scrapeResult("alpha", "beta")}, store, newMemorySeen())

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Extracted)
	assert.Equal(t, 2, stats.NewRecords)
	assert.Equal(t, 2, stats.Inserted)
	require.Len(t, store.upserts, 1)
	assert.Len(t, store.upserts[0], 2)
}

func TestRun_SkipsURLsSeenByEarlierRuns(t *testing.T) {
	store := &captureStore{}
	seenStore := newMemorySeen()
	p := newTestPipeline(&fakeScraper{result: scrapeResult("alpha", "beta")}, store, seenStore)

	_, err := p.Run(context.Background())
	require.NoError(t, err)

	// Same directory content on the second run
	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Extracted)
	assert.Equal(t, 0, stats.NewRecords)
	assert.Equal(t, 0, stats.Inserted)
	assert.Len(t, store.upserts, 1, "no second upsert for already-seen URLs")
}

func TestRun_ScrapeFailureFailsRun(t *testing.T) {
	p := newTestPipeline(&fakeScraper{err: fmt.Errorf("browser never started")}, &captureStore{}, newMemorySeen())

	stats, err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, stats.Failed)
	assert.Contains(t, stats.Error, "browser never started")
}

func TestRun_UpsertFailureDoesNotMarkSeen(t *testing.T) {
	store := &captureStore{upsertErr: fmt.Errorf("connection reset")}
	seenStore := newMemorySeen()
	p := newTestPipeline(&fakeScraper{result: scrapeResult("alpha")}, store, seenStore)

	_, err := p.Run(context.Background())
	require.Error(t, err)

	count, _ := seenStore.Len()
	assert.Equal(t, 0, count, "failed persistence must not burn the seen-set")
}

func TestRun_NilStoreSkipsPersistence(t *testing.T) {
	seenStore := newMemorySeen()
	p := newTestPipeline(&fakeScraper{result: scrapeResult("alpha")}, nil, seenStore)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.NewRecords)
	assert.Equal(t, 0, stats.Inserted)
	count, _ := seenStore.Len()
	assert.Equal(t, 0, count, "nothing persisted, nothing marked seen")
}

func TestRun_RunNumbersIncrement(t *testing.T) {
	p := newTestPipeline(&fakeScraper{result: scrapeResult()}, nil, nil)

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first.RunNumber)
	assert.Equal(t, 2, second.RunNumber)

	last, count := p.LastStats()
	require.NotNil(t, last)
	assert.Equal(t, 2, last.RunNumber)
	assert.Equal(t, 2, count)
}
