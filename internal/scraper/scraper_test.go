package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/models"
	"github.com/launchradar/launchradar/internal/proxy"
)

type fixture struct {
	name string
	url  string
	loc  string
	desc string
	tags []string
}

// directoryHTML renders fixtures as the directory's results region.
func directoryHTML(items []fixture) string {
	var b strings.Builder
	b.WriteString(`<div class="_section_i9oky_163 _results_i9oky_343">`)
	for _, it := range items {
		b.WriteString(fmt.Sprintf(`<a class="_company_i9oky_355" href=%q>`, it.url))
		if it.name != "" {
			b.WriteString(fmt.Sprintf(`<span class="_coName_i9oky_470">%s</span>`, it.name))
		}
		if it.loc != "" {
			b.WriteString(fmt.Sprintf(`<span class="_coLocation_i9oky_486">%s</span>`, it.loc))
		}
		if it.desc != "" {
			b.WriteString(fmt.Sprintf(`<span class="_coDescription_i9oky_495">%s</span>`, it.desc))
		}
		if len(it.tags) > 0 {
			b.WriteString(`<div class="_pillWrapper_i9oky_33">`)
			for _, tag := range it.tags {
				b.WriteString(fmt.Sprintf(`<a class="_tagLink_i9oky_1040">%s</a>`, tag))
			}
			b.WriteString(`</div>`)
		}
		b.WriteString(`</a>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// fakePage simulates an infinite-scroll page as a sequence of stages.
// Each scroll advances to the next stage; when no stage remains the
// rendered content stops changing, which the driver reads as a stall.
type fakePage struct {
	stages          []stage
	current         int
	scrolls         int
	scriptCompanies []models.RawCompany
}

type stage struct {
	items []fixture
}

func (p *fakePage) Navigate(context.Context, string) error { return nil }

func (p *fakePage) WaitVisible(context.Context, string, time.Duration) error { return nil }

func (p *fakePage) Click(context.Context, string) error { return nil }

func (p *fakePage) Screenshot(context.Context, string) error { return nil }

func (p *fakePage) OuterHTML(_ context.Context, sel string) (string, error) {
	return directoryHTML(p.stages[p.current].items), nil
}

func (p *fakePage) Count(_ context.Context, sel string) (int, error) {
	return len(p.stages[p.current].items), nil
}

func (p *fakePage) Evaluate(_ context.Context, script string, out interface{}) error {
	switch script {
	case scrollToBottom:
		p.scrolls++
		if p.current < len(p.stages)-1 {
			p.current++
		}
		return nil
	case loadMoreProbe:
		if v, ok := out.(*bool); ok {
			*v = false
		}
		return nil
	case extractionScript:
		if v, ok := out.(*[]models.RawCompany); ok {
			*v = p.scriptCompanies
		}
		return nil
	case tagsByCardScript:
		if v, ok := out.(*[]cardTags); ok {
			items := p.stages[p.current].items
			cards := make([]cardTags, 0, len(items))
			for _, it := range items {
				cards = append(cards, cardTags{URL: it.url, Tags: it.tags})
			}
			*v = cards
		}
		return nil
	default:
		return fmt.Errorf("unexpected script: %s", script)
	}
}

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func makeFixtures(start, n int) []fixture {
	items := make([]fixture, 0, n)
	for i := 0; i < n; i++ {
		id := start + i
		items = append(items, fixture{
			name: fmt.Sprintf("Company %d", id),
			url:  fmt.Sprintf("https://www.ycombinator.com/companies/company-%d", id),
			loc:  "San Francisco, CA",
			desc: fmt.Sprintf("Company %d builds things.", id),
			tags: []string{"B2B", "SaaS"},
		})
	}
	return items
}

func TestExtractBatch_DeduplicatesByURL(t *testing.T) {
	items := makeFixtures(0, 10)
	// Two extra items re-use existing URLs under different names
	items = append(items,
		fixture{name: "Company 3 Rebrand", url: items[3].url},
		fixture{name: "Company 7 Rebrand", url: items[7].url},
	)
	require.Len(t, items, 12)

	page := &fakePage{stages: []stage{{items: items}}}
	extractor := NewExtractor(1, testLogger())

	batch, err := extractor.ExtractBatch(context.Background(), page)
	require.NoError(t, err)
	assert.Len(t, batch, 10)
	assert.Equal(t, 10, extractor.SeenCount())

	// Re-extracting the same view yields nothing new
	again, err := extractor.ExtractBatch(context.Background(), page)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestExtractBatch_KeepsItemsWithoutURL(t *testing.T) {
	items := []fixture{
		{name: "Anchor Free", url: ""},
		{name: "Anchor Free", url: ""},
	}
	page := &fakePage{stages: []stage{{items: items}}}
	extractor := NewExtractor(1, testLogger())

	batch, err := extractor.ExtractBatch(context.Background(), page)
	require.NoError(t, err)
	assert.Len(t, batch, 2, "items without a URL are never treated as duplicates")
}

func TestExtractBatch_StructuralFields(t *testing.T) {
	page := &fakePage{stages: []stage{{items: []fixture{{
		name: "Airbyte",
		url:  "/companies/airbyte",
		loc:  "San Francisco, CA",
		desc: "Open-source data integration.",
		tags: []string{"B2B", "Data"},
	}}}}}
	extractor := NewExtractor(1, testLogger())

	batch, err := extractor.ExtractBatch(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	c := batch[0]
	assert.Equal(t, "Airbyte", c.Name)
	assert.Equal(t, "https://www.ycombinator.com/companies/airbyte", c.URL)
	assert.Equal(t, "San Francisco, CA", c.Location)
	assert.Equal(t, "Open-source data integration.", c.Description)
	assert.Equal(t, []string{"B2B", "Data"}, c.Tags)
	assert.Equal(t, models.ExtractionMethodStructural, c.ExtractionMethod)
}

func TestStructuralExtract_TagsSurviveNestedAnchorReparse(t *testing.T) {
	// Tag pills are anchors nested inside the card anchor. Re-parsing
	// the serialized card auto-closes the outer anchor at the first
	// pill, so tags must come from the in-page pass, associated with
	// the right card.
	items := []fixture{
		{name: "Airbyte", url: "/companies/airbyte", tags: []string{"B2B", "Data"}},
		{name: "Deel", url: "/companies/deel", tags: []string{"Fintech", "HR"}},
		{name: "Untagged", url: "/companies/untagged"},
	}
	page := &fakePage{stages: []stage{{items: items}}}
	extractor := NewExtractor(1, testLogger())

	batch, err := extractor.ExtractBatch(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	assert.Equal(t, []string{"B2B", "Data"}, batch[0].Tags)
	assert.Equal(t, []string{"Fintech", "HR"}, batch[1].Tags)
	assert.Equal(t, []string{}, batch[2].Tags)
}

func TestExtractBatch_ScriptFallbackBelowThreshold(t *testing.T) {
	// Structural parsing finds 2 items, below the threshold of 10, so
	// the in-page script result wins.
	page := &fakePage{
		stages: []stage{{items: makeFixtures(0, 2)}},
		scriptCompanies: func() []models.RawCompany {
			out := make([]models.RawCompany, 0, 15)
			for i := 0; i < 15; i++ {
				out = append(out, models.RawCompany{
					Index:            i,
					Name:             fmt.Sprintf("Script Co %d", i),
					URL:              fmt.Sprintf("https://www.ycombinator.com/companies/script-%d", i),
					Tags:             []string{},
					ExtractionMethod: models.ExtractionMethodScript,
				})
			}
			return out
		}(),
	}
	extractor := NewExtractor(10, testLogger())

	batch, err := extractor.ExtractBatch(context.Background(), page)
	require.NoError(t, err)
	require.Len(t, batch, 15)
	assert.Equal(t, models.ExtractionMethodScript, batch[0].ExtractionMethod)
}

func TestNormalize_DefaultsAndDrops(t *testing.T) {
	raw := []models.RawCompany{
		{Name: "", URL: "https://example.com/a"},
		{Name: "  Spaced  ", URL: ""},
		{Name: "", URL: ""},
	}
	out := normalize(raw, testLogger())

	require.Len(t, out, 2, "item with neither name nor URL is dropped")
	assert.Equal(t, "Unknown", out[0].Name)
	assert.Equal(t, []string{}, out[0].Tags)
	assert.Equal(t, "Spaced", out[1].Name)
	assert.Equal(t, 0, out[0].Index)
	assert.Equal(t, 1, out[1].Index)
}

func TestScrollDriver_CapTruncatesMidBatch(t *testing.T) {
	// Two stages of 20 new companies each with a cap of 25: the run must
	// stop after the second batch with exactly 25, never loading a third.
	first := makeFixtures(0, 20)
	second := append(append([]fixture{}, first...), makeFixtures(20, 20)...)
	third := append(append([]fixture{}, second...), makeFixtures(40, 20)...)

	page := &fakePage{stages: []stage{{items: first}, {items: second}, {items: third}}}
	extractor := NewExtractor(1, testLogger())
	driver := NewScrollDriver(extractor, 25, 0, 3, 0, testLogger())

	result, err := driver.Run(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCapReached, result.Outcome)
	assert.Len(t, result.Companies, 25)
	assert.Equal(t, 1, page.current, "third batch must never be loaded")

	// The kept 25 are the first 25 in arrival order
	assert.Equal(t, "Company 0", result.Companies[0].Name)
	assert.Equal(t, "Company 24", result.Companies[24].Name)
}

func TestScrollDriver_StallBudgetExhaustion(t *testing.T) {
	// A single stage: every scroll re-measures the same count. After the
	// stall budget is spent the driver reports no more content while
	// keeping everything extracted so far.
	page := &fakePage{stages: []stage{{items: makeFixtures(0, 8)}}}
	extractor := NewExtractor(1, testLogger())
	driver := NewScrollDriver(extractor, 0, 0, 3, 0, testLogger())

	result, err := driver.Run(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoMoreContent, result.Outcome)
	assert.Len(t, result.Companies, 8)
	assert.Equal(t, 3, page.scrolls, "one scroll per stall budget unit")
}

func TestScrollDriver_PageLimit(t *testing.T) {
	first := makeFixtures(0, 5)
	second := append(append([]fixture{}, first...), makeFixtures(5, 5)...)
	third := append(append([]fixture{}, second...), makeFixtures(10, 5)...)

	page := &fakePage{stages: []stage{{items: first}, {items: second}, {items: third}}}
	extractor := NewExtractor(1, testLogger())
	driver := NewScrollDriver(extractor, 0, 2, 3, 0, testLogger())

	result, err := driver.Run(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, OutcomePageLimit, result.Outcome)
	assert.Equal(t, 2, result.Pages)
	assert.Len(t, result.Companies, 10)
}

func TestScrollDriver_AccumulatesAcrossBatches(t *testing.T) {
	first := makeFixtures(0, 4)
	second := append(append([]fixture{}, first...), makeFixtures(4, 3)...)

	page := &fakePage{stages: []stage{{items: first}, {items: second}}}
	extractor := NewExtractor(1, testLogger())
	driver := NewScrollDriver(extractor, 0, 0, 2, 0, testLogger())

	result, err := driver.Run(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoMoreContent, result.Outcome)
	assert.Len(t, result.Companies, 7, "second batch contributes only its new items")
}

func TestNewChromedpPage_BoundsNavigation(t *testing.T) {
	p := NewChromedpPage(context.Background(), 5*time.Second).(*chromedpPage)
	assert.Equal(t, 5*time.Second, p.navTimeout)

	fallback := NewChromedpPage(context.Background(), 0).(*chromedpPage)
	assert.Equal(t, time.Minute, fallback.navTimeout, "unset timeout must not leave navigation unbounded")
}

func TestSelectProxy_EmptyPoolFailsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"results": []}`)
	}))
	defer srv.Close()

	cfg := &common.Config{}
	cfg.Proxy.Enabled = true
	cfg.Proxy.ProviderURL = srv.URL
	cfg.Proxy.APIKey = "k"

	o := NewOrchestrator(cfg, proxy.NewManager(time.Second, testLogger()), testLogger())

	_, err := o.selectProxy(context.Background())
	assert.ErrorIs(t, err, proxy.ErrEmptyPool)
}

func TestSelectProxy_ProviderErrorFailsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := &common.Config{}
	cfg.Proxy.Enabled = true
	cfg.Proxy.ProviderURL = srv.URL
	cfg.Proxy.APIKey = "k"

	o := NewOrchestrator(cfg, proxy.NewManager(time.Second, testLogger()), testLogger())

	_, err := o.selectProxy(context.Background())
	assert.ErrorIs(t, err, proxy.ErrProviderUnavailable)
}

func TestSelectProxy_DisabledScrapesDirect(t *testing.T) {
	cfg := &common.Config{}
	o := NewOrchestrator(cfg, nil, testLogger())

	browserProxy, err := o.selectProxy(context.Background())
	require.NoError(t, err)
	assert.Nil(t, browserProxy)
}

func TestRetryPolicy_StopsAfterSuccess(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}

	err := policy.Execute(context.Background(), testLogger(), "op", func() error {
		calls++
		if calls < 2 {
			return fmt.Errorf("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	calls := 0
	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Millisecond, Multiplier: 2}

	err := policy.Execute(context.Background(), testLogger(), "op", func() error {
		calls++
		return fmt.Errorf("permanent")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestRetryPolicy_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	policy := RetryPolicy{MaxAttempts: 3, InitialDelay: time.Second}
	err := policy.Execute(ctx, testLogger(), "op", func() error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}
