package vector

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/models"
)

type fakeEmbedder struct {
	dimensions int
	err        error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vec := make([]float32, f.dimensions)
	for i := range vec {
		vec[i] = 0.5
	}
	return vec, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dimensions }

type fakeSynthesizer struct {
	synthesis models.Synthesis
}

func (f *fakeSynthesizer) Generate(ctx context.Context, content string) models.Synthesis {
	return f.synthesis
}

func TestValidateCompany(t *testing.T) {
	g := NewGateway(nil, nil, "2.0", arbor.NewLogger())

	tests := []struct {
		name    string
		raw     models.RawCompany
		wantErr bool
	}{
		{"name only", models.RawCompany{Name: "Acme"}, false},
		{"url only", models.RawCompany{URL: "https://example.com/acme"}, false},
		{"both", models.RawCompany{Name: "Acme", URL: "https://example.com/acme"}, false},
		{"neither", models.RawCompany{Location: "SF"}, true},
		{"invalid url", models.RawCompany{Name: "Acme", URL: "not a url"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.ValidateCompany(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCompany_DefaultsExtractionMethod(t *testing.T) {
	g := NewGateway(nil, nil, "2.0", arbor.NewLogger())

	company, err := g.ValidateCompany(models.RawCompany{Name: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "scraper", company.ExtractionMethod)
	assert.Equal(t, []string{}, company.Tags)
}

func TestPrepareRecord_FullEnrichment(t *testing.T) {
	embedder := &fakeEmbedder{dimensions: 8}
	synth := &fakeSynthesizer{synthesis: models.Synthesis{
		Pitch:          "Acme ships anvils. Fast.",
		FeatureSummary: []string{"anvils", "speed"},
	}}
	g := NewGateway(embedder, synth, "2.0", arbor.NewLogger())

	company := models.Company{
		Index:            3,
		Name:             "Acme",
		Location:         "SF",
		Description:      "Anvil logistics.",
		Tags:             []string{"B2B"},
		URL:              "https://example.com/acme",
		ExtractionMethod: models.ExtractionMethodStructural,
	}

	record, err := g.PrepareRecord(context.Background(), company, 2)
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "Company: Acme. Location: SF. Description: Anvil logistics.. Tags: B2B", record.Contents)
	assert.Len(t, record.Embedding, 8)
	assert.Equal(t, "Acme", record.Metadata.CompanyName)
	assert.Equal(t, "Acme ships anvils. Fast.", record.Metadata.AIInsights.Pitch)
	assert.Equal(t, 2, record.Metadata.ScraperMetadata.BatchNumber)
	assert.Equal(t, "2.0", record.Metadata.ScraperMetadata.ScraperVersion)
	assert.Equal(t, 3, record.Metadata.ScraperMetadata.Index)
}

func TestPrepareRecord_DisabledStages(t *testing.T) {
	// Nil embedder and synthesizer model the -no-embeddings/-no-ai flags
	g := NewGateway(nil, nil, "2.0", arbor.NewLogger())

	record, err := g.PrepareRecord(context.Background(), models.Company{Name: "Acme", Tags: []string{}}, 1)
	require.NoError(t, err)

	assert.Equal(t, []float32{}, record.Embedding)
	assert.Equal(t, models.EmptySynthesis(), record.Metadata.AIInsights)
}

func TestPrepareRecord_EmbeddingFailureFailsRecord(t *testing.T) {
	g := NewGateway(&fakeEmbedder{err: fmt.Errorf("quota exceeded")}, nil, "2.0", arbor.NewLogger())

	_, err := g.PrepareRecord(context.Background(), models.Company{Name: "Acme", Tags: []string{}}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestPrepareBatch_CountsRejectsAndDegraded(t *testing.T) {
	synth := &fakeSynthesizer{synthesis: models.Synthesis{
		Pitch:          models.SentinelParsePitch,
		FeatureSummary: []string{models.SentinelParseFeature},
	}}
	g := NewGateway(nil, synth, "2.0", arbor.NewLogger())

	raws := []models.RawCompany{
		{Name: "Good Co", Tags: []string{}},
		{Location: "nowhere"}, // no name or URL
		{Name: "Other Co", Tags: []string{}},
	}

	records, rejected, degraded := g.PrepareBatch(context.Background(), raws, 1)

	assert.Len(t, records, 2)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 2, degraded, "sentinel synthesis marks the record degraded")
}

func TestPrepareBatch_IDsAreUnique(t *testing.T) {
	g := NewGateway(nil, nil, "2.0", arbor.NewLogger())

	raws := []models.RawCompany{
		{Name: "A", Tags: []string{}},
		{Name: "B", Tags: []string{}},
		{Name: "C", Tags: []string{}},
	}

	records, _, _ := g.PrepareBatch(context.Background(), raws, 1)
	require.Len(t, records, 3)

	seen := make(map[string]struct{})
	for _, r := range records {
		_, dup := seen[r.ID]
		assert.False(t, dup, "record IDs must be unique")
		seen[r.ID] = struct{}{}
	}
}
