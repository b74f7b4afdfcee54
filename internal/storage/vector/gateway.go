package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/models"
)

// SynthesisGenerator produces AI insights for canonical company text.
// Implementations degrade to sentinel values instead of failing.
type SynthesisGenerator interface {
	Generate(ctx context.Context, content string) models.Synthesis
}

// Gateway validates scraped companies and assembles persistence-ready
// records: canonical text, optional embedding, optional AI insights,
// and a time-sortable ID minted at preparation time.
//
// A nil embedder or synthesizer disables that stage; the record is
// still produced with an empty embedding or empty synthesis so batch
// flags can switch stages off without changing the schema.
type Gateway struct {
	embedder       interfaces.EmbeddingService
	synthesizer    SynthesisGenerator
	validate       *validator.Validate
	scraperVersion string
	logger         arbor.ILogger
}

// NewGateway builds a gateway. embedder and synthesizer may be nil.
func NewGateway(embedder interfaces.EmbeddingService, synthesizer SynthesisGenerator, scraperVersion string, logger arbor.ILogger) *Gateway {
	if scraperVersion == "" {
		scraperVersion = "2.0"
	}
	return &Gateway{
		embedder:       embedder,
		synthesizer:    synthesizer,
		validate:       validator.New(),
		scraperVersion: scraperVersion,
		logger:         logger,
	}
}

// ValidateCompany promotes a raw extraction item to a Company, or
// rejects it when it carries neither a name nor a URL or fails schema
// validation.
func (g *Gateway) ValidateCompany(raw models.RawCompany) (models.Company, error) {
	if raw.Name == "" && raw.URL == "" {
		return models.Company{}, fmt.Errorf("company has neither name nor URL")
	}

	company := models.Company{
		Index:            raw.Index,
		Name:             raw.Name,
		Location:         raw.Location,
		Description:      raw.Description,
		Tags:             raw.Tags,
		URL:              raw.URL,
		LogoURL:          raw.LogoURL,
		ExtractionMethod: raw.ExtractionMethod,
	}
	if company.Tags == nil {
		company.Tags = []string{}
	}
	if company.ExtractionMethod == "" {
		company.ExtractionMethod = "scraper"
	}

	if err := g.validate.Struct(&company); err != nil {
		return models.Company{}, fmt.Errorf("schema validation: %w", err)
	}

	return company, nil
}

// PrepareRecord assembles the persistence record for a validated
// company. Embedding failure fails the record; synthesis failure never
// does, it degrades to sentinel insights inside the synthesizer.
func (g *Gateway) PrepareRecord(ctx context.Context, company models.Company, batchNumber int) (models.CompanyRecord, error) {
	contents := company.CanonicalText()
	now := time.Now()

	embedding := []float32{}
	if g.embedder != nil {
		vec, err := g.embedder.Embed(ctx, contents)
		if err != nil {
			return models.CompanyRecord{}, fmt.Errorf("embedding %q: %w", company.Name, err)
		}
		embedding = vec
	}

	insights := models.EmptySynthesis()
	if g.synthesizer != nil {
		insights = g.synthesizer.Generate(ctx, contents)
	}

	name := company.Name
	if name == "" {
		name = "Unknown"
	}

	record := models.CompanyRecord{
		ID: common.NewRecordID(),
		Metadata: models.CompanyMetadata{
			CompanyName:      name,
			Location:         company.Location,
			Tags:             company.Tags,
			URL:              company.URL,
			LogoURL:          company.LogoURL,
			ExtractionMethod: company.ExtractionMethod,
			CreatedAt:        now,
			AIInsights:       insights,
			ScraperMetadata: models.ScraperMetadata{
				Index:          company.Index,
				ScrapedAt:      now,
				ScraperVersion: g.scraperVersion,
				BatchNumber:    batchNumber,
			},
		},
		Contents:  contents,
		Embedding: embedding,
		CreatedAt: now,
	}

	return record, nil
}

// PrepareBatch validates and prepares every company, skipping rejects
// and per-record failures. Returns the prepared records, the number of
// rejected items, and the number of degraded (sentinel) syntheses.
func (g *Gateway) PrepareBatch(ctx context.Context, companies []models.RawCompany, batchNumber int) ([]models.CompanyRecord, int, int) {
	records := make([]models.CompanyRecord, 0, len(companies))
	rejected := 0
	degraded := 0

	for i, raw := range companies {
		if err := ctx.Err(); err != nil {
			g.logger.Warn().Err(err).Int("prepared", len(records)).Msg("Batch preparation interrupted")
			break
		}

		company, err := g.ValidateCompany(raw)
		if err != nil {
			g.logger.Warn().Err(err).Str("name", raw.Name).Str("url", raw.URL).Msg("Rejected company")
			rejected++
			continue
		}

		record, err := g.PrepareRecord(ctx, company, batchNumber)
		if err != nil {
			g.logger.Error().Err(err).Str("name", company.Name).Msg("Failed to prepare record")
			rejected++
			continue
		}
		if record.Metadata.AIInsights.IsSentinel() {
			degraded++
		}

		records = append(records, record)

		if (i+1)%10 == 0 {
			g.logger.Info().Int("processed", i+1).Int("total", len(companies)).Msg("Preparing records")
		}
	}

	return records, rejected, degraded
}
