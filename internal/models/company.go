package models

import (
	"strings"
	"time"
)

// Extraction method values stamped on RawCompany by the extraction strategies
const (
	ExtractionMethodStructural = "structural"
	ExtractionMethodScript     = "script-fallback"
)

// RawCompany is one company item extracted from a rendered page fragment.
// It is created transiently per extraction pass and either promoted to a
// Company via validation or discarded - never persisted directly.
type RawCompany struct {
	Index            int      `json:"index"`
	Name             string   `json:"name,omitempty"`
	Location         string   `json:"location,omitempty"`
	Description      string   `json:"description,omitempty"`
	Tags             []string `json:"tags"`
	URL              string   `json:"url,omitempty"`
	LogoURL          string   `json:"logo_url,omitempty"`
	ExtractionMethod string   `json:"extraction_method"`
}

// Company is a RawCompany that passed schema validation (name or URL
// present). Immutable once created. The URL, when present, is the
// deduplication key across scroll batches and pipeline runs.
type Company struct {
	Index            int      `json:"index"`
	Name             string   `json:"name" validate:"required_without=URL"`
	Location         string   `json:"location"`
	Description      string   `json:"description"`
	Tags             []string `json:"tags"`
	URL              string   `json:"url" validate:"omitempty,url"`
	LogoURL          string   `json:"logo_url,omitempty"`
	ExtractionMethod string   `json:"extraction_method"`
}

// CanonicalText builds the deterministic concatenation of the company's
// descriptive fields, used both for embedding and full-text indexing.
// Format: "Company: X. Location: Y. Description: Z. Tags: a, b"
func (c *Company) CanonicalText() string {
	var parts []string
	if c.Name != "" {
		parts = append(parts, "Company: "+c.Name)
	}
	if c.Location != "" {
		parts = append(parts, "Location: "+c.Location)
	}
	if c.Description != "" {
		parts = append(parts, "Description: "+c.Description)
	}
	if len(c.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(c.Tags, ", "))
	}
	return strings.Join(parts, ". ")
}

// Sentinel synthesis values. A failed generation degrades the record to
// one of these instead of failing the pipeline; their exact wording is
// part of the persisted data contract and must not change.
const (
	SentinelParsePitch       = "JSON parsing failed - invalid response format"
	SentinelParseFeature     = "JSON parsing failed"
	SentinelSchemaPitch      = "Schema validation failed - response structure invalid"
	SentinelSchemaFeature    = "Schema validation failed"
	SentinelGenerationPrefix = "AI generation failed:"
)

// IsSentinel reports whether the synthesis holds degraded sentinel
// values rather than generated insights.
func (s Synthesis) IsSentinel() bool {
	switch s.Pitch {
	case SentinelParsePitch, SentinelSchemaPitch:
		return true
	}
	return strings.HasPrefix(s.Pitch, SentinelGenerationPrefix)
}

// Synthesis is the AI-generated enrichment attached to a record: a short
// pitch and an ordered feature list. On any generation failure the fields
// hold explicit sentinel values rather than an error.
type Synthesis struct {
	Pitch          string   `json:"pitch" validate:"required"`
	FeatureSummary []string `json:"feature_summary" validate:"required"`
}

// EmptySynthesis returns the zero-value synthesis used when AI insights
// are disabled.
func EmptySynthesis() Synthesis {
	return Synthesis{Pitch: "", FeatureSummary: []string{}}
}

// ScraperMetadata records provenance for a persisted company record.
type ScraperMetadata struct {
	Index          int       `json:"index"`
	ScrapedAt      time.Time `json:"scraped_at"`
	ScraperVersion string    `json:"scraper_version"`
	BatchNumber    int       `json:"batch_number"`
}

// CompanyMetadata is the metadata object stored alongside each record in
// the vector store. Field names are part of the persisted JSON contract.
type CompanyMetadata struct {
	CompanyName      string          `json:"company_name"`
	Location         string          `json:"location"`
	Tags             []string        `json:"tags"`
	URL              string          `json:"url"`
	LogoURL          string          `json:"logo_url,omitempty"`
	ExtractionMethod string          `json:"extraction_method"`
	CreatedAt        time.Time       `json:"created_at"`
	AIInsights       Synthesis       `json:"ai_insights"`
	ScraperMetadata  ScraperMetadata `json:"scraper_metadata"`
}

// CompanyRecord is the unit of persistence. The ID is generated at
// persistence time (time-sortable UUIDv7), never at extraction. Records
// are created once and never mutated; corrections are new rows.
type CompanyRecord struct {
	ID        string          `json:"id"`
	Metadata  CompanyMetadata `json:"metadata"`
	Contents  string          `json:"contents"`
	Embedding []float32       `json:"embedding"`
	CreatedAt time.Time       `json:"created_at"`
}

// SearchResult is one row returned by the store's search operations.
type SearchResult struct {
	ID             string          `json:"id"`
	Contents       string          `json:"contents"`
	Metadata       CompanyMetadata `json:"metadata"`
	Distance       float64         `json:"distance,omitempty"`
	Rank           float64         `json:"rank,omitempty"`
	SearchType     string          `json:"search_type"` // "semantic" or "keyword"
	RelevanceScore float64         `json:"relevance_score,omitempty"`
}

// RunStats summarizes one pipeline run for logging and the status endpoint.
type RunStats struct {
	RunNumber  int           `json:"run_number"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Extracted  int           `json:"extracted"`
	NewRecords int           `json:"new_records"`
	Inserted   int           `json:"inserted"`
	Rejected   int           `json:"rejected"`
	Degraded   int           `json:"degraded"`
	Failed     bool          `json:"failed"`
	Error      string        `json:"error,omitempty"`
}
