package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/launchradar/launchradar/internal/common"
	"github.com/launchradar/launchradar/internal/interfaces"
	"github.com/launchradar/launchradar/internal/services/llm"
)

// NewEmbeddingService creates the embedder named by the enrichment
// configuration. Supported providers are "gemini" and "openai".
func NewEmbeddingService(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (interfaces.EmbeddingService, error) {
	provider := cfg.Enrichment.EmbeddingProvider
	if provider == "" {
		provider = "gemini"
	}

	dimensions := cfg.Enrichment.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = 1536
	}

	logger.Info().
		Str("provider", provider).
		Int("dimensions", dimensions).
		Msg("Initializing embedding service")

	switch provider {
	case "gemini":
		svc, err := llm.NewGeminiService(ctx, &cfg.Gemini, logger)
		if err != nil {
			return nil, err
		}
		return &GeminiEmbedder{svc: svc, dimensions: dimensions}, nil
	case "openai":
		return NewOpenAIEmbedder(&cfg.OpenAI, dimensions)
	default:
		return nil, fmt.Errorf("invalid embedding provider '%s': must be 'gemini' or 'openai'", provider)
	}
}

// GeminiEmbedder adapts the Gemini service to the EmbeddingService
// interface with a fixed output dimensionality.
type GeminiEmbedder struct {
	svc        *llm.GeminiService
	dimensions int
}

func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.svc.Embed(ctx, text, e.dimensions)
}

func (e *GeminiEmbedder) Dimension() int {
	return e.dimensions
}

// OpenAIEmbedder generates embeddings against an OpenAI-compatible
// /embeddings endpoint. BaseURL may point at any compatible gateway.
type OpenAIEmbedder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAIEmbedder creates an embedder for an OpenAI-compatible API.
func NewOpenAIEmbedder(cfg *common.OpenAIConfig, dimensions int) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY or openai.api_key in config)")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = "text-embedding-3-small"
	}

	timeout := 30 * time.Second
	if cfg.Timeout != "" {
		parsed, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout duration '%s': %w", cfg.Timeout, err)
		}
		timeout = parsed
	}

	return &OpenAIEmbedder{
		client:     &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dimensions,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := embeddingRequest{
		Model:      e.model,
		Input:      []string{text},
		Dimensions: e.dimensions,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var embedResp embeddingResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if embedResp.Error != nil {
		return nil, fmt.Errorf("embedding API error: %s", embedResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API status %d: %s", resp.StatusCode, string(body))
	}
	if len(embedResp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	embedding := make([]float32, len(embedResp.Data[0].Embedding))
	for i, v := range embedResp.Data[0].Embedding {
		embedding[i] = float32(v)
	}
	if len(embedding) != e.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dimensions, len(embedding))
	}

	return embedding, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimensions
}
