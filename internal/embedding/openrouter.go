package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maraichr/vectorsync/internal/config"
)

const (
	defaultOpenRouterModel   = "openai/text-embedding-3-small"
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1/embeddings"
	defaultDimensions        = 1024
	openRouterMaxRetries     = 3
	openRouterRetryDelay     = 2 * time.Second
	openRouterBatchSize      = 100 // avoid huge responses that get truncated or time out
	openRouterConcurrency    = 10  // max simultaneous in-flight API requests
)

// OpenRouterClient implements Embedder using the OpenAI-compatible OpenRouter API.
type OpenRouterClient struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	http       *http.Client
}

// NewOpenRouterClient creates a new OpenRouter embedding client.
func NewOpenRouterClient(cfg config.OpenRouterConfig) (*OpenRouterClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}

	model := cfg.Model
	if model == "" {
		model = defaultOpenRouterModel
	}

	baseURL := cfg.BaseURLEmbeddings
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	} else {
		baseURL = strings.TrimRight(baseURL, "/")
		if baseURL == "https://openrouter.ai" || baseURL == "https://openrouter.ai/api/v1" {
			baseURL = defaultOpenRouterBaseURL
		}
	}

	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}

	return &OpenRouterClient{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		dimensions: dimensions,
		http:       &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

type openRouterProvider struct {
	AllowFallbacks bool `json:"allow_fallbacks"`
}

type openAIEmbedRequest struct {
	Model          string              `json:"model"`
	Input          []string            `json:"input"`
	Dimensions     int                 `json:"dimensions,omitempty"`
	EncodingFormat string              `json:"encoding_format,omitempty"`
	Provider       *openRouterProvider `json:"provider,omitempty"`
}

// EmbedBatch splits texts into sub-batches of openRouterBatchSize and sends up
// to openRouterConcurrency of them in parallel. inputType is ignored; the
// OpenAI schema has no equivalent.
func (c *OpenRouterClient) EmbedBatch(ctx context.Context, texts []string, _ string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	type span struct{ start, end int }
	var spans []span
	for i := 0; i < len(texts); i += openRouterBatchSize {
		spans = append(spans, span{i, min(i+openRouterBatchSize, len(texts))})
	}
	results := make([][][]float32, len(spans))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(openRouterConcurrency)

	for idx, sp := range spans {
		eg.Go(func() error {
			payload := openAIEmbedRequest{
				Model:          c.model,
				Input:          texts[sp.start:sp.end],
				EncodingFormat: "float",
				Provider:       &openRouterProvider{AllowFallbacks: true},
			}
			if strings.HasPrefix(c.model, "openai/") || strings.HasPrefix(c.model, "qwen/") {
				payload.Dimensions = c.dimensions
			}
			reqBody, err := json.Marshal(payload)
			if err != nil {
				return fmt.Errorf("marshal request (batch %d): %w", idx, err)
			}

			err = retry(egCtx, openRouterMaxRetries, openRouterRetryDelay, openRouterRetryable, func() error {
				embeddings, err := postEmbeddings(egCtx, c.http, "openrouter", c.baseURL, c.apiKey, reqBody)
				if err != nil {
					return err
				}
				results[idx] = embeddings
				return nil
			})
			if err != nil {
				return fmt.Errorf("batch %d: %w", idx, err)
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	all := make([][]float32, 0, len(texts))
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func openRouterRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) && se.status == 529 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "No successful provider responses") ||
		strings.Contains(msg, "Provider Overloaded") ||
		strings.Contains(msg, "empty response") ||
		strings.Contains(msg, "unexpected end of JSON")
}

// ModelID returns the model identifier.
func (c *OpenRouterClient) ModelID() string {
	return c.model
}
