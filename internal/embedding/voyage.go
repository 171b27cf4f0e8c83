package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/maraichr/vectorsync/internal/config"
)

const (
	defaultVoyageModel   = "voyage-code-3"
	defaultVoyageBaseURL = "https://api.voyageai.com/v1/embeddings"
	voyageBatchSize      = 128
	voyageMaxBatchTokens = 120000
	voyageMaxRetries     = 4
	voyageRetryDelay     = 2 * time.Second
)

// TokenCounter measures text in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// approxCounter estimates four characters per token.
type approxCounter struct{}

func (approxCounter) Count(text string) int { return (len([]rune(text)) + 3) / 4 }

// VoyageClient implements Embedder against the Voyage AI embeddings API.
// Requests are sequential and, when RPM is set, paced by a token bucket. Each
// request holds at most voyageBatchSize texts and maxBatchTokens tokens.
type VoyageClient struct {
	apiKey         string
	model          string
	baseURL        string
	dimensions     int
	maxBatchTokens int
	counter        TokenCounter
	limiter        *rate.Limiter
	http           *http.Client
}

// NewVoyageClient builds the client. A nil counter falls back to a
// characters-per-token estimate.
func NewVoyageClient(cfg config.VoyageConfig, dimensions int, counter TokenCounter) (*VoyageClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("VOYAGE_API_KEY is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultVoyageModel
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultVoyageBaseURL
	}
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	maxTokens := cfg.MaxBatchTokens
	if maxTokens <= 0 {
		maxTokens = voyageMaxBatchTokens
	}
	if counter == nil {
		counter = approxCounter{}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RPM > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RPM)), 1)
	}

	return &VoyageClient{
		apiKey:         cfg.APIKey,
		model:          model,
		baseURL:        baseURL,
		dimensions:     dimensions,
		maxBatchTokens: maxTokens,
		counter:        counter,
		limiter:        limiter,
		http:           &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

type voyageEmbedRequest struct {
	Input           []string `json:"input"`
	Model           string   `json:"model"`
	InputType       string   `json:"input_type,omitempty"`
	OutputDimension int      `json:"output_dimension,omitempty"`
}

func (c *VoyageClient) EmbedBatch(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for _, b := range c.batches(texts) {
		start, end := b[0], b[1]
		reqBody, err := json.Marshal(voyageEmbedRequest{
			Input:           texts[start:end],
			Model:           c.model,
			InputType:       inputType,
			OutputDimension: c.dimensions,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}

		var embeddings [][]float32
		err = retry(ctx, voyageMaxRetries, voyageRetryDelay, voyageRetryable, func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			var err error
			embeddings, err = postEmbeddings(ctx, c.http, "voyage", c.baseURL, c.apiKey, reqBody)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("texts %d-%d: %w", start, end-1, err)
		}
		all = append(all, embeddings...)
	}
	return all, nil
}

// batches cuts texts into [start, end) ranges bounded by count and summed
// tokens. A text over the token limit on its own gets a request to itself.
func (c *VoyageClient) batches(texts []string) [][2]int {
	var (
		out    [][2]int
		start  int
		tokens int
	)
	for i, t := range texts {
		n := c.counter.Count(t)
		if i > start && (i-start >= voyageBatchSize || tokens+n > c.maxBatchTokens) {
			out = append(out, [2]int{start, i})
			start, tokens = i, 0
		}
		tokens += n
	}
	return append(out, [2]int{start, len(texts)})
}

func voyageRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	return strings.Contains(err.Error(), "empty response")
}

func (c *VoyageClient) ModelID() string { return c.model }
