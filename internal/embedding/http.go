package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// embeddingsResponse is the OpenAI-style response shared by Voyage and OpenRouter.
type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// statusError is a non-200 response from an embeddings endpoint.
type statusError struct {
	provider string
	status   int
	body     string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.provider, e.status, e.body)
}

// postEmbeddings sends one request and returns the vectors in input order.
func postEmbeddings(ctx context.Context, hc *http.Client, provider, url, apiKey string, reqBody []byte) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{provider: provider, status: resp.StatusCode, body: snippet(body)}
	}

	// Usually a proxy error page or a wrong base URL.
	if len(body) > 0 && body[0] == '<' {
		return nil, fmt.Errorf("%s embeddings endpoint returned HTML instead of JSON; check the base URL and API key; body: %s", provider, snippet(body))
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("%s embeddings endpoint returned empty response", provider)
	}

	var result embeddingsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w; body len=%d: %s", err, len(body), snippet(body))
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%s error: %s", provider, result.Error.Message)
	}

	embeddings := make([][]float32, len(result.Data))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			return nil, fmt.Errorf("%s returned out-of-range index %d", provider, d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}
	return embeddings, nil
}

// retry runs fn up to attempts times with a linear backoff while retryable
// reports the error as transient.
func retry(ctx context.Context, attempts int, delay time.Duration, retryable func(error) bool, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay * time.Duration(attempt)):
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("exhausted %d attempts: %w", attempts, lastErr)
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		s = "(empty)"
	}
	return s
}
