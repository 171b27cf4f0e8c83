package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a thin REST client for the Pinecone control and data planes.
type Client interface {
	ListIndexes(ctx context.Context) ([]IndexDescription, error)
	CreateIndex(ctx context.Context, req CreateIndexRequest) (*IndexDescription, error)
	DescribeIndex(ctx context.Context, indexName string) (*IndexDescription, error)
	UpsertVectors(ctx context.Context, host string, req UpsertRequest) (*UpsertResponse, error)
	DeleteVectors(ctx context.Context, host string, req DeleteRequest) error
	FetchVectors(ctx context.Context, host, namespace string, ids []string) (*FetchResponse, error)
}

type Config struct {
	APIKey     string
	APIVersion string
	BaseURL    string
	Timeout    time.Duration
}

// APIError is a non-2xx response from Pinecone.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pinecone %s http %d: %s", e.Op, e.Status, e.Body)
}

type client struct {
	log  *slog.Logger
	cfg  Config
	http *http.Client
}

func New(log *slog.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing Pinecone API key")
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = "2025-01"
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.pinecone.io"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &client{
		log:  log.With(slog.String("client", "pinecone")),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// -------------------- Control plane --------------------

type IndexDescription struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type ServerlessSpec struct {
	Cloud  string `json:"cloud"`
	Region string `json:"region"`
}

type IndexSpec struct {
	Serverless *ServerlessSpec `json:"serverless,omitempty"`
}

type CreateIndexRequest struct {
	Name      string    `json:"name"`
	Dimension int       `json:"dimension"`
	Metric    string    `json:"metric"`
	Spec      IndexSpec `json:"spec"`
}

type listIndexesResponse struct {
	Indexes []IndexDescription `json:"indexes"`
}

func (c *client) ListIndexes(ctx context.Context) ([]IndexDescription, error) {
	out, err := doJSON[listIndexesResponse](c, ctx, "list_indexes", http.MethodGet, c.controlURL("/indexes"), nil)
	if err != nil {
		return nil, err
	}
	return out.Indexes, nil
}

func (c *client) CreateIndex(ctx context.Context, req CreateIndexRequest) (*IndexDescription, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("index name required")
	}
	return doJSON[IndexDescription](c, ctx, "create_index", http.MethodPost, c.controlURL("/indexes"), req)
}

func (c *client) DescribeIndex(ctx context.Context, indexName string) (*IndexDescription, error) {
	indexName = strings.TrimSpace(indexName)
	if indexName == "" {
		return nil, fmt.Errorf("indexName required")
	}
	out, err := doJSON[IndexDescription](c, ctx, "describe_index", http.MethodGet, c.controlURL("/indexes/"+url.PathEscape(indexName)), nil)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Host) == "" {
		return nil, fmt.Errorf("pinecone describe_index returned empty host")
	}
	return out, nil
}

// -------------------- Data plane --------------------

type Vector struct {
	ID       string          `json:"id"`
	Values   []float32       `json:"values"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type UpsertRequest struct {
	Vectors   []Vector `json:"vectors"`
	Namespace string   `json:"namespace"`
}

type UpsertResponse struct {
	UpsertedCount int64 `json:"upsertedCount"`
}

type DeleteRequest struct {
	IDs       []string       `json:"ids,omitempty"`
	DeleteAll bool           `json:"deleteAll,omitempty"`
	Namespace string         `json:"namespace"`
	Filter    map[string]any `json:"filter,omitempty"`
}

type FetchResponse struct {
	Vectors   map[string]Vector `json:"vectors"`
	Namespace string            `json:"namespace"`
}

func (c *client) UpsertVectors(ctx context.Context, host string, req UpsertRequest) (*UpsertResponse, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("host required")
	}
	if len(req.Vectors) == 0 {
		return &UpsertResponse{UpsertedCount: 0}, nil
	}
	return doJSON[UpsertResponse](c, ctx, "upsert", http.MethodPost, dataURL(host, "/vectors/upsert"), req)
}

func (c *client) DeleteVectors(ctx context.Context, host string, req DeleteRequest) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("host required")
	}
	_, err := doJSON[json.RawMessage](c, ctx, "delete", http.MethodPost, dataURL(host, "/vectors/delete"), req)
	return err
}

func (c *client) FetchVectors(ctx context.Context, host, namespace string, ids []string) (*FetchResponse, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("host required")
	}
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids", id)
	}
	q.Set("namespace", namespace)
	return doJSON[FetchResponse](c, ctx, "fetch", http.MethodGet, dataURL(host, "/vectors/fetch")+"?"+q.Encode(), nil)
}

// -------------------- helpers --------------------

func (c *client) controlURL(path string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + path
}

// dataURL accepts either a bare index host (as returned by describe_index) or a
// full base URL.
func dataURL(host, path string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host + path
}

func doJSON[T any](c *client, ctx context.Context, op, method, url string, body any) (*T, error) {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
		reader = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", c.cfg.APIKey)
	req.Header.Set("X-Pinecone-Api-Version", c.cfg.APIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinecone %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: op, Status: resp.StatusCode, Body: string(raw)}
	}

	var out T
	if len(bytes.TrimSpace(raw)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("pinecone %s decode: %w; raw=%s", op, err, string(raw))
	}
	return &out, nil
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
