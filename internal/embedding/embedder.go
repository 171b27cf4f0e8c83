package embedding

import (
	"context"
	"fmt"

	"github.com/maraichr/vectorsync/internal/config"
)

// InputDocument marks texts that are stored for retrieval rather than used as queries.
const InputDocument = "document"

// Embedder is the interface for embedding providers.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, inputType string) ([][]float32, error)
	ModelID() string
}

// NewEmbedder builds the provider named by EMBEDDING_PROVIDER. counter sizes
// Voyage requests and may be nil.
func NewEmbedder(cfg *config.Config, counter TokenCounter) (Embedder, error) {
	switch cfg.Embedding.Provider {
	case "", "voyage":
		client, err := NewVoyageClient(cfg.Voyage, cfg.Sync.Dimension, counter)
		if err != nil {
			return nil, fmt.Errorf("voyage client: %w", err)
		}
		return client, nil
	case "openrouter":
		client, err := NewOpenRouterClient(cfg.OpenRouter)
		if err != nil {
			return nil, fmt.Errorf("openrouter client: %w", err)
		}
		return client, nil
	case "bedrock":
		client, err := NewBedrockClient(cfg.Bedrock)
		if err != nil {
			return nil, fmt.Errorf("bedrock client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}
