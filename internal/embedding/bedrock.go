package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"golang.org/x/sync/errgroup"

	"github.com/maraichr/vectorsync/internal/config"
)

const (
	maxBatchSize       = 96 // Cohere embed API limit
	bedrockConcurrency = 8
)

// bedrockInvoker is the slice of the Bedrock runtime client used here.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient embeds through a Cohere model hosted on AWS Bedrock.
type BedrockClient struct {
	bedrock bedrockInvoker
	modelID string
}

func NewBedrockClient(cfg config.BedrockConfig) (*BedrockClient, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &BedrockClient{bedrock: bedrockruntime.NewFromConfig(awsCfg), modelID: cfg.ModelID}, nil
}

type cohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate,omitempty"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// cohereInputType maps the provider-neutral input type to Cohere's vocabulary.
func cohereInputType(inputType string) string {
	switch inputType {
	case "", InputDocument:
		return "search_document"
	case "query":
		return "search_query"
	default:
		return inputType
	}
}

// EmbedBatch sends sub-batches of maxBatchSize with up to bedrockConcurrency
// requests in flight.
func (c *BedrockClient) EmbedBatch(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	type span struct{ start, end int }
	var spans []span
	for i := 0; i < len(texts); i += maxBatchSize {
		spans = append(spans, span{i, min(i+maxBatchSize, len(texts))})
	}
	results := make([][][]float32, len(spans))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(bedrockConcurrency)

	for idx, sp := range spans {
		eg.Go(func() error {
			embeddings, err := c.invoke(egCtx, texts[sp.start:sp.end], cohereInputType(inputType))
			if err != nil {
				return fmt.Errorf("batch %d: %w", idx, err)
			}
			results[idx] = embeddings
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

func (c *BedrockClient) invoke(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	reqBody, err := json.Marshal(cohereEmbedRequest{Texts: texts, InputType: inputType, Truncate: "END"})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.bedrock.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        reqBody,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke model: %w", err)
	}

	var result cohereEmbedResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return result.Embeddings, nil
}

func (c *BedrockClient) ModelID() string { return c.modelID }
