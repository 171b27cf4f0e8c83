package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrEmptyText         = errors.New("empty text provided for embedding")
	ErrEmptyEmbedding    = errors.New("received empty embedding")
	ErrDimensionMismatch = errors.New("unexpected embedding dimension")
	ErrNonFinite         = errors.New("embedding contains NaN/inf values")
)

// Gateway wraps an Embedder with the checks every stored vector must pass:
// non-blank input, exact dimension, finite values.
type Gateway struct {
	embedder  Embedder
	dimension int
}

func NewGateway(e Embedder, dimension int) *Gateway {
	if dimension <= 0 {
		dimension = defaultDimensions
	}
	return &Gateway{embedder: e, dimension: dimension}
}

func (g *Gateway) ModelID() string { return g.embedder.ModelID() }

func (g *Gateway) Dimension() int { return g.dimension }

// Embed embeds one text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := g.EmbedAll(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedAll embeds texts in one provider call and validates every vector. Any
// invalid input or result fails the whole call.
func (g *Gateway) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
	}

	vectors, err := g.embedder.EmbedBatch(ctx, texts, InputDocument)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding failed: got %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if err := g.validate(v); err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
	}
	return vectors, nil
}

func (g *Gateway) validate(v []float32) error {
	if len(v) == 0 {
		return ErrEmptyEmbedding
	}
	if len(v) != g.dimension {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), g.dimension)
	}
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ErrNonFinite
		}
	}
	return nil
}
