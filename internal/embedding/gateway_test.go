package embedding

import (
	"context"
	"errors"
	"math"
	"testing"
)

type fixedEmbedder struct {
	vectors [][]float32
	err     error
	calls   int
}

func (f *fixedEmbedder) EmbedBatch(_ context.Context, texts []string, _ string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func (f *fixedEmbedder) ModelID() string { return "fixed" }

func vec(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestGateway_Embed(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		vectors [][]float32
		wantErr error
		calls   int
	}{
		{"valid", "hello", [][]float32{vec(4, 0.5)}, nil, 1},
		{"blank input rejected before call", "  \n\t", nil, ErrEmptyText, 0},
		{"empty result", "hello", [][]float32{{}}, ErrEmptyEmbedding, 1},
		{"wrong dimension", "hello", [][]float32{vec(3, 0.5)}, ErrDimensionMismatch, 1},
		{"NaN", "hello", [][]float32{{0, float32(math.NaN()), 0, 0}}, ErrNonFinite, 1},
		{"Inf", "hello", [][]float32{{0, 0, float32(math.Inf(-1)), 0}}, ErrNonFinite, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &fixedEmbedder{vectors: tt.vectors}
			g := NewGateway(e, 4)
			v, err := g.Embed(context.Background(), tt.text)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatal(err)
			} else if len(v) != 4 {
				t.Errorf("expected 4 values, got %d", len(v))
			}
			if e.calls != tt.calls {
				t.Errorf("expected %d provider calls, got %d", tt.calls, e.calls)
			}
		})
	}
}

func TestGateway_EmbedAll_CountMismatch(t *testing.T) {
	g := NewGateway(&fixedEmbedder{vectors: [][]float32{vec(4, 1)}}, 4)
	if _, err := g.EmbedAll(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatal("expected error when the provider returns fewer vectors than texts")
	}
}

func TestGateway_ProviderErrorWrapped(t *testing.T) {
	boom := errors.New("boom")
	g := NewGateway(&fixedEmbedder{err: boom}, 4)
	if _, err := g.Embed(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}
