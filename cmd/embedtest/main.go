// embedtest makes a single embedding request with the configured provider
// (EMBEDDING_PROVIDER) using config from env and .env if present.
// Run from project root: go run ./cmd/embedtest
// Raw OpenRouter HTTP: go run ./cmd/embedtest -verbose
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/maraichr/vectorsync/internal/config"
	"github.com/maraichr/vectorsync/internal/embedding"
)

const sampleText = "The quick brown fox jumps over the lazy dog."

func main() {
	verbose := flag.Bool("verbose", false, "print the raw OpenRouter HTTP request and response")
	text := flag.String("text", sampleText, "text to embed")
	flag.Parse()

	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *verbose {
		if cfg.OpenRouter.APIKey == "" {
			log.Fatal("OPENROUTER_API_KEY is not set (set it in .env or environment)")
		}
		doVerbose(cfg.OpenRouter, *text)
		return
	}

	e, err := embedding.NewEmbedder(cfg, nil)
	if err != nil {
		log.Fatalf("embedder: %v", err)
	}
	gw := embedding.NewGateway(e, cfg.Sync.Dimension)

	fmt.Printf("Provider: %s\n", cfg.Embedding.Provider)
	fmt.Printf("Model: %s\n", gw.ModelID())
	fmt.Println("Sending one embedding request...")

	vec, err := gw.Embed(context.Background(), *text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embed error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("OK: dims=%d (expected %d)\n", len(vec), gw.Dimension())
}

func doVerbose(cfg config.OpenRouterConfig, text string) {
	baseURL := cfg.BaseURLEmbeddings
	if baseURL == "" {
		baseURL = cfg.BaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" || baseURL == "https://openrouter.ai" || baseURL == "https://openrouter.ai/api/v1" {
		baseURL = "https://openrouter.ai/api/v1/embeddings"
	}
	model := cfg.Model
	if model == "" {
		model = "openai/text-embedding-3-small"
	}

	body := map[string]any{
		"model":           model,
		"input":           []string{text},
		"encoding_format": "float",
		"provider":        map[string]bool{"allow_fallbacks": true},
	}
	if strings.HasPrefix(model, "openai/") || strings.HasPrefix(model, "qwen/") {
		body["dimensions"] = cfg.Dimensions
	}
	raw, _ := json.MarshalIndent(body, "", "  ")
	fmt.Println("--- Request ---")
	fmt.Printf("POST %s\n", baseURL)
	fmt.Printf("Body:\n%s\n", raw)

	req, err := http.NewRequest(http.MethodPost, baseURL, bytes.NewReader(raw))
	if err != nil {
		log.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("HTTP request: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Println("--- Response ---")
	fmt.Printf("Status: %s\n", resp.Status)
	fmt.Printf("Body:\n%s\n", respBody)
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
