package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdfqa/config"
	"pdfqa/internal/adapter/cache"
	"pdfqa/internal/adapter/embedding"
	"pdfqa/internal/adapter/store"
	"pdfqa/internal/domain"
	"pdfqa/internal/logging"
	"pdfqa/internal/usecase"
)

func main() {
	rootDir := flag.String("dir", ".", "Directory holding pdfqa.yaml and the data directory")
	docID := flag.String("doc", "", "Indexed document id")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	runs := flag.Int("runs", 5, "Timed repetitions of the search")
	flag.Parse()

	if *query == "" || *docID == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir . -doc <doc_id> -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Embedding model and index size")
		fmt.Println("  2. Similarity of the top matches to the query")
		fmt.Println("  3. Search latency over repeated runs (query embedding cached after the first)")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if !filepath.IsAbs(cfg.Storage.DataDir) {
		cfg.Storage.DataDir = filepath.Join(*rootDir, cfg.Storage.DataDir)
	}

	st, err := store.NewBoltStore(cfg.ChunkDBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening chunk store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	logger := logging.Discard()
	indexes := store.NewFileIndexStore(cfg.IndexDir())
	provider := embedding.NewProviderFromConfig(cfg.Embedding, logger)
	queryCache := cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL)
	retrieve := usecase.NewRetrieveUseCase(st, indexes, provider, queryCache, logger)

	ctx := context.Background()
	if err := provider.Warmup(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Embedding model not available: %v\n", err)
		os.Exit(1)
	}

	artifacts, err := indexes.Load(*docID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Index not available: %v\n", err)
		os.Exit(1)
	}
	dim, _ := provider.Dimension(ctx)

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Document:      %s\n", *docID)
	fmt.Printf("Vectors:       %d\n", artifacts.Index.Len())
	fmt.Printf("Model:         %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension:     %d\n", dim)
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	var resp *domain.SearchResponse
	var latencies []time.Duration
	for i := 0; i < max(*runs, 1); i++ {
		start := time.Now()
		resp, err = retrieve.Search(ctx, *docID, *query, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		latencies = append(latencies, time.Since(start))
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results.")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", len(resp.Results))

	totalScore := 0.0
	unresolved := 0
	for i, r := range resp.Results {
		totalScore += r.Score
		if r.IsDiagnostic() {
			unresolved++
			fmt.Printf("%d. [%.3f] row %d unresolved: %s\n\n", i+1, r.Score, r.Row, r.Error)
			continue
		}

		preview := []rune(strings.ReplaceAll(r.Text, "\n", " "))
		if len(preview) > 150 {
			preview = append(preview[:150], []rune("...")...)
		}

		fmt.Printf("%d. [%s %.3f] %s p.%d\n", i+1, rating(r.Score), r.Score, r.ChunkUID, r.PageNumber)
		fmt.Printf("   %s\n\n", string(preview))
	}

	avgScore := totalScore / float64(len(resp.Results))
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", resp.Results[0].Score)
	if unresolved > 0 {
		fmt.Printf("  Unresolved rows:    %d (rebuild the index)\n", unresolved)
	}

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need a different embedding model or chunk size")
	}

	fmt.Printf("\nLATENCY (%d runs):\n", len(latencies))
	fmt.Printf("  First (cold query): %s\n", latencies[0])
	if len(latencies) > 1 {
		var total time.Duration
		for _, l := range latencies[1:] {
			total += l
		}
		fmt.Printf("  Mean (cached):      %s\n", total/time.Duration(len(latencies)-1))
	}
}

func rating(score float64) string {
	switch {
	case score > 0.7:
		return "HIGH"
	case score > 0.5:
		return "GOOD"
	case score > 0.3:
		return "OK"
	default:
		return "LOW"
	}
}
