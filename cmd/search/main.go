package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/index"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/search"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/config"
	apperrors "github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/errors"
	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	limit := flag.Int("limit", 10, "maximum number of results")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	pipeline := search.NewPipeline(index.NewStore(cfg.Index.Dir))
	if err := pipeline.Reload(); err != nil {
		if errors.Is(err, apperrors.ErrIndexNotFound) {
			fmt.Fprintf(os.Stderr, "no index found in %s, run the indexer first\n", cfg.Index.Dir)
		} else {
			fmt.Fprintf(os.Stderr, "failed to load index: %v\n", err)
		}
		os.Exit(1)
	}

	ctx := context.Background()

	// One-shot mode: remaining args form the query.
	if flag.NArg() > 0 {
		query := strings.Join(flag.Args(), " ")
		printResults(query, pipeline.Search(ctx, query, *limit))
		return
	}

	repl(ctx, pipeline, *limit)
}

func repl(ctx context.Context, pipeline *search.Pipeline, limit int) {
	stats := pipeline.Stats()
	fmt.Printf("index ready: %d documents, %d terms\n", stats.TotalDocuments, stats.TotalTerms)
	fmt.Println("enter a query, 'stats', or 'quit'")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return
		case "stats":
			printStats(pipeline.Stats())
			continue
		}
		printResults(line, pipeline.Search(ctx, line, limit))
	}
}

func printResults(query string, results []search.Result) {
	if len(results) == 0 {
		fmt.Printf("no results for %q\n", query)
		return
	}
	fmt.Printf("%d results for %q\n", len(results), query)
	fmt.Println(strings.Repeat("-", 60))
	for i, r := range results {
		title := r.DocID
		url := ""
		if r.Meta != nil {
			if r.Meta.Title != "" {
				title = r.Meta.Title
			}
			url = r.Meta.URL
		}
		fmt.Printf("%d. %s\n", i+1, title)
		if url != "" {
			fmt.Printf("   url: %s\n", url)
		}
		fmt.Printf("   score: %.4f\n\n", r.Score)
	}
}

func printStats(stats search.StatsRecord) {
	fmt.Printf("status:    %s\n", stats.Status)
	fmt.Printf("documents: %d\n", stats.TotalDocuments)
	fmt.Printf("terms:     %d\n", stats.TotalTerms)
	fmt.Printf("postings:  %d\n", stats.IndexSize)
	fmt.Printf("avg terms: %.2f\n", stats.AverageTermsPerDocument)
	fmt.Printf("directory: %s\n", stats.IndexDirectory)
}
