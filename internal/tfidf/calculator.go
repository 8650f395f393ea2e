// Package tfidf computes L2-normalized TF-IDF weight vectors for a corpus of
// tokenized documents.
package tfidf

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/pkg/logger"
)

// Calculator scores a whole corpus in one shot. Weights depend on corpus-wide
// document frequencies, so there is no incremental mode: every call sees the
// full corpus.
type Calculator struct {
	logger *slog.Logger
}

func NewCalculator() *Calculator {
	return &Calculator{
		logger: logger.WithComponent("tfidf"),
	}
}

// Vectors computes the TF-IDF weight vector of every document. The returned
// map is docID -> term -> weight, covering exactly the distinct terms of each
// document (weights may be zero for terms present in every document).
//
// Document frequencies are computed over the full corpus first; per-document
// scoring then fans out across goroutines against the finished, read-only DF
// table.
func (c *Calculator) Vectors(ctx context.Context, corpus map[string][]string) (map[string]map[string]float64, error) {
	ids := make([]string, 0, len(corpus))
	for id := range corpus {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	df := DocumentFrequencies(corpus)
	total := len(corpus)

	vecs := make([]map[string]float64, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vecs[i] = scoreDocument(corpus[id], df, total)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	vectors := make(map[string]map[string]float64, len(ids))
	for i, id := range ids {
		vectors[id] = vecs[i]
	}
	c.logger.Debug("corpus scored", "documents", total, "terms", len(df))
	return vectors, nil
}

// TermFrequencies returns term -> count/len(tokens) for one document. An
// empty document yields an empty map.
func TermFrequencies(tokens []string) map[string]float64 {
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	total := float64(len(tokens))
	for token, count := range counts {
		counts[token] = count / total
	}
	return counts
}

// DocumentFrequencies counts, for every term, the number of distinct
// documents containing it.
func DocumentFrequencies(corpus map[string][]string) map[string]int {
	df := make(map[string]int)
	for _, tokens := range corpus {
		seen := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			df[token]++
		}
	}
	return df
}

// InverseDocumentFrequency is ln(total/df), with df == 0 mapped to 0 rather
// than an error.
func InverseDocumentFrequency(df, total int) float64 {
	if df <= 0 {
		return 0
	}
	return math.Log(float64(total) / float64(df))
}

// scoreDocument builds one document's normalized weight vector against the
// corpus DF table.
func scoreDocument(tokens []string, df map[string]int, total int) map[string]float64 {
	tf := TermFrequencies(tokens)
	weights := make(map[string]float64, len(tf))
	for term, freq := range tf {
		weights[term] = freq * InverseDocumentFrequency(df[term], total)
	}
	return normalizeVector(weights)
}

// normalizeVector scales a weight vector to unit L2 norm. A zero vector is
// returned unchanged rather than divided.
func normalizeVector(weights map[string]float64) map[string]float64 {
	var sum float64
	for _, w := range weights {
		sum += w * w
	}
	magnitude := math.Sqrt(sum)
	if magnitude == 0 {
		return weights
	}
	for term, w := range weights {
		weights[term] = w / magnitude
	}
	return weights
}
