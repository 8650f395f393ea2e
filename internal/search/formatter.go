package search

import (
	"sort"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/document"
)

// rank orders accumulated scores descending. Equal scores fall back to
// ascending document ID, so result order is a deterministic total order.
func rank(scores map[string]float64) []Result {
	results := make([]Result, 0, len(scores))
	for docID, score := range scores {
		results = append(results, Result{DocID: docID, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].DocID < results[j].DocID
	})
	return results
}

// format truncates ranked results to maxResults and merges each document's
// metadata record in. Documents without a record keep a nil Meta and still
// rank normally.
func format(ranked []Result, maxResults int, meta map[string]document.Metadata) []Result {
	if maxResults <= 0 {
		return []Result{}
	}
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	for i := range ranked {
		if m, ok := meta[ranked[i].DocID]; ok {
			m := m
			ranked[i].Meta = &m
		}
	}
	return ranked
}
