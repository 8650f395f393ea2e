package search

import "github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/index"

// accumulate scores documents additively: each query term contributes its
// stored weight to every document in its postings, once per occurrence of
// the term in the query. Terms with no postings contribute nothing. Only the
// postings of query terms are touched, never the whole corpus.
func accumulate(ix *index.Index, terms []string) map[string]float64 {
	scores := make(map[string]float64)
	for _, term := range terms {
		for docID, weight := range ix.Postings(term) {
			scores[docID] += weight
		}
	}
	return scores
}
