// Package index implements the inverted TF-IDF index: a pure pivot of
// per-document weight vectors into term -> document -> weight form, plus the
// two-record JSON persistence the engine serves from.
package index

import "sort"

// Index is an immutable inverted index. Once built or loaded it is never
// mutated; a rebuild produces a fresh Index and the serving layer swaps
// snapshots.
type Index struct {
	postings  map[string]map[string]float64
	documents int
	size      int
}

// Stats summarizes the resident index structures.
type Stats struct {
	DocumentCount int `json:"document_count"`
	TermCount     int `json:"term_count"`
	PostingCount  int `json:"posting_count"`
}

// Build pivots scorer output (docID -> term -> weight) into an inverted
// index. Zero weights are skipped: absence of a posting is the
// representation of zero. No weights are recomputed here.
func Build(vectors map[string]map[string]float64) *Index {
	postings := make(map[string]map[string]float64)
	for docID, vector := range vectors {
		for term, weight := range vector {
			if weight == 0 {
				continue
			}
			docs, ok := postings[term]
			if !ok {
				docs = make(map[string]float64)
				postings[term] = docs
			}
			docs[docID] = weight
		}
	}
	return fromPostings(postings)
}

// fromPostings wraps a postings table and derives the document and posting
// counters.
func fromPostings(postings map[string]map[string]float64) *Index {
	seen := make(map[string]struct{})
	size := 0
	for _, docs := range postings {
		size += len(docs)
		for docID := range docs {
			seen[docID] = struct{}{}
		}
	}
	return &Index{
		postings:  postings,
		documents: len(seen),
		size:      size,
	}
}

// Weight returns the stored weight of term in docID. The second return is
// false when the pair has no posting (its weight is zero).
func (ix *Index) Weight(term, docID string) (float64, bool) {
	docs, ok := ix.postings[term]
	if !ok {
		return 0, false
	}
	w, ok := docs[docID]
	return w, ok
}

// Postings returns the docID -> weight map of a term, or an empty map for an
// unknown term. The returned map is shared; callers must not modify it.
func (ix *Index) Postings(term string) map[string]float64 {
	docs, ok := ix.postings[term]
	if !ok {
		return map[string]float64{}
	}
	return docs
}

// DocumentsFor returns the sorted IDs of all documents containing term.
func (ix *Index) DocumentsFor(term string) []string {
	docs := ix.postings[term]
	ids := make([]string, 0, len(docs))
	for docID := range docs {
		ids = append(ids, docID)
	}
	sort.Strings(ids)
	return ids
}

// TermCount returns the number of distinct terms.
func (ix *Index) TermCount() int {
	return len(ix.postings)
}

// DocumentCount returns the number of distinct documents with at least one
// posting.
func (ix *Index) DocumentCount() int {
	return ix.documents
}

// PostingCount returns the total number of (term, document) postings.
func (ix *Index) PostingCount() int {
	return ix.size
}

func (ix *Index) Stats() Stats {
	return Stats{
		DocumentCount: ix.documents,
		TermCount:     len(ix.postings),
		PostingCount:  ix.size,
	}
}
