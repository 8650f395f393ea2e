package textproc

// stopwords is the fixed filter set applied after token cleanup. Query and
// index time share it, so a dropped word can never be searched for.
var stopwords = map[string]struct{}{}

func init() {
	groups := [][]string{
		// articles
		{"the", "a", "an"},
		// conjunctions
		{"and", "or", "but", "nor", "yet", "so"},
		// prepositions
		{"in", "on", "at", "to", "for", "of", "by", "from", "up", "down",
			"into", "onto", "through", "during", "before", "after", "since",
			"until", "against", "among", "between", "behind", "beneath",
			"beside", "beyond", "inside", "outside", "under", "over",
			"above", "below"},
		// pronouns
		{"i", "you", "he", "she", "it", "we", "they", "me", "him", "her",
			"us", "them", "my", "your", "his", "its", "our", "their",
			"mine", "yours", "hers", "ours", "theirs", "myself", "yourself",
			"himself", "herself", "itself", "ourselves", "yourselves",
			"themselves"},
		// auxiliary verbs
		{"am", "is", "are", "was", "were", "be", "been", "being", "have",
			"has", "had", "do", "does", "did", "will", "would", "could",
			"should", "may", "might", "can", "must", "shall"},
		// demonstratives
		{"this", "that", "these", "those"},
		// filler words
		{"all", "any", "both", "each", "few", "more", "most", "other",
			"some", "such", "no", "not", "only", "own", "same", "than",
			"too", "very", "just", "now", "then", "here", "there"},
	}
	for _, group := range groups {
		for _, w := range group {
			stopwords[w] = struct{}{}
		}
	}
}

// IsStopword reports whether a cleaned token is filtered out.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}
