// Package sparse provides TF-IDF lexical retrieval over a persisted
// term-frequency index, without semantic embeddings.
package sparse

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/siherrmann/patterner/model"
)

// TermsStore defines the persistence interface for term statistics
type TermsStore interface {
	UpsertTermCounts(patternID string, counts map[string]int) error
	SelectTermPostings(terms []string) ([]model.TermPosting, error)
	SelectDocumentFrequencies(terms []string) (map[string]int, error)
	CountIndexedPatterns() (int, error)
	CountDistinctTerms() (int, error)
}

// stopWords are dropped during tokenization
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "with": true,
	"that": true, "this": true, "from": true, "they": true, "have": true,
	"was": true, "what": true, "when": true, "where": true, "which": true,
	"will": true, "would": true, "there": true, "their": true, "should": true,
	"how": true, "its": true, "into": true, "than": true, "then": true,
	"them": true, "these": true, "some": true, "such": true, "only": true,
	"own": true, "same": true, "your": true, "about": true, "between": true,
}

const minTokenLength = 3

// Encoder answers keyword queries with TF-IDF scores over the term index
type Encoder struct {
	store TermsStore
}

// NewEncoder creates a new sparse encoder over the given term store
func NewEncoder(store TermsStore) *Encoder {
	return &Encoder{store: store}
}

// Tokenize lowercases text, strips non-alphanumerics, and drops stop words
// and tokens shorter than three characters
func Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		token := current.String()
		current.Reset()
		if len(token) < minTokenLength || stopWords[token] {
			return
		}
		tokens = append(tokens, token)
	}

	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			current.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// IndexPattern tokenizes the pattern text and persists its term counts.
// Writes are insert-or-replace, so indexing the same pattern twice is safe.
func (e *Encoder) IndexPattern(ctx context.Context, patternID string, text string) error {
	counts := make(map[string]int)
	for _, token := range Tokenize(text) {
		counts[token]++
	}

	if len(counts) == 0 {
		return nil
	}

	return e.store.UpsertTermCounts(patternID, counts)
}

// EnsureIndexed lazily builds the term index from the given patterns.
// When term statistics already exist the call is a no-op, so it is cheap
// to invoke on every query.
func (e *Encoder) EnsureIndexed(ctx context.Context, patterns []*model.Pattern) error {
	indexed, err := e.store.CountIndexedPatterns()
	if err != nil {
		return err
	}
	if indexed > 0 {
		return nil
	}

	for _, pattern := range patterns {
		text := pattern.Name + " " + pattern.Description + " " + strings.Join(pattern.Tags, " ")
		if err := e.IndexPattern(ctx, pattern.PatternID(), text); err != nil {
			return err
		}
	}

	return nil
}

// Search scores every pattern containing at least one query term with
// score = sum over terms of tf * idf, where idf = ln((N+1)/(df+1)) + 1.
// Scores are normalized against the maximum score in the result set and
// results get 1-based ranks descending by score. Patterns containing none
// of the query terms are simply absent, never an error.
func (e *Encoder) Search(ctx context.Context, query string, limit int) ([]model.SparseResult, error) {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	postings, err := e.store.SelectTermPostings(terms)
	if err != nil {
		return nil, err
	}
	if len(postings) == 0 {
		return nil, nil
	}

	docFrequencies, err := e.store.SelectDocumentFrequencies(terms)
	if err != nil {
		return nil, err
	}

	totalPatterns, err := e.store.CountIndexedPatterns()
	if err != nil {
		return nil, err
	}

	idf := make(map[string]float64, len(docFrequencies))
	for term, df := range docFrequencies {
		idf[term] = math.Log(float64(totalPatterns+1)/float64(df+1)) + 1
	}

	// Accumulate per-pattern scores in first-encountered order
	scores := make(map[string]*model.SparseResult)
	var order []string
	for _, posting := range postings {
		result, ok := scores[posting.PatternID]
		if !ok {
			result = &model.SparseResult{PatternID: posting.PatternID}
			scores[posting.PatternID] = result
			order = append(order, posting.PatternID)
		}

		weight := float64(posting.Frequency) * idf[posting.Term]
		result.Score += weight
		result.TermMatches = append(result.TermMatches, model.TermMatch{
			Term:                posting.Term,
			TermFrequency:       posting.Frequency,
			InverseDocFrequency: idf[posting.Term],
			Weight:              weight,
		})
	}

	results := make([]model.SparseResult, 0, len(order))
	maxScore := 0.0
	for _, patternID := range order {
		result := scores[patternID]
		if result.Score > maxScore {
			maxScore = result.Score
		}
		results = append(results, *result)
	}

	if maxScore > 0 {
		for i := range results {
			results[i].Score /= maxScore
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	for i := range results {
		results[i].Rank = i + 1
	}

	return results, nil
}

// IndexStats summarizes the persisted term index
type IndexStats struct {
	IndexedPatterns int `json:"indexed_patterns"`
	DistinctTerms   int `json:"distinct_terms"`
}

// Stats returns the current size of the term index
func (e *Encoder) Stats() (*IndexStats, error) {
	indexed, err := e.store.CountIndexedPatterns()
	if err != nil {
		return nil, err
	}
	distinct, err := e.store.CountDistinctTerms()
	if err != nil {
		return nil, err
	}
	return &IndexStats{
		IndexedPatterns: indexed,
		DistinctTerms:   distinct,
	}, nil
}
