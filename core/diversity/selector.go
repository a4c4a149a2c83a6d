// Package diversity prevents near-duplicate patterns from crowding a
// result list, using greedy maximal marginal relevance selection.
package diversity

import (
	"math"

	"github.com/siherrmann/patterner/model"
)

// SimilarityFunc compares two embeddings and returns a similarity score.
// Injected so the selector has no dependency on the embedding store.
type SimilarityFunc func(a, b []float32) float64

// Selector picks a bounded, diverse subset of scored candidates
type Selector struct {
	coverageWeight  float64
	diversityWeight float64
	similarity      SimilarityFunc
}

// NewSelector creates a selector balancing relevance (coverageWeight)
// against novelty (diversityWeight)
func NewSelector(coverageWeight float64, diversityWeight float64, similarity SimilarityFunc) *Selector {
	return &Selector{
		coverageWeight:  coverageWeight,
		diversityWeight: diversityWeight,
		similarity:      similarity,
	}
}

// Select greedily picks up to targetSize candidates. Each round scores
// every remaining candidate with
// mmr = coverageWeight*relevance + diversityWeight*(1 - maxSimToSelected)
// and moves the best one into the selected list, recording its MMR score
// as the candidate's diversity score for explainability. Always returns
// exactly min(targetSize, len(candidates)) results.
func (s *Selector) Select(candidates []*model.BlendedResult, embeddings map[string][]float32, targetSize int) []*model.BlendedResult {
	if targetSize > len(candidates) {
		targetSize = len(candidates)
	}
	if targetSize <= 0 {
		return nil
	}

	remaining := make([]*model.BlendedResult, len(candidates))
	copy(remaining, candidates)

	selected := make([]*model.BlendedResult, 0, targetSize)
	for len(selected) < targetSize {
		bestIndex := 0
		bestScore := math.Inf(-1)
		for i, candidate := range remaining {
			diversity := 1 - s.maxSimilarityToSelected(candidate, selected, embeddings)
			mmrScore := s.coverageWeight*candidate.FinalScore + s.diversityWeight*diversity
			if mmrScore > bestScore {
				bestScore = mmrScore
				bestIndex = i
			}
		}

		best := remaining[bestIndex]
		score := bestScore
		best.DiversityScore = &score
		selected = append(selected, best)
		remaining = append(remaining[:bestIndex], remaining[bestIndex+1:]...)
	}

	return selected
}

// maxSimilarityToSelected returns the highest similarity between the
// candidate and any already selected result, or 0 when nothing is
// selected yet or an embedding is missing
func (s *Selector) maxSimilarityToSelected(candidate *model.BlendedResult, selected []*model.BlendedResult, embeddings map[string][]float32) float64 {
	candidateEmbedding, ok := embeddings[candidate.PatternID]
	if !ok {
		return 0
	}

	maxSimilarity := 0.0
	for _, other := range selected {
		otherEmbedding, ok := embeddings[other.PatternID]
		if !ok {
			continue
		}
		if similarity := s.similarity(candidateEmbedding, otherEmbedding); similarity > maxSimilarity {
			maxSimilarity = similarity
		}
	}

	return maxSimilarity
}

// CosineSimilarity is the default similarity function over pattern
// embeddings. Zero or mismatched vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
