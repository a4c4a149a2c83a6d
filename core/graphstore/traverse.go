package graphstore

import (
	"context"
	"math"
	"sort"

	"github.com/siherrmann/patterner/model"
)

// hopDecayRate penalizes longer reasoning chains with exp(-hops*rate)
const hopDecayRate = 0.2

// searchPath is one partial path during beam traversal
type searchPath struct {
	nodes   []string
	weights []float64
}

func (p searchPath) contains(id string) bool {
	for _, node := range p.nodes {
		if node == id {
			return true
		}
	}
	return false
}

func (p searchPath) extend(id string, weight float64) searchPath {
	nodes := make([]string, len(p.nodes), len(p.nodes)+1)
	copy(nodes, p.nodes)
	weights := make([]float64, len(p.weights), len(p.weights)+1)
	copy(weights, p.weights)
	return searchPath{
		nodes:   append(nodes, id),
		weights: append(weights, weight),
	}
}

// Traverse explores the graph breadth-first from startID. At every node
// only the BranchLimit strongest edges above EdgeWeightThreshold are
// expanded, and a path never revisits one of its own nodes. Distinct
// paths may still share nodes. A path is finalized once it reaches
// maxHops or runs out of expandable edges; exploration stops after
// beamWidth finalized paths. Per-path score is the mean edge weight.
// An unknown startID yields an empty result set, not an error.
func (s *Store) Traverse(ctx context.Context, startID string, maxHops int, beamWidth int) ([]model.GraphResult, error) {
	snap, err := s.ensureGraph(ctx)
	if err != nil {
		return nil, err
	}

	if _, ok := snap.nodes[startID]; !ok {
		return nil, nil
	}
	if maxHops <= 0 || beamWidth <= 0 {
		return nil, nil
	}

	var results []model.GraphResult
	finalize := func(path searchPath) {
		score := 0.0
		for _, weight := range path.weights {
			score += weight
		}
		score /= float64(len(path.weights))

		results = append(results, model.GraphResult{
			PatternID:       path.nodes[len(path.nodes)-1],
			Path:            path.nodes,
			Hops:            len(path.nodes) - 1,
			EdgeWeights:     path.weights,
			CumulativeScore: score,
		})
	}

	queue := []searchPath{{nodes: []string{startID}}}
	for len(queue) > 0 && len(results) < beamWidth {
		current := queue[0]
		queue = queue[1:]

		if len(current.nodes)-1 >= maxHops {
			finalize(current)
			continue
		}

		node := snap.nodes[current.nodes[len(current.nodes)-1]]
		expanded := 0
		for _, neighbor := range node.Neighbors {
			if expanded >= s.config.BranchLimit {
				break
			}
			if neighbor.Weight < s.config.EdgeWeightThreshold {
				continue
			}
			if current.contains(neighbor.ID) {
				continue
			}
			queue = append(queue, current.extend(neighbor.ID, neighbor.Weight))
			expanded++
		}

		// Dead end with at least one hop still counts as a finished path
		if expanded == 0 && len(current.nodes) > 1 {
			finalize(current)
		}
	}

	return results, nil
}

// MultiHopReasoning traverses the graph from startID and annotates every
// path with a reasoning chain, one step per hop with the intermediate
// pattern's name and the edge weight as confidence. Final score is the
// mean edge weight decayed by exp(-hops*0.2), so longer chains are
// penalized. Results are sorted descending by final score.
func (s *Store) MultiHopReasoning(ctx context.Context, startID string, maxHops int) ([]model.ReasonedResult, error) {
	paths, err := s.Traverse(ctx, startID, maxHops, s.config.BeamWidth)
	if err != nil {
		return nil, err
	}

	snap := s.current.Load()

	results := make([]model.ReasonedResult, 0, len(paths))
	for _, path := range paths {
		steps := make([]model.ReasoningStep, 0, path.Hops)
		for i := 1; i < len(path.Path); i++ {
			name := path.Path[i]
			if snap != nil {
				if node, ok := snap.nodes[path.Path[i]]; ok {
					name = node.Name
				}
			}
			steps = append(steps, model.ReasoningStep{
				PatternID:  path.Path[i],
				Name:       name,
				Confidence: path.EdgeWeights[i-1],
			})
		}

		results = append(results, model.ReasonedResult{
			GraphResult: path,
			Steps:       steps,
			FinalScore:  path.CumulativeScore * math.Exp(-float64(path.Hops)*hopDecayRate),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})

	return results, nil
}

// SimilarPattern is one entry of a graph similarity lookup
type SimilarPattern struct {
	PatternID string  `json:"pattern_id"`
	Score     float64 `json:"score"`
	Hops      int     `json:"hops"`
}

// GraphSimilarity separates a pattern's direct neighbors from patterns
// only reachable through intermediate hops
type GraphSimilarity struct {
	Direct   []SimilarPattern `json:"direct"`
	Indirect []SimilarPattern `json:"indirect"`
}

// FindSimilarWithGraph returns the direct neighbors of startID plus the
// patterns reached at exactly hops steps that are not already direct
// neighbors. Indirect scores are decayed by path length.
func (s *Store) FindSimilarWithGraph(ctx context.Context, startID string, hops int) (*GraphSimilarity, error) {
	snap, err := s.ensureGraph(ctx)
	if err != nil {
		return nil, err
	}

	similarity := &GraphSimilarity{}
	node, ok := snap.nodes[startID]
	if !ok {
		return similarity, nil
	}

	direct := make(map[string]bool, len(node.Neighbors))
	for _, neighbor := range node.Neighbors {
		direct[neighbor.ID] = true
		similarity.Direct = append(similarity.Direct, SimilarPattern{
			PatternID: neighbor.ID,
			Score:     neighbor.Weight,
			Hops:      1,
		})
	}

	paths, err := s.Traverse(ctx, startID, hops, s.config.BeamWidth)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, path := range paths {
		if path.Hops != hops || direct[path.PatternID] || seen[path.PatternID] {
			continue
		}
		seen[path.PatternID] = true
		similarity.Indirect = append(similarity.Indirect, SimilarPattern{
			PatternID: path.PatternID,
			Score:     path.CumulativeScore * math.Exp(-float64(path.Hops)*hopDecayRate),
			Hops:      path.Hops,
		})
	}

	sort.SliceStable(similarity.Indirect, func(i, j int) bool {
		return similarity.Indirect[i].Score > similarity.Indirect[j].Score
	})

	return similarity, nil
}
