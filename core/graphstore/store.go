// Package graphstore builds and queries a similarity graph over pattern
// embeddings. It surfaces patterns that are not direct nearest neighbors
// of a query but are reachable through chains of related patterns.
package graphstore

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/siherrmann/patterner/helper"
	"github.com/siherrmann/patterner/model"
)

// Catalog defines the pattern catalog operations the graph store depends on
type Catalog interface {
	SelectAllPatterns() ([]*model.Pattern, error)
	SelectPatternsBySimilarity(embedding []float32, limit int, threshold float64) ([]model.DenseResult, error)
}

// Neighbor is one weighted outgoing edge of a graph node
type Neighbor struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
	Weight   float64 `json:"weight"`
}

// Node is a pattern inside the cached graph. Neighbors are sorted
// descending by weight and only mutated during graph construction.
type Node struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Category  string     `json:"category"`
	Tags      []string   `json:"tags,omitempty"`
	Neighbors []Neighbor `json:"neighbors"`
}

// snapshot is one fully built, immutable graph. Readers hold at most one
// snapshot at a time; rebuilds swap the whole snapshot atomically so a
// half-built graph is never visible.
type snapshot struct {
	nodes   map[string]*Node
	builtAt time.Time
}

// Store builds the kNN graph from the pattern catalog and caches it for
// RebuildInterval. Safe for concurrent use.
type Store struct {
	catalog Catalog
	config  *model.EngineConfig
	logger  *slog.Logger

	current   atomic.Pointer[snapshot]
	rebuildMu sync.Mutex
}

// NewStore creates a new graph store over the given catalog
func NewStore(catalog Catalog, config *model.EngineConfig, logger *slog.Logger) *Store {
	return &Store{
		catalog: catalog,
		config:  config,
		logger:  logger,
	}
}

// ensureGraph returns a valid snapshot, rebuilding it when the cache is
// empty or older than RebuildInterval. Concurrent readers keep serving
// the previous snapshot while one rebuild runs.
func (s *Store) ensureGraph(ctx context.Context) (*snapshot, error) {
	if snap := s.current.Load(); snap != nil && time.Since(snap.builtAt) < s.config.RebuildInterval {
		return snap, nil
	}

	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	// Another goroutine may have rebuilt while we waited for the lock
	if snap := s.current.Load(); snap != nil && time.Since(snap.builtAt) < s.config.RebuildInterval {
		return snap, nil
	}

	snap, err := s.buildSnapshot(ctx)
	if err != nil {
		return nil, helper.NewError("build graph", err)
	}

	s.current.Store(snap)
	s.logger.Info("Rebuilt pattern graph", slog.Int("nodes", len(snap.nodes)))

	return snap, nil
}

// buildSnapshot constructs the graph from scratch: for every embedded
// pattern the k nearest neighbors above EdgeWeightThreshold become edges
// with weight = similarity. With UseMetadataEdges enabled, pattern pairs
// sharing a category or tag get additional edges whose weight merges
// additively with any existing vector edge.
func (s *Store) buildSnapshot(ctx context.Context) (*snapshot, error) {
	patterns, err := s.catalog.SelectAllPatterns()
	if err != nil {
		return nil, helper.NewError("select all patterns", err)
	}

	nodes := make(map[string]*Node, len(patterns))
	for _, pattern := range patterns {
		nodes[pattern.PatternID()] = &Node{
			ID:       pattern.PatternID(),
			Name:     pattern.Name,
			Category: pattern.Category,
			Tags:     pattern.Tags,
		}
	}

	// edges[source][target] accumulates weights before neighbor lists are built
	type edge struct {
		distance float64
		weight   float64
	}
	edges := make(map[string]map[string]edge, len(nodes))
	addWeight := func(source, target string, distance, weight float64) {
		if edges[source] == nil {
			edges[source] = make(map[string]edge)
		}
		existing := edges[source][target]
		edges[source][target] = edge{
			distance: distance,
			weight:   existing.weight + weight,
		}
	}

	for _, pattern := range patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(pattern.Embedding) == 0 {
			continue
		}

		// Request one extra neighbor since the pattern matches itself
		results, err := s.catalog.SelectPatternsBySimilarity(pattern.Embedding, s.config.NeighborsPerNode+1, s.config.EdgeWeightThreshold)
		if err != nil {
			return nil, helper.NewError("select neighbors", err)
		}

		for _, result := range results {
			if result.PatternID == pattern.PatternID() {
				continue
			}
			addWeight(pattern.PatternID(), result.PatternID, result.Distance, result.Similarity)
		}
	}

	if s.config.UseMetadataEdges {
		for i, a := range patterns {
			for _, b := range patterns[i+1:] {
				weight := 0.0
				if a.Category != "" && a.Category == b.Category {
					weight += s.config.CategoryEdgeWeight
				}
				if sharesTag(a.Tags, b.Tags) {
					weight += s.config.TagEdgeWeight
				}
				if weight == 0 {
					continue
				}
				addWeight(a.PatternID(), b.PatternID(), 0, weight)
				addWeight(b.PatternID(), a.PatternID(), 0, weight)
			}
		}
	}

	for source, targets := range edges {
		node := nodes[source]
		for target, e := range targets {
			node.Neighbors = append(node.Neighbors, Neighbor{
				ID:       target,
				Distance: e.distance,
				Weight:   e.weight,
			})
		}
		sort.SliceStable(node.Neighbors, func(i, j int) bool {
			return node.Neighbors[i].Weight > node.Neighbors[j].Weight
		})
	}

	return &snapshot{
		nodes:   nodes,
		builtAt: time.Now(),
	}, nil
}

// sharesTag reports whether the two tag lists have at least one tag in common
func sharesTag(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	tags := make(map[string]bool, len(a))
	for _, tag := range a {
		tags[tag] = true
	}
	for _, tag := range b {
		if tags[tag] {
			return true
		}
	}
	return false
}

// ClearCache drops the cached graph. The next query triggers a full rebuild.
func (s *Store) ClearCache() {
	s.current.Store(nil)
	s.logger.Info("Cleared pattern graph cache")
}

// GraphStats summarizes the cached graph for diagnostics
type GraphStats struct {
	Nodes               int       `json:"nodes"`
	Edges               int       `json:"edges"`
	ConnectedComponents int       `json:"connected_components"`
	AverageDegree       float64   `json:"average_degree"`
	BuiltAt             time.Time `json:"built_at"`
}

// GetGraphStats returns node, edge and connected-component counts of the
// current graph, rebuilding it first if necessary
func (s *Store) GetGraphStats(ctx context.Context) (*GraphStats, error) {
	snap, err := s.ensureGraph(ctx)
	if err != nil {
		return nil, err
	}

	edgeCount := 0
	for _, node := range snap.nodes {
		edgeCount += len(node.Neighbors)
	}

	averageDegree := 0.0
	if len(snap.nodes) > 0 {
		averageDegree = float64(edgeCount) / float64(len(snap.nodes))
	}

	return &GraphStats{
		Nodes:               len(snap.nodes),
		Edges:               edgeCount,
		ConnectedComponents: countComponents(snap),
		AverageDegree:       averageDegree,
		BuiltAt:             snap.builtAt,
	}, nil
}

// countComponents runs a depth-first traversal over the undirected view of
// the adjacency to count connected components
func countComponents(snap *snapshot) int {
	// Undirected adjacency, since metadata edges are symmetric but kNN
	// edges are not necessarily so
	adjacency := make(map[string][]string, len(snap.nodes))
	for id, node := range snap.nodes {
		for _, neighbor := range node.Neighbors {
			adjacency[id] = append(adjacency[id], neighbor.ID)
			adjacency[neighbor.ID] = append(adjacency[neighbor.ID], id)
		}
	}

	visited := make(map[string]bool, len(snap.nodes))
	components := 0
	for id := range snap.nodes {
		if visited[id] {
			continue
		}
		components++

		stack := []string{id}
		visited[id] = true
		for len(stack) > 0 {
			current := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, next := range adjacency[current] {
				if !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
	}

	return components
}

// ExportEdge is one directed edge in an exported graph
type ExportEdge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Weight float64 `json:"weight"`
}

// GraphExport is a flattened view of the cached graph for visualization
type GraphExport struct {
	Nodes []*Node      `json:"nodes"`
	Edges []ExportEdge `json:"edges"`
}

// ExportGraph returns all nodes and edges of the current graph in a stable
// order, rebuilding it first if necessary
func (s *Store) ExportGraph(ctx context.Context) (*GraphExport, error) {
	snap, err := s.ensureGraph(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(snap.nodes))
	for id := range snap.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	export := &GraphExport{}
	for _, id := range ids {
		node := snap.nodes[id]
		export.Nodes = append(export.Nodes, node)
		for _, neighbor := range node.Neighbors {
			export.Edges = append(export.Edges, ExportEdge{
				Source: node.ID,
				Target: neighbor.ID,
				Weight: neighbor.Weight,
			})
		}
	}

	return export, nil
}
