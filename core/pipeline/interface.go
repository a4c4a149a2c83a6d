package pipeline

import (
	"strings"

	"github.com/siherrmann/patterner/model"
)

// EmbedFunc is a function that generates an embedding for text
type EmbedFunc func(text string) ([]float32, error)

// Pipeline embeds queries and patterns with a single embedding function
type Pipeline struct {
	Embedder EmbedFunc
}

// NewPipeline creates a new embedding pipeline
func NewPipeline(embedder EmbedFunc) *Pipeline {
	return &Pipeline{
		Embedder: embedder,
	}
}

// EmbedQuery generates the embedding for a raw query string
func (p *Pipeline) EmbedQuery(text string) ([]float32, error) {
	return p.Embedder(text)
}

// EmbedPattern generates and attaches the embedding for a pattern.
// Patterns that already carry an embedding are left untouched.
func (p *Pipeline) EmbedPattern(pattern *model.Pattern) error {
	if len(pattern.Embedding) > 0 {
		return nil
	}

	embedding, err := p.Embedder(PatternText(pattern))
	if err != nil {
		return err
	}

	pattern.Embedding = embedding
	return nil
}

// PatternText composes the text a pattern is embedded from
func PatternText(pattern *model.Pattern) string {
	parts := []string{pattern.Name, pattern.Description}
	if len(pattern.Tags) > 0 {
		parts = append(parts, strings.Join(pattern.Tags, " "))
	}
	return strings.Join(parts, ". ")
}
