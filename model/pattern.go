package model

import (
	"time"

	"github.com/google/uuid"
)

// Pattern represents a design pattern in the catalog
type Pattern struct {
	ID          int       `json:"id"`
	RID         uuid.UUID `json:"rid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
	Metadata    Metadata  `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
}

// PatternID returns the opaque string identifier used by all retrieval signals
func (p *Pattern) PatternID() string {
	return p.RID.String()
}
