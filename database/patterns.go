package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/patterner/helper"
	"github.com/siherrmann/patterner/model"
	loadSql "github.com/siherrmann/patterner/sql"
)

// PatternsDBHandlerFunctions defines the interface for pattern catalog operations.
type PatternsDBHandlerFunctions interface {
	InsertPattern(pattern *model.Pattern) error
	SelectPattern(rid uuid.UUID) (*model.Pattern, error)
	SelectAllPatterns() ([]*model.Pattern, error)
	SelectPatternsBySimilarity(embedding []float32, limit int, threshold float64) ([]model.DenseResult, error)
	SelectPatternEmbeddings(patternIDs []string) (map[string][]float32, error)
	DeletePattern(rid uuid.UUID) error
}

// PatternsDBHandler handles pattern-related database operations
type PatternsDBHandler struct {
	db *helper.Database
}

// NewPatternsDBHandler creates a new patterns database handler.
// It initializes the database connection and loads pattern-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewPatternsDBHandler(db *helper.Database, embeddingDim int, force bool) (*PatternsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	patternsDbHandler := &PatternsDBHandler{
		db: db,
	}

	err := loadSql.LoadPatternsSql(patternsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load patterns sql", err)
	}

	err = patternsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized PatternsDBHandler")

	return patternsDbHandler, nil
}

// CreateTable creates the 'patterns' table in the database.
// If the table already exists, it does not create it again.
func (h *PatternsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_patterns($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init patterns table", err)
	}

	h.db.Logger.Info("Checked/created table patterns")

	return nil
}

// InsertPattern inserts a new pattern
func (h *PatternsDBHandler) InsertPattern(pattern *model.Pattern) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_pattern($1, $2, $3, $4, $5, $6)`,
		pattern.Name,
		pattern.Description,
		pattern.Category,
		pq.Array(pattern.Tags),
		pq.Array(pattern.Embedding),
		pattern.Metadata,
	)

	return scanPattern(row, pattern)
}

// SelectPattern retrieves a pattern by RID
func (h *PatternsDBHandler) SelectPattern(rid uuid.UUID) (*model.Pattern, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_pattern($1)`,
		rid,
	)

	pattern := &model.Pattern{}
	if err := scanPattern(row, pattern); err != nil {
		return nil, err
	}

	return pattern, nil
}

// SelectAllPatterns retrieves all patterns in the catalog
func (h *PatternsDBHandler) SelectAllPatterns() ([]*model.Pattern, error) {
	rows, err := h.db.Instance.Query(`SELECT * FROM select_all_patterns()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var patterns []*model.Pattern
	for rows.Next() {
		pattern := &model.Pattern{}
		if err := scanPattern(rows, pattern); err != nil {
			return nil, err
		}
		patterns = append(patterns, pattern)
	}

	return patterns, rows.Err()
}

// SelectPatternsBySimilarity performs nearest-neighbor search over pattern
// embeddings. Results are sorted descending by cosine similarity with
// 1-based ranks assigned.
func (h *PatternsDBHandler) SelectPatternsBySimilarity(embedding []float32, limit int, threshold float64) ([]model.DenseResult, error) {
	rows, err := h.db.Instance.Query(
		`SELECT rid, similarity, distance FROM select_patterns_by_similarity($1, $2, $3)`,
		pq.Array(embedding),
		limit,
		threshold,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []model.DenseResult
	for rows.Next() {
		var rid uuid.UUID
		var similarity, distance float64
		if err := rows.Scan(&rid, &similarity, &distance); err != nil {
			return nil, helper.NewError("scan", err)
		}
		results = append(results, model.DenseResult{
			PatternID:  rid.String(),
			Similarity: similarity,
			Distance:   distance,
			Rank:       len(results) + 1,
		})
	}

	return results, rows.Err()
}

// SelectPatternEmbeddings retrieves the embeddings for the given pattern ids.
// Patterns without an embedding are omitted from the result map.
func (h *PatternsDBHandler) SelectPatternEmbeddings(patternIDs []string) (map[string][]float32, error) {
	rids := make([]uuid.UUID, 0, len(patternIDs))
	for _, id := range patternIDs {
		rid, err := uuid.Parse(id)
		if err != nil {
			return nil, helper.NewError("parse pattern id", err)
		}
		rids = append(rids, rid)
	}

	rows, err := h.db.Instance.Query(
		`SELECT rid, embedding FROM select_pattern_embeddings($1)`,
		pq.Array(rids),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	embeddings := make(map[string][]float32, len(patternIDs))
	for rows.Next() {
		var rid uuid.UUID
		var embedding []float32
		if err := rows.Scan(&rid, pq.Array(&embedding)); err != nil {
			return nil, helper.NewError("scan", err)
		}
		embeddings[rid.String()] = embedding
	}

	return embeddings, rows.Err()
}

// DeletePattern deletes a pattern by RID
func (h *PatternsDBHandler) DeletePattern(rid uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT delete_pattern($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanPattern(row scanner, pattern *model.Pattern) error {
	var embedding pgvector.Vector
	err := row.Scan(
		&pattern.ID,
		&pattern.RID,
		&pattern.Name,
		&pattern.Description,
		&pattern.Category,
		pq.Array(&pattern.Tags),
		&embedding,
		&pattern.Metadata,
		&pattern.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	pattern.Embedding = embedding.Slice()

	return nil
}
