package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/patterner/helper"
	"github.com/siherrmann/patterner/model"
	loadSql "github.com/siherrmann/patterner/sql"
)

// TermsDBHandlerFunctions defines the interface for term-frequency operations.
type TermsDBHandlerFunctions interface {
	UpsertTermCounts(patternID string, counts map[string]int) error
	SelectTermPostings(terms []string) ([]model.TermPosting, error)
	SelectDocumentFrequencies(terms []string) (map[string]int, error)
	CountIndexedPatterns() (int, error)
	CountDistinctTerms() (int, error)
	DeletePatternTerms(patternID string) error
}

// TermsDBHandler handles the persisted term-frequency index
type TermsDBHandler struct {
	db *helper.Database
}

// NewTermsDBHandler creates a new terms database handler.
// The patterns table must exist before this handler is created, since
// pattern_terms references it.
func NewTermsDBHandler(db *helper.Database, force bool) (*TermsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	termsDbHandler := &TermsDBHandler{
		db: db,
	}

	err := loadSql.LoadTermsSql(termsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load terms sql", err)
	}

	err = termsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized TermsDBHandler")

	return termsDbHandler, nil
}

// CreateTable creates the 'pattern_terms' table in the database.
// If the table already exists, it does not create it again.
func (h *TermsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_terms();`)
	if err != nil {
		return helper.NewError("init terms table", err)
	}

	h.db.Logger.Info("Checked/created table pattern_terms")

	return nil
}

// UpsertTermCounts writes the term frequencies for one pattern.
// Writes are insert-or-replace per (pattern, term), so re-indexing the
// same pattern concurrently is safe.
func (h *TermsDBHandler) UpsertTermCounts(patternID string, counts map[string]int) error {
	rid, err := uuid.Parse(patternID)
	if err != nil {
		return helper.NewError("parse pattern id", err)
	}

	tx, err := h.db.Instance.Begin()
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	for term, frequency := range counts {
		_, err := tx.Exec(
			`SELECT upsert_term_count($1, $2, $3)`,
			rid,
			term,
			frequency,
		)
		if err != nil {
			return helper.NewError("upsert term count", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit transaction", err)
	}

	return nil
}

// SelectTermPostings retrieves all (pattern, term, frequency) rows for the
// given terms
func (h *TermsDBHandler) SelectTermPostings(terms []string) ([]model.TermPosting, error) {
	rows, err := h.db.Instance.Query(
		`SELECT pattern_rid, term, frequency FROM select_term_postings($1)`,
		pq.Array(terms),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var postings []model.TermPosting
	for rows.Next() {
		var rid uuid.UUID
		var posting model.TermPosting
		if err := rows.Scan(&rid, &posting.Term, &posting.Frequency); err != nil {
			return nil, helper.NewError("scan", err)
		}
		posting.PatternID = rid.String()
		postings = append(postings, posting)
	}

	return postings, rows.Err()
}

// SelectDocumentFrequencies returns the number of patterns containing each
// of the given terms. Terms absent from the index are omitted.
func (h *TermsDBHandler) SelectDocumentFrequencies(terms []string) (map[string]int, error) {
	rows, err := h.db.Instance.Query(
		`SELECT term, document_frequency FROM select_document_frequencies($1)`,
		pq.Array(terms),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	frequencies := make(map[string]int, len(terms))
	for rows.Next() {
		var term string
		var df int
		if err := rows.Scan(&term, &df); err != nil {
			return nil, helper.NewError("scan", err)
		}
		frequencies[term] = df
	}

	return frequencies, rows.Err()
}

// CountIndexedPatterns returns the number of patterns with term statistics
func (h *TermsDBHandler) CountIndexedPatterns() (int, error) {
	var count int
	err := h.db.Instance.QueryRow(`SELECT count_indexed_patterns()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// CountDistinctTerms returns the number of distinct terms in the index
func (h *TermsDBHandler) CountDistinctTerms() (int, error) {
	var count int
	err := h.db.Instance.QueryRow(`SELECT count_distinct_terms()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// DeletePatternTerms removes all term statistics for a pattern
func (h *TermsDBHandler) DeletePatternTerms(patternID string) error {
	rid, err := uuid.Parse(patternID)
	if err != nil {
		return helper.NewError("parse pattern id", err)
	}

	_, err = h.db.Instance.Exec(
		`SELECT delete_pattern_terms($1)`,
		rid,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
