package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/siherrmann/patterner/helper"
	"github.com/siherrmann/patterner/model"
	loadSql "github.com/siherrmann/patterner/sql"
)

// WeightsDBHandlerFunctions defines the interface for adaptive weight operations.
type WeightsDBHandlerFunctions interface {
	UpsertWeightPreference(userID string, queryPrefix string, denseWeight float64, sparseWeight float64, positive bool) (*model.WeightPreference, error)
	SelectWeightPreference(userID string, queryPrefix string) (*model.WeightPreference, error)
}

// WeightsDBHandler handles persisted per-user fusion weight preferences
type WeightsDBHandler struct {
	db *helper.Database
}

// NewWeightsDBHandler creates a new weights database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewWeightsDBHandler(db *helper.Database, force bool) (*WeightsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	weightsDbHandler := &WeightsDBHandler{
		db: db,
	}

	err := loadSql.LoadWeightsSql(weightsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load weights sql", err)
	}

	err = weightsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized WeightsDBHandler")

	return weightsDbHandler, nil
}

// CreateTable creates the 'weight_preferences' table in the database.
// If the table already exists, it does not create it again.
func (h *WeightsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_weights();`)
	if err != nil {
		return helper.NewError("init weights table", err)
	}

	h.db.Logger.Info("Checked/created table weight_preferences")

	return nil
}

// UpsertWeightPreference stores the nudged weights for (user, query prefix)
// and increments the matching feedback counter
func (h *WeightsDBHandler) UpsertWeightPreference(userID string, queryPrefix string, denseWeight float64, sparseWeight float64, positive bool) (*model.WeightPreference, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM upsert_weight_preference($1, $2, $3, $4, $5)`,
		userID,
		queryPrefix,
		denseWeight,
		sparseWeight,
		positive,
	)

	preference := &model.WeightPreference{}
	err := row.Scan(
		&preference.UserID,
		&preference.QueryPrefix,
		&preference.DenseWeight,
		&preference.SparseWeight,
		&preference.PositiveCount,
		&preference.NegativeCount,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return preference, nil
}

// SelectWeightPreference retrieves the stored preference for (user, query
// prefix). Returns nil without error when no preference is stored.
func (h *WeightsDBHandler) SelectWeightPreference(userID string, queryPrefix string) (*model.WeightPreference, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_weight_preference($1, $2)`,
		userID,
		queryPrefix,
	)

	preference := &model.WeightPreference{}
	err := row.Scan(
		&preference.UserID,
		&preference.QueryPrefix,
		&preference.DenseWeight,
		&preference.SparseWeight,
		&preference.PositiveCount,
		&preference.NegativeCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return preference, nil
}
