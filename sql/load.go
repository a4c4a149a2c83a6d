package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed patterns.sql
var patternsSQL string

//go:embed terms.sql
var termsSQL string

//go:embed weights.sql
var weightsSQL string

// Function lists for verification
var PatternsFunctions = []string{
	"init_patterns",
	"insert_pattern",
	"select_pattern",
	"select_all_patterns",
	"select_patterns_by_similarity",
	"select_pattern_embeddings",
	"delete_pattern",
}

var TermsFunctions = []string{
	"init_terms",
	"upsert_term_count",
	"select_term_postings",
	"select_document_frequencies",
	"count_indexed_patterns",
	"count_distinct_terms",
	"delete_pattern_terms",
}

var WeightsFunctions = []string{
	"init_weights",
	"upsert_weight_preference",
	"select_weight_preference",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadPatternsSql loads pattern-related SQL functions
func LoadPatternsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, PatternsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing patterns functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(patternsSQL)
	if err != nil {
		return fmt.Errorf("error executing patterns SQL: %w", err)
	}

	exist, err := checkFunctions(db, PatternsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL patterns functions loaded successfully")
	return nil
}

// LoadTermsSql loads term-frequency SQL functions
func LoadTermsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, TermsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing terms functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(termsSQL)
	if err != nil {
		return fmt.Errorf("error executing terms SQL: %w", err)
	}

	exist, err := checkFunctions(db, TermsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL terms functions loaded successfully")
	return nil
}

// LoadWeightsSql loads adaptive weight SQL functions
func LoadWeightsSql(db *sql.DB, force bool) error {
	if !force {
		exist, err := checkFunctions(db, WeightsFunctions)
		if err != nil {
			return fmt.Errorf("error checking existing weights functions: %w", err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(weightsSQL)
	if err != nil {
		return fmt.Errorf("error executing weights SQL: %w", err)
	}

	exist, err := checkFunctions(db, WeightsFunctions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Println("SQL weights functions loaded successfully")
	return nil
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadPatternsSql(db, force); err != nil {
		return err
	}

	if err := LoadTermsSql(db, force); err != nil {
		return err
	}

	if err := LoadWeightsSql(db, force); err != nil {
		return err
	}

	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
