package database

import (
	"fmt"

	"github.com/LukeBaker08/velosight/helper"
	"github.com/LukeBaker08/velosight/model"
	loadSql "github.com/LukeBaker08/velosight/sql"
)

// AnalysisResultsDBHandlerFunctions defines the interface for analysis result database operations.
type AnalysisResultsDBHandlerFunctions interface {
	InsertAnalysisResult(record *model.AnalysisRecord) error
}

// AnalysisResultsDBHandler handles persisted analysis results.
type AnalysisResultsDBHandler struct {
	db *helper.Database
}

// NewAnalysisResultsDBHandler creates a new analysis results database handler.
// It initializes the database connection and loads analysis-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewAnalysisResultsDBHandler(db *helper.Database, force bool) (*AnalysisResultsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	handler := &AnalysisResultsDBHandler{
		db: db,
	}

	err := loadSql.LoadAnalysisSql(handler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load analysis sql", err)
	}

	_, err = handler.db.Instance.Exec(`SELECT init_analysis();`)
	if err != nil {
		return nil, helper.NewError("initializing analysis tables", err)
	}

	db.Logger.Info("Initialized AnalysisResultsDBHandler")

	return handler, nil
}

// InsertAnalysisResult inserts a completed analysis. The database assigns
// ID and CreatedAt, which are written back to the record.
func (h *AnalysisResultsDBHandler) InsertAnalysisResult(record *model.AnalysisRecord) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_analysis_result($1, $2, $3, $4, $5, $6, $7)`,
		record.ProjectID,
		record.AnalysisType,
		record.AnalysisSubtype,
		record.Confidence,
		record.OverallRating,
		record.RawResult,
		record.Status,
	)

	err := row.Scan(
		&record.ID,
		&record.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}
