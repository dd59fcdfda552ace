package database

import (
	dbsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/LukeBaker08/velosight/helper"
	"github.com/LukeBaker08/velosight/model"
	loadSql "github.com/LukeBaker08/velosight/sql"
)

// AnalysisTypesDBHandlerFunctions defines the interface for analysis type database operations.
type AnalysisTypesDBHandlerFunctions interface {
	InsertAnalysisType(analysisType *model.AnalysisType) error
	UpdateAnalysisType(analysisType *model.AnalysisType) error
	SelectAnalysisType(key string) (*model.AnalysisType, error)
	SelectAllAnalysisTypes(includeDisabled bool) ([]*model.AnalysisType, error)
}

// AnalysisTypesDBHandler handles analysis type configuration rows.
type AnalysisTypesDBHandler struct {
	db *helper.Database
}

// NewAnalysisTypesDBHandler creates a new analysis types database handler.
// It initializes the database connection and loads analysis-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewAnalysisTypesDBHandler(db *helper.Database, force bool) (*AnalysisTypesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	handler := &AnalysisTypesDBHandler{
		db: db,
	}

	err := loadSql.LoadAnalysisSql(handler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load analysis sql", err)
	}

	err = handler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized AnalysisTypesDBHandler")

	return handler, nil
}

// CreateTable creates the analysis tables in the database.
// If the tables already exist, it does not create them again.
func (h *AnalysisTypesDBHandler) CreateTable() error {
	_, err := h.db.Instance.Exec(`SELECT init_analysis();`)
	if err != nil {
		return helper.NewError("initializing analysis tables", err)
	}

	h.db.Logger.Info("Checked/created analysis tables")

	return nil
}

// InsertAnalysisType inserts a new analysis type. Inserting an existing key
// overwrites the configuration.
func (h *AnalysisTypesDBHandler) InsertAnalysisType(analysisType *model.AnalysisType) error {
	subtypesJSON, err := json.Marshal(analysisType.Subtypes)
	if err != nil {
		return helper.NewError("marshaling subtypes", err)
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_analysis_type($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		analysisType.Key,
		analysisType.Name,
		analysisType.Description,
		analysisType.SystemPrompt,
		analysisType.UserPromptTemplate,
		analysisType.Enabled,
		analysisType.SortOrder,
		analysisType.RequiresSubtype,
		subtypesJSON,
		analysisType.OutputSchema,
	)

	scanned, err := scanAnalysisTypeRow(row)
	if err != nil {
		return err
	}
	*analysisType = *scanned

	return nil
}

// UpdateAnalysisType updates the prompts and output schema of an analysis type.
func (h *AnalysisTypesDBHandler) UpdateAnalysisType(analysisType *model.AnalysisType) error {
	var updated bool
	err := h.db.Instance.QueryRow(
		`SELECT update_analysis_type($1, $2, $3, $4)`,
		analysisType.ID,
		analysisType.SystemPrompt,
		analysisType.UserPromptTemplate,
		analysisType.OutputSchema,
	).Scan(&updated)
	if err != nil {
		return helper.NewError("scan", err)
	}
	if !updated {
		return helper.NewError("update analysis type", fmt.Errorf("analysis type %v not found", analysisType.ID))
	}

	return nil
}

// SelectAnalysisType retrieves an enabled analysis type by key.
// A missing or disabled key returns (nil, nil).
func (h *AnalysisTypesDBHandler) SelectAnalysisType(key string) (*model.AnalysisType, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_analysis_type($1)`,
		key,
	)

	analysisType, err := scanAnalysisTypeRow(row)
	if errors.Is(err, dbsql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return analysisType, nil
}

// SelectAllAnalysisTypes retrieves all analysis types ordered by sort order.
// Disabled types are included only when includeDisabled is true.
func (h *AnalysisTypesDBHandler) SelectAllAnalysisTypes(includeDisabled bool) ([]*model.AnalysisType, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_analysis_types($1)`,
		includeDisabled,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var analysisTypes []*model.AnalysisType
	for rows.Next() {
		analysisType, err := scanAnalysisTypeRow(rows)
		if err != nil {
			return nil, err
		}
		analysisTypes = append(analysisTypes, analysisType)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return analysisTypes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysisTypeRow(row rowScanner) (*model.AnalysisType, error) {
	analysisType := &model.AnalysisType{}

	var subtypesJSON []byte
	var schemaJSON []byte
	err := row.Scan(
		&analysisType.ID,
		&analysisType.Key,
		&analysisType.Name,
		&analysisType.Description,
		&analysisType.SystemPrompt,
		&analysisType.UserPromptTemplate,
		&analysisType.Enabled,
		&analysisType.SortOrder,
		&analysisType.RequiresSubtype,
		&subtypesJSON,
		&schemaJSON,
		&analysisType.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, dbsql.ErrNoRows) {
			return nil, err
		}
		return nil, helper.NewError("scan", err)
	}

	if len(subtypesJSON) > 0 {
		if err := json.Unmarshal(subtypesJSON, &analysisType.Subtypes); err != nil {
			return nil, helper.NewError("unmarshaling subtypes", err)
		}
	}
	if len(schemaJSON) > 0 {
		schema := &model.OutputSchema{}
		if err := json.Unmarshal(schemaJSON, schema); err != nil {
			return nil, helper.NewError("unmarshaling output schema", err)
		}
		analysisType.OutputSchema = schema
	}

	return analysisType, nil
}
