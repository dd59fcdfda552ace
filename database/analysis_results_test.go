package database

import (
	"testing"

	"github.com/LukeBaker08/velosight/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnalysisResultsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewAnalysisResultsDBHandler", func(t *testing.T) {
		handler, err := NewAnalysisResultsDBHandler(database, true)
		assert.NoError(t, err, "Expected NewAnalysisResultsDBHandler to not return an error")
		require.NotNil(t, handler, "Expected NewAnalysisResultsDBHandler to return a non-nil instance")
	})

	t.Run("Invalid call NewAnalysisResultsDBHandler with nil database", func(t *testing.T) {
		_, err := NewAnalysisResultsDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating AnalysisResultsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestAnalysisResultsInsert(t *testing.T) {
	database := initDB(t)

	handler, err := NewAnalysisResultsDBHandler(database, true)
	require.NoError(t, err, "Expected NewAnalysisResultsDBHandler to not return an error")

	t.Run("Insert analysis result", func(t *testing.T) {
		record := &model.AnalysisRecord{
			ProjectID:       uuid.New(),
			AnalysisType:    "risk-assessment",
			AnalysisSubtype: "Gate 2",
			Confidence:      "High",
			OverallRating:   "Amber",
			RawResult: model.Metadata{
				"risks": []any{"schedule slip"},
			},
			Status: model.StatusDraft,
		}
		err := handler.InsertAnalysisResult(record)
		assert.NoError(t, err, "Expected InsertAnalysisResult to not return an error")
		assert.NotEqual(t, uuid.Nil, record.ID, "Expected ID to be assigned by the database")
		assert.False(t, record.CreatedAt.IsZero(), "Expected CreatedAt to be set by the database")
	})

	t.Run("Insert result with empty optional fields", func(t *testing.T) {
		record := &model.AnalysisRecord{
			ProjectID:    uuid.New(),
			AnalysisType: "custom-prompt",
			Confidence:   "Medium",
			RawResult:    model.Metadata{"output": "free-form analysis"},
			Status:       model.StatusDraft,
		}
		err := handler.InsertAnalysisResult(record)
		assert.NoError(t, err, "Expected insert without subtype and rating to not return an error")
		assert.NotEqual(t, uuid.Nil, record.ID)
	})
}
