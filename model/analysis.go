package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// OutputSchema is a JSON Schema stored on an analysis type. When present the
// generation client is asked to enforce it (structured output mode); when
// absent plain JSON mode is used.
type OutputSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

// Value implements driver.Valuer for JSONB storage.
func (s *OutputSchema) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB retrieval.
func (s *OutputSchema) Scan(value any) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, s)
}

// AnalysisType is a persisted analysis configuration row. It is created and
// edited through an administrative surface; the core only reads it.
type AnalysisType struct {
	ID                 uuid.UUID     `json:"id"`
	Key                string        `json:"key"`
	Name               string        `json:"name"`
	Description        string        `json:"description,omitempty"`
	SystemPrompt       string        `json:"system_prompt"`
	UserPromptTemplate string        `json:"user_prompt_template"`
	Enabled            bool          `json:"enabled"`
	SortOrder          int           `json:"sort_order"`
	RequiresSubtype    bool          `json:"requires_subtype"`
	Subtypes           []string      `json:"subtypes,omitempty"`
	OutputSchema       *OutputSchema `json:"output_schema,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}

// AnalysisRequest asks for one analysis run against a project.
type AnalysisRequest struct {
	ProjectID       uuid.UUID      `json:"project_id"`
	AnalysisTypeKey string         `json:"analysis_type_key"`
	Query           string         `json:"query,omitempty"`
	Subtype         string         `json:"subtype,omitempty"`
	Plan            *RetrievalPlan `json:"plan,omitempty"`
}

// ContextCounts records how many chunks per source made it into the
// assembled context, for observability.
type ContextCounts struct {
	Framework int `json:"framework"`
	Context   int `json:"context"`
	Project   int `json:"project"`
	Sentiment int `json:"sentiment"`
}

// AnalysisResult is the orchestrator's output. Failures are reported through
// Success and Error rather than a returned error; a failed run always carries
// zero context counts.
type AnalysisResult struct {
	Success         bool           `json:"success"`
	AnalysisType    string         `json:"analysis_type"`
	AnalysisSubtype string         `json:"analysis_subtype,omitempty"`
	Output          map[string]any `json:"output,omitempty"`
	Confidence      string         `json:"confidence,omitempty"`
	OverallRating   string         `json:"overall_rating,omitempty"`
	ContextCounts   ContextCounts  `json:"context_counts"`
	Error           string         `json:"error,omitempty"`
}

// AnalysisRecord is the persisted form of a completed analysis. The database
// assigns ID and CreatedAt on insert.
type AnalysisRecord struct {
	ID              uuid.UUID `json:"id"`
	ProjectID       uuid.UUID `json:"project_id"`
	AnalysisType    string    `json:"analysis_type"`
	AnalysisSubtype string    `json:"analysis_subtype,omitempty"`
	Confidence      string    `json:"confidence"`
	OverallRating   string    `json:"overall_rating,omitempty"`
	RawResult       Metadata  `json:"raw_result"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

// StatusDraft is the status assigned to freshly persisted analysis results.
const StatusDraft = "draft"
