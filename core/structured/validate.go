package structured

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LukeBaker08/velosight/helper"
	"github.com/LukeBaker08/velosight/model"
	"github.com/xeipuuv/gojsonschema"
)

// DefaultMaxAttempts is the number of repair cycles allowed before giving up.
const DefaultMaxAttempts = 2

// ErrUnableToProduceValidJSON is the terminal error after all repair attempts
// are exhausted. The orchestrator surfaces it as an analysis failure.
var ErrUnableToProduceValidJSON = fmt.Errorf("unable to produce valid JSON")

// RepairFunc asks the generation model to correct a malformed payload.
type RepairFunc func(ctx context.Context, badText string) (string, error)

// ValidateAndRepair parses raw as JSON, validates it against the schema when
// one is given, and drives up to maxAttempts repair cycles on failure. Models
// often prepend commentary before the JSON payload, so parsing starts at the
// first '{' or '[' found in the text.
func ValidateAndRepair(ctx context.Context, raw string, schema *model.OutputSchema, repair RepairFunc, maxAttempts int) (any, error) {
	if maxAttempts < 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 0; ; attempt++ {
		parsed, err := parseAndValidate(raw, schema)
		if err == nil {
			return parsed, nil
		}

		if attempt >= maxAttempts || repair == nil {
			slog.Debug("Giving up on JSON repair", slog.Int("attempts", attempt+1), slog.String("last_error", err.Error()))
			return nil, ErrUnableToProduceValidJSON
		}

		slog.Debug("Repairing invalid JSON", slog.Int("attempt", attempt+1), slog.String("error", err.Error()))

		repaired, repairErr := repair(ctx, raw)
		if repairErr != nil {
			return nil, helper.NewError("repair call", repairErr)
		}
		raw = repaired
	}
}

func parseAndValidate(raw string, schema *model.OutputSchema) (any, error) {
	candidate := extractFirstJSON(raw)

	var parsed any
	decoder := json.NewDecoder(strings.NewReader(candidate))
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	// Reject trailing garbage after the JSON value.
	if decoder.More() {
		return nil, fmt.Errorf("parsing JSON: trailing content after value")
	}

	if schema != nil && schema.Schema != nil {
		result, err := gojsonschema.Validate(
			gojsonschema.NewGoLoader(schema.Schema),
			gojsonschema.NewGoLoader(parsed),
		)
		if err != nil {
			return nil, fmt.Errorf("running schema validation: %w", err)
		}
		if !result.Valid() {
			return nil, fmt.Errorf("schema validation failed: %v", result.Errors())
		}
	}

	return parsed, nil
}

// extractFirstJSON slices raw from the first '{' or '[', whichever comes
// first. When neither is present the text is returned unchanged, which will
// predictably fail to parse and trigger a repair cycle.
func extractFirstJSON(raw string) string {
	objIdx := strings.Index(raw, "{")
	arrIdx := strings.Index(raw, "[")

	switch {
	case objIdx == -1 && arrIdx == -1:
		return raw
	case objIdx == -1:
		return raw[arrIdx:]
	case arrIdx == -1:
		return raw[objIdx:]
	case arrIdx < objIdx:
		return raw[arrIdx:]
	default:
		return raw[objIdx:]
	}
}
