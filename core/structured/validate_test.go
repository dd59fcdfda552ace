package structured

import (
	"context"
	"fmt"
	"testing"

	"github.com/LukeBaker08/velosight/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() *model.OutputSchema {
	return &model.OutputSchema{
		Name:   "status",
		Strict: true,
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"status"},
			"properties": map[string]any{
				"status": map[string]any{"type": "string"},
			},
		},
	}
}

func countingRepair(calls *int, replacement string) RepairFunc {
	return func(ctx context.Context, badText string) (string, error) {
		*calls++
		return replacement, nil
	}
}

func TestValidateAndRepair(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid JSON passes on first attempt", func(t *testing.T) {
		repairCalls := 0
		result, err := ValidateAndRepair(ctx, `{"status":"ok"}`, testSchema(), countingRepair(&repairCalls, ""), DefaultMaxAttempts)

		require.NoError(t, err)
		assert.Equal(t, 0, repairCalls, "Expected no repair calls for valid input")
		parsed, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "ok", parsed["status"])
	})

	t.Run("Commentary before the payload is tolerated", func(t *testing.T) {
		repairCalls := 0
		result, err := ValidateAndRepair(ctx, `Here is your answer: {"status":"ok"}`, testSchema(), countingRepair(&repairCalls, ""), DefaultMaxAttempts)

		require.NoError(t, err)
		assert.Equal(t, 0, repairCalls, "Expected the embedded object to parse without repair")
		parsed, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "ok", parsed["status"])
	})

	t.Run("Array payloads are supported", func(t *testing.T) {
		result, err := ValidateAndRepair(ctx, `The hypotheses are: [1, 2, 3]`, nil, nil, DefaultMaxAttempts)

		require.NoError(t, err)
		parsed, ok := result.([]any)
		require.True(t, ok)
		assert.Equal(t, 3, len(parsed))
	})

	t.Run("Earliest bracket wins when both are present", func(t *testing.T) {
		result, err := ValidateAndRepair(ctx, `[{"status":"ok"}]`, nil, nil, DefaultMaxAttempts)

		require.NoError(t, err)
		_, ok := result.([]any)
		assert.True(t, ok, "Expected the array to be parsed, not the inner object")
	})

	t.Run("Malformed JSON is repaired and retried", func(t *testing.T) {
		repairCalls := 0
		result, err := ValidateAndRepair(ctx, `{"status": broken`, testSchema(), countingRepair(&repairCalls, `{"status":"fixed"}`), DefaultMaxAttempts)

		require.NoError(t, err)
		assert.Equal(t, 1, repairCalls, "Expected exactly one repair call")
		parsed, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "fixed", parsed["status"])
	})

	t.Run("Schema violation triggers repair", func(t *testing.T) {
		repairCalls := 0
		result, err := ValidateAndRepair(ctx, `{"wrong_field": true}`, testSchema(), countingRepair(&repairCalls, `{"status":"ok"}`), DefaultMaxAttempts)

		require.NoError(t, err)
		assert.Equal(t, 1, repairCalls)
		parsed, ok := result.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "ok", parsed["status"])
	})

	t.Run("Exhausted repair budget yields terminal error", func(t *testing.T) {
		repairCalls := 0
		_, err := ValidateAndRepair(ctx, `not json at all`, testSchema(), countingRepair(&repairCalls, `still not json`), DefaultMaxAttempts)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnableToProduceValidJSON)
		assert.Equal(t, DefaultMaxAttempts, repairCalls, "Expected the repair budget to be spent exactly")
	})

	t.Run("Repair failure is surfaced", func(t *testing.T) {
		failing := func(ctx context.Context, badText string) (string, error) {
			return "", fmt.Errorf("model unavailable")
		}
		_, err := ValidateAndRepair(ctx, `not json`, nil, failing, DefaultMaxAttempts)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "model unavailable")
	})

	t.Run("Nil repair fails immediately on invalid input", func(t *testing.T) {
		_, err := ValidateAndRepair(ctx, `not json`, nil, nil, DefaultMaxAttempts)

		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnableToProduceValidJSON)
	})

	t.Run("Trailing content after the value fails parsing", func(t *testing.T) {
		repairCalls := 0
		_, err := ValidateAndRepair(ctx, `{"status":"ok"} trailing commentary`, nil, countingRepair(&repairCalls, `garbage`), 1)

		require.Error(t, err)
		assert.Equal(t, 1, repairCalls)
	})

	t.Run("No schema skips validation", func(t *testing.T) {
		result, err := ValidateAndRepair(ctx, `{"anything": 1}`, nil, nil, DefaultMaxAttempts)

		require.NoError(t, err)
		assert.NotNil(t, result)
	})
}

func TestExtractFirstJSON(t *testing.T) {
	t.Run("Object prefix stripped", func(t *testing.T) {
		assert.Equal(t, `{"a":1}`, extractFirstJSON(`prefix {"a":1}`))
	})

	t.Run("Array prefix stripped", func(t *testing.T) {
		assert.Equal(t, `[1,2]`, extractFirstJSON(`prefix [1,2]`))
	})

	t.Run("No bracket returns input unchanged", func(t *testing.T) {
		assert.Equal(t, "plain text", extractFirstJSON("plain text"))
	})
}
