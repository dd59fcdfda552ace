package analysis

// DefaultConfidence is used when no confidence heuristic matches the output.
const DefaultConfidence = "Medium"

// ratingRule is one shape heuristic for the overall rating. The rules are
// evaluated in order and the first match wins; adding support for a new
// output shape is a table entry, not new control flow.
type ratingRule struct {
	name    string
	extract func(output map[string]any) (string, bool)
}

// overallRatingRules covers the output shapes that have accumulated across
// analysis types: current risk and delivery-confidence shapes, the legacy
// flat field, gateway reviews, and hypothesis-driven analyses.
var overallRatingRules = []ratingRule{
	{
		name: "risk-analysis",
		extract: func(output map[string]any) (string, bool) {
			return nestedString(output, "OverallRating", "riskRating")
		},
	},
	{
		name: "delivery-confidence",
		extract: func(output map[string]any) (string, bool) {
			return nestedString(output, "DeliveryConfidenceAssessment", "overallDeliveryConfidenceRating")
		},
	},
	{
		name: "legacy-flat",
		extract: func(output map[string]any) (string, bool) {
			return nestedString(output, "overallRating")
		},
	},
	{
		name: "gateway-review",
		extract: func(output map[string]any) (string, bool) {
			return nestedString(output, "GatewayReviewAssessment", "overallRating")
		},
	},
	{
		name: "hypothesis",
		extract: func(output map[string]any) (string, bool) {
			hypotheses, ok := output["hypotheses"].([]any)
			if !ok || len(hypotheses) == 0 {
				return "", false
			}
			top, ok := hypotheses[0].(map[string]any)
			if !ok {
				return "", false
			}
			return nestedString(top, "potentialImpact")
		},
	},
}

// ExtractOverallRating applies the shape heuristics in order and returns the
// first matching rating. An unmatched shape returns the empty string; the
// rating is deliberately not defaulted.
func ExtractOverallRating(output map[string]any) string {
	for _, rule := range overallRatingRules {
		if rating, ok := rule.extract(output); ok {
			return rating
		}
	}
	return ""
}

// ExtractConfidence reads the self-awareness confidence rating, defaulting
// to DefaultConfidence when the shape is absent.
func ExtractConfidence(output map[string]any) string {
	if confidence, ok := nestedString(output, "SelfAwareness", "ConfidenceLevelRating", "rating"); ok {
		return confidence
	}
	return DefaultConfidence
}

// nestedString walks a key path of nested objects and returns the string at
// the end of it.
func nestedString(output map[string]any, path ...string) (string, bool) {
	current := any(output)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = m[key]
		if !ok {
			return "", false
		}
	}
	s, ok := current.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
