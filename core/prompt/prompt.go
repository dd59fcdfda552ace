package prompt

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultSystemID is the system instruction used when an unknown system id
// is requested. Unknown system ids degrade to the default instead of failing;
// unknown template ids are a configuration error and do fail.
const DefaultSystemID = "assurance-analyst-v1"

// ErrUnknownTemplate is returned when a template id has no registered template.
var ErrUnknownTemplate = fmt.Errorf("unknown prompt template")

// Vars carries the values substituted into prompt templates. Subtype is only
// substituted when non-empty; templates without a {subtype} token are valid.
type Vars struct {
	Context string
	Query   string
	Subtype string
}

// Prompt is a built system/user prompt pair ready for generation.
type Prompt struct {
	System string
	User   string
}

var (
	mu sync.RWMutex

	systemPrompts = map[string]string{
		DefaultSystemID: "You are an experienced project assurance analyst. " +
			"Ground every statement in the provided context; when the context is silent on a point, say so instead of inventing detail. " +
			"Be direct about risks and weaknesses.",
	}

	templates = map[string]string{
		"analysis-default-v1": "Context:\n{context}\n\nTask: {query}\n\nBase your analysis strictly on the context above.",
	}
)

// RegisterSystem adds or replaces a system instruction under the given id.
func RegisterSystem(id string, text string) {
	mu.Lock()
	defer mu.Unlock()
	systemPrompts[id] = text
}

// RegisterTemplate adds or replaces a user prompt template under the given id.
func RegisterTemplate(id string, text string) {
	mu.Lock()
	defer mu.Unlock()
	templates[id] = text
}

// GetSystem returns the system instruction for the given id, falling back to
// the default instruction when the id is unknown or empty.
func GetSystem(id string) string {
	mu.RLock()
	defer mu.RUnlock()
	if text, ok := systemPrompts[id]; ok {
		return text
	}
	return systemPrompts[DefaultSystemID]
}

// GetTemplate returns the registered template for the given id.
func GetTemplate(id string) (string, error) {
	mu.RLock()
	defer mu.RUnlock()
	if text, ok := templates[id]; ok {
		return text, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
}

// Render substitutes {context}, {query} and {subtype} in the template.
// Every occurrence of a token is replaced. {subtype} is left untouched when
// no subtype is supplied, so template authors can decide whether to carry it.
func Render(template string, vars Vars) string {
	rendered := strings.ReplaceAll(template, "{context}", vars.Context)
	rendered = strings.ReplaceAll(rendered, "{query}", vars.Query)
	if vars.Subtype != "" {
		rendered = strings.ReplaceAll(rendered, "{subtype}", vars.Subtype)
	}
	return rendered
}

// Build renders a prompt pair from literal template text. The system id may
// be unknown (it falls back to the default system instruction).
func Build(systemID string, template string, vars Vars) Prompt {
	return Prompt{
		System: GetSystem(systemID),
		User:   Render(template, vars),
	}
}

// BuildFromID renders a prompt pair from a registered template id. An unknown
// template id is a hard failure.
func BuildFromID(systemID string, templateID string, vars Vars) (Prompt, error) {
	template, err := GetTemplate(templateID)
	if err != nil {
		return Prompt{}, err
	}
	return Build(systemID, template, vars), nil
}
