package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/LukeBaker08/velosight/helper"
	"github.com/joho/godotenv"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	defaultModel      = "gpt-4o"
	defaultEmbedModel = "text-embedding-3-small"

	generateTimeout = 120 * time.Second
	embedTimeout    = 10 * time.Second
)

// OpenAIGenerator generates analyses through an OpenAI-compatible chat
// completions endpoint. It also exposes an embedding function so the same
// backend can serve retrieval.
type OpenAIGenerator struct {
	client     openai.Client
	model      string
	embedModel string
}

// NewOpenAIGenerator creates a generator configured from the environment:
// OPENAI_API_KEY (required), OPENAI_BASE_URL, OPENAI_MODEL and
// OPENAI_EMBED_MODEL.
func NewOpenAIGenerator() (*OpenAIGenerator, error) {
	// A local .env file supplies values not already set in the environment
	_ = godotenv.Load()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}
	embedModel := os.Getenv("OPENAI_EMBED_MODEL")
	if embedModel == "" {
		embedModel = defaultEmbedModel
	}

	return &OpenAIGenerator{
		client:     openai.NewClient(opts...),
		model:      model,
		embedModel: embedModel,
	}, nil
}

// Generate runs one chat completion. With a schema the model is put into
// structured output mode; without one plain JSON object mode is used. JSON
// object mode requires the word "json" somewhere in the prompt, so an
// instruction is appended when neither prompt mentions it.
func (g *OpenAIGenerator) Generate(ctx context.Context, system string, user string, opts *Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	if opts == nil {
		opts = &Options{}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(opts.Temperature),
	}

	if opts.Schema != nil && opts.Schema.Schema != nil {
		name := opts.Schema.Name
		if name == "" {
			name = "analysis_output"
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   name,
					Strict: openai.Bool(opts.Schema.Strict),
					Schema: opts.Schema.Schema,
				},
			},
		}
	} else {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
		if !mentionsJSON(system) && !mentionsJSON(user) {
			user = user + "\n\nRespond in JSON format."
		}
	}

	params.Messages = []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(user),
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", helper.NewError("chat completion", err)
	}
	if len(completion.Choices) == 0 {
		return "", helper.NewError("chat completion", fmt.Errorf("no choices returned"))
	}

	return completion.Choices[0].Message.Content, nil
}

// Repair asks the model to correct a malformed JSON payload. It satisfies
// structured.RepairFunc.
func (g *OpenAIGenerator) Repair(ctx context.Context, badText string) (string, error) {
	system := "You fix malformed JSON. Return only the corrected JSON, nothing else."
	user := "Fix this JSON so it parses:\n\n" + badText
	return g.Generate(ctx, system, user, &Options{})
}

// Embed returns the embedding for a single text.
func (g *OpenAIGenerator) Embed(text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
	defer cancel()

	resp, err := g.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(g.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: []string{text},
		},
	})
	if err != nil {
		return nil, helper.NewError("embedding", err)
	}
	if len(resp.Data) == 0 {
		return nil, helper.NewError("embedding", fmt.Errorf("no embedding returned"))
	}

	embedding := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

func mentionsJSON(text string) bool {
	return strings.Contains(strings.ToLower(text), "json")
}
