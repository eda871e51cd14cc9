// Package adk wires Google ADK-Go models into the server.
package adk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.uber.org/fx"
	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/logger"
)

var Module = fx.Module("adk",
	fx.Provide(
		provideModelFactory,
		fx.Annotate(
			func(f *ModelFactory) ModelProvider { return f },
			fx.As(new(ModelProvider)),
		),
		provideResolver,
	),
)

func provideModelFactory(cfg *config.Config, log *slog.Logger) *ModelFactory {
	return NewModelFactory(&cfg.LLM, log)
}

func provideResolver(cfg *config.Config, p ModelProvider, log *slog.Logger) *Resolver {
	return NewResolver(&cfg.LLM, p, log)
}

// ErrLLMDisabled is returned when no model backend is configured.
var ErrLLMDisabled = errors.New("no language model backend is configured")

// ModelProvider creates a model handle for a model name.
type ModelProvider interface {
	CreateModelWithName(ctx context.Context, modelName string) (model.LLM, error)
}

// ModelFactory creates ADK Gemini models from configuration.
type ModelFactory struct {
	cfg *config.LLMConfig
	log *slog.Logger
}

func NewModelFactory(cfg *config.LLMConfig, log *slog.Logger) *ModelFactory {
	return &ModelFactory{
		cfg: cfg,
		log: log.With(logger.Scope("adk")),
	}
}

// CreateModelWithName creates a Gemini model. Vertex AI is used when a GCP
// project and location are configured, the Gemini API key otherwise.
func (f *ModelFactory) CreateModelWithName(ctx context.Context, modelName string) (model.LLM, error) {
	if !f.cfg.IsEnabled() {
		return nil, ErrLLMDisabled
	}
	if strings.TrimSpace(modelName) == "" {
		return nil, fmt.Errorf("model name is required")
	}

	clientCfg := &genai.ClientConfig{}
	if f.cfg.UseVertexAI() {
		clientCfg.Backend = genai.BackendVertexAI
		clientCfg.Project = f.cfg.GCPProjectID
		clientCfg.Location = f.cfg.VertexAILocation
	} else {
		clientCfg.Backend = genai.BackendGeminiAPI
		clientCfg.APIKey = f.cfg.GoogleAPIKey
	}

	f.log.Debug("creating ADK Gemini model",
		slog.String("model", modelName),
		slog.Bool("vertex", f.cfg.UseVertexAI()),
	)

	llm, err := gemini.NewModel(ctx, modelName, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini model %q: %w", modelName, err)
	}
	return llm, nil
}

// GenerateConfig returns the default generation settings.
func (f *ModelFactory) GenerateConfig() *genai.GenerateContentConfig {
	return GenerateConfig(f.cfg)
}

func GenerateConfig(cfg *config.LLMConfig) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     ptrFloat32(float32(cfg.Temperature)),
		MaxOutputTokens: int32(cfg.MaxOutputTokens),
	}
}

// GenerateText runs a single non-streaming request and returns the joined text.
func GenerateText(ctx context.Context, llm model.LLM, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	req := &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		Config:   cfg,
	}

	var sb strings.Builder
	for resp, err := range llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
		sb.WriteString(ResponseText(resp))
	}
	return sb.String(), nil
}

// StreamText runs a streaming request, calling onChunk with each partial
// chunk, and returns the full text.
func StreamText(ctx context.Context, llm model.LLM, system, prompt string, cfg *genai.GenerateContentConfig, onChunk func(string)) (string, error) {
	if cfg == nil {
		cfg = &genai.GenerateContentConfig{}
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	req := &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		Config:   cfg,
	}

	var sb strings.Builder
	for resp, err := range llm.GenerateContent(ctx, req, true) {
		if err != nil {
			return sb.String(), fmt.Errorf("stream content: %w", err)
		}
		text := ResponseText(resp)
		if text == "" {
			continue
		}
		if resp.Partial {
			sb.WriteString(text)
			if onChunk != nil {
				onChunk(text)
			}
			continue
		}
		// The closing aggregated response repeats the streamed text.
		if sb.Len() == 0 {
			sb.WriteString(text)
			if onChunk != nil {
				onChunk(text)
			}
		}
	}
	return sb.String(), nil
}

// ResponseText concatenates the text parts of a response, skipping thoughts.
func ResponseText(resp *model.LLMResponse) string {
	if resp == nil || resp.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func ptrFloat32(v float32) *float32 {
	return &v
}
