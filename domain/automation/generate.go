package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emergent-company/testmind/domain/documents"
	"github.com/emergent-company/testmind/domain/testcases"
	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/adk"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/sse"
	"github.com/emergent-company/testmind/pkg/tracing"
)

// TypeDataAutomationConfig carries the stored config after generation.
const TypeDataAutomationConfig = "data-automation-config"

// Generation is the outcome of a generate call.
type Generation struct {
	Config *Config `json:"config"`
	Model  string  `json:"model"`
	// Degraded is set when the model output could not be parsed. The
	// active config is then left alone when one exists (KeptExisting),
	// otherwise the default script is stored.
	Degraded     bool   `json:"degraded"`
	KeptExisting bool   `json:"keptExisting,omitempty"`
	ParseError   string `json:"parseError,omitempty"`
}

// PrepareGenerate validates req and loads its test case. Handlers call it
// before the stream starts so validation errors are plain HTTP errors.
func (s *Service) PrepareGenerate(ctx context.Context, req GenerateRequest) (*testcases.TestCase, error) {
	return s.loadCase(ctx, req.TestCaseID, req.Framework)
}

// Generate streams a script for tc from the automation model. Every chunk
// is forwarded to onText and the accumulated script is written as artifact
// deltas to sink. The parsed script is upserted as the active config.
// Unparsable output keeps an existing active config, or stores the default
// script when there is none. The artifact's data-finish is always its last
// frame.
func (s *Service) Generate(ctx context.Context, tc *testcases.TestCase, req GenerateRequest, sink sse.Sink, onText func(string)) (*Generation, error) {
	ctx, span := tracing.Start(ctx, "automation.generate",
		attribute.String("testmind.test_case.id", tc.ID),
		attribute.String("testmind.framework", req.Framework),
	)
	defer span.End()

	art := sse.NewArtifactWriter(sink)
	_ = art.Begin(uuid.NewString(), documents.KindCode, fmt.Sprintf("%s (%s)", tc.Name, req.Framework))

	fail := func(err error) (*Generation, error) {
		tracing.Fail(span, err)
		_ = art.Fail(err)
		return nil, err
	}

	res, err := s.resolver.Resolve(ctx, req.Model, config.UsageAutomation)
	if err != nil {
		return fail(err)
	}

	system, prompt, err := BuildPrompts(req.Framework, tc, req.Instructions)
	if err != nil {
		return fail(fmt.Errorf("build prompt: %w", err))
	}

	var acc string
	raw, err := adk.StreamText(ctx, res.LLM, system, prompt, adk.GenerateConfig(&s.cfg.LLM), func(chunk string) {
		acc += chunk
		if onText != nil {
			onText(chunk)
		}
		_ = art.Delta(acc)
	})
	if err != nil {
		return fail(fmt.Errorf("generate script: %w", err))
	}

	gen := &Generation{Model: res.Model}
	// The script is persisted even if the client went away mid-stream.
	persistCtx := context.WithoutCancel(ctx)
	script, perr := ParseScript(req.Framework, raw)
	if perr != nil {
		gen.Degraded = true
		gen.ParseError = perr.Error()
		existing, err := s.store.FindActive(persistCtx, tc.ID, req.Framework)
		if err != nil {
			return fail(err)
		}
		if existing != nil {
			s.log.Warn("generated script did not parse, keeping active config",
				slog.String("testCaseID", tc.ID),
				slog.String("framework", req.Framework),
				logger.Error(perr))
			gen.Config = existing
			gen.KeptExisting = true
			_ = art.Delta(existing.Parameters)
			_ = sink.Write(sse.Event{Type: TypeDataAutomationConfig, Data: gen, Transient: true})
			_ = art.Finish()
			return gen, nil
		}
		s.log.Warn("generated script did not parse, storing default",
			slog.String("testCaseID", tc.ID),
			slog.String("framework", req.Framework),
			logger.Error(perr))
		script = DefaultScript(req.Framework)
	}

	cfg, err := s.Upsert(persistCtx, tc.ID, req.Framework, script)
	if err != nil {
		return fail(err)
	}
	gen.Config = cfg

	_ = art.Delta(script)
	_ = sink.Write(sse.Event{Type: TypeDataAutomationConfig, Data: gen, Transient: true})
	_ = art.Finish()
	return gen, nil
}
