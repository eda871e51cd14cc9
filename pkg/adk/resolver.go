package adk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"google.golang.org/adk/model"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/metrics"
)

// Strategy names, in the order they are tried.
const (
	StrategyExplicit     = "explicit"
	StrategyUsageDefault = "usage-default"
	StrategyStatic       = "static"
)

// Resolution is a successfully resolved model handle.
type Resolution struct {
	LLM      model.LLM
	Model    string
	Strategy string
	// Attempts lists the strategies that failed before this one.
	Attempts []Attempt
}

// Attempt records one failed strategy.
type Attempt struct {
	Strategy string
	Model    string
	Err      error
}

// ResolveError is returned when every strategy failed.
type ResolveError struct {
	Usage    config.UsageType
	Attempts []Attempt
}

func (e *ResolveError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		if a.Model != "" {
			parts[i] = fmt.Sprintf("%s(%s): %v", a.Strategy, a.Model, a.Err)
		} else {
			parts[i] = fmt.Sprintf("%s: %v", a.Strategy, a.Err)
		}
	}
	return fmt.Sprintf("resolve %s model: %s", e.Usage, strings.Join(parts, "; "))
}

func (e *ResolveError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}

// strategy picks a candidate model name. It fails when it has no candidate.
type strategy struct {
	name     string
	pickName func(requested string, usage config.UsageType) (string, error)
}

// Resolver turns a requested model ID into a model handle by trying an
// ordered list of strategies: the explicit ID, the default for the usage
// type, then the static fallback. The first success wins. Nothing is cached,
// so each call walks the chain again.
type Resolver struct {
	cfg        *config.LLMConfig
	provider   ModelProvider
	strategies []strategy
	log        *slog.Logger
}

func NewResolver(cfg *config.LLMConfig, provider ModelProvider, log *slog.Logger) *Resolver {
	r := &Resolver{
		cfg:      cfg,
		provider: provider,
		log:      log.With(logger.Scope("model-resolver")),
	}
	r.strategies = []strategy{
		{name: StrategyExplicit, pickName: r.explicit},
		{name: StrategyUsageDefault, pickName: r.usageDefault},
		{name: StrategyStatic, pickName: r.static},
	}
	return r
}

var (
	errNoModelRequested = errors.New("no model requested")
	errNoUsageDefault   = errors.New("no default model for usage")
	errNoStaticFallback = errors.New("no static fallback model configured")
	errNilHandle        = errors.New("provider returned no model handle")
)

func (r *Resolver) explicit(requested string, _ config.UsageType) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return "", errNoModelRequested
	}
	if len(r.cfg.AvailableModels) > 0 && !slices.Contains(r.cfg.AvailableModels, requested) {
		return requested, fmt.Errorf("model %q is not available", requested)
	}
	return requested, nil
}

func (r *Resolver) usageDefault(_ string, usage config.UsageType) (string, error) {
	name := r.cfg.DefaultModel(usage)
	if name == "" {
		return "", errNoUsageDefault
	}
	return name, nil
}

func (r *Resolver) static(string, config.UsageType) (string, error) {
	if r.cfg.StaticFallbackModel == "" {
		return "", errNoStaticFallback
	}
	return r.cfg.StaticFallbackModel, nil
}

// Resolve returns a usable model handle or a *ResolveError listing every
// failed attempt. It never returns a nil handle without an error.
func (r *Resolver) Resolve(ctx context.Context, requested string, usage config.UsageType) (*Resolution, error) {
	var attempts []Attempt

	for _, s := range r.strategies {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, Attempt{Strategy: s.name, Err: err})
			break
		}

		name, err := s.pickName(requested, usage)
		if err == nil {
			var llm model.LLM
			llm, err = r.provider.CreateModelWithName(ctx, name)
			if err == nil && llm == nil {
				err = errNilHandle
			}
			if err == nil {
				if len(attempts) > 0 {
					r.log.Warn("model resolved through fallback",
						slog.String("usage", string(usage)),
						slog.String("requested", requested),
						slog.String("model", name),
						slog.String("strategy", s.name),
						slog.Int("failed_attempts", len(attempts)),
					)
				}
				metrics.ModelResolutions.WithLabelValues(string(usage), s.name).Inc()
				return &Resolution{LLM: llm, Model: name, Strategy: s.name, Attempts: attempts}, nil
			}
		}
		attempts = append(attempts, Attempt{Strategy: s.name, Model: name, Err: err})
	}

	metrics.ModelResolutions.WithLabelValues(string(usage), "failed").Inc()
	resolveErr := &ResolveError{Usage: usage, Attempts: attempts}
	r.log.Error("model resolution failed", logger.Error(resolveErr))
	return nil, resolveErr
}
