package adk

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"

	"github.com/emergent-company/testmind/internal/config"
	"github.com/emergent-company/testmind/internal/testutil"
)

func testLLMConfig() *config.LLMConfig {
	return &config.LLMConfig{
		ChatModel:           "chat-default",
		TitleModel:          "title-default",
		AutomationModel:     "automation-default",
		StaticFallbackModel: "static-model",
	}
}

func TestResolver_FallbackChain(t *testing.T) {
	errDown := errors.New("down")

	tests := []struct {
		name         string
		cfg          func(*config.LLMConfig)
		requested    string
		usage        config.UsageType
		fail         map[string]error
		wantModel    string
		wantStrategy string
		wantTried    []string
	}{
		{
			name:         "explicit wins",
			requested:    "gemini-2.5-pro",
			usage:        config.UsageChat,
			wantModel:    "gemini-2.5-pro",
			wantStrategy: StrategyExplicit,
			wantTried:    []string{"gemini-2.5-pro"},
		},
		{
			name:         "explicit fails, usage default wins",
			requested:    "broken",
			usage:        config.UsageChat,
			fail:         map[string]error{"broken": errDown},
			wantModel:    "chat-default",
			wantStrategy: StrategyUsageDefault,
			wantTried:    []string{"broken", "chat-default"},
		},
		{
			name:         "no request goes straight to usage default",
			usage:        config.UsageTitle,
			wantModel:    "title-default",
			wantStrategy: StrategyUsageDefault,
			wantTried:    []string{"title-default"},
		},
		{
			name:         "explicit and usage default fail, static wins",
			requested:    "broken",
			usage:        config.UsageAutomation,
			fail:         map[string]error{"broken": errDown, "automation-default": errDown},
			wantModel:    "static-model",
			wantStrategy: StrategyStatic,
			wantTried:    []string{"broken", "automation-default", "static-model"},
		},
		{
			name:         "model outside the available list is not created",
			cfg:          func(c *config.LLMConfig) { c.AvailableModels = []string{"chat-default"} },
			requested:    "rogue-model",
			usage:        config.UsageChat,
			wantModel:    "chat-default",
			wantStrategy: StrategyUsageDefault,
			wantTried:    []string{"chat-default"},
		},
		{
			name:         "usage without default falls to static",
			requested:    "",
			usage:        config.UsageArtifact,
			wantModel:    "static-model",
			wantStrategy: StrategyStatic,
			wantTried:    []string{"static-model"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testLLMConfig()
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			provider := &testutil.FakeProvider{Fail: tt.fail}
			r := NewResolver(cfg, provider, slog.Default())

			res, err := r.Resolve(context.Background(), tt.requested, tt.usage)
			require.NoError(t, err)
			require.NotNil(t, res.LLM)
			assert.Equal(t, tt.wantModel, res.Model)
			assert.Equal(t, tt.wantModel, res.LLM.Name())
			assert.Equal(t, tt.wantStrategy, res.Strategy)
			assert.Equal(t, tt.wantTried, provider.Requested)
		})
	}
}

func TestResolver_AllFail(t *testing.T) {
	errA := errors.New("explicit boom")
	errB := errors.New("default boom")
	errC := errors.New("static boom")
	provider := &testutil.FakeProvider{Fail: map[string]error{
		"wanted": errA, "chat-default": errB, "static-model": errC,
	}}
	r := NewResolver(testLLMConfig(), provider, slog.Default())

	res, err := r.Resolve(context.Background(), "wanted", config.UsageChat)
	require.Error(t, err)
	assert.Nil(t, res)

	var resolveErr *ResolveError
	require.ErrorAs(t, err, &resolveErr)
	require.Len(t, resolveErr.Attempts, 3)
	assert.Equal(t, StrategyExplicit, resolveErr.Attempts[0].Strategy)
	assert.Equal(t, StrategyUsageDefault, resolveErr.Attempts[1].Strategy)
	assert.Equal(t, StrategyStatic, resolveErr.Attempts[2].Strategy)

	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.ErrorIs(t, err, errC)
	assert.Contains(t, err.Error(), "explicit(wanted): explicit boom")
	assert.Contains(t, err.Error(), "static(static-model): static boom")
}

func TestResolver_NilHandleIsAFailure(t *testing.T) {
	provider := &testutil.FakeProvider{Models: map[string]model.LLM{"chat-default": nil}}
	r := NewResolver(testLLMConfig(), provider, slog.Default())

	res, err := r.Resolve(context.Background(), "", config.UsageChat)
	require.NoError(t, err)
	assert.Equal(t, "static-model", res.Model)
	require.Len(t, res.Attempts, 2)
	assert.ErrorIs(t, res.Attempts[1].Err, errNilHandle)
}

func TestResolver_NoStaticFallbackConfigured(t *testing.T) {
	cfg := &config.LLMConfig{}
	r := NewResolver(cfg, &testutil.FakeProvider{}, slog.Default())

	_, err := r.Resolve(context.Background(), "", config.UsageChat)
	assert.ErrorIs(t, err, errNoModelRequested)
	assert.ErrorIs(t, err, errNoUsageDefault)
	assert.ErrorIs(t, err, errNoStaticFallback)
}

func TestResolver_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := &testutil.FakeProvider{}
	r := NewResolver(testLLMConfig(), provider, slog.Default())

	_, err := r.Resolve(ctx, "x", config.UsageChat)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, provider.Requested)
}

func TestResolver_RepeatsChainEveryCall(t *testing.T) {
	provider := &testutil.FakeProvider{Fail: map[string]error{"flaky": errors.New("down")}}
	r := NewResolver(testLLMConfig(), provider, slog.Default())

	for i := 0; i < 2; i++ {
		res, err := r.Resolve(context.Background(), "flaky", config.UsageChat)
		require.NoError(t, err)
		assert.Equal(t, "chat-default", res.Model)
	}
	assert.Equal(t, []string{"flaky", "chat-default", "flaky", "chat-default"}, provider.Requested)
}
