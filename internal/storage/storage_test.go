package storage

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/testmind/internal/config"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty string", input: "", expected: "unnamed"},
		{name: "simple filename", input: "cases.xlsx", expected: "cases.xlsx"},
		{name: "uppercase to lowercase", input: "Login Cases.XLSX", expected: "login_cases.xlsx"},
		{name: "multiple spaces collapsed", input: "login   cases.xlsx", expected: "login_cases.xlsx"},
		{name: "special characters replaced", input: "cases@#$%v2.xlsx", expected: "cases_v2.xlsx"},
		{name: "cjk characters replaced", input: "测试用例.xlsx", expected: ".xlsx"},
		{name: "leading underscore trimmed", input: "_cases.xlsx", expected: "cases.xlsx"},
		{name: "only unsafe characters", input: "@@@", expected: "unnamed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_Length(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("a", 300) + ".xlsx")
	assert.Len(t, got, 200)
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("p1", "imports", "Login Cases.xlsx")

	parts := strings.Split(key, "/")
	require.Len(t, parts, 3)
	assert.Equal(t, "p1", parts[0])
	assert.Equal(t, "imports", parts[1])
	assert.True(t, strings.HasSuffix(parts[2], "-login_cases.xlsx"))
	assert.NotEqual(t, key, ObjectKey("p1", "imports", "Login Cases.xlsx"))
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	assert.Equal(t, "https://minio:9000", endpointURL("minio:9000", true))
	assert.Equal(t, "http://x", endpointURL("http://x", true))
}

func TestService_Disabled(t *testing.T) {
	svc, err := NewService(&config.Config{}, slog.Default())
	require.NoError(t, err)
	assert.False(t, svc.Enabled())

	ctx := context.Background()
	_, err = svc.Put(ctx, "k", []byte("x"), "")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = svc.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, svc.Delete(ctx, "k"), ErrDisabled)
}
