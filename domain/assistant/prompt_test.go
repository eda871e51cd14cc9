package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/testmind/domain/projects"
	"github.com/emergent-company/testmind/domain/testcases"
)

func loginCase() *testcases.TestCase {
	return &testcases.TestCase{
		ID:          "tc-1",
		ProjectID:   "p1",
		Name:        "Login <Test>",
		Description: "User signs in",
		Priority:    "high",
		Status:      "draft",
		Type:        "manual",
		Steps: []testcases.TestStep{
			{StepNumber: 1, Action: "Open login page", Expected: "Form shown"},
			{StepNumber: 2, Action: "Submit credentials", Expected: "Dashboard shown"},
		},
	}
}

func TestNormalizeLocale(t *testing.T) {
	for in, want := range map[string]string{
		"":      LocaleEN,
		"en":    LocaleEN,
		"fr-FR": LocaleEN,
		"zh":    LocaleZH,
		"zh-CN": LocaleZH,
		"ZH_tw": LocaleZH,
		"zhx":   LocaleEN,
	} {
		assert.Equal(t, want, NormalizeLocale(in), in)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	project := &projects.Project{ID: "p1", Name: "Shop", Description: "Web shop"}

	tests := []struct {
		name     string
		in       PromptInput
		contains []string
		excludes []string
	}{
		{
			name:     "chat with project",
			in:       PromptInput{Mode: ModeChat, Locale: "en", Project: project, TestCase: loginCase()},
			contains: []string{"TestMind", "Current project: Shop", "Web shop", "searchTestCases"},
			excludes: []string{"Open login page"},
		},
		{
			name:     "chat without project",
			in:       PromptInput{Mode: ModeChat},
			contains: []string{"No project is selected"},
		},
		{
			name: "sidebar carries the case and steps unescaped",
			in:   PromptInput{Mode: ModeSidebar, Locale: "en-US", TestCase: loginCase()},
			contains: []string{
				"Name: Login <Test>",
				"Priority: high",
				"1. Open login page => Form shown",
				"2. Submit credentials => Dashboard shown",
			},
			excludes: []string{"Current project"},
		},
		{
			name:     "sidebar zh",
			in:       PromptInput{Mode: ModeSidebar, Locale: "zh-CN", TestCase: loginCase()},
			contains: []string{"使用中文", "名称：Login <Test>", "1. Open login page"},
		},
		{
			name:     "explicit steps override the case steps",
			in:       PromptInput{Mode: ModeSidebar, TestCase: loginCase(), Steps: []testcases.TestStep{{StepNumber: 1, Action: "Only step"}}},
			contains: []string{"1. Only step"},
			excludes: []string{"Open login page"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := BuildSystemPrompt(tt.in)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestBuildSystemPrompt_SidebarNeedsCase(t *testing.T) {
	_, err := BuildSystemPrompt(PromptInput{Mode: ModeSidebar})
	assert.Error(t, err)
}

func TestWithHistory(t *testing.T) {
	assert.Equal(t, "hi", withHistory(nil, "hi"))

	out := withHistory([]HistoryEntry{{Role: "user", Text: "first"}, {Role: "assistant", Text: "reply"}}, "next")
	assert.Contains(t, out, "Prior conversation:\nuser: first\nassistant: reply\n")
	assert.Contains(t, out, "Current message:\nnext")

	long := make([]HistoryEntry, maxHistory+5)
	for i := range long {
		long[i] = HistoryEntry{Role: "user", Text: "m"}
	}
	long[0].Text = "dropped"
	assert.NotContains(t, withHistory(long, "x"), "dropped")
}
