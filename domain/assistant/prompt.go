package assistant

import (
	"fmt"
	"strings"

	"github.com/aymerick/raymond"

	"github.com/emergent-company/testmind/domain/projects"
	"github.com/emergent-company/testmind/domain/testcases"
)

// Mode selects the tool set and prompt of a turn.
type Mode string

const (
	// ModeChat is the project-wide assistant with the full tool set.
	ModeChat Mode = "chat"
	// ModeSidebar is bound to a single test case.
	ModeSidebar Mode = "sidebar"
)

func (m Mode) Valid() bool {
	return m == ModeChat || m == ModeSidebar
}

const (
	LocaleEN = "en"
	LocaleZH = "zh"
)

// NormalizeLocale maps a request locale to a prompt locale. Anything that is
// not Chinese falls back to English.
func NormalizeLocale(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if l == LocaleZH || strings.HasPrefix(l, "zh-") || strings.HasPrefix(l, "zh_") {
		return LocaleZH
	}
	return LocaleEN
}

// PromptInput is everything the system prompt interpolates.
type PromptInput struct {
	Mode     Mode
	Locale   string
	Project  *projects.Project
	TestCase *testcases.TestCase
	Steps    []testcases.TestStep
}

const layout = `{{> intro}}

{{#if sidebar}}{{> testcase}}{{else}}{{> project}}{{/if}}

{{> tools}}`

var partials = map[string]map[string]string{
	LocaleEN: {
		"intro": `You are TestMind, an assistant for software test engineers.
You help design, review and automate test cases. Be concise and answer in English.`,

		"project": `{{#if project}}Current project: {{{project.Name}}}{{#if project.Description}}
{{{project.Description}}}{{/if}}
Use searchTestCases before assuming a test case does not exist.{{else}}No project is selected. Ask the user to pick one before creating test cases.{{/if}}`,

		"testcase": `You are working on one test case. Every tool call applies to it.

Name: {{{tc.Name}}}
Priority: {{tc.Priority}}  Status: {{tc.Status}}  Type: {{tc.Type}}
{{#if tc.Description}}Description: {{{tc.Description}}}
{{/if}}{{#if tc.Preconditions}}Preconditions: {{{tc.Preconditions}}}
{{/if}}
Steps:
{{#each steps}}{{StepNumber}}. {{{Action}}}{{#if Expected}} => {{{Expected}}}{{/if}}
{{else}}(no steps yet)
{{/each}}`,

		"tools": `Rules:
- Use tools to change data. Never claim a change you did not make with a tool.
- Documents, test steps and scripts appear beside the chat; do not repeat their content in your reply.
- Automation frameworks: midscene, playwright, selenium. Default to midscene.
- Keep replies short and summarize what the tools did.`,
	},
	LocaleZH: {
		"intro": `你是 TestMind，一名面向软件测试工程师的助手。
你帮助设计、评审并自动化测试用例。回答要简洁，并使用中文。`,

		"project": `{{#if project}}当前项目：{{{project.Name}}}{{#if project.Description}}
{{{project.Description}}}{{/if}}
在认定某个测试用例不存在之前，先调用 searchTestCases。{{else}}尚未选择项目。创建测试用例前请让用户先选择项目。{{/if}}`,

		"testcase": `你正在处理一个测试用例，所有工具调用都作用于它。

名称：{{{tc.Name}}}
优先级：{{tc.Priority}}  状态：{{tc.Status}}  类型：{{tc.Type}}
{{#if tc.Description}}描述：{{{tc.Description}}}
{{/if}}{{#if tc.Preconditions}}前置条件：{{{tc.Preconditions}}}
{{/if}}
步骤：
{{#each steps}}{{StepNumber}}. {{{Action}}}{{#if Expected}} => {{{Expected}}}{{/if}}
{{else}}（暂无步骤）
{{/each}}`,

		"tools": `规则：
- 修改数据必须调用工具，不要声称做了工具未完成的修改。
- 文档、测试步骤和脚本会显示在对话旁边，回复中不要重复其内容。
- 自动化框架：midscene、playwright、selenium，默认使用 midscene。
- 回复保持简短，概述工具完成了什么。`,
	},
}

var systemTemplates = func() map[string]*raymond.Template {
	out := make(map[string]*raymond.Template, len(partials))
	for locale, parts := range partials {
		tpl := raymond.MustParse(layout)
		for name, src := range parts {
			tpl.RegisterPartial(name, src)
		}
		out[locale] = tpl
	}
	return out
}()

// BuildSystemPrompt renders the system prompt of a turn. Sidebar prompts
// carry the full test case and its steps; chat prompts only the project.
func BuildSystemPrompt(in PromptInput) (string, error) {
	if in.Mode == ModeSidebar && in.TestCase == nil {
		return "", fmt.Errorf("sidebar prompt needs a test case")
	}
	steps := in.Steps
	if steps == nil && in.TestCase != nil {
		steps = in.TestCase.Steps
	}

	ctx := map[string]any{
		"sidebar": in.Mode == ModeSidebar,
		"steps":   steps,
	}
	if in.Project != nil {
		ctx["project"] = in.Project
	}
	if in.TestCase != nil {
		ctx["tc"] = in.TestCase
	}

	out, err := systemTemplates[NormalizeLocale(in.Locale)].Exec(ctx)
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimSpace(out), nil
}
