package automation

import (
	"github.com/aymerick/raymond"

	"github.com/emergent-company/testmind/domain/testcases"
)

var systemTemplates = map[string]*raymond.Template{
	FrameworkMidscene: raymond.MustParse(`You write Midscene.js automation scripts.
Reply with a single YAML document in a ` + "```yaml" + ` block and nothing else.
The document has a "web" object with the "url" to open and a "tasks" list.
Every task has a "name" and a non-empty "flow". Flow items use "ai" for
actions, "aiAssert" for checks and "sleep" for waits in milliseconds.`),

	FrameworkPlaywright: raymond.MustParse(`You write Playwright tests in TypeScript.
Reply with a single JSON object in a ` + "```json" + ` block and nothing else:
{"language": "typescript", "code": "<the full test file>", "dependencies": []}`),

	FrameworkSelenium: raymond.MustParse(`You write Selenium tests in Python.
Reply with a single JSON object in a ` + "```json" + ` block and nothing else:
{"language": "python", "code": "<the full test file>", "dependencies": []}`),
}

var userTemplate = raymond.MustParse(`Write a {{framework}} script for this test case.

Name: {{{tc.Name}}}
{{#if tc.Description}}Description: {{{tc.Description}}}
{{/if}}{{#if tc.Preconditions}}Preconditions: {{{tc.Preconditions}}}
{{/if}}
Steps:
{{#each tc.Steps}}{{StepNumber}}. {{{Action}}}{{#if Expected}} => expected: {{{Expected}}}{{/if}}
{{else}}(no steps recorded; infer them from the description)
{{/each}}
{{#if instructions}}
Additional instructions:
{{{instructions}}}
{{/if}}`)

// BuildPrompts returns the system and user prompts for generating a script.
func BuildPrompts(framework string, tc *testcases.TestCase, instructions string) (string, string, error) {
	system, err := systemTemplates[framework].Exec(nil)
	if err != nil {
		return "", "", err
	}
	user, err := userTemplate.Exec(map[string]any{
		"framework":    framework,
		"tc":           tc,
		"instructions": instructions,
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}
