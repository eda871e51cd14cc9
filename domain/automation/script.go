package automation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MidsceneScript is the YAML document midscene executes.
type MidsceneScript struct {
	Web   MidsceneTarget `yaml:"web" json:"web"`
	Tasks []MidsceneTask `yaml:"tasks" json:"tasks"`
}

type MidsceneTarget struct {
	URL            string `yaml:"url" json:"url"`
	ViewportWidth  int    `yaml:"viewportWidth,omitempty" json:"viewportWidth,omitempty"`
	ViewportHeight int    `yaml:"viewportHeight,omitempty" json:"viewportHeight,omitempty"`
}

// MidsceneTask is a named flow. Flow items are single-key maps such as
// {ai: "..."}, {aiAssert: "..."} or {sleep: 1000}.
type MidsceneTask struct {
	Name            string           `yaml:"name" json:"name"`
	ContinueOnError bool             `yaml:"continueOnError,omitempty" json:"continueOnError,omitempty"`
	Flow            []map[string]any `yaml:"flow" json:"flow"`
}

// CodeScript is the JSON envelope for playwright and selenium scripts.
type CodeScript struct {
	Language     string   `json:"language"`
	Code         string   `json:"code"`
	Dependencies []string `json:"dependencies,omitempty"`
}

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*[ \\t]*\\n(.*?)```")

// ExtractScript returns the body of the first fenced code block in raw, or
// raw itself when there is none.
func ExtractScript(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

func defaultLanguage(framework string) string {
	if framework == FrameworkSelenium {
		return "python"
	}
	return "typescript"
}

// ParseScript validates model output for framework and returns it in
// canonical form.
func ParseScript(framework, raw string) (string, error) {
	body := ExtractScript(raw)
	if body == "" {
		return "", errors.New("empty script")
	}

	if framework == FrameworkMidscene {
		var script MidsceneScript
		if err := yaml.Unmarshal([]byte(body), &script); err != nil {
			return "", fmt.Errorf("parse midscene yaml: %w", err)
		}
		if len(script.Tasks) == 0 {
			return "", errors.New("midscene script has no tasks")
		}
		for i, task := range script.Tasks {
			if strings.TrimSpace(task.Name) == "" {
				return "", fmt.Errorf("task %d has no name", i+1)
			}
			if len(task.Flow) == 0 {
				return "", fmt.Errorf("task %q has an empty flow", task.Name)
			}
		}
		out, err := yaml.Marshal(&script)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	var script CodeScript
	if err := json.Unmarshal([]byte(body), &script); err != nil {
		return "", fmt.Errorf("parse %s script json: %w", framework, err)
	}
	if strings.TrimSpace(script.Code) == "" {
		return "", errors.New("script has no code")
	}
	if script.Language == "" {
		script.Language = defaultLanguage(framework)
	}
	out, err := json.MarshalIndent(script, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DefaultScript is the empty script stored when model output cannot be
// parsed.
func DefaultScript(framework string) string {
	if framework == FrameworkMidscene {
		out, _ := yaml.Marshal(&MidsceneScript{Tasks: []MidsceneTask{}})
		return string(out)
	}
	out, _ := json.MarshalIndent(CodeScript{Language: defaultLanguage(framework)}, "", "  ")
	return string(out)
}
