package integrations

import (
	"slices"
	"strings"
)

// Capabilities describes what an integration can do.
type Capabilities struct {
	PushScripts bool `json:"pushScripts"`
	FileIssues  bool `json:"fileIssues"`
	Retries     bool `json:"retries"`
}

// Available is one integration type and whether the server has
// credentials for it.
type Available struct {
	Name             string       `json:"name"`
	DisplayName      string       `json:"displayName"`
	Description      string       `json:"description"`
	Capabilities     Capabilities `json:"capabilities"`
	RequiredSettings []string     `json:"requiredSettings"`
	Configured       bool         `json:"configured"`
}

// Registry lists the built-in integrations.
type Registry struct {
	integrations map[string]Available
	configured   map[string]func() bool
}

func NewRegistry(gitlab GitLab, jira Jira) *Registry {
	r := &Registry{
		integrations: make(map[string]Available),
		configured:   make(map[string]func() bool),
	}

	r.Register(Available{
		Name:        "gitlab",
		DisplayName: "GitLab",
		Description: "Push automation scripts to a branch and file failed runs as issues",
		Capabilities: Capabilities{
			PushScripts: true,
			FileIssues:  true,
			Retries:     true,
		},
		RequiredSettings: []string{"GITLAB_TOKEN", "GITLAB_PROJECT_ID"},
	}, gitlab.Configured)

	r.Register(Available{
		Name:             "jira",
		DisplayName:      "Jira",
		Description:      "File failed test runs as Jira issues",
		Capabilities:     Capabilities{FileIssues: true},
		RequiredSettings: []string{"JIRA_BASE_URL", "JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_PROJECT_KEY"},
	}, jira.Configured)

	return r
}

// Register adds an integration; configured reports whether it can be used.
func (r *Registry) Register(a Available, configured func() bool) {
	r.integrations[a.Name] = a
	r.configured[a.Name] = configured
}

// Get returns the integration by name with its current configured state.
func (r *Registry) Get(name string) (Available, bool) {
	a, ok := r.integrations[name]
	if ok {
		a.Configured = r.configured[name]()
	}
	return a, ok
}

// List returns every integration sorted by name.
func (r *Registry) List() []Available {
	out := make([]Available, 0, len(r.integrations))
	for name := range r.integrations {
		a, _ := r.Get(name)
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b Available) int { return strings.Compare(a.Name, b.Name) })
	return out
}
