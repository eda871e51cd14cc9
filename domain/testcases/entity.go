package testcases

import (
	"slices"
	"time"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

// TestCase is a manual or automated test owned by a project.
type TestCase struct {
	bun.BaseModel `bun:"table:test_case,alias:tc"`

	ID            string         `bun:"id,pk,type:uuid" json:"id"`
	ProjectID     string         `bun:"project_id,notnull,type:uuid" json:"projectId"`
	FolderID      *string        `bun:"folder_id,type:uuid" json:"folderId"`
	Name          string         `bun:"name,notnull" json:"name"`
	Description   string         `bun:"description,notnull" json:"description"`
	Preconditions string         `bun:"preconditions,notnull" json:"preconditions"`
	Priority      string         `bun:"priority,notnull" json:"priority"`
	Weight        string         `bun:"weight,notnull" json:"weight"`
	Status        string         `bun:"status,notnull" json:"status"`
	Nature        string         `bun:"nature,notnull" json:"nature"`
	Type          string         `bun:"type,notnull" json:"type"`
	Tags          pq.StringArray `bun:"tags,type:text[]" json:"tags"`
	CreatedBy     string         `bun:"created_by,notnull" json:"createdBy"`
	UpdatedBy     string         `bun:"updated_by,notnull" json:"updatedBy"`
	CreatedAt     time.Time      `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull,default:now()" json:"updatedAt"`

	Steps []TestStep `bun:"-" json:"steps,omitempty"`
}

// TestStep is one ordered step. StepNumber is unique within its test case.
type TestStep struct {
	bun.BaseModel `bun:"table:test_step,alias:ts"`

	ID         string `bun:"id,pk,type:uuid" json:"id"`
	TestCaseID string `bun:"test_case_id,notnull,type:uuid" json:"testCaseId"`
	StepNumber int    `bun:"step_number,notnull" json:"stepNumber"`
	Action     string `bun:"action,notnull" json:"action"`
	Expected   string `bun:"expected,notnull" json:"expected"`
	Type       string `bun:"type,notnull" json:"type"`
}

// Comment is a review note on a test case.
type Comment struct {
	bun.BaseModel `bun:"table:test_case_comment,alias:tcc"`

	ID         string    `bun:"id,pk,type:uuid" json:"id"`
	TestCaseID string    `bun:"test_case_id,notnull,type:uuid" json:"testCaseId"`
	AuthorID   string    `bun:"author_id,notnull" json:"authorId"`
	Content    string    `bun:"content,notnull" json:"content"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// Enumerated field values. The first entry of each list is the default.
var (
	Priorities = []string{"medium", "low", "high", "critical"}
	Weights    = []string{"medium", "low", "high"}
	Statuses   = []string{"draft", "ready", "approved", "deprecated"}
	Natures    = []string{"functional", "performance", "security", "usability", "compatibility"}
	CaseTypes  = []string{"manual", "automated"}
	StepTypes  = []string{"action", "verification", "setup"}
)

func validEnum(values []string, v string) bool {
	return slices.Contains(values, v)
}

// StepInput is a step as submitted by clients, tools and the importer.
type StepInput struct {
	Action   string `json:"action"`
	Expected string `json:"expected"`
	Type     string `json:"type,omitempty"`
}

// CreateTestCaseRequest is the body of POST /api/test-case
type CreateTestCaseRequest struct {
	ProjectID     string      `json:"projectId"`
	FolderID      *string     `json:"folderId"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Preconditions string      `json:"preconditions"`
	Priority      string      `json:"priority"`
	Weight        string      `json:"weight"`
	Status        string      `json:"status"`
	Nature        string      `json:"nature"`
	Type          string      `json:"type"`
	Tags          []string    `json:"tags"`
	Steps         []StepInput `json:"steps"`
}

// UpdateTestCaseRequest is the body of PUT /api/test-case/:id. Nil fields
// are left unchanged.
type UpdateTestCaseRequest struct {
	FolderID      *string   `json:"folderId"`
	Name          *string   `json:"name"`
	Description   *string   `json:"description"`
	Preconditions *string   `json:"preconditions"`
	Priority      *string   `json:"priority"`
	Weight        *string   `json:"weight"`
	Status        *string   `json:"status"`
	Nature        *string   `json:"nature"`
	Type          *string   `json:"type"`
	Tags          *[]string `json:"tags"`
}

// ListFilter narrows List. Zero values are ignored.
type ListFilter struct {
	ProjectID string
	FolderID  string
	Query     string
	Status    string
	Limit     int
}
