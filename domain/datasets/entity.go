package datasets

import (
	"time"

	"github.com/uptrace/bun"
)

// Column describes one dataset column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// ColumnTypes are the accepted column types. Empty means string.
var ColumnTypes = []string{"string", "number", "boolean"}

// Dataset holds parameter rows for data-driven runs of one test case.
type Dataset struct {
	bun.BaseModel `bun:"table:dataset,alias:ds"`

	ID         string           `bun:"id,pk,type:uuid" json:"id"`
	TestCaseID string           `bun:"test_case_id,notnull,type:uuid" json:"testCaseId"`
	Name       string           `bun:"name,notnull" json:"name"`
	Columns    []Column         `bun:"columns,type:jsonb,notnull" json:"columns"`
	Data       []map[string]any `bun:"data,type:jsonb,notnull" json:"data"`
	CreatedAt  time.Time        `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt  time.Time        `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// UpsertRequest is the body of PUT /api/dataset
type UpsertRequest struct {
	TestCaseID string           `json:"testCaseId"`
	Name       string           `json:"name"`
	Columns    []Column         `json:"columns"`
	Data       []map[string]any `json:"data"`
}
