package documents

import (
	"slices"
	"time"

	"github.com/uptrace/bun"
)

// Document kinds. Each kind has its own artifact renderer on the client.
const (
	KindText           = "text"
	KindCode           = "code"
	KindSheet          = "sheet"
	KindMidsceneReport = "midscene_report"
)

var Kinds = []string{KindText, KindCode, KindSheet, KindMidsceneReport}

func ValidKind(kind string) bool {
	return slices.Contains(Kinds, kind)
}

// Document is an artifact produced by the assistant or by a test run.
type Document struct {
	bun.BaseModel `bun:"table:document,alias:d"`

	ID        string `bun:"id,pk,type:uuid" json:"id"`
	ProjectID string `bun:"project_id,type:uuid,nullzero" json:"projectId,omitempty"`
	Kind      string `bun:"kind,notnull" json:"kind"`
	Title     string `bun:"title,notnull" json:"title"`
	Content   string `bun:"content,notnull" json:"content"`
	// StorageKey points at a blob in object storage (midscene HTML reports).
	StorageKey string    `bun:"storage_key,notnull" json:"storageKey,omitempty"`
	CreatedBy  string    `bun:"created_by,notnull" json:"createdBy"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// CreateRequest describes a new document.
type CreateRequest struct {
	ProjectID  string
	Kind       string
	Title      string
	Content    string
	StorageKey string
}

// ListParams narrows List. Kind is optional.
type ListParams struct {
	ProjectID string
	Kind      string
	Limit     int
}
