package folders

import (
	"time"

	"github.com/uptrace/bun"
)

// Folder is a node in a project's test case tree. Path and Level are a
// materialized path computed when the folder is created.
type Folder struct {
	bun.BaseModel `bun:"table:folder,alias:f"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	ProjectID string    `bun:"project_id,notnull,type:uuid" json:"projectId"`
	ParentID  *string   `bun:"parent_id,type:uuid" json:"parentId"`
	Name      string    `bun:"name,notnull" json:"name"`
	Path      string    `bun:"path,notnull" json:"path"`
	Level     int       `bun:"level,notnull" json:"level"`
	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
}

// CreateFolderRequest is the body of POST /api/folders
type CreateFolderRequest struct {
	ProjectID string  `json:"projectId"`
	ParentID  *string `json:"parentId"`
	Name      string  `json:"name"`
}
