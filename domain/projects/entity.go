package projects

import (
	"time"

	"github.com/uptrace/bun"
)

// Project owns every other resource. All queries are scoped by project id.
type Project struct {
	bun.BaseModel `bun:"table:project,alias:p"`

	ID          string    `bun:"id,pk,type:uuid" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description,notnull" json:"description"`
	OwnerID     string    `bun:"owner_id,notnull" json:"ownerId"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:now()" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:now()" json:"updatedAt"`
}

// CreateProjectRequest is the body of POST /api/projects
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
