package model

import (
	"time"
)

// Task belongs to exactly one tenant and one project. TenantID always equals the
// project's tenant.
type Task struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	ProjectID string    `db:"project_id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
}
