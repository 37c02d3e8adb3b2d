package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/templui/taskfiles/internal/db"
	"github.com/templui/taskfiles/internal/model"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	ctx := context.Background()
	conn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	database, err := db.Init(ctx, "sqlite", conn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	require.NoError(t, db.RunMigrations(ctx, database.DB, "sqlite"))
	return database
}

// seedTask creates tenant, project and task rows and returns the task.
func seedTask(t *testing.T, database *sqlx.DB, tenantID, taskID string) *model.Task {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()

	tenants := NewTenantRepository(database)
	if _, err := tenants.ByID(ctx, tenantID); err != nil {
		require.NoError(t, tenants.Create(ctx, &model.Tenant{ID: tenantID, Name: tenantID, CreatedAt: now}))
	}

	project := &model.Project{ID: "p-" + taskID, TenantID: tenantID, Name: "project", CreatedAt: now}
	require.NoError(t, NewProjectRepository(database).Create(ctx, project))

	task := &model.Task{ID: taskID, TenantID: tenantID, ProjectID: project.ID, Title: "task", CreatedAt: now}
	require.NoError(t, NewTaskRepository(database).Create(ctx, task))
	return task
}
