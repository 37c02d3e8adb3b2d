package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/taskfiles/internal/model"
)

var (
	ErrTaskNotFound = errors.New("task not found")
)

type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	ByID(ctx context.Context, id string) (*model.Task, error)
}

type taskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	query := `INSERT INTO tasks (id, tenant_id, project_id, title, created_at)
	          VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.TenantID,
		task.ProjectID,
		task.Title,
		task.CreatedAt,
	)

	return err
}

func (r *taskRepository) ByID(ctx context.Context, id string) (*model.Task, error) {
	task := &model.Task{}
	query := `SELECT id, tenant_id, project_id, title, created_at FROM tasks WHERE id = $1`

	err := r.db.GetContext(ctx, task, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	return task, nil
}
