package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/taskfiles/internal/model"
)

var (
	ErrProjectNotFound = errors.New("project not found")
)

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	ByID(ctx context.Context, id string) (*model.Project, error)
}

type projectRepository struct {
	db *sqlx.DB
}

func NewProjectRepository(db *sqlx.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	query := `INSERT INTO projects (id, tenant_id, name, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, project.ID, project.TenantID, project.Name, project.CreatedAt)
	return err
}

func (r *projectRepository) ByID(ctx context.Context, id string) (*model.Project, error) {
	project := &model.Project{}
	query := `SELECT id, tenant_id, name, created_at FROM projects WHERE id = $1`

	err := r.db.GetContext(ctx, project, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	return project, nil
}
