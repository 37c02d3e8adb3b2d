package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/taskfiles/internal/model"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
)

type TenantRepository interface {
	Create(ctx context.Context, tenant *model.Tenant) error
	ByID(ctx context.Context, id string) (*model.Tenant, error)
}

type tenantRepository struct {
	db *sqlx.DB
}

func NewTenantRepository(db *sqlx.DB) TenantRepository {
	return &tenantRepository{db: db}
}

func (r *tenantRepository) Create(ctx context.Context, tenant *model.Tenant) error {
	query := `INSERT INTO tenants (id, name, created_at) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, tenant.ID, tenant.Name, tenant.CreatedAt)
	return err
}

func (r *tenantRepository) ByID(ctx context.Context, id string) (*model.Tenant, error) {
	tenant := &model.Tenant{}
	query := `SELECT id, name, created_at FROM tenants WHERE id = $1`

	err := r.db.GetContext(ctx, tenant, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	return tenant, nil
}
