package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/templui/taskfiles/internal/model"
	"github.com/templui/taskfiles/internal/repository"
	"github.com/templui/taskfiles/internal/validation"
)

type TenantService struct {
	repo repository.TenantRepository
}

func NewTenantService(repo repository.TenantRepository) *TenantService {
	return &TenantService{repo: repo}
}

func (s *TenantService) Create(ctx context.Context, name string) (*model.Tenant, error) {
	if err := validation.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	tenant := &model.Tenant{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	err := s.repo.Create(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	return tenant, nil
}

func (s *TenantService) ByID(ctx context.Context, id string) (*model.Tenant, error) {
	return s.repo.ByID(ctx, id)
}
