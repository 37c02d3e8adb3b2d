package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/taskfiles/internal/access"
	"github.com/templui/taskfiles/internal/model"
	"github.com/templui/taskfiles/internal/repository"
	"github.com/templui/taskfiles/internal/validation"
)

type TaskService struct {
	tenantRepo  repository.TenantRepository
	projectRepo repository.ProjectRepository
	taskRepo    repository.TaskRepository
}

func NewTaskService(
	tenantRepo repository.TenantRepository,
	projectRepo repository.ProjectRepository,
	taskRepo repository.TaskRepository,
) *TaskService {
	return &TaskService{
		tenantRepo:  tenantRepo,
		projectRepo: projectRepo,
		taskRepo:    taskRepo,
	}
}

func (s *TaskService) CreateProject(ctx context.Context, identity model.Identity, name string) (*model.Project, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// The token names a tenant; it must exist before anything is created under it.
	_, err := s.tenantRepo.ByID(ctx, identity.TenantID)
	if err != nil {
		return nil, err
	}

	project := &model.Project{
		ID:        uuid.New().String(),
		TenantID:  identity.TenantID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	err = s.projectRepo.Create(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

// CreateTask creates a task in a project of the requester's tenant. The task inherits the
// project's tenant.
func (s *TaskService) CreateTask(ctx context.Context, identity model.Identity, projectID, title string) (*model.Task, error) {
	project, err := s.projectRepo.ByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	err = access.Authorize(identity.TenantID, project.TenantID)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if err := validation.ValidateName(title); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	task := &model.Task{
		ID:        uuid.New().String(),
		TenantID:  project.TenantID,
		ProjectID: project.ID,
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}

	err = s.taskRepo.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return task, nil
}

func (s *TaskService) Task(ctx context.Context, identity model.Identity, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.ByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	err = access.Authorize(identity.TenantID, task.TenantID)
	if err != nil {
		return nil, err
	}

	return task, nil
}
