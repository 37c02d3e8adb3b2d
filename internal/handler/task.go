package handler

import (
	"net/http"

	"github.com/templui/taskfiles/internal/model"
	"github.com/templui/taskfiles/internal/service"
	"github.com/templui/taskfiles/internal/ui"
)

type TaskHandler struct {
	taskService *service.TaskService
}

func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

type createProjectRequest struct {
	Name string `json:"name"`
}

func (h *TaskHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		renderError(w, r, err, "invalid project body")
		return
	}

	project, err := h.taskService.CreateProject(r.Context(), identity(r), req.Name)
	if err != nil {
		renderError(w, r, err, "failed to create project")
		return
	}

	ui.Render(w, http.StatusCreated, ProjectResponse{
		ID:        project.ID,
		TenantID:  project.TenantID,
		Name:      project.Name,
		CreatedAt: project.CreatedAt,
	})
}

type createTaskRequest struct {
	Title string `json:"title"`
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		renderError(w, r, err, "invalid task body")
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), identity(r), r.PathValue("projectID"), req.Title)
	if err != nil {
		renderError(w, r, err, "failed to create task")
		return
	}

	ui.Render(w, http.StatusCreated, newTaskResponse(task))
}

func (h *TaskHandler) Show(w http.ResponseWriter, r *http.Request) {
	task, err := h.taskService.Task(r.Context(), identity(r), r.PathValue("taskID"))
	if err != nil {
		renderError(w, r, err, "failed to show task")
		return
	}

	ui.Render(w, http.StatusOK, newTaskResponse(task))
}

func newTaskResponse(t *model.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		TenantID:  t.TenantID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		CreatedAt: t.CreatedAt,
	}
}
