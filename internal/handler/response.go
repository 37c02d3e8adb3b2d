package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/templui/taskfiles/internal/access"
	"github.com/templui/taskfiles/internal/ctxkeys"
	"github.com/templui/taskfiles/internal/model"
	"github.com/templui/taskfiles/internal/repository"
	"github.com/templui/taskfiles/internal/service"
	"github.com/templui/taskfiles/internal/ui"
	"github.com/templui/taskfiles/internal/validation"
)

const maxJSONBody = 1 << 20

type AttachmentResponse struct {
	ID               string    `json:"id"`
	TaskID           string    `json:"task_id"`
	TenantID         string    `json:"tenant_id"`
	UploadedBy       string    `json:"uploaded_by"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `json:"mime_type"`
	Size             int64     `json:"size"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newAttachmentResponse(a *model.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:               a.ID,
		TaskID:           a.TaskID,
		TenantID:         a.TenantID,
		UploadedBy:       a.UploadedBy,
		Name:             a.Name,
		Description:      a.Description,
		OriginalFilename: a.OriginalFilename,
		MimeType:         a.MimeType,
		Size:             a.Size,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}
}

type TaskResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ProjectID string    `json:"project_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type ProjectResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// statusFromError maps domain errors onto HTTP status codes and client-safe messages.
// Anything unrecognised is a 500 with a generic message.
func statusFromError(err error) (int, string) {
	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, repository.ErrAttachmentNotFound):
		return http.StatusNotFound, "attachment not found"
	case errors.Is(err, repository.ErrTaskNotFound):
		return http.StatusNotFound, "task not found"
	case errors.Is(err, repository.ErrProjectNotFound):
		return http.StatusNotFound, "project not found"
	case errors.Is(err, repository.ErrTenantNotFound):
		return http.StatusNotFound, "tenant not found"
	case errors.Is(err, service.ErrBlobMissing):
		return http.StatusNotFound, "attachment content not found"
	case errors.Is(err, validation.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, service.ErrValidation):
		return http.StatusUnprocessableEntity, strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("request body too large: limit is %d bytes", maxErr.Limit)
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads this response
		return 499, "request canceled"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// renderError writes err as an error envelope and logs server-side failures.
func renderError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status, message := statusFromError(err)
	if status >= http.StatusInternalServerError {
		attrs := []any{"error", err, "path", r.URL.Path, "request_id", ctxkeys.RequestID(r.Context())}
		if identity, ok := ctxkeys.Identity(r.Context()); ok {
			attrs = append(attrs, "tenant_id", identity.TenantID, "user_id", identity.UserID)
		}
		slog.Error(msg, attrs...)
	}
	ui.RenderError(w, status, message)
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is required", service.ErrValidation)
		}
		return fmt.Errorf("%w: invalid JSON body", service.ErrValidation)
	}
	return nil
}

// identity returns the authenticated requester. Routes are wrapped with RequireAuth, so a
// missing identity is a wiring bug.
func identity(r *http.Request) model.Identity {
	id, _ := ctxkeys.Identity(r.Context())
	return id
}
