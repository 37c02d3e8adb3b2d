package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/taskfiles/internal/access"
	"github.com/templui/taskfiles/internal/model"
	"github.com/templui/taskfiles/internal/repository"
	"github.com/templui/taskfiles/internal/storage"
	"github.com/templui/taskfiles/internal/validation"
)

var (
	ErrValidation = errors.New("validation failed")
	// ErrBlobMissing means the metadata exists but its bytes are gone from storage.
	ErrBlobMissing = errors.New("attachment content not found")

	errUploadTooLarge = errors.New("upload exceeds size limit")
)

type AttachmentService struct {
	attachmentRepo repository.AttachmentRepository
	taskRepo       repository.TaskRepository
	storage        storage.Storage
	constraints    validation.FileConstraints
}

func NewAttachmentService(
	attachmentRepo repository.AttachmentRepository,
	taskRepo repository.TaskRepository,
	storage storage.Storage,
	maxUploadBytes int64,
) *AttachmentService {
	return &AttachmentService{
		attachmentRepo: attachmentRepo,
		taskRepo:       taskRepo,
		storage:        storage,
		constraints:    validation.FileConstraints{MaxSize: maxUploadBytes},
	}
}

// UploadInput is one uploaded file plus its user-supplied metadata.
type UploadInput struct {
	Name        string
	Description string
	Filename    string
	Size        int64 // Declared size, -1 if unknown
	Body        io.Reader
}

// AttachmentContent is an open attachment download. Callers must close Reader.
type AttachmentContent struct {
	Attachment *model.Attachment
	Reader     io.ReadCloser
}

// PurgeResult reports one run of PurgeBlobs.
type PurgeResult struct {
	Candidates int `json:"candidates"`
	Purged     int `json:"purged"`
	Failed     int `json:"failed"`
}

// List returns the live attachments of a task owned by the requester's tenant.
func (s *AttachmentService) List(ctx context.Context, identity model.Identity, taskID string) ([]*model.Attachment, error) {
	task, err := s.authorizedTask(ctx, identity, taskID)
	if err != nil {
		return nil, err
	}

	return s.attachmentRepo.ListByTask(ctx, task.ID, task.TenantID)
}

// Upload stores the bytes first and then the metadata. If the metadata insert fails the blob is
// removed again; a failure of that cleanup is only logged so the insert error reaches the caller.
func (s *AttachmentService) Upload(ctx context.Context, identity model.Identity, taskID string, in UploadInput) (*model.Attachment, error) {
	task, err := s.authorizedTask(ctx, identity, taskID)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	if err := validation.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.ValidateDescription(in.Description); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.Body == nil {
		return nil, fmt.Errorf("%w: file is required", ErrValidation)
	}
	if err := validation.ValidateUpload(in.Filename, in.Size, s.constraints); err != nil {
		if errors.Is(err, validation.ErrFileTooLarge) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	contentType, body, err := validation.DetectContentType(in.Filename, in.Body, s.constraints)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	counter := &countingReader{r: body, limit: s.constraints.MaxSize}
	storageKey, err := s.storage.Put(ctx, in.Filename, counter)
	if errors.Is(err, errUploadTooLarge) {
		return nil, validation.TooLarge(s.constraints.MaxSize)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	now := time.Now().UTC()
	attachment := &model.Attachment{
		ID:               uuid.New().String(),
		TenantID:         task.TenantID,
		TaskID:           task.ID,
		UploadedBy:       identity.UserID,
		Name:             name,
		Description:      in.Description,
		StorageKey:       storageKey,
		OriginalFilename: filepath.Base(in.Filename),
		MimeType:         contentType,
		Size:             counter.n,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.attachmentRepo.Create(ctx, attachment)
	if err != nil {
		// Cleanup must run even if the request context is already done.
		delErr := s.storage.Delete(context.WithoutCancel(ctx), storageKey)
		if delErr != nil {
			slog.Error("failed to delete blob during upload cleanup", "error", delErr, "storage_key", storageKey)
		}
		if errors.Is(err, repository.ErrInvalidAttachment) {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return nil, fmt.Errorf("failed to create attachment record: %w", err)
	}

	slog.Info("attachment uploaded",
		"attachment_id", attachment.ID,
		"task_id", task.ID,
		"tenant_id", task.TenantID,
		"size", attachment.Size,
	)
	return attachment, nil
}

// Show looks the attachment up before checking the tenant, so a real id owned by another tenant
// yields ErrForbidden rather than ErrAttachmentNotFound.
func (s *AttachmentService) Show(ctx context.Context, identity model.Identity, id string) (*model.Attachment, error) {
	attachment, err := s.attachmentRepo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	err = access.Authorize(identity.TenantID, attachment.TenantID)
	if err != nil {
		return nil, err
	}

	return attachment, nil
}

// Download opens the attachment bytes. Soft-deleted attachments are not found.
func (s *AttachmentService) Download(ctx context.Context, identity model.Identity, id string) (*AttachmentContent, error) {
	attachment, err := s.Show(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	reader, err := s.storage.Open(ctx, attachment.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Warn("attachment blob missing", "attachment_id", attachment.ID, "storage_key", attachment.StorageKey)
		return nil, ErrBlobMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return &AttachmentContent{Attachment: attachment, Reader: reader}, nil
}

// Update renames an attachment or changes its description. Nil fields are left untouched.
func (s *AttachmentService) Update(ctx context.Context, identity model.Identity, id string, name, description *string) (*model.Attachment, error) {
	attachment, err := s.Show(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if err := validation.ValidateName(trimmed); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		attachment.Name = trimmed
	}
	if description != nil {
		if err := validation.ValidateDescription(*description); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		attachment.Description = *description
	}
	attachment.UpdatedAt = time.Now().UTC()

	err = s.attachmentRepo.Update(ctx, attachment)
	if err != nil {
		return nil, err
	}

	return attachment, nil
}

// Delete soft-deletes the attachment and then removes its bytes best-effort. Deleting an
// attachment that is already soft-deleted succeeds again for the owning tenant.
func (s *AttachmentService) Delete(ctx context.Context, identity model.Identity, id string) error {
	attachment, err := s.attachmentRepo.ByIDWithDeleted(ctx, id)
	if err != nil {
		return err
	}

	err = access.Authorize(identity.TenantID, attachment.TenantID)
	if err != nil {
		return err
	}

	err = s.attachmentRepo.SoftDelete(ctx, attachment.ID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	if attachment.IsDeleted() {
		slog.Info("attachment already deleted", "attachment_id", attachment.ID)
	} else {
		slog.Info("attachment deleted", "attachment_id", attachment.ID, "tenant_id", attachment.TenantID)
	}

	if !attachment.IsBlobPurged() {
		s.purgeBlob(context.WithoutCancel(ctx), attachment)
	}

	return nil
}

// PurgeBlobs retries blob removal for soft-deleted attachments whose bytes are still stored.
func (s *AttachmentService) PurgeBlobs(ctx context.Context, limit int) (PurgeResult, error) {
	var result PurgeResult

	pending, err := s.attachmentRepo.PendingBlobPurges(ctx, limit)
	if err != nil {
		return result, fmt.Errorf("failed to list pending purges: %w", err)
	}
	result.Candidates = len(pending)

	for _, attachment := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if s.purgeBlob(ctx, attachment) {
			result.Purged++
		} else {
			result.Failed++
		}
	}

	if result.Candidates > 0 {
		slog.Info("blob purge finished", "candidates", result.Candidates, "purged", result.Purged, "failed", result.Failed)
	}
	return result, nil
}

// RunPurger calls PurgeBlobs every interval until ctx is done.
func (s *AttachmentService) RunPurger(ctx context.Context, interval time.Duration, batch int) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := s.PurgeBlobs(ctx, batch)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("blob purge failed", "error", err)
			}
		}
	}
}

func (s *AttachmentService) purgeBlob(ctx context.Context, attachment *model.Attachment) bool {
	err := s.storage.Delete(ctx, attachment.StorageKey)
	if err != nil {
		slog.Error("failed to delete blob from storage",
			"error", err,
			"attachment_id", attachment.ID,
			"storage_key", attachment.StorageKey,
			"attempt", attachment.PurgeAttempts+1,
		)
		recordErr := s.attachmentRepo.RecordPurgeFailure(ctx, attachment.ID, time.Now().UTC())
		if recordErr != nil {
			slog.Error("failed to record purge failure", "error", recordErr, "attachment_id", attachment.ID)
		}
		return false
	}

	err = s.attachmentRepo.MarkBlobPurged(ctx, attachment.ID, time.Now().UTC())
	if err != nil {
		slog.Error("failed to mark blob purged", "error", err, "attachment_id", attachment.ID)
		return false
	}

	return true
}

// AuthorizeTask reports whether the requester's tenant owns the task, without touching
// its attachments. Handlers call it before reading a request body.
func (s *AttachmentService) AuthorizeTask(ctx context.Context, identity model.Identity, taskID string) error {
	_, err := s.authorizedTask(ctx, identity, taskID)
	return err
}

// authorizedTask loads the task and checks it belongs to the requester's tenant.
func (s *AttachmentService) authorizedTask(ctx context.Context, identity model.Identity, taskID string) (*model.Task, error) {
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

type countingReader struct {
	r     io.Reader
	n     int64
	limit int64 // 0 means unlimited
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.limit > 0 && c.n > c.limit {
		return n, errUploadTooLarge
	}
	return n, err
}
