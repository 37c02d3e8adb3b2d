package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/taskfiles/internal/model"
)

var (
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrInvalidAttachment  = errors.New("invalid attachment")
)

const attachmentColumns = `id, tenant_id, task_id, uploaded_by, name, description, storage_key,
	original_filename, mime_type, size, created_at, updated_at, deleted_at, blob_purged_at,
	purge_attempts, purge_attempted_at`

// AttachmentRepository persists attachment metadata. It does not authorize: callers pass the
// tenant they already checked.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *model.Attachment) error
	ByID(ctx context.Context, id string) (*model.Attachment, error)
	ByIDWithDeleted(ctx context.Context, id string) (*model.Attachment, error)
	ListByTask(ctx context.Context, taskID, tenantID string) ([]*model.Attachment, error)
	Update(ctx context.Context, attachment *model.Attachment) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	MarkBlobPurged(ctx context.Context, id string, at time.Time) error
	RecordPurgeFailure(ctx context.Context, id string, at time.Time) error
	PendingBlobPurges(ctx context.Context, limit int) ([]*model.Attachment, error)
}

type attachmentRepository struct {
	db *sqlx.DB
}

func NewAttachmentRepository(db *sqlx.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, a *model.Attachment) error {
	if strings.TrimSpace(a.Name) == "" || a.StorageKey == "" || a.TaskID == "" || a.TenantID == "" {
		return ErrInvalidAttachment
	}

	query := `INSERT INTO attachments (id, tenant_id, task_id, uploaded_by, name, description, storage_key,
	          original_filename, mime_type, size, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.TenantID,
		a.TaskID,
		a.UploadedBy,
		a.Name,
		a.Description,
		a.StorageKey,
		a.OriginalFilename,
		a.MimeType,
		a.Size,
		a.CreatedAt,
		a.UpdatedAt,
	)

	return err
}

func (r *attachmentRepository) ByID(ctx context.Context, id string) (*model.Attachment, error) {
	attachment := &model.Attachment{}
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE id = $1 AND deleted_at IS NULL`

	err := r.db.GetContext(ctx, attachment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, err
	}

	return attachment, nil
}

// ByIDWithDeleted also returns soft-deleted rows. Used for audit and idempotent deletes.
func (r *attachmentRepository) ByIDWithDeleted(ctx context.Context, id string) (*model.Attachment, error) {
	attachment := &model.Attachment{}
	query := `SELECT ` + attachmentColumns + ` FROM attachments WHERE id = $1`

	err := r.db.GetContext(ctx, attachment, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAttachmentNotFound
	}
	if err != nil {
		return nil, err
	}

	return attachment, nil
}

func (r *attachmentRepository) ListByTask(ctx context.Context, taskID, tenantID string) ([]*model.Attachment, error) {
	attachments := []*model.Attachment{}
	query := `SELECT ` + attachmentColumns + ` FROM attachments
	          WHERE task_id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	          ORDER BY created_at ASC, id ASC`

	err := r.db.SelectContext(ctx, &attachments, query, taskID, tenantID)
	if err != nil {
		return nil, err
	}

	return attachments, nil
}

func (r *attachmentRepository) Update(ctx context.Context, a *model.Attachment) error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrInvalidAttachment
	}

	query := `UPDATE attachments
	          SET name = $1, description = $2, updated_at = $3
	          WHERE id = $4 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, a.Name, a.Description, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrAttachmentNotFound
	}

	return nil
}

// SoftDelete sets deleted_at once. Deleting an already deleted row is a no-op success and keeps
// the first timestamp; only a row that never existed yields ErrAttachmentNotFound.
func (r *attachmentRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE attachments SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var count int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attachments WHERE id = $1`, id).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrAttachmentNotFound
	}

	return nil
}

func (r *attachmentRepository) MarkBlobPurged(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE attachments SET blob_purged_at = $1 WHERE id = $2 AND blob_purged_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}

// RecordPurgeFailure counts a failed blob delete and moves the row behind the other pending purges.
func (r *attachmentRepository) RecordPurgeFailure(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE attachments
	          SET purge_attempts = purge_attempts + 1, purge_attempted_at = $1
	          WHERE id = $2 AND blob_purged_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}

// PendingBlobPurges returns soft-deleted attachments whose bytes are still in storage. Rows never
// attempted come first, then the least recently failed, so a blob that keeps failing cannot
// starve the rest of the queue.
func (r *attachmentRepository) PendingBlobPurges(ctx context.Context, limit int) ([]*model.Attachment, error) {
	if limit <= 0 {
		limit = 100
	}

	attachments := []*model.Attachment{}
	query := `SELECT ` + attachmentColumns + ` FROM attachments
	          WHERE deleted_at IS NOT NULL AND blob_purged_at IS NULL
	          ORDER BY CASE WHEN purge_attempted_at IS NULL THEN 0 ELSE 1 END,
	                   purge_attempted_at ASC, deleted_at ASC, id ASC
	          LIMIT $1`

	err := r.db.SelectContext(ctx, &attachments, query, limit)
	if err != nil {
		return nil, err
	}

	return attachments, nil
}
