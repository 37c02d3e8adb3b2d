package model

import (
	"time"
)

type Attachment struct {
	ID               string     `db:"id"`
	TenantID         string     `db:"tenant_id"` // Copied from the owning task, never changes
	TaskID           string     `db:"task_id"`
	UploadedBy       string     `db:"uploaded_by"` // User ID of the uploader
	Name             string     `db:"name"`
	Description      string     `db:"description"`
	StorageKey       string     `db:"storage_key"` // Opaque key into blob storage
	OriginalFilename string     `db:"original_filename"`
	MimeType         string     `db:"mime_type"`
	Size             int64      `db:"size"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at"`         // Soft-delete marker
	BlobPurgedAt     *time.Time `db:"blob_purged_at"`     // Set once the bytes are gone from storage
	PurgeAttempts    int        `db:"purge_attempts"`     // Failed blob deletes so far
	PurgeAttemptedAt *time.Time `db:"purge_attempted_at"` // Last failed blob delete
}

func (a *Attachment) IsDeleted() bool {
	return a.DeletedAt != nil
}

func (a *Attachment) IsBlobPurged() bool {
	return a.BlobPurgedAt != nil
}
