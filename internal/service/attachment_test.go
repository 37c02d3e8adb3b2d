package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/taskfiles/internal/access"
	"github.com/templui/taskfiles/internal/repository"
	"github.com/templui/taskfiles/internal/storage"
	"github.com/templui/taskfiles/internal/validation"
)

func pdfUpload(name string) UploadInput {
	body := "%PDF-1.4\n" + strings.Repeat("a", 100)
	return UploadInput{
		Name:        name,
		Description: "Test description",
		Filename:    "test-document.pdf",
		Size:        int64(len(body)),
		Body:        strings.NewReader(body),
	}
}

func TestAttachmentService_UploadThenShow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	created, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Test Attachment"))
	require.NoError(t, err)
	assert.Equal(t, "Test Attachment", created.Name)
	assert.Equal(t, task.TenantID, created.TenantID)
	assert.Equal(t, owner.UserID, created.UploadedBy)
	assert.Equal(t, "application/pdf", created.MimeType)
	assert.Equal(t, "test-document.pdf", created.OriginalFilename)
	assert.Equal(t, int64(109), created.Size)

	shown, err := env.attachments.Show(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, shown.ID)
	assert.Equal(t, created.Name, shown.Name)

	content, err := env.attachments.Download(ctx, owner, created.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(content.Reader)
	require.NoError(t, content.Reader.Close())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-1.4"))
	assert.Len(t, data, 109)
}

func TestAttachmentService_ListEmptyTask(t *testing.T) {
	env := newTestEnv(t)
	owner, task := env.newTenantWithTask(t, "t1")

	list, err := env.attachments.List(context.Background(), owner, task.ID)
	require.NoError(t, err)
	require.NotNil(t, list)
	assert.Empty(t, list)
}

func TestAttachmentService_ListUnknownTask(t *testing.T) {
	env := newTestEnv(t)
	owner, _ := env.newTenantWithTask(t, "t1")

	_, err := env.attachments.List(context.Background(), owner, "no-such-task")
	require.ErrorIs(t, err, repository.ErrTaskNotFound)
}

func TestAttachmentService_TenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")
	intruder, _ := env.newTenantWithTask(t, "t2")

	created, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Private"))
	require.NoError(t, err)

	_, err = env.attachments.List(ctx, intruder, task.ID)
	assert.ErrorIs(t, err, access.ErrForbidden, "list")

	_, err = env.attachments.Upload(ctx, intruder, task.ID, pdfUpload("Sneaky"))
	assert.ErrorIs(t, err, access.ErrForbidden, "upload")

	_, err = env.attachments.Show(ctx, intruder, created.ID)
	assert.ErrorIs(t, err, access.ErrForbidden, "show")

	_, err = env.attachments.Download(ctx, intruder, created.ID)
	assert.ErrorIs(t, err, access.ErrForbidden, "download")

	newName := "hijacked"
	_, err = env.attachments.Update(ctx, intruder, created.ID, &newName, nil)
	assert.ErrorIs(t, err, access.ErrForbidden, "update")

	err = env.attachments.Delete(ctx, intruder, created.ID)
	assert.ErrorIs(t, err, access.ErrForbidden, "delete")

	// Nothing the intruder did may have changed the attachment.
	shown, err := env.attachments.Show(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Private", shown.Name)
	assert.Empty(t, env.blobs.deletedKeys())

	list, err := env.attachments.List(ctx, owner, task.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestAttachmentService_AuthorizeTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")
	intruder, _ := env.newTenantWithTask(t, "t2")

	require.NoError(t, env.attachments.AuthorizeTask(ctx, owner, task.ID))
	require.ErrorIs(t, env.attachments.AuthorizeTask(ctx, intruder, task.ID), access.ErrForbidden)
	require.ErrorIs(t, env.attachments.AuthorizeTask(ctx, owner, "no-such-task"), repository.ErrTaskNotFound)
}

func TestAttachmentService_DeleteIsIdempotentSoftDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")
	intruder, _ := env.newTenantWithTask(t, "t2")

	created, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Doomed"))
	require.NoError(t, err)

	require.NoError(t, env.attachments.Delete(ctx, owner, created.ID))
	require.NoError(t, env.attachments.Delete(ctx, owner, created.ID))
	assert.Equal(t, []string{created.StorageKey}, env.blobs.deletedKeys(), "blob must be removed exactly once")

	_, err = env.attachments.Show(ctx, owner, created.ID)
	require.ErrorIs(t, err, repository.ErrAttachmentNotFound)

	_, err = env.attachments.Download(ctx, owner, created.ID)
	require.ErrorIs(t, err, repository.ErrAttachmentNotFound)

	list, err := env.attachments.List(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	audit, err := env.attachmentRepo.ByIDWithDeleted(ctx, created.ID)
	require.NoError(t, err)
	assert.NotNil(t, audit.DeletedAt)
	assert.NotNil(t, audit.BlobPurgedAt)

	// Already deleted or not, another tenant still gets forbidden.
	require.ErrorIs(t, env.attachments.Delete(ctx, intruder, created.ID), access.ErrForbidden)
	require.ErrorIs(t, env.attachments.Delete(ctx, owner, "never-existed"), repository.ErrAttachmentNotFound)
}

func TestAttachmentService_DownloadMissingBlob(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	created, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Purged externally"))
	require.NoError(t, err)

	// Remove the bytes behind the service's back.
	require.NoError(t, env.blobs.Storage.Delete(ctx, created.StorageKey))

	_, err = env.attachments.Download(ctx, owner, created.ID)
	require.ErrorIs(t, err, ErrBlobMissing)

	// Metadata is untouched.
	_, err = env.attachments.Show(ctx, owner, created.ID)
	require.NoError(t, err)
}

func TestAttachmentService_UploadValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	noFile := pdfUpload("no file")
	noFile.Body = nil

	noFilename := pdfUpload("no filename")
	noFilename.Filename = ""

	tests := []struct {
		name  string
		input UploadInput
	}{
		{name: "empty name", input: pdfUpload("   ")},
		{name: "missing file", input: noFile},
		{name: "missing filename", input: noFilename},
		{name: "empty body", input: UploadInput{Name: "x", Filename: "x.txt", Size: -1, Body: strings.NewReader("")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.attachments.Upload(ctx, owner, task.ID, tt.input)
			require.ErrorIs(t, err, ErrValidation)
		})
	}

	list, err := env.attachments.List(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAttachmentService_UploadStreamTooLarge(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	// Size unknown up front; the limit is enforced while streaming.
	in := UploadInput{Name: "stream", Filename: "big.bin", Size: -1, Body: strings.NewReader(strings.Repeat("z", (1<<20)+1))}
	_, err := env.attachments.Upload(ctx, owner, task.ID, in)
	require.ErrorIs(t, err, validation.ErrFileTooLarge)

	declared := pdfUpload("big")
	declared.Size = 2 << 20
	_, err = env.attachments.Upload(ctx, owner, task.ID, declared)
	require.ErrorIs(t, err, validation.ErrFileTooLarge)

	assert.Empty(t, env.blobs.deletedKeys(), "no compensating delete")
	list, err := env.attachments.List(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAttachmentService_UploadStorageFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	env.blobs.putErr = &storage.Error{Op: "put", Err: errors.New("disk full")}

	_, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Unlucky"))
	require.Error(t, err)
	var storageErr *storage.Error
	require.True(t, errors.As(err, &storageErr), "expected storage error, got %v", err)

	list, err := env.attachments.List(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Empty(t, list, "no metadata may persist when the blob write fails")
}

func TestAttachmentService_UploadCompensatesFailedInsert(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	insertErr := errors.New("insert failed")
	env.attachments.attachmentRepo = failingCreateRepo{AttachmentRepository: env.attachmentRepo, err: insertErr}

	_, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Orphan"))
	require.ErrorIs(t, err, insertErr)

	deleted := env.blobs.deletedKeys()
	require.Len(t, deleted, 1, "the stored blob must be removed again")

	_, err = env.blobs.Open(ctx, deleted[0])
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAttachmentService_UploadCleanupFailureKeepsOriginalError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	insertErr := errors.New("insert failed")
	env.attachments.attachmentRepo = failingCreateRepo{AttachmentRepository: env.attachmentRepo, err: insertErr}
	env.blobs.setDeleteErr(errors.New("permission denied"))

	_, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Orphan"))
	require.ErrorIs(t, err, insertErr)
	assert.NotContains(t, err.Error(), "permission denied")
}

func TestAttachmentService_UpdateMetadata(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	created, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Draft"))
	require.NoError(t, err)

	name := "  Final  "
	updated, err := env.attachments.Update(ctx, owner, created.ID, &name, nil)
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Name)
	assert.Equal(t, "Test description", updated.Description)

	description := "now with notes"
	updated, err = env.attachments.Update(ctx, owner, created.ID, nil, &description)
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Name)
	assert.Equal(t, "now with notes", updated.Description)

	empty := ""
	_, err = env.attachments.Update(ctx, owner, created.ID, &empty, nil)
	require.ErrorIs(t, err, ErrValidation)

	shown, err := env.attachments.Show(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", shown.Name)
	assert.Equal(t, created.StorageKey, shown.StorageKey)
}

func TestAttachmentService_PurgeRetriesFailedBlobDeletes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	created, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Sticky"))
	require.NoError(t, err)

	env.blobs.setDeleteErr(errors.New("storage offline"))
	require.NoError(t, env.attachments.Delete(ctx, owner, created.ID), "blob failures must not block the soft delete")

	_, err = env.attachments.Show(ctx, owner, created.ID)
	require.ErrorIs(t, err, repository.ErrAttachmentNotFound)

	result, err := env.attachments.PurgeBlobs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{Candidates: 1, Failed: 1}, result)

	env.blobs.setDeleteErr(nil)
	result, err = env.attachments.PurgeBlobs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{Candidates: 1, Purged: 1}, result)

	result, err = env.attachments.PurgeBlobs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{}, result)

	_, err = env.blobs.Open(ctx, created.StorageKey)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAttachmentService_PurgeDoesNotStallOnPermanentFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	stuck, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Stuck"))
	require.NoError(t, err)
	later, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Later"))
	require.NoError(t, err)

	env.blobs.failDeletesOf(stuck.StorageKey, errors.New("permission denied"))
	require.NoError(t, env.attachments.Delete(ctx, owner, stuck.ID))

	env.blobs.setDeleteErr(errors.New("storage offline"))
	require.NoError(t, env.attachments.Delete(ctx, owner, later.ID))
	env.blobs.setDeleteErr(nil)

	// One row per run. Stuck was attempted first so it is retried first; once it fails again
	// the later row is older and gets its turn.
	result, err := env.attachments.PurgeBlobs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{Candidates: 1, Failed: 1}, result)

	result, err = env.attachments.PurgeBlobs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, PurgeResult{Candidates: 1, Purged: 1}, result)

	_, err = env.blobs.Open(ctx, later.StorageKey)
	require.ErrorIs(t, err, storage.ErrNotFound)

	audit, err := env.attachmentRepo.ByIDWithDeleted(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Nil(t, audit.BlobPurgedAt)
	assert.Equal(t, 2, audit.PurgeAttempts)
	assert.NotNil(t, audit.PurgeAttemptedAt)

	for i := 0; i < 3; i++ {
		result, err = env.attachments.PurgeBlobs(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, PurgeResult{Candidates: 1, Failed: 1}, result)
	}
}

func TestAttachmentService_ConcurrentUploadsGetDistinctIDs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	const uploads = 8
	var wg sync.WaitGroup
	ids := make(chan string, uploads)
	errs := make(chan error, uploads)

	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Parallel"))
			if err != nil {
				errs <- err
				return
			}
			ids <- a.ID
		}()
	}
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, uploads)

	list, err := env.attachments.List(ctx, owner, task.ID)
	require.NoError(t, err)
	assert.Len(t, list, uploads)
}

func TestAttachmentService_ConcurrentDoubleDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	created, err := env.attachments.Upload(ctx, owner, task.ID, pdfUpload("Twice"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = env.attachments.Delete(ctx, owner, created.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	audit, err := env.attachmentRepo.ByIDWithDeleted(ctx, created.ID)
	require.NoError(t, err)
	assert.NotNil(t, audit.DeletedAt)
}

func TestAttachmentService_ListOnlyOwnTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, task := env.newTenantWithTask(t, "t1")

	project, err := env.tasks.CreateProject(ctx, owner, "second")
	require.NoError(t, err)
	other, err := env.tasks.CreateTask(ctx, owner, project.ID, "other task")
	require.NoError(t, err)

	_, err = env.attachments.Upload(ctx, owner, task.ID, pdfUpload("on task"))
	require.NoError(t, err)
	_, err = env.attachments.Upload(ctx, owner, other.ID, pdfUpload("on other"))
	require.NoError(t, err)

	list, err := env.attachments.List(ctx, owner, task.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "on task", list[0].Name)
}
