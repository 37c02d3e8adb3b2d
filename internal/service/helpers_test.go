package service

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/templui/taskfiles/internal/db"
	"github.com/templui/taskfiles/internal/model"
	"github.com/templui/taskfiles/internal/repository"
	"github.com/templui/taskfiles/internal/storage"
)

type testEnv struct {
	tenants     *TenantService
	tasks       *TaskService
	attachments *AttachmentService

	attachmentRepo repository.AttachmentRepository
	blobs          *fakeStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	ctx := context.Background()
	conn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	database, err := db.Init(ctx, "sqlite", conn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.RunMigrations(ctx, database.DB, "sqlite"))

	local, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	blobs := &fakeStorage{Storage: local}

	tenantRepo := repository.NewTenantRepository(database)
	projectRepo := repository.NewProjectRepository(database)
	taskRepo := repository.NewTaskRepository(database)
	attachmentRepo := repository.NewAttachmentRepository(database)

	return &testEnv{
		tenants:        NewTenantService(tenantRepo),
		tasks:          NewTaskService(tenantRepo, projectRepo, taskRepo),
		attachments:    NewAttachmentService(attachmentRepo, taskRepo, blobs, 1<<20),
		attachmentRepo: attachmentRepo,
		blobs:          blobs,
	}
}

// newTenantWithTask creates a tenant, a project and a task and returns an identity acting for
// that tenant.
func (e *testEnv) newTenantWithTask(t *testing.T, name string) (model.Identity, *model.Task) {
	t.Helper()

	ctx := context.Background()
	tenant, err := e.tenants.Create(ctx, name)
	require.NoError(t, err)

	identity := model.Identity{UserID: "user-" + name, TenantID: tenant.ID}
	project, err := e.tasks.CreateProject(ctx, identity, name+" project")
	require.NoError(t, err)

	task, err := e.tasks.CreateTask(ctx, identity, project.ID, name+" task")
	require.NoError(t, err)

	return identity, task
}

// fakeStorage wraps a real backend and lets tests inject failures.
type fakeStorage struct {
	storage.Storage

	mu        sync.Mutex
	putErr    error
	deleteErr error
	failKeys  map[string]error
	deleted   []string
}

func (f *fakeStorage) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	f.mu.Lock()
	err := f.putErr
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return f.Storage.Put(ctx, name, r)
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	err := f.deleteErr
	if keyErr, ok := f.failKeys[key]; ok {
		err = keyErr
	}
	if err == nil {
		f.deleted = append(f.deleted, key)
	}
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Storage.Delete(ctx, key)
}

func (f *fakeStorage) setDeleteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteErr = err
}

// failDeletesOf makes every delete of key fail with err, regardless of deleteErr.
func (f *fakeStorage) failDeletesOf(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKeys == nil {
		f.failKeys = make(map[string]error)
	}
	f.failKeys[key] = err
}

func (f *fakeStorage) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

// failingCreateRepo makes Create fail while keeping every other repository method real.
type failingCreateRepo struct {
	repository.AttachmentRepository
	err error
}

func (r failingCreateRepo) Create(context.Context, *model.Attachment) error {
	return r.err
}
