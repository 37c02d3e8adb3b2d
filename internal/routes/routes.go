package routes

import (
	"net/http"

	"github.com/templui/taskfiles/internal/app"
	"github.com/templui/taskfiles/internal/handler"
	"github.com/templui/taskfiles/internal/middleware"
)

// Multipart framing on top of the file itself
const uploadBodySlack = 1 << 20

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	health := handler.NewHealthHandler(app.DB)
	tasks := handler.NewTaskHandler(app.TaskService)
	attachments := handler.NewAttachmentHandler(app.AttachmentService)

	uploadLimit := middleware.RateLimit(app.UploadLimiter)
	var uploadBodyCap int64 // 0 leaves uploads unbounded, like UPLOAD_MAX_BYTES=0
	if app.Cfg.UploadMaxBytes > 0 {
		uploadBodyCap = app.Cfg.UploadMaxBytes + uploadBodySlack
	}
	uploadBody := middleware.LimitBody(uploadBodyCap)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	// Projects & Tasks
	mux.HandleFunc("POST /projects", middleware.RequireAuth(tasks.CreateProject))
	mux.HandleFunc("POST /projects/{projectID}/tasks", middleware.RequireAuth(tasks.CreateTask))
	mux.HandleFunc("GET /tasks/{taskID}", middleware.RequireAuth(tasks.Show))

	// Attachments
	mux.HandleFunc("GET /tasks/{taskID}/attachments", middleware.RequireAuth(attachments.List))
	mux.HandleFunc("POST /tasks/{taskID}/attachments", middleware.RequireAuth(uploadLimit(uploadBody(attachments.Upload))))
	mux.HandleFunc("GET /attachments/{id}", middleware.RequireAuth(attachments.Show))
	mux.HandleFunc("PATCH /attachments/{id}", middleware.RequireAuth(attachments.Update))
	mux.HandleFunc("DELETE /attachments/{id}", middleware.RequireAuth(attachments.Delete))
	mux.HandleFunc("GET /attachments/{id}/download", middleware.RequireAuth(attachments.Download))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", handler.NotFound)

	// Global middleware - executed in order (top to bottom)
	return middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.AuthMiddleware(app.AuthService), // Before logging so requests log their tenant
		middleware.RequestLogging,
	)
}
