package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/templui/taskfiles/internal/service"
	"github.com/templui/taskfiles/internal/ui"
)

// Multipart parts beyond this stay on disk instead of in memory
const multipartMemory = 8 << 20

type AttachmentHandler struct {
	attachmentService *service.AttachmentService
}

func NewAttachmentHandler(attachmentService *service.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{
		attachmentService: attachmentService,
	}
}

func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	attachments, err := h.attachmentService.List(r.Context(), identity(r), r.PathValue("taskID"))
	if err != nil {
		renderError(w, r, err, "failed to list attachments")
		return
	}

	data := make([]AttachmentResponse, 0, len(attachments))
	for _, a := range attachments {
		data = append(data, newAttachmentResponse(a))
	}
	ui.Render(w, http.StatusOK, data)
}

func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Tenant check first so foreign tasks are refused before the body is read
	err := h.attachmentService.AuthorizeTask(r.Context(), identity(r), r.PathValue("taskID"))
	if err != nil {
		renderError(w, r, err, "failed to upload attachment")
		return
	}

	err = r.ParseMultipartForm(multipartMemory)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			renderError(w, r, err, "upload too large")
			return
		}
		renderError(w, r, fmt.Errorf("%w: multipart form with a file field is required", service.ErrValidation), "invalid upload form")
		return
	}
	defer func() {
		removeErr := r.MultipartForm.RemoveAll()
		if removeErr != nil {
			slog.Warn("failed to remove multipart temp files", "error", removeErr)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		renderError(w, r, fmt.Errorf("%w: file is required", service.ErrValidation), "missing upload file")
		return
	}
	defer func() {
		closeErr := file.Close()
		if closeErr != nil {
			slog.Error("failed to close file", "error", closeErr)
		}
	}()

	attachment, err := h.attachmentService.Upload(r.Context(), identity(r), r.PathValue("taskID"), service.UploadInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Filename:    header.Filename,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		renderError(w, r, err, "failed to upload attachment")
		return
	}

	ui.Render(w, http.StatusCreated, newAttachmentResponse(attachment))
}

func (h *AttachmentHandler) Show(w http.ResponseWriter, r *http.Request) {
	attachment, err := h.attachmentService.Show(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		renderError(w, r, err, "failed to show attachment")
		return
	}

	ui.Render(w, http.StatusOK, newAttachmentResponse(attachment))
}

type updateAttachmentRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *AttachmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateAttachmentRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		renderError(w, r, err, "invalid update body")
		return
	}

	attachment, err := h.attachmentService.Update(r.Context(), identity(r), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		renderError(w, r, err, "failed to update attachment")
		return
	}

	ui.Render(w, http.StatusOK, newAttachmentResponse(attachment))
}

func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.attachmentService.Delete(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		renderError(w, r, err, "failed to delete attachment")
		return
	}

	ui.RenderOK(w)
}

func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	content, err := h.attachmentService.Download(r.Context(), identity(r), r.PathValue("id"))
	if err != nil {
		renderError(w, r, err, "failed to download attachment")
		return
	}
	defer func() {
		closeErr := content.Reader.Close()
		if closeErr != nil {
			slog.Error("failed to close attachment reader", "error", closeErr, "attachment_id", content.Attachment.ID)
		}
	}()

	a := content.Attachment
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": a.OriginalFilename})
	if disposition == "" {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", a.MimeType)
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	// Headers are sent; a copy failure can only be logged
	_, err = io.Copy(w, content.Reader)
	if err != nil {
		slog.Error("failed to stream attachment", "error", err, "attachment_id", a.ID)
	}
}
