package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

const fallbackContentType = "application/octet-stream"

// ErrFileTooLarge is returned when an upload exceeds FileConstraints.MaxSize
var ErrFileTooLarge = errors.New("file too large")

// FileConstraints defines validation rules for file uploads
type FileConstraints struct {
	// AllowedMimeTypes restricts detected types; nil allows any type
	AllowedMimeTypes map[string]bool
	MaxSize          int64
}

// ValidateUpload checks the metadata of an upload before any bytes are stored.
// size is the declared size; -1 means unknown.
func ValidateUpload(filename string, size int64, constraints FileConstraints) error {
	if strings.TrimSpace(filename) == "" {
		return errors.New("file is required")
	}

	if size == 0 {
		return errors.New("file is empty")
	}

	if constraints.MaxSize > 0 && size > constraints.MaxSize {
		return TooLarge(constraints.MaxSize)
	}

	return nil
}

// TooLarge builds the ErrFileTooLarge error for a limit of maxSize bytes.
// Whole megabytes are reported as MB, anything else in bytes.
func TooLarge(maxSize int64) error {
	if maxSize >= 1<<20 && maxSize%(1<<20) == 0 {
		return fmt.Errorf("%w: maximum size is %d MB", ErrFileTooLarge, maxSize/(1<<20))
	}
	return fmt.Errorf("%w: maximum size is %d bytes", ErrFileTooLarge, maxSize)
}

// DetectContentType resolves the media type of an upload and returns a reader that still yields
// the full content. The filename extension wins; otherwise the first 512 bytes are sniffed
// (http.DetectContentType reads at most 512 bytes).
func DetectContentType(filename string, r io.Reader, constraints FileConstraints) (string, io.Reader, error) {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(r, buffer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}
	if n == 0 {
		return "", nil, errors.New("file is empty")
	}
	full := io.MultiReader(bytes.NewReader(buffer[:n]), r)

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if contentType == "" {
		contentType = http.DetectContentType(buffer[:n])
	}
	if contentType == "" {
		contentType = fallbackContentType
	}

	if constraints.AllowedMimeTypes != nil {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || !constraints.AllowedMimeTypes[mediaType] {
			return "", nil, fmt.Errorf("invalid file type (detected: %s)", contentType)
		}
	}

	return contentType, full, nil
}
