package validation

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength        = 255
	MaxDescriptionLength = 2000
)

// ValidateName validates an attachment, project or task display name
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return errors.New("name is required")
	}

	if utf8.RuneCountInString(trimmed) > MaxNameLength {
		return errors.New("name is too long (max 255 characters)")
	}

	return nil
}

func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return errors.New("description is too long (max 2000 characters)")
	}
	return nil
}
