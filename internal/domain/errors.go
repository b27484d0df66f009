package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrInvalidFolder = errors.New("invalid folder")
	ErrMissingStream = errors.New("content stream is required")
)

// FieldError describes one failing input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned before any I/O when the upload request is malformed
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets errors.Is match the sentinel behind each failing field
func (e *ValidationError) Is(target error) bool {
	for _, f := range e.Fields {
		switch {
		case f.Field == "folder" && target == ErrInvalidFolder:
			return true
		case f.Field == "contentStream" && target == ErrMissingStream:
			return true
		}
	}
	return false
}

// UploadError wraps a failure reported by the storage client
type UploadError struct {
	Key string
	Err error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %q failed: %v", e.Key, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
