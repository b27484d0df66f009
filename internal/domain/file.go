package domain

import (
	"context"
	"io"
)

// Folder is the key namespace an uploaded object is placed under.
type Folder string

const (
	FolderImages    Folder = "images"
	FolderDownloads Folder = "downloads"
)

// Folders lists every allowed folder
var Folders = []Folder{FolderImages, FolderDownloads}

// IsValid reports whether f is one of the allowed folders
func (f Folder) IsValid() bool {
	for _, allowed := range Folders {
		if f == allowed {
			return true
		}
	}
	return false
}

// ParseFolder converts raw input into a Folder, rejecting anything outside the allowed set
func ParseFolder(raw string) (Folder, error) {
	f := Folder(raw)
	if !f.IsValid() {
		return "", ErrInvalidFolder
	}
	return f, nil
}

// UploadRequest describes a single file to be stored.
// ContentStream is read exactly once by the upload and must not be shared.
type UploadRequest struct {
	Folder        Folder
	FileName      string
	ContentType   string
	ContentStream io.Reader
}

// Validate checks every field and reports all failures at once
func (r UploadRequest) Validate() error {
	var fields []FieldError
	if !r.Folder.IsValid() {
		fields = append(fields, FieldError{
			Field:   "folder",
			Message: "must be one of: images, downloads",
		})
	}
	if r.ContentStream == nil {
		fields = append(fields, FieldError{
			Field:   "contentStream",
			Message: "must be a readable stream",
		})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// UploadResult is returned once per successful upload
type UploadResult struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ObjectUploader transfers a stream to the object store
type ObjectUploader interface {
	// Upload stores body under bucket/key and returns once the transfer completes
	Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
}

// UploadService defines the file upload use case
type UploadService interface {
	UploadFileToStorage(ctx context.Context, req UploadRequest) (*UploadResult, error)
}

// BucketChecker probes that the configured bucket is reachable
type BucketChecker interface {
	CheckBucket(ctx context.Context, bucket string) error
}
