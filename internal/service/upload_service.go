package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/mansoorceksport/upload-server/internal/domain"
)

// StorageConfig is the bucket and public address the uploads resolve to
type StorageConfig struct {
	Bucket    string
	PublicURL string
}

// UploadServiceImpl implements domain.UploadService
type UploadServiceImpl struct {
	uploader  domain.ObjectUploader
	bucket    string
	publicURL *url.URL
	newID     func() string
}

// NewUploadService creates a new upload service.
// The public URL must be absolute http(s); it is parsed once here.
func NewUploadService(uploader domain.ObjectUploader, cfg StorageConfig) (*UploadServiceImpl, error) {
	if uploader == nil {
		return nil, errors.New("object uploader is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("bucket is required")
	}

	base, err := url.Parse(cfg.PublicURL)
	if err != nil {
		return nil, fmt.Errorf("invalid public url: %w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("public url must be an absolute http(s) url, got %q", cfg.PublicURL)
	}

	return &UploadServiceImpl{
		uploader:  uploader,
		bucket:    cfg.Bucket,
		publicURL: base,
		newID:     uuid.NewString,
	}, nil
}

// UploadFileToStorage stores the request's stream under a fresh key and returns its public URL
func (s *UploadServiceImpl) UploadFileToStorage(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := s.objectKey(req.Folder, req.FileName)

	if err := s.uploader.Upload(ctx, s.bucket, key, req.ContentStream, req.ContentType); err != nil {
		return nil, &domain.UploadError{Key: key, Err: err}
	}

	return &domain.UploadResult{
		Key: key,
		URL: s.objectURL(key),
	}, nil
}

// objectURL resolves key against the public base as a relative reference
func (s *UploadServiceImpl) objectURL(key string) string {
	return s.publicURL.ResolveReference(&url.URL{Path: key}).String()
}

// objectKey builds "<folder>/<uuid>-<sanitized base><ext>".
// The base keeps its extension before sanitizing, so "a.pdf" becomes "apdf.pdf".
func (s *UploadServiceImpl) objectKey(folder domain.Folder, fileName string) string {
	base, ext := SplitFileName(fileName)
	return fmt.Sprintf("%s/%s-%s%s", folder, s.newID(), SanitizeName(base), ext)
}

// SplitFileName returns the last path segment of name and its extension.
// The extension starts at the last dot; a segment whose only dot is its first
// character has none, and neither does "..".
func SplitFileName(name string) (base, ext string) {
	if name == "" {
		return "", ""
	}
	base = path.Base(name)
	if base == "." || base == "/" {
		return "", ""
	}

	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 || base == ".." {
		return base, ""
	}
	return base, base[dot:]
}

// SanitizeName drops every character that is not an ASCII letter or digit
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		}
		return -1
	}, name)
}
