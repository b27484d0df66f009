package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/upload-server/internal/domain"
	"github.com/mansoorceksport/upload-server/internal/metrics"
	"github.com/mansoorceksport/upload-server/internal/middleware"
	"github.com/mansoorceksport/upload-server/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// mockUploadService implements domain.UploadService for testing
type mockUploadService struct {
	lastRequest domain.UploadRequest
	lastBody    string
	calls       int
	err         error
}

func (m *mockUploadService) UploadFileToStorage(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	m.calls++
	m.lastRequest = req
	if err := req.Validate(); err != nil {
		return nil, err
	}
	data, _ := io.ReadAll(req.ContentStream)
	m.lastBody = string(data)
	if m.err != nil {
		return nil, m.err
	}
	key := string(req.Folder) + "/abc-" + req.FileName
	return &domain.UploadResult{Key: key, URL: "https://cdn.example.com/" + key}, nil
}

type multipartFile struct {
	fileName    string
	contentType string
	content     string
}

func newUploadRequest(t *testing.T, target string, fields map[string]string, file *multipartFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if file != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+file.fileName+`"`)
		if file.contentType != "" {
			header.Set("Content-Type", file.contentType)
		}
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(file.content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", target, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func newTestApp(svc domain.UploadService, maxUploadMB int64) *fiber.App {
	app := fiber.New()
	h := NewUploadHandler(svc, maxUploadMB, zap.NewNop())
	app.Post("/v1/uploads", h.Upload)
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestUploadHandler_Success(t *testing.T) {
	svc := &mockUploadService{}
	app := newTestApp(svc, 5)

	req := newUploadRequest(t, "/v1/uploads", map[string]string{"folder": "downloads"}, &multipartFile{
		fileName:    "report.csv",
		contentType: "text/csv",
		content:     "a,b,c",
	})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "downloads/abc-report.csv", data["key"])
	assert.Equal(t, "https://cdn.example.com/downloads/abc-report.csv", data["url"])

	assert.Equal(t, domain.FolderDownloads, svc.lastRequest.Folder)
	assert.Equal(t, "report.csv", svc.lastRequest.FileName)
	assert.Equal(t, "text/csv", svc.lastRequest.ContentType)
	assert.Equal(t, "a,b,c", svc.lastBody)
}

func TestUploadHandler_FolderFromQueryAndDefaults(t *testing.T) {
	t.Run("query parameter", func(t *testing.T) {
		svc := &mockUploadService{}
		app := newTestApp(svc, 5)

		req := newUploadRequest(t, "/v1/uploads?folder=downloads", nil, &multipartFile{fileName: "a.bin", content: "x"})
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Equal(t, domain.FolderDownloads, svc.lastRequest.Folder)
		assert.Equal(t, defaultContentType, svc.lastRequest.ContentType)
	})

	t.Run("default folder", func(t *testing.T) {
		svc := &mockUploadService{}
		app := newTestApp(svc, 5)

		req := newUploadRequest(t, "/v1/uploads", nil, &multipartFile{fileName: "a.png", contentType: "image/png", content: "x"})
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
		assert.Equal(t, domain.FolderImages, svc.lastRequest.Folder)
	})
}

func TestUploadHandler_MissingFile(t *testing.T) {
	svc := &mockUploadService{}
	app := newTestApp(svc, 5)

	req := newUploadRequest(t, "/v1/uploads", map[string]string{"folder": "images"}, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, svc.calls)
}

func TestUploadHandler_InvalidFolder(t *testing.T) {
	svc := &mockUploadService{}
	app := newTestApp(svc, 5)

	req := newUploadRequest(t, "/v1/uploads", map[string]string{"folder": "videos"}, &multipartFile{fileName: "clip.mp4", content: "x"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	fields := body["fields"].([]interface{})
	require.Len(t, fields, 1)
	assert.Equal(t, "folder", fields[0].(map[string]interface{})["field"])
}

func TestUploadHandler_TooLarge(t *testing.T) {
	svc := &mockUploadService{}
	app := newTestApp(svc, 1)

	req := newUploadRequest(t, "/v1/uploads", nil, &multipartFile{
		fileName: "big.bin",
		content:  string(bytes.Repeat([]byte("a"), 1024*1024+1)),
	})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, 0, svc.calls)
}

func TestUploadHandler_StorageFailure(t *testing.T) {
	svc := &mockUploadService{err: &domain.UploadError{Key: "images/abc-a.png", Err: errors.New("timeout")}}
	app := newTestApp(svc, 5)

	req := newUploadRequest(t, "/v1/uploads", nil, &multipartFile{fileName: "a.png", content: "x"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Nil(t, body["data"])
}

func TestUploadHandler_UnexpectedFailure(t *testing.T) {
	svc := &mockUploadService{err: errors.New("boom")}
	app := newTestApp(svc, 5)

	req := newUploadRequest(t, "/v1/uploads", nil, &multipartFile{fileName: "a.png", content: "x"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestUploadHandler_InvalidFolderMetricLabel(t *testing.T) {
	counter := metrics.UploadsTotal.WithLabelValues("invalid", metrics.OutcomeValidationError)
	before := testutil.ToFloat64(counter)

	app := newTestApp(&mockUploadService{}, 5)
	req := newUploadRequest(t, "/v1/uploads", map[string]string{"folder": "../secret"}, &multipartFile{fileName: "a.txt", content: "x"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestUploadHandler_AnnotatesSpanAndLogsRoles(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prevTP := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prevTP) })

	core, logs := observer.New(zapcore.InfoLevel)
	app := fiber.New()
	app.Use(telemetry.FiberMiddleware())
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.UserIDKey, "user-1")
		c.Locals(middleware.RolesKey, []string{"uploader"})
		return c.Next()
	})
	app.Post("/v1/uploads", NewUploadHandler(&mockUploadService{}, 5, zap.New(core)).Upload)

	req := newUploadRequest(t, "/v1/uploads", map[string]string{"folder": "images"}, &multipartFile{fileName: "cat.png", content: "meow"})
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes(), attribute.String("upload.key", "images/abc-cat.png"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int64("upload.size", 4))

	entries := logs.FilterMessage("file uploaded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []interface{}{"uploader"}, entries[0].ContextMap()["roles"])
	assert.Equal(t, "user-1", entries[0].ContextMap()["user_id"])
}
