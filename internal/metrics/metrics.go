package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload outcomes used as the "outcome" label
const (
	OutcomeSuccess         = "success"
	OutcomeValidationError = "validation_error"
	OutcomeUploadError     = "upload_error"
)

var (
	UploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upload_server",
		Name:      "uploads_total",
		Help:      "Total upload attempts by folder and outcome.",
	}, []string{"folder", "outcome"})
	UploadedBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "upload_server",
		Name:      "uploaded_bytes_total",
		Help:      "Total bytes accepted for successful uploads.",
	}, []string{"folder"})
	UploadDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "upload_server",
		Name:      "upload_duration_seconds",
		Help:      "Time spent transferring an upload to object storage.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"folder"})
)

var initOnce sync.Once

// Init registers collectors; safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(UploadsTotal, UploadedBytes, UploadDuration)
	})
}

// Handler exposes the default registry on a Fiber route
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
