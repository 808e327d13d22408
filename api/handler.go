package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/pilgi/artifact"
	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/observability"
	"github.com/kbukum/pilgi/sse"
	"github.com/kbukum/pilgi/transcription"
)

// BasePath is the prefix of every API route.
const BasePath = "/api/v1"

// Handler serves the API. It holds the components it needs; none of them
// has to be started when routes are registered.
type Handler struct {
	registry  *transcription.ModelRegistry
	artifacts *artifact.Store
	uploads   artifact.StorageSource
	hub       *sse.Hub
	session   transcription.SessionConfig

	maxUpload int64
	service   string
	log       *logger.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithMetrics records session metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithMaxUploadSize caps accepted uploads; 0 leaves them unbounded.
func WithMaxUploadSize(n int64) Option {
	return func(h *Handler) { h.maxUpload = n }
}

// WithServiceName sets the service name recorded on session spans.
func WithServiceName(name string) Option {
	return func(h *Handler) { h.service = name }
}

// WithClock replaces the clock used to name artifacts.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// New creates the API handler. uploads resolves the object storage that
// receives uploaded media.
func New(
	registry *transcription.ModelRegistry,
	artifacts *artifact.Store,
	uploads artifact.StorageSource,
	hub *sse.Hub,
	session transcription.SessionConfig,
	opts ...Option,
) *Handler {
	h := &Handler{
		registry:  registry,
		artifacts: artifacts,
		uploads:   uploads,
		hub:       hub,
		session:   session,
		service:   "pilgi",
		log:       logger.GetGlobalLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.WithComponent("api")
	return h
}

// Register mounts the API routes under BasePath.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group(BasePath)
	v1.GET("/model", h.ModelStatus)
	v1.POST("/model/prepare", h.PrepareModel)
	v1.GET("/model/events", h.ModelEvents)
	v1.POST("/transcriptions", h.Transcribe)
	v1.GET("/downloads/:filename", h.Download)
}

// DownloadURL returns the route serving the named artifact.
func DownloadURL(filename string) string {
	return BasePath + "/downloads/" + filename
}
