package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/pilgi/component"
	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/observability"
	"github.com/kbukum/pilgi/server/endpoint"
	"github.com/kbukum/pilgi/server/middleware"
)

var (
	_ component.Component     = (*Server)(nil)
	_ component.Describable   = (*Server)(nil)
	_ component.RouteProvider = (*Server)(nil)
)

// Server serves a Gin engine over HTTP/1.1 and cleartext HTTP/2 on one
// port. It runs as the "http-server" component.
type Server struct {
	cfg     Config
	log     *logger.Logger
	engine  *gin.Engine
	h2      *http2.Server
	http    *http.Server
	metrics *observability.Metrics
	service string

	bound   atomic.Value // string
	serving atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics counts requests for service on m.
func WithMetrics(m *observability.Metrics, service string) Option {
	return func(s *Server) { s.metrics, s.service = m, service }
}

// New builds the server. Routes go on GinEngine; ApplyDefaults adds the
// middleware stack and the system endpoints.
func New(cfg Config, log *logger.Logger, opts ...Option) *Server {
	if zerolog.GlobalLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{
		cfg:    cfg,
		log:    log.WithComponent("server"),
		engine: gin.New(),
		h2:     &http2.Server{MaxConcurrentStreams: 250, IdleTimeout: 2 * time.Minute},
	}
	s.http = &http.Server{
		Addr:              cfg.addr(),
		Handler:           h2c.NewHandler(s.engine, s.h2),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	s.bound.Store(s.http.Addr)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GinEngine is where API routes are registered.
func (s *Server) GinEngine() *gin.Engine { return s.engine }

// Handler is the root handler with any applied middleware.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Addr is the configured address until Start, then the bound one, which
// resolves port 0.
func (s *Server) Addr() string { return s.bound.Load().(string) }

// ApplyDefaults installs the middleware stack and registers /health,
// /ready and /version.
func (s *Server) ApplyDefaults(service string, checker endpoint.HealthChecker, ready endpoint.ReadinessCheck) {
	s.ApplyMiddleware()
	s.RegisterDefaultEndpoints(service, checker, ready)
}

// ApplyMiddleware wraps the engine, outermost first, in recovery, request
// id, CORS, the body limit, request metrics and request logging.
func (s *Server) ApplyMiddleware() {
	stack := []middleware.Middleware{
		middleware.Recovery(s.log),
		middleware.RequestID(),
		middleware.CORS(&s.cfg.CORS),
	}
	if s.cfg.MaxBodySize != "" {
		stack = append(stack, middleware.BodySizeLimit(s.cfg.MaxBodySize))
	}
	stack = append(stack, middleware.RequestMetrics(s.metrics, s.service), middleware.RequestLogger(s.log))
	s.http.Handler = h2c.NewHandler(middleware.Chain(stack...)(s.engine), s.h2)
}

// RegisterDefaultEndpoints adds the system routes.
func (s *Server) RegisterDefaultEndpoints(service string, checker endpoint.HealthChecker, ready endpoint.ReadinessCheck) {
	s.engine.GET("/health", endpoint.Health(service, checker))
	s.engine.GET("/ready", endpoint.Readiness(service, ready))
	s.engine.GET("/version", endpoint.Version())
}

func (s *Server) Name() string { return "http-server" }

// Start binds the listener and serves in the background. Bind errors are
// returned; later serve errors are logged.
func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	s.bound.Store(ln.Addr().String())
	s.serving.Store(true)
	go func() {
		defer s.serving.Store(false)
		if err := s.http.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve stopped", logger.ErrorFields("serve", err))
		}
	}()
	s.log.Info("listening", logger.Fields("addr", s.Addr()))
	return nil
}

// Stop drains in-flight requests for at most ShutdownTimeout, or until
// ctx ends if that is sooner.
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) Health(context.Context) component.Health {
	h := component.Health{Name: s.Name(), Status: component.StatusHealthy}
	if !s.serving.Load() {
		h.Status, h.Message = component.StatusUnhealthy, "not serving"
	}
	return h
}

func (s *Server) Describe() component.Description {
	return component.Description{Name: "HTTP Server", Type: "server", Details: s.cfg.addr(), Port: s.cfg.Port}
}

// Routes lists the engine's routes for the startup summary, API routes
// before system ones, then by path and method.
func (s *Server) Routes() []component.Route {
	gr := s.engine.Routes()
	slices.SortFunc(gr, func(a, b gin.RouteInfo) int {
		if sa, sb := systemPaths[a.Path], systemPaths[b.Path]; sa != sb {
			if sa {
				return 1
			}
			return -1
		}
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(methodOrder(a.Method), methodOrder(b.Method)))
	})
	out := make([]component.Route, len(gr))
	for i, r := range gr {
		out[i] = component.Route{Method: r.Method, Path: r.Path, Handler: formatHandlerName(r.Handler)}
		if systemPaths[r.Path] {
			out[i].Handler += " ⚙️"
		}
	}
	return out
}
