package internal

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/tasktracker/internal/auth"
	"github.com/kazz187/tasktracker/internal/config"
	"github.com/kazz187/tasktracker/internal/event"
	"github.com/kazz187/tasktracker/internal/fieldconfig"
	"github.com/kazz187/tasktracker/internal/pushnotification"
	"github.com/kazz187/tasktracker/internal/task"
	"github.com/kazz187/tasktracker/pkg/cerr"
	"github.com/kazz187/tasktracker/pkg/clog"
)

// Pinger reports whether the task store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	server                 *http.Server
	env                    *config.Env
	pinger                 Pinger
	taskServer             *task.Server
	fieldConfigServer      *fieldconfig.Server
	eventServer            *event.Server
	pushNotificationServer *pushnotification.Server
}

func NewServer(
	env *config.Env,
	pinger Pinger,
	taskServer *task.Server,
	fieldConfigServer *fieldconfig.Server,
	eventServer *event.Server,
	pushNotificationServer *pushnotification.Server,
) *Server {
	return &Server{
		env:                    env,
		pinger:                 pinger,
		taskServer:             taskServer,
		fieldConfigServer:      fieldConfigServer,
		eventServer:            eventServer,
		pushNotificationServer: pushNotificationServer,
	}
}

// Handler builds the full HTTP handler: the authenticated REST API under
// /api plus unauthenticated health endpoints.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			clog.SlogChiMiddleware(),
			cerr.NewConvertConnectErrorChiMiddleware(),
			auth.APIKeyMiddleware(s.env.APIKey, s.env.APIUser),
		)
		s.taskServer.Routes(r)
		s.fieldConfigServer.Routes(r)
		s.eventServer.Routes(r)
		s.pushNotificationServer.Routes(r)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{pinger: s.pinger})
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(&storeChecker{pinger: s.pinger}, connect.WithInterceptors(s.interceptors()...)))

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(mux)
}

// ListenAndServe starts the HTTP server. ctx is the base context of every
// request, so cancelling it ends open event streams before Shutdown waits on
// them.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     h2c.NewHandler(s.Handler(), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct {
	pinger Pinger
}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := hc.pinger.Ping(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// storeChecker serves grpc.health.v1 from the task store's reachability.
type storeChecker struct {
	pinger Pinger
}

func (c *storeChecker) Check(ctx context.Context, req *grpchealth.CheckRequest) (*grpchealth.CheckResponse, error) {
	if req.Service != "" && req.Service != "tasktracker" {
		return nil, connect.NewError(connect.CodeNotFound, nil)
	}
	if err := c.pinger.Ping(ctx); err != nil {
		return &grpchealth.CheckResponse{Status: grpchealth.StatusNotServing}, nil
	}
	return &grpchealth.CheckResponse{Status: grpchealth.StatusServing}, nil
}

func (s *Server) interceptors() []connect.Interceptor {
	return []connect.Interceptor{
		clog.NewSlogConnectUnaryInterceptor(),
		cerr.NewConvertConnectErrorInterceptor(),
	}
}
