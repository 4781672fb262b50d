package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/orbit-station/station/internal/platform/logging"
	"github.com/orbit-station/station/internal/platform/metrics"
	"github.com/orbit-station/station/internal/platform/ratelimit"
	"github.com/orbit-station/station/internal/platform/serviceauth"
	"github.com/orbit-station/station/internal/station/repo"
	"github.com/orbit-station/station/internal/station/requestsvc"
)

// Config wires the collaborators a Router needs: the service layer, the
// repositories its read-only filters consult directly, and the ambient
// middleware stack (§6 "wrapped with the rate limiter, JWT auth,
// Prometheus middleware, and structured-logging middleware").
type Config struct {
	Service      *requestsvc.Service
	Requests     *repo.Requests
	Users        *repo.Users
	Verifier     *serviceauth.Verifier
	UpgraderAuth *serviceauth.UpgraderAuth
	Limiter      *ratelimit.Limiter
	Metrics      *metrics.Metrics
	Log          *logging.Logger
}

// NewRouter builds the gorilla/mux router serving every §6 endpoint.
func NewRouter(cfg Config) *mux.Router {
	endpoints := &Endpoints{
		svc:      cfg.Service,
		requests: cfg.Requests,
		resolver: &callerResolver{users: cfg.Users},
		log:      cfg.Log,
	}

	router := mux.NewRouter()
	router.Use(loggingMiddleware(cfg.Log))
	router.Use(metricsMiddleware(cfg.Metrics, "station-api"))
	if cfg.Limiter != nil {
		router.Use(cfg.Limiter.Middleware)
	}

	authed := router.NewRoute().Subrouter()
	if cfg.Verifier != nil {
		authed.Use(cfg.Verifier.Middleware)
	}
	authed.Handle("/requests", handleJSONWithCaller(cfg.Log, endpoints.resolver, endpoints.createRequest)).Methods(http.MethodPost)
	authed.Handle("/requests", handleQueryWithCaller(cfg.Log, endpoints.resolver, endpoints.listRequests)).Methods(http.MethodGet)
	authed.Handle("/requests/get", handleQueryWithCaller(cfg.Log, endpoints.resolver, endpoints.getRequest)).Methods(http.MethodGet)
	authed.Handle("/requests/next-approvable", handleQueryWithCaller(cfg.Log, endpoints.resolver, endpoints.getNextApprovableRequest)).Methods(http.MethodGet)
	authed.Handle("/requests/approvals", handleJSONWithCaller(cfg.Log, endpoints.resolver, endpoints.submitRequestApproval)).Methods(http.MethodPost)

	upgrader := router.NewRoute().Subrouter()
	if cfg.UpgraderAuth != nil {
		upgrader.Use(cfg.UpgraderAuth.Middleware)
	}
	upgrader.HandleFunc("/upgrades/failed", endpoints.notifyFailedUpgrade).Methods(http.MethodPost)

	return router
}

// loggingMiddleware logs one structured line per request, mirroring
// infrastructure/middleware.LoggingMiddleware.
func loggingMiddleware(log *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if log != nil {
				log.LogRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
			}
		})
	}
}

// metricsMiddleware records request counts and durations against the
// station's Prometheus collectors.
func metricsMiddleware(m *metrics.Metrics, service string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			m.RequestsInFlight.Inc()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			m.RequestsInFlight.Dec()
			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil && tmpl != "" {
					route = tmpl
				}
			}
			m.RecordHTTPRequest(service, r.Method, route, http.StatusText(rec.status), time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
