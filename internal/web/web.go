package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"icalfilter/internal/config"
	"icalfilter/internal/feed"
	"icalfilter/internal/ics"
	appLog "icalfilter/internal/log"
	"icalfilter/internal/metrics"
)

// ConfigLoader resolves the effective configuration. It is called on every
// request so configuration changes apply without a restart.
type ConfigLoader interface {
	Load() (*config.Config, error)
}

// FetcherFunc builds the fetcher used for one request.
type FetcherFunc func(cfg *config.Config) feed.Fetcher

// Options carries the collaborators of a Server. Zero values select the
// defaults.
type Options struct {
	Fetcher  FetcherFunc
	Registry *prometheus.Registry
}

// Server serves the filtered calendar at every path except /health and
// /metrics.
type Server struct {
	cfg     *config.Config
	loader  ConfigLoader
	fetcher FetcherFunc
	metrics *metrics.Metrics
	mux     *http.ServeMux
}

// NewServer constructs a new Server. cfg is the configuration resolved at
// startup; it decides the listen address and basic auth. Everything the
// pipeline uses comes from loader on each request.
func NewServer(cfg *config.Config, loader ConfigLoader, opts Options) *Server {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = defaultFetcher
	}

	s := &Server{
		cfg:     cfg,
		loader:  loader,
		fetcher: fetcher,
		metrics: metrics.New(reg),
		mux:     http.NewServeMux(),
	}
	s.registerRoutes(reg)
	return s
}

func defaultFetcher(cfg *config.Config) feed.Fetcher {
	timeout, _ := cfg.TimeoutDuration()
	return ics.NewFetcher(timeout)
}

// Handler returns the http.Handler for this server with its middleware.
func (s *Server) Handler() http.Handler {
	chain := alice.New(requestID, s.accessLog)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		chain = chain.Append(s.basicAuthMiddleware)
	}
	return chain.Then(s.mux)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="icalfilter", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type ctxKey struct{}

// requestID tags every request with an id, echoed in X-Request-Id.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()
		next.ServeHTTP(rec, r)

		if r.URL.Path != "/metrics" && r.URL.Path != "/health" {
			s.metrics.ObserveRequest(rec.status)
		}
		appLog.Debug("http request",
			"request_id", requestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(started),
		)
	})
}

// StartServer serves s on its configured listen address until ctx is
// canceled, then shuts down gracefully.
func StartServer(ctx context.Context, s *Server) error {
	return serve(ctx, s.cfg.Listen, s.Handler())
}

// MetricsHandler exposes reg in the Prometheus text format.
func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// StartMetricsServer serves only /metrics for reg on addr until ctx is
// canceled. Watch mode uses it in place of the full server.
func StartMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))
	return serve(ctx, addr, alice.New(requestID).Then(mux))
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes(reg *prometheus.Registry) {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", MetricsHandler(reg))
	s.mux.HandleFunc("/", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar runs one pipeline cycle and returns the result as an
// attachment. Any method is accepted.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, err := s.loader.Load()
	if err != nil {
		appLog.Error("config load failed", err, "request_id", requestIDFrom(ctx))
		writeError(w, http.StatusInternalServerError, "invalid configuration")
		return
	}

	res, err := feed.Run(ctx, s.fetcher(cfg), cfg)
	if err != nil {
		appLog.Error("calendar request failed", err,
			"request_id", requestIDFrom(ctx),
			"source", ics.RedactURL(cfg.Source),
		)
		writeError(w, statusFor(err), messageFor(err))
		return
	}
	s.metrics.ObservePipeline(res.Elapsed)
	s.metrics.ObserveEvents(res.Events, res.Diagnostics)

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(cfg.Format))
	w.Header().Set("Vary", "User-Agent")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Body); err != nil {
		appLog.Error("failed to write calendar response", err, "request_id", requestIDFrom(ctx))
	}
}

func contentDisposition(format string) string {
	if format == config.FormatJSON {
		return "attachment; filename=calendar.json"
	}
	return "attachment; filename=calendar.ics"
}

func statusFor(err error) int {
	var fetchErr *ics.FetchError
	var decErr *ics.DecodeError
	switch {
	case errors.As(err, &fetchErr), errors.As(err, &decErr), errors.Is(err, feed.ErrNoOutput):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	var fetchErr *ics.FetchError
	var decErr *ics.DecodeError
	switch {
	case errors.As(err, &fetchErr):
		return "failed to fetch source calendar"
	case errors.As(err, &decErr):
		return "source calendar is malformed"
	case errors.Is(err, feed.ErrNoOutput):
		return "source calendar has no usable calendar"
	default:
		return "failed to process calendar"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
