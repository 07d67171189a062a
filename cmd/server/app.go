package main

import (
	"net/http"
	"time"

	"github.com/diewo77/go-production/internal/handlers"
	"github.com/diewo77/go-production/internal/httpx"
	"github.com/diewo77/go-production/internal/ledger"
	"go.uber.org/zap"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux *http.ServeMux
	log *zap.Logger
}

// NewApp creates a new application with all routes configured.
func NewApp(svc *ledger.Service, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	app := &App{mux: http.NewServeMux(), log: log}
	app.setupRoutes(svc)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.withLogging(a.mux).ServeHTTP(w, r)
}

func (a *App) setupRoutes(svc *ledger.Service) {
	a.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	handlers.NewProductionHandler(svc, a.log.Named("http")).Routes(a.mux)
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging adds request logging middleware.
func (a *App) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
