package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/cipherbox/internal/catalog"
	"github.com/hpungsan/cipherbox/internal/config"
	"github.com/hpungsan/cipherbox/internal/logging"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// maxBodyBytes bounds form and JSON request bodies.
const maxBodyBytes = 1 << 20

// NewServer creates and configures the HTTP server for the cipherbox web UI.
func NewServer(cat *catalog.Catalog, cfg *config.Config, version, bind string, port int, logger *zap.Logger) *http.Server {
	logger = logging.OrNop(logger)

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		logger.Fatal("failed to create template sub-FS", zap.Error(err))
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		logger.Fatal("failed to create static sub-FS", zap.Error(err))
	}

	h := &Handlers{
		engine:   cat.Engine(cfg),
		sources:  cat.Sources,
		renderer: NewRenderer(templateSub, version, logger),
		logger:   logger,
	}

	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/decoder", http.StatusFound)
	})
	mux.HandleFunc("GET /decoder", h.HandleDecoder)
	mux.HandleFunc("POST /decoder", h.HandleDecoderSubmit)
	mux.HandleFunc("GET /modules", h.HandleModules)
	mux.HandleFunc("GET /modules/{name}", h.HandleModule)
	mux.HandleFunc("POST /api/run", h.HandleAPIRun)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           logRequests(logger, securityHeaders(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// logRequests emits one debug entry per request.
func logRequests(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, logger *zap.Logger) error {
	logger = logging.OrNop(logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("cipherbox UI running", zap.String("url", "http://"+srv.Addr))

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
