package router

import (
	"net/http"
	"strings"

	"github.com/aspoi/membership-payments/src/internal/logger"
)

type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler)
}

type Options struct {
	AuthMiddleware func(http.Handler) http.Handler
	MetricsHandler http.Handler
	// FilesRoot, when set, is served under /files/ for locally stored receipts.
	FilesRoot string
}

func New(opts Options, registrars ...RouteRegistrar) *http.ServeMux {
	mux := http.NewServeMux()
	registerSwaggerRoutes(mux)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	}

	if root := strings.TrimSpace(opts.FilesRoot); root != "" {
		logger.Info("serving receipts from filesystem", logger.Fields{"root": root})
		mux.Handle("/files/", http.StripPrefix("/files/", http.FileServer(http.Dir(root))))
	}

	for _, registrar := range registrars {
		if registrar != nil {
			registrar.RegisterRoutes(mux, opts.AuthMiddleware)
		}
	}

	return mux
}
