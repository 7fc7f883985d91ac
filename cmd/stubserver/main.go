package main

import (
	"net/http"

	"arbor/editor/internal/config"
	"arbor/editor/internal/stubserver"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.Info("Starting stub content server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	srv, err := stubserver.New(cfg.Stub.Fixture)
	if err != nil {
		log.Fatalf("Failed to load site fixture: %v", err)
	}
	log.Infof("✅ Loaded site fixture from %s", cfg.Stub.Fixture)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Mount("/", srv.Handler())

	log.Infof("🔗 Admin API at http://localhost%s/admin/api", cfg.Stub.Addr)
	if err := http.ListenAndServe(cfg.Stub.Addr, r); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}
