package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/openqbank/qbexport/internal/api/http"
	"github.com/openqbank/qbexport/internal/auth"
	"github.com/openqbank/qbexport/internal/config"
	"github.com/openqbank/qbexport/internal/db"
	"github.com/openqbank/qbexport/internal/export"
	"github.com/openqbank/qbexport/internal/qbank"
	"github.com/openqbank/qbexport/internal/render"
	"github.com/openqbank/qbexport/internal/storage"
	"github.com/openqbank/qbexport/internal/template"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	// --- Stores ---
	templates := template.NewSQLStore(dbh)
	if err := template.SeedPresets(ctx, templates, cfg.SeedOwner); err != nil {
		log.Fatalf("seed presets: %v", err)
	}
	sessions := qbank.NewMemorySessionStore()
	history := export.NewSQLHistory(dbh)

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}

	// --- Export pipeline ---
	engine := render.NewEngine(templates)
	renderers := render.NewRegistry()
	mgr := export.NewManager(sessions, templates, engine, renderers, history, bs)

	taskLog := export.NewSQLTaskLog(dbh)
	mgr.SetTaskLog(taskLog)
	if n, err := taskLog.RecoverStale(ctx); err != nil {
		log.Fatalf("recover stale tasks: %v", err)
	} else if n > 0 {
		log.Printf("marked %d interrupted export task(s) failed", n)
	}

	// --- Auth ---
	authSvc := auth.NewService(cfg.JWTSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(authSvc))

		pr.Post("/questions", api.UploadQuestionsHandler(sessions, cfg.MaxUploadBytes))
		pr.Get("/questions/{sessionID}", api.GetSessionHandler(sessions))

		pr.Post("/export", api.SubmitExportHandler(mgr))
		pr.Get("/export/{taskID}", api.ExportStatusHandler(mgr))
		pr.Post("/export/{taskID}/cancel", api.CancelExportHandler(mgr))
		pr.Get("/export/{taskID}/download", api.DownloadExportHandler(mgr, bs))
		pr.Get("/export-history", api.ExportHistoryHandler(history))
		pr.Get("/formats", api.FormatsHandler())

		pr.Route("/templates", func(tr chi.Router) {
			tr.Get("/", api.ListTemplatesHandler(templates))
			tr.Post("/", api.CreateTemplateHandler(templates))
			tr.Get("/{id}", api.GetTemplateHandler(templates))
			tr.Put("/{id}", api.UpdateTemplateHandler(templates))
			tr.Delete("/{id}", api.DeleteTemplateHandler(templates))
			tr.Post("/{id}/clone", api.CloneTemplateHandler(templates))
		})
		pr.Route("/metadata-templates", func(mr chi.Router) {
			mr.Get("/", api.ListMetadataTemplatesHandler(templates))
			mr.Post("/", api.CreateMetadataTemplateHandler(templates))
			mr.Get("/{id}", api.GetMetadataTemplateHandler(templates))
			mr.Delete("/{id}", api.DeleteMetadataTemplateHandler(templates))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
