package main

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"filehost-backend/internal/api"
	"filehost-backend/internal/blob"
	"filehost-backend/internal/config"
	"filehost-backend/internal/database"
	"filehost-backend/internal/repository"
	"filehost-backend/internal/websocket"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("cannot load configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbpool, err := pgxpool.New(ctx, cfg.DB.Source)
	if err != nil {
		logger.Error("cannot connect to database", "err", err)
		os.Exit(1)
	}
	defer dbpool.Close()

	blobs, err := blob.NewLocalStore(cfg.Storage.Path, cfg.Storage.StagingPath)
	if err != nil {
		logger.Error("cannot initialize blob storage", "err", err)
		os.Exit(1)
	}
	logger.Info("blob storage ready", "path", cfg.Storage.Path, "staging", cfg.Storage.StagingPath)

	repo := repository.New(database.NewStore(dbpool), blobs, clock.WallClock, logger, cfg.UploadCodes.TTL)
	if err := repo.Initialize(ctx, cfg.DB.Source); err != nil {
		logger.Error("cannot initialize repository", "err", err)
		os.Exit(1)
	}

	if err := bootstrapRoot(ctx, repo, cfg); err != nil {
		logger.Error("cannot bootstrap root account", "err", err)
		os.Exit(1)
	}

	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	server := api.NewServer(cfg, repo, wsHub, logger)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(api.MetricsMiddleware)

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", server.ServeWsHandler)

	r.Post("/api/v1/auth/login", server.LoginHandler)
	r.Post("/api/v1/uploads/{code}", server.UploadByCodeHandler)
	r.Get("/public/{fileID}", server.PublicDownloadHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.AuthMiddleware)
		r.Get("/me", server.GetCurrentUserHandler)
		r.Post("/me/password", server.ChangeMyPasswordHandler)
		r.Post("/me/upload-codes", server.IssueUploadCodeHandler)

		r.Get("/files", server.ListMyFilesHandler)
		r.Post("/files", server.UploadFileHandler)
		r.Get("/files/{fileID}", server.GetFileInfoHandler)
		r.Get("/files/{fileID}/content", server.DownloadFileHandler)
		r.Patch("/files/{fileID}", server.UpdateFileHandler)
		r.Delete("/files/{fileID}", server.DeleteFileHandler)

		r.Route("/users", func(r chi.Router) {
			r.Use(server.AdminMiddleware)
			r.Get("/", server.ListUsersHandler)
			r.Post("/", server.CreateUserHandler)
			r.Get("/{uid}", server.GetUserHandler)
			r.Patch("/{uid}", server.UpdateUserHandler)
			r.Post("/{uid}/password", server.SetUserPasswordHandler)
			r.Delete("/{uid}", server.DeleteUserHandler)
		})
	})

	logger.Info("starting server", "addr", ":8080")
	if err := http.ListenAndServe(":8080", r); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

// bootstrapRoot creates the root admin on first start with the configured
// password. The password should be changed right after setup.
func bootstrapRoot(ctx context.Context, repo *repository.Repository, cfg *config.Config) error {
	if repo.HasUser("root") {
		return nil
	}

	root, err := repo.CreateUser(ctx, "root", cfg.Root.Password, math.MaxInt64, math.MaxInt64)
	if err != nil {
		return err
	}
	return root.SetAdmin(ctx, true)
}
