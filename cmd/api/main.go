//	@title			Tolet API
//	@version		1.0
//	@description	Backend for Tolet: rental listings with comments, blog posts and a contact form.
//
//	@host		localhost:3001
//	@BasePath	/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Identity-provider token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tolet/service/internal/auth"
	"github.com/tolet/service/internal/blog"
	"github.com/tolet/service/internal/comment"
	"github.com/tolet/service/internal/config"
	"github.com/tolet/service/internal/contact"
	"github.com/tolet/service/internal/db"
	"github.com/tolet/service/internal/logging"
	"github.com/tolet/service/internal/property"
	"github.com/tolet/service/internal/server"
	"github.com/tolet/service/internal/storage"
	"github.com/tolet/service/internal/upload"

	_ "github.com/tolet/service/docs/swagger"
)

func main() {
	cfg := config.Load()
	logging.Setup(!cfg.IsProduction())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := db.Connect(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		fatal("database connection failed", err)
	}

	uploads, err := upload.NewReceiver(cfg.UploadDir)
	if err != nil {
		fatal("upload directory init failed", err)
	}

	blobs, staticDir, err := newBlobStorage(cfg, uploads.Dir())
	if err != nil {
		fatal("blob storage init failed", err)
	}

	// Wire dependencies: repository → service → handler
	blogSvc := blog.NewService(blog.NewRepository(store), blobs)
	propertySvc := property.NewService(store, blobs)
	commetSvc := comment.NewService(comment.NewRepository(store), propertySvc.Repository(), blobs)
	contactSvc := contact.NewService(store)
	authSvc := auth.NewService(cfg.JWTSecret)

	router := server.NewRouter(server.Deps{
		Blogs:        blog.NewHandler(blogSvc, uploads),
		Properties:   property.NewHandler(propertySvc, uploads),
		Commets:      comment.NewHandler(commetSvc, uploads),
		Contacts:     contact.NewHandler(contactSvc, uploads),
		Auth:         auth.NewHandler(authSvc, auth.NewSessions(cfg.SessionKeys, cfg.IsProduction()), cfg.ClientURL),
		StaticDir:    staticDir,
		MaxBodyBytes: cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server listening", "port", cfg.Port, "env", cfg.AppEnv, "blobs", cfg.BlobBackend)
		slog.Info("swagger UI at http://localhost:" + cfg.Port + "/swagger/")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	<-quit
	slog.Info("shutting down gracefully...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	if err := store.Close(ctx); err != nil {
		slog.Error("closing database", "error", err)
	}

	slog.Info("server stopped")
}

// newBlobStorage builds the configured blob backend. The returned directory is
// served under /uploads/ and is empty for hosted backends.
func newBlobStorage(cfg *config.Config, uploadDir string) (storage.Storage, string, error) {
	if cfg.LocalBlobs() {
		ls, err := storage.NewLocalStorage(uploadDir)
		if err != nil {
			return nil, "", err
		}
		return ls, ls.Dir(), nil
	}

	var transform *storage.Transform
	if cfg.ImageTransform {
		transform = &storage.Transform{Width: cfg.ImageWidth, Height: cfg.ImageHeight, Quality: cfg.ImageQuality}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ms, err := storage.NewMinioStorage(ctx, storage.MinioOptions{
		Endpoint:   cfg.StorageEndpoint,
		AccessKey:  cfg.StorageAccessKey,
		SecretKey:  cfg.StorageSecretKey,
		Bucket:     cfg.StorageBucket,
		PublicBase: cfg.StoragePublicBase,
		UseSSL:     cfg.StorageUseSSL,
		Transform:  transform,
	})
	if err != nil {
		return nil, "", err
	}
	return ms, "", nil
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
