package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	api "github.com/mind-engage/coursepack/internal/api/http"
	auth "github.com/mind-engage/coursepack/internal/auth/middleware"
	"github.com/mind-engage/coursepack/internal/bridge"
	"github.com/mind-engage/coursepack/internal/catalog"
	"github.com/mind-engage/coursepack/internal/config"
	"github.com/mind-engage/coursepack/internal/db"
	"github.com/mind-engage/coursepack/internal/logger"
	"github.com/mind-engage/coursepack/internal/rbac"
	"github.com/mind-engage/coursepack/internal/render"
	"github.com/mind-engage/coursepack/internal/storage"
)

func main() {
	cfg := config.FromEnv()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.Fatal("db open failed", "driver", cfg.DBDriver, "error", err)
	}
	defer dbh.Close()

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatal("blob store", "path", cfg.BlobBasePath, "error", err)
	}

	var runtimeJS string
	if cfg.RuntimeScriptPath != "" {
		b, err := os.ReadFile(cfg.RuntimeScriptPath)
		if err != nil {
			log.Fatal("runtime script", "path", cfg.RuntimeScriptPath, "error", err)
		}
		runtimeJS = string(b)
	}

	packages := catalog.NewSQLStore(dbh)
	pub := &catalog.Publisher{
		Store:         packages,
		Blobs:         bs,
		Renderer:      render.Must(),
		RuntimeScript: runtimeJS,
		Log:           log.With("component", "catalog"),
	}
	rcv := bridge.NewReceiver(bridge.NewSQLStore(dbh), log.With("component", "bridge"))
	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, auth.Credentials{
		AdminUser:     cfg.AdminUser,
		AdminPassHash: cfg.AdminPassHash,
		DevLogin:      cfg.DevLogin,
	}))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(rbac.Require("package:create")).
			Post("/packages", api.UploadPackageHandler(pub))
		pr.With(rbac.Require("package:view")).
			Get("/packages", api.ListPackagesHandler(packages))
		pr.With(rbac.Require("package:view")).
			Get("/packages/{packageID}", api.GetPackageHandler(packages))
		pr.With(rbac.Require("package:download")).
			Get("/packages/{packageID}/download", api.DownloadPackageHandler(pub))

		pr.With(rbac.Require("bridge:relay")).
			Post("/bridge/{enrollmentID}/messages", api.RelayMessagesHandler(rcv, api.BridgeOptions{
				MaxBatch: cfg.BridgeMaxBatch,
				Timeout:  cfg.BridgePostTimeout,
			}))
		pr.With(rbac.Require("bridge:state")).
			Get("/bridge/{enrollmentID}/state", api.LearnerStateHandler(rcv))
		pr.With(rbac.Require("bridge:events")).
			Get("/bridge/{enrollmentID}/events", api.BridgeEventsHandler(rcv))
	})

	r.Get("/healthz", api.HealthHandler)
	r.Get("/readyz", api.ReadyHandler(dbh))

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
	log.Info("gateway stopped")
}
