package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/reforesta/planner/backend-go/internal/asset"
	"github.com/reforesta/planner/backend-go/internal/auth"
	"github.com/reforesta/planner/backend-go/internal/collab"
	"github.com/reforesta/planner/backend-go/internal/config"
	"github.com/reforesta/planner/backend-go/internal/document"
	"github.com/reforesta/planner/backend-go/internal/logger"
	"github.com/reforesta/planner/backend-go/internal/metrics"
	mw "github.com/reforesta/planner/backend-go/internal/middleware"
	"github.com/reforesta/planner/backend-go/internal/project"
	"github.com/reforesta/planner/backend-go/internal/store"
)

// playgroundProjectID is open to anonymous users and never persisted.
const playgroundProjectID = "proj_playground"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("open store", "error", err, "driver", cfg.StoreDriver)
		os.Exit(1)
	}
	defer st.Close()

	authService := auth.NewService(st, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	projectService := project.NewService(st, log)
	projectHandler := project.NewHandler(projectService)

	hub := collab.NewHub(collab.Config{
		Load: func(ctx context.Context, projectID string) (*document.ProjectData, error) {
			if projectID == playgroundProjectID {
				return document.NewEmptyProject(""), nil
			}
			return projectService.LoadDocument(ctx, projectID)
		},
		Save: func(ctx context.Context, projectID string, doc *document.ProjectData) error {
			if projectID == playgroundProjectID {
				return collab.ErrSkipSave
			}
			_, err := projectService.SaveDocument(ctx, projectID, doc)
			return err
		},
		AutosaveInterval: cfg.AutosaveInterval,
		Logger:           log,
	})
	go hub.Run()

	assetHandler := asset.NewHandler(cfg.AssetDir)

	r := mux.NewRouter()
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.Metrics)

	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Assets are public so the playground can set a background.
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST")
	r.HandleFunc("/assets/{assetId}", assetHandler.Remove).Methods("DELETE")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)
	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	projectHandler.Register(api)

	authorize := func(r *http.Request, projectID string) (collab.Identity, error) {
		if projectID == playgroundProjectID {
			return collab.Identity{UserID: "anon-" + uuid.New().String()[:8], DisplayName: "Anónimo"}, nil
		}
		userID, err := authService.ValidateToken(auth.TokenFromRequest(r))
		if err != nil {
			return collab.Identity{}, collab.ErrUnauthorized
		}
		if err := projectService.IsMember(r.Context(), projectID, userID); err != nil {
			if errors.Is(err, project.ErrNotMember) {
				return collab.Identity{}, collab.ErrForbidden
			}
			return collab.Identity{}, err
		}
		user, err := authService.GetUser(r.Context(), userID)
		if err != nil {
			return collab.Identity{}, err
		}
		return collab.Identity{UserID: user.ID, DisplayName: user.DisplayName}, nil
	}
	r.Handle("/ws/project/{projectId}", collab.NewHandler(hub, authorize, cfg.OriginHosts()))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mw.CORS(cfg.Origins())(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info("shutting down server")
		// Saves every dirty document before the listener goes away.
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info("server starting", "addr", addr, "store", cfg.StoreDriver)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		st, err = store.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		st, err = store.OpenSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}

	rc := store.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rc == nil {
		return st, nil
	}
	if err := rc.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, snapshot cache degraded", "error", err, "addr", cfg.RedisAddr)
	}
	return store.NewCached(st, rc, time.Hour, log), nil
}
