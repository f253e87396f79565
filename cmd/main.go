// cmd/main.go
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lmittmann/tint"
	"github.com/rs/cors"
	"gorm.io/gorm"

	"github.com/IlyaZolotarev/wordcard/internal/config"
	"github.com/IlyaZolotarev/wordcard/internal/handlers"
	"github.com/IlyaZolotarev/wordcard/internal/localstore"
	"github.com/IlyaZolotarev/wordcard/internal/middleware"
	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/repository"
	"github.com/IlyaZolotarev/wordcard/internal/service"
	"github.com/IlyaZolotarev/wordcard/internal/storage"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

func main() {
	// Temporary logger until the config is loaded.
	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(tempLogger)

	cfg, err := config.Load("./configs")
	if err != nil {
		slog.Error("Error loading configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logLevel := new(slog.LevelVar)
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		logLevel.Set(slog.LevelDebug)
	case "info":
		logLevel.Set(slog.LevelInfo)
	case "warn", "warning":
		logLevel.Set(slog.LevelWarn)
	case "error":
		logLevel.Set(slog.LevelError)
	default:
		logLevel.Set(slog.LevelInfo)
		slog.Warn("Unknown log level specified in config, defaulting to INFO", slog.String("level", cfg.Log.Level))
	}

	var handler slog.Handler
	appEnv := os.Getenv("APP_ENV")
	if strings.ToLower(appEnv) == "dev" {
		tintOpts := &tint.Options{
			Level:      logLevel,
			TimeFormat: time.RFC3339,
		}
		handler = tint.NewHandler(os.Stderr, tintOpts)
		tempLogger.Info("Using TINT log handler", slog.String("APP_ENV", appEnv))
	} else {
		jsonOpts := &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}
		handler = slog.NewJSONHandler(os.Stderr, jsonOpts)
		tempLogger.Info("Using JSON log handler", slog.String("APP_ENV", appEnv))
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Info("Application starting...")

	// Device store. Always available, backs every anonymous operation.
	store, err := localstore.Open(cfg.LocalStore.Path)
	if err != nil {
		slog.Error("Error opening local store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Error closing local store", slog.Any("error", err))
		}
	}()

	// Remote backend. Without a database URL the engine runs local-only:
	// no accounts, no sync, data stays on the device.
	var db *gorm.DB
	if cfg.Database.URL != "" {
		db, err = repository.NewDB(cfg.Database.URL, logger)
		if err != nil {
			slog.Error("Error initializing database", slog.Any("error", err))
			os.Exit(1)
		}
		if err := db.AutoMigrate(
			&model.User{},
			&model.MagicLinkToken{},
			&model.Category{},
			&model.Card{},
		); err != nil {
			slog.Error("Error migrating database schema", slog.Any("error", err))
			os.Exit(1)
		}
		sqlDB, err := db.DB()
		if err != nil {
			slog.Error("Error getting underlying sql.DB from GORM", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := sqlDB.Close(); err != nil {
				slog.Error("Error closing database connection", slog.Any("error", err))
			} else {
				slog.Info("Database connection closed.")
			}
		}()
	} else {
		slog.Warn("No database URL configured; running in local-only mode.")
	}

	var imageStore storage.ImageStore
	if db != nil {
		imageStore, err = storage.NewS3ImageStore(cfg)
		if err != nil {
			slog.Error("Error initializing image store", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Dependency injection.
	catRepo := repository.NewGormCategoryRepository()
	cardRepo := repository.NewGormCardRepository()
	userRepo := repository.NewGormUserRepository()
	tokenRepo := repository.NewGormTokenRepository()

	session := service.NewSession()
	gateway := service.NewGateway(db, store, session, imageStore, catRepo, cardRepo, cfg.App.PageSize)
	trainService := service.NewTrainService(gateway, &cfg.App)
	settingsService := service.NewSettingsService(db, store, session, userRepo)

	categoryHandler := handlers.NewCategoryHandler(gateway, logger)
	cardHandler := handlers.NewCardHandler(gateway, logger)
	trainHandler := handlers.NewTrainHandler(trainService, logger)
	settingsHandler := handlers.NewSettingsHandler(settingsService)

	var authHandler *handlers.AuthHandler
	if db != nil {
		mailer := service.NewMailer(cfg)
		syncService := service.NewSyncService(db, store, catRepo, cardRepo, userRepo)
		authService := service.NewAuthService(db, userRepo, tokenRepo, mailer, session, syncService, cfg)
		authHandler = handlers.NewAuthHandler(authService)
	}

	// Router.
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.LoggingMiddleware(logger))

	corsOptions := cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	}
	r.Use(cors.New(corsOptions).Handler)

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		if authHandler != nil {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", authHandler.Register)
				r.Get("/callback", authHandler.Callback)
				r.Post("/login", authHandler.Login)
				r.Post("/logout", authHandler.Logout)

				r.Group(func(r chi.Router) {
					r.Use(middleware.JWTAuthMiddleware(cfg))
					r.Get("/me", authHandler.GetMe)
				})
			})
		}

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.GetCategories)
			r.Post("/", categoryHandler.PostCategory)
			r.Post("/{categoryID}/select", categoryHandler.SelectCategory)
			r.Put("/{categoryID}", categoryHandler.PutCategory)
			r.Delete("/{categoryID}", categoryHandler.DeleteCategory)
		})

		r.Route("/cards", func(r chi.Router) {
			r.Get("/", cardHandler.GetCards)
			r.Post("/", cardHandler.PostCard)
			r.Post("/page", cardHandler.PostCardsPage)
			r.Get("/search", cardHandler.SearchCards)
			r.Post("/reset", cardHandler.ResetCards)
			r.Delete("/", cardHandler.DeleteCards)
		})

		r.Route("/training", func(r chi.Router) {
			r.Post("/start", trainHandler.StartSession)
			r.Get("/current", trainHandler.GetCurrentTask)
			r.Post("/next", trainHandler.PostNextTask)
			r.Post("/answer", trainHandler.PostAnswer)
			r.Get("/stats", trainHandler.GetStats)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/langs", settingsHandler.GetLangPrefs)
			r.Put("/langs", settingsHandler.PutLangPrefs)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			sqlDB, err := db.DB()
			if err != nil {
				slog.ErrorContext(r.Context(), "Health check failed: could not get DB object", slog.Any("error", err))
				http.Error(w, "Health check failed", http.StatusInternalServerError)
				return
			}
			if err := sqlDB.PingContext(r.Context()); err != nil {
				slog.ErrorContext(r.Context(), "Health check failed: could not ping DB", slog.Any("error", err))
				http.Error(w, "Health check failed", http.StatusInternalServerError)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Could not listen on port", slog.String("port", cfg.Server.Port), slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", slog.Any("error", err))
	}

	log.Println("Server exiting")
}
