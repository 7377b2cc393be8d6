package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexmt/plus2flickr/internal/config"
	"github.com/alexmt/plus2flickr/internal/handler"
	"github.com/alexmt/plus2flickr/internal/provider"
	"github.com/alexmt/plus2flickr/internal/provider/flickr"
	"github.com/alexmt/plus2flickr/internal/provider/google"
	"github.com/alexmt/plus2flickr/internal/repository"
	"github.com/alexmt/plus2flickr/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, closeStore, err := newUserStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry, err := newProviderRegistry(cfg)
	if err != nil {
		return err
	}

	userSvc := service.NewUserService(store, registry)
	signer := handler.NewTokenSigner(cfg.SessionSecret)
	sessionHandler := handler.NewSessionHandler(userSvc, signer)
	userHandler := handler.NewUserHandler(userSvc)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.AllowedOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType},
		AllowCredentials: true,
	}))
	e.Use(handler.RequestLogger())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	api.POST("/auth/session", sessionHandler.Create)

	user := api.Group("/user", handler.SessionAuth(signer))
	user.GET("/info", userHandler.Info)
	user.GET("/detailed", userHandler.DetailedInfo)
	user.PUT("/info", userHandler.UpdateInfo)
	user.DELETE("", userHandler.DeleteAccount)
	user.POST("/oauth2/verify", userHandler.VerifyOAuth2)
	user.GET("/providers/:provider/authorize", userHandler.AuthorizeOAuth1)
	user.GET("/providers/:provider/verify", userHandler.VerifyOAuth1)
	user.DELETE("/providers/:provider", userHandler.RemoveProvider)
	user.GET("/providers/:provider/albums", userHandler.Albums)
	user.GET("/providers/:provider/albums/:albumID", userHandler.AlbumInfo)
	user.GET("/providers/:provider/albums/:albumID/photos", userHandler.AlbumPhotos)
	user.GET("/photo/redirect/:provider/:photoID/:size", userHandler.PhotoRedirect)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newUserStore connects to Postgres when DATABASE_URL is set and falls back
// to the in-memory store for single-node runs without one.
func newUserStore(cfg config.Config) (service.UserStore, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory user store")
		return repository.NewMemoryUserRepository(), func() {}, nil
	}

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	repo := repository.NewUserRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, nil, err
	}
	slog.Info("database connected")
	return repo, func() { db.Close() }, nil
}

// newProviderRegistry registers every provider whose credentials are
// configured.
func newProviderRegistry(cfg config.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()

	if cfg.Providers.Google.ClientID != "" {
		p, err := google.New(cfg.Providers.Google)
		if err != nil {
			return nil, fmt.Errorf("configure google provider: %w", err)
		}
		registry.Register(google.ProviderCode, p)
	}
	if cfg.Providers.Flickr.ConsumerKey != "" {
		p, err := flickr.New(cfg.Providers.Flickr)
		if err != nil {
			return nil, fmt.Errorf("configure flickr provider: %w", err)
		}
		registry.Register(flickr.ProviderCode, p)
	}

	if len(registry.Codes()) == 0 {
		slog.Warn("no providers configured, account linking is unavailable")
	} else {
		slog.Info("providers registered", "codes", registry.Codes())
	}
	return registry, nil
}
