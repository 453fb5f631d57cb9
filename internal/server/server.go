package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mirrorlab/codesync/internal/db"
)

type Server struct {
	config   *Config
	server   *http.Server
	db       *sqlx.DB
	services *Services
}

func New(ctx context.Context, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var dbOpts []db.SqliteOption
	if config.DbPath != "" {
		dbOpts = append(dbOpts, db.WithPath(config.DbPath))
	}
	sqlite, err := db.NewSqliteDB(dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	services, err := NewServices(ctx, config, sqlite)
	if err != nil {
		sqlite.Close()
		return nil, err
	}

	return &Server{
		config:   config,
		db:       sqlite,
		services: services,
		server: &http.Server{
			Addr:    config.Http.Addr,
			Handler: SetupRoutes(services),
		},
	}, nil
}

func (s *Server) Services() *Services {
	return s.services
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("codesyncd start")
	defer slog.Info("codesyncd stop")

	errCh := make(chan error, 1)
	go func() {
		if err := s.runHttpServer(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		slog.Info("http server stopped")
	}()

	select {
	case err := <-errCh:
		slog.Error("server start error", "error", err)
		return err
	case <-ctx.Done():
	}

	slog.Info("codesyncd shutdown signal")
	if err := s.Stop(ctx); err != nil {
		slog.Error("codesyncd shutdown error", "error", err)
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *Server) runHttpServer() error {
	if s.config.Http.CertFile != "" && s.config.Http.KeyFile != "" {
		slog.Info("server start tls", "addr", s.config.Http.Addr, "cert", s.config.Http.CertFile, "key", s.config.Http.KeyFile)
		return s.server.ListenAndServeTLS(s.config.Http.CertFile, s.config.Http.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.Http.Addr)
	return s.server.ListenAndServe()
}
