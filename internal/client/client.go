package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mirrorlab/codesync/internal/client/config"
	"github.com/mirrorlab/codesync/internal/client/sync"
	"github.com/mirrorlab/codesync/internal/sdk"
)

// Client is the daemon: it watches a project directory and keeps the server's
// index converged with it.
type Client struct {
	config *config.Config
	sdk    *sdk.Client
	sync   *sync.Manager
}

func New(cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := sdk.New(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdk: %w", err)
	}

	syncMgr, err := sync.NewManager(cfg, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync manager: %w", err)
	}

	return &Client{
		config: cfg,
		sdk:    client,
		sync:   syncMgr,
	}, nil
}

func (c *Client) Start(ctx context.Context) error {
	slog.Info("codesync client start",
		"project", c.config.ProjectID,
		"dir", c.config.ProjectDir,
		"server", c.config.ServerURL)

	if _, err := c.sdk.Sync.Health(ctx); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	if err := c.sync.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sync manager: %w", err)
	}

	<-ctx.Done()
	slog.Info("received interrupt signal, stopping client")

	if err := c.sync.Stop(); err != nil {
		slog.Error("sync manager stop", "error", err)
	}
	slog.Info("codesync client stop")
	return nil
}

// SyncOnce runs a single sync cycle without the watcher or the timer loop.
func SyncOnce(ctx context.Context, cfg *config.Config) (*sync.CycleResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := sdk.New(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create sdk: %w", err)
	}

	engine, err := sync.NewEngine(cfg, client, nil)
	if err != nil {
		return nil, err
	}
	defer engine.Stop()

	if _, err := client.Sync.Register(ctx, &sdk.RegisterRequest{
		ProjectID: cfg.ProjectID,
		Name:      cfg.Name,
	}); err != nil {
		return nil, fmt.Errorf("register project: %w", err)
	}

	return engine.RunSync(ctx)
}
