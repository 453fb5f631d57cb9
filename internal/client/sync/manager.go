package sync

import (
	"context"
	"fmt"

	"github.com/mirrorlab/codesync/internal/client/config"
	"github.com/mirrorlab/codesync/internal/sdk"
)

// Manager wires the watcher and the engine for daemon mode.
type Manager struct {
	engine  *Engine
	watcher *Watcher
}

func NewManager(cfg *config.Config, client *sdk.Client) (*Manager, error) {
	watcher := NewWatcher(cfg.ProjectDir, cfg.Debounce)
	engine, err := NewEngine(cfg, client, watcher)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync engine: %w", err)
	}

	return &Manager{
		engine:  engine,
		watcher: watcher,
	}, nil
}

func (m *Manager) Start(ctx context.Context) error {
	if err := m.watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	if err := m.engine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	return nil
}

func (m *Manager) Stop() error {
	m.watcher.Stop()
	return m.engine.Stop()
}
