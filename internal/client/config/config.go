package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/mirrorlab/codesync/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".codesync", "config.json")
	DefaultServerURL  = "http://localhost:7938"
)

const (
	DefaultSyncInterval = 30 * time.Second
	DefaultDebounce     = 300 * time.Millisecond
)

type Config struct {
	ProjectDir string `json:"project_dir"`
	ProjectID  string `json:"project_id"`
	Name       string `json:"name"`
	ServerURL  string `json:"server_url"`

	SyncInterval time.Duration `json:"sync_interval,omitempty"`
	Debounce     time.Duration `json:"debounce,omitempty"`

	Path string `json:"-"`
}

func (c *Config) Validate() error {
	if c.ProjectDir == "" {
		return fmt.Errorf("config: project_dir is required")
	}
	resolved, err := utils.ResolvePath(c.ProjectDir)
	if err != nil {
		return fmt.Errorf("config: resolve project_dir: %w", err)
	}
	c.ProjectDir = resolved

	if c.ProjectID == "" {
		c.ProjectID = uuid.NewString()
	}
	if c.Name == "" {
		c.Name = filepath.Base(c.ProjectDir)
	}
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	return nil
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.Path = path
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
