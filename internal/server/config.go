package server

import (
	"encoding/hex"
	"fmt"

	"github.com/mirrorlab/codesync/internal/embed"
	"github.com/mirrorlab/codesync/internal/vector"
)

const DefaultAddr = "127.0.0.1:7938"

type Config struct {
	Http   *HttpServerConfig `yaml:"http" mapstructure:"http"`
	DbPath string            `yaml:"db_path" mapstructure:"db_path"`

	// SealKey is the 32-byte vector sealing key, hex encoded.
	SealKey string `yaml:"seal_key" mapstructure:"seal_key"`

	// ChunkMaxBytes bounds a single chunk; 0 uses the default budget.
	ChunkMaxBytes int `yaml:"chunk_max_bytes" mapstructure:"chunk_max_bytes"`

	Embed  *embed.Config  `yaml:"embed" mapstructure:"embed"`
	Vector *vector.Config `yaml:"vector" mapstructure:"vector"`
}

type HttpServerConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	CertFile string `yaml:"cert_file" mapstructure:"cert_file"`
	KeyFile  string `yaml:"key_file" mapstructure:"key_file"`
}

func (c *Config) Validate() error {
	if c.Http == nil {
		c.Http = &HttpServerConfig{}
	}
	if c.Http.Addr == "" {
		c.Http.Addr = DefaultAddr
	}
	if c.Embed == nil {
		return fmt.Errorf("config: embed provider is required")
	}
	if c.Vector == nil {
		c.Vector = &vector.Config{}
	}
	if _, err := c.sealKey(); err != nil {
		return err
	}
	return nil
}

func (c *Config) sealKey() ([]byte, error) {
	key, err := hex.DecodeString(c.SealKey)
	if err != nil {
		return nil, fmt.Errorf("config: seal_key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("config: seal_key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
