// Package config holds the process configuration and the model catalog.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Server
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8090"`
	WebDir     string `env:"WEB_DIR" envDefault:"web"`

	// Storage
	DBPath string `env:"DB_PATH" envDefault:"genzai.db"`

	// Attachments
	MaxAttachmentSize string `env:"MAX_ATTACHMENT_SIZE" envDefault:"20MiB"`

	// Model catalog; empty path keeps the compiled-in defaults.
	ModelCatalogPath string `env:"MODEL_CATALOG_PATH"`

	// Provider selects the gateway backend; its credential variables
	// (GEMINI_API_KEY, ...) are read by the gateway factory.
	Provider string `env:"LLM_PROVIDER" envDefault:"gemini"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
