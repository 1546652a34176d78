package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// ModelOption is one selectable model as shown to the user.
type ModelOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Badge       string `json:"badge,omitempty"`
}

// defaultModels is the compiled-in catalog, used until a catalog file is
// loaded and whenever loading fails.
var defaultModels = []ModelOption{
	{ID: "gemini-2.5-flash", Name: "Genz 3.5 Pro", Description: "Multimodal, Cepat & Hemat Kuota", Badge: "BARU"},
	{ID: "gemini-2.5-flash-image", Name: "Genz Art", Description: "Buat & Edit Gambar", Badge: "BETA"},
	{ID: "gemini-2.5-flash-lite", Name: "Genz 3.0 Flash", Description: "Seimbang & Cerdas"},
	{ID: "gemini-2.0-flash", Name: "Genz 2.5 Flash", Description: "Performa tinggi generasi sebelumnya"},
	{ID: "gemini-2.0-flash-lite", Name: "Genz 2.5 Lite", Description: "Model ringan yang efisien"},
	{ID: "gemini-flash-latest", Name: "Genz 1.5 Flash", Description: "Model cepat versi lama"},
	{ID: "gemini-flash-lite-latest", Name: "Genz 1.5 Lite", Description: "Efisiensi versi lama"},
}

// Catalog is the live set of selectable models. It can be swapped at runtime
// by the file watcher.
type Catalog struct {
	mu     sync.RWMutex
	models []ModelOption
	path   string
}

// NewCatalog builds a catalog from a JSON file, or from the compiled-in
// defaults when path is empty. A missing or unreadable file falls back to the
// defaults.
func NewCatalog(path string) *Catalog {
	c := &Catalog{models: defaultModels, path: path}
	if path != "" {
		if err := c.Reload(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("model catalog load failed, using defaults")
		}
	}
	return c
}

// Reload re-reads the catalog file. The previous catalog stays in place on
// any failure.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read model catalog: %w", err)
	}
	var models []ModelOption
	if err := json.Unmarshal(data, &models); err != nil {
		return fmt.Errorf("parse model catalog: %w", err)
	}
	if len(models) == 0 {
		return fmt.Errorf("model catalog %s is empty", c.path)
	}

	c.mu.Lock()
	c.models = models
	c.mu.Unlock()
	log.Info().Int("models", len(models)).Str("path", c.path).Msg("model catalog loaded")
	return nil
}

// Models returns a copy of the current catalog, in display order.
func (c *Catalog) Models() []ModelOption {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ModelOption, len(c.models))
	copy(out, c.models)
	return out
}

// Has reports whether id is currently offered.
func (c *Catalog) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// DefaultModelID returns the first catalog entry's id.
func (c *Catalog) DefaultModelID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.models[0].ID
}
