package service

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// DefaultConfig returns the built-in Lake Amu map definition.
func DefaultConfig() *MapConfig {
	cfg, err := ParseConfig(defaultConfig)
	if err != nil {
		panic(fmt.Sprintf("embedded map config: %v", err))
	}
	return cfg
}

// LoadConfig reads a map definition from path. An empty path returns the
// built-in default.
func LoadConfig(path string) (*MapConfig, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes and validates a YAML map definition.
// Layer IDs left empty are generated from the layer name.
func ParseConfig(data []byte) (*MapConfig, error) {
	var cfg MapConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing map config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *MapConfig) normalize() error {
	if len(c.Layers) == 0 {
		return fmt.Errorf("map config has no layers")
	}

	seen := make(map[string]bool, len(c.Layers))
	for i := range c.Layers {
		l := &c.Layers[i]
		if l.Name == "" {
			return fmt.Errorf("layer %d: name is required", i)
		}
		if l.File == "" {
			return fmt.Errorf("layer %q: file is required", l.Name)
		}
		if l.ID == "" {
			l.ID = generateID(l.Name)
		}
		if seen[l.ID] {
			return fmt.Errorf("layer %q: duplicate id %q", l.Name, l.ID)
		}
		seen[l.ID] = true

		if l.Table != "" {
			if _, ok := c.Tables[l.Table]; !ok {
				return fmt.Errorf("layer %q: unknown style table %q", l.Name, l.Table)
			}
		}
		if l.Popup != nil && l.Popup.CategoryKey == "" {
			return fmt.Errorf("layer %q: popup needs a categoryKey", l.Name)
		}
	}

	if c.Legend.Table != "" {
		if _, ok := c.Tables[c.Legend.Table]; !ok {
			return fmt.Errorf("legend: unknown style table %q", c.Legend.Table)
		}
	}
	return nil
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
