// Package config holds all defrec configuration.
// Config is loaded from a YAML file with environment variable overrides for
// secrets, so API keys never need to live on disk.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all defrec configuration.
type Config struct {
	// Classification service (OpenAI-compatible endpoint)
	Service ServiceConfig `yaml:"service"`

	// Similarity memory
	Memory MemoryConfig `yaml:"memory"`

	// Supplier registry
	Registry RegistryConfig `yaml:"registry"`

	// Classification stages
	Classify ClassifyConfig `yaml:"classify"`

	// Batch pipeline
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServiceConfig configures the external classification service.
type ServiceConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// MemoryConfig configures the similarity memory.
type MemoryConfig struct {
	// DatabasePath is the sqlite file backing the analyst memory.
	// Empty means in-memory only (no persistence across runs).
	DatabasePath string `yaml:"database_path"`

	// MinSimilarity is the relevance floor for grounding examples.
	MinSimilarity float64 `yaml:"min_similarity"`
}

// RegistryConfig configures the supplier registry.
type RegistryConfig struct {
	// SupplierFile optionally replaces the embedded canonical list.
	SupplierFile string `yaml:"supplier_file"`
}

// ClassifyConfig configures the classification stages.
type ClassifyConfig struct {
	// GoldExamplesFile optionally replaces the embedded financial-stage
	// reference extractions.
	GoldExamplesFile string `yaml:"gold_examples_file"`
}

// PipelineConfig configures batch processing.
type PipelineConfig struct {
	// DomesticCountry drives the B2G/G2G deal type split.
	DomesticCountry string `yaml:"domestic_country"`

	// Progress enables the terminal progress bar.
	Progress bool `yaml:"progress"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:    "https://api.openai.com/v1",
			Model:      "gpt-4o-mini",
			Timeout:    "60s",
			MaxRetries: 3,
		},
		Memory: MemoryConfig{
			DatabasePath:  "defrec_memory.db",
			MinSimilarity: 0.1,
		},
		Pipeline: PipelineConfig{
			DomesticCountry: "USA",
			Progress:        true,
		},
	}
}

// Load reads configuration from path, falling back to defaults when the file
// does not exist. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides maps DEFREC_* environment variables onto the config.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DEFREC_API_KEY"); v != "" {
		c.Service.APIKey = v
	}
	if v := os.Getenv("DEFREC_BASE_URL"); v != "" {
		c.Service.BaseURL = v
	}
	if v := os.Getenv("DEFREC_MODEL"); v != "" {
		c.Service.Model = v
	}
	if v := os.Getenv("DEFREC_MEMORY_DB"); v != "" {
		c.Memory.DatabasePath = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("service.base_url is required")
	}
	if c.Memory.MinSimilarity < 0 || c.Memory.MinSimilarity > 1 {
		return fmt.Errorf("memory.min_similarity must be within [0,1], got %v", c.Memory.MinSimilarity)
	}
	if _, err := c.ServiceTimeout(); err != nil {
		return err
	}
	return nil
}

// ServiceTimeout parses the service timeout string.
func (c *Config) ServiceTimeout() (time.Duration, error) {
	if c.Service.Timeout == "" {
		return 60 * time.Second, nil
	}
	d, err := time.ParseDuration(c.Service.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid service.timeout %q: %w", c.Service.Timeout, err)
	}
	return d, nil
}
