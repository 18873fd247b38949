package simpledb

import (
	"fmt"
	"os"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/logging"
	"github.com/mspronesti/simpledb/storage"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of a database instance.
type Config struct {
	// DataDir holds the catalog and one heap file per table.
	DataDir string `yaml:"data_dir"`
	// BufferPoolPages is the number of pages the buffer pool caches.
	BufferPoolPages int            `yaml:"buffer_pool_pages"`
	Logging         logging.Config `yaml:"logging"`
}

func DefaultConfig() Config {
	return Config{
		DataDir:         "data",
		BufferPoolPages: storage.DefaultPages,
		Logging: logging.Config{
			Level:  logging.LevelInfo,
			Format: "text",
		},
	}
}

// LoadConfig reads a YAML configuration file. Settings missing from the file keep their DefaultConfig value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, common.NewError(common.ConfigurationError, "parsing %s: %v", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DataDir == "" {
		return common.NewError(common.ConfigurationError, "data_dir must be set")
	}
	if c.BufferPoolPages <= 0 {
		return common.NewError(common.ConfigurationError, "buffer_pool_pages must be positive, got %d", c.BufferPoolPages)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return common.NewError(common.ConfigurationError, "unknown log format '%s'", c.Logging.Format)
	}
	return nil
}
