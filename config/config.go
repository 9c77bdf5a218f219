package config

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config controls how a world is located and loaded.
type Config struct {
	// Workers bounds how many files are decoded at once. Zero or less means
	// one per CPU.
	Workers int `yaml:"workers"`

	// Folders are searched for region files below a world directory, and
	// below each dimension directory.
	Folders []string `yaml:"folders"`

	// Extensions mark region files, NBTExtensions standalone tag files.
	Extensions    []string `yaml:"extensions"`
	NBTExtensions []string `yaml:"nbt_extensions"`

	// VersionsFile replaces the built-in DataVersion table when set.
	VersionsFile string `yaml:"versions_file"`

	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	JSON JSONConfig `yaml:"json"`

	ReadLevelDat bool `yaml:"read_level_dat"`
}

type JSONConfig struct {
	Indent string `yaml:"indent"`
}

// Default returns Config with sensible defaults.
func Default() Config {
	return Config{
		Workers:       runtime.GOMAXPROCS(0),
		Folders:       []string{"region"},
		Extensions:    []string{".mca", ".mcr"},
		NBTExtensions: []string{".nbt", ".dat", ".litematic", ".schem", ".schematic"},
		LogLevel:      "info",
		JSON:          JSONConfig{Indent: "  "},
		ReadLevelDat:  true,
	}
}

// Load loads config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}

	return cfg, nil
}

// Level maps LogLevel to a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func (c Config) IsRegionFile(name string) bool {
	return hasExt(name, c.Extensions)
}

func (c Config) IsNBTFile(name string) bool {
	return hasExt(name, c.NBTExtensions)
}

func hasExt(name string, exts []string) bool {
	name = strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(name, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
