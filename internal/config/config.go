// internal/config/config.go
//
// This package handles configuration and the .labassistant directory
// structure. The directory lives in the user's home (or wherever --home /
// LABASSISTANT_HOME points) and holds config.yaml, logs, the database and
// user procedure files.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the name of the directory we create in the home directory.
	Dir = ".labassistant"

	// HomeEnv overrides the directory that contains Dir.
	HomeEnv = "LABASSISTANT_HOME"
	// LogLevelEnv overrides log_level from config.yaml.
	LogLevelEnv = "LABASSISTANT_LOG_LEVEL"

	defaultTickInterval  = time.Second
	defaultLogLevel      = "info"
	defaultProceduresDir = "procedures"
	defaultDatabase      = "state/labassistant.db"
	defaultExpiryWarning = 7 * 24 * time.Hour
	defaultStatusHost    = "127.0.0.1"
	defaultStatusPort    = 8765
)

const defaultConfigYAML = `# labassistant configuration
version: 1

# How often running procedures tick. One tick removes one second.
tick_interval: 1s

# debug, info, warn or error. LABASSISTANT_LOG_LEVEL overrides this.
log_level: info

# Procedure opened by "labassistant run" when no argument is given.
default_procedure: ""

# YAML procedure files, relative to this directory.
procedures_dir: procedures

# SQLite database for chemicals, tags and saved procedures.
database: state/labassistant.db

# Chemicals expiring within this window are flagged.
expiry_warning: 168h

# Loopback JSON endpoint exposing the running procedure.
status_server:
  enabled: false
  host: 127.0.0.1
  port: 8765
`

// StatusServerConfig controls the optional snapshot endpoint.
type StatusServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// Addr joins host and port.
func (s StatusServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// FileConfig models .labassistant/config.yaml.
type FileConfig struct {
	Version          int                `yaml:"version"`
	TickInterval     time.Duration      `yaml:"tick_interval"`
	LogLevel         string             `yaml:"log_level"`
	DefaultProcedure string             `yaml:"default_procedure"`
	ProceduresDir    string             `yaml:"procedures_dir"`
	Database         string             `yaml:"database"`
	ExpiryWarning    time.Duration      `yaml:"expiry_warning"`
	StatusServer     StatusServerConfig `yaml:"status_server"`
}

// Config holds the runtime configuration.
type Config struct {
	// HomeDir is the directory containing Dir.
	HomeDir string

	// Root is HomeDir/.labassistant
	Root string

	File FileConfig
}

// ResolveHome picks the directory that holds .labassistant: the explicit
// flag value, then LABASSISTANT_HOME, then the user's home directory.
func ResolveHome(flagValue string) (string, error) {
	if home := strings.TrimSpace(flagValue); home != "" {
		return filepath.Abs(home)
	}
	if home := strings.TrimSpace(os.Getenv(HomeEnv)); home != "" {
		return filepath.Abs(home)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return home, nil
}

// InitDir creates the .labassistant directory structure in homeDir.
//
// Structure created:
// .labassistant/
// ├── config.yaml
// ├── logs/        <- labassistant.log and sessions.log
// ├── state/       <- sqlite database
// ├── procedures/  <- user procedure files
// └── exports/     <- procedures written by "procedure export"
func InitDir(homeDir string) error {
	root := filepath.Join(homeDir, Dir)
	dirs := []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
		filepath.Join(root, "procedures"),
		filepath.Join(root, "exports"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return ensureConfigFile(filepath.Join(root, "config.yaml"))
}

// Load reads config.yaml under homeDir. A missing file yields the defaults.
// LABASSISTANT_LOG_LEVEL, when set, replaces log_level.
func Load(homeDir string) (*Config, error) {
	cfg := &Config{
		HomeDir: homeDir,
		Root:    filepath.Join(homeDir, Dir),
		File:    defaultFileConfig(),
	}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	if level := strings.TrimSpace(os.Getenv(LogLevelEnv)); level != "" {
		cfg.File.LogLevel = strings.ToLower(level)
		if err := cfg.File.validate(); err != nil {
			return nil, fmt.Errorf("config: %s: %w", LogLevelEnv, err)
		}
	}
	return cfg, nil
}

// ConfigPath returns the on-disk location of config.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.Root, "config.yaml")
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Root, "logs")
}

// LogPath is the structured application log.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "labassistant.log")
}

// JournalPath is the session logbook.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "sessions.log")
}

// StateDir returns the path to the state directory.
func (c *Config) StateDir() string {
	return filepath.Join(c.Root, "state")
}

// ExportsDir returns where exported procedures are written by default.
func (c *Config) ExportsDir() string {
	return filepath.Join(c.Root, "exports")
}

// ProceduresDir returns the absolute procedure directory.
func (c *Config) ProceduresDir() string {
	return c.File.ProceduresDir
}

// DatabasePath returns the absolute sqlite path.
func (c *Config) DatabasePath() string {
	return c.File.Database
}

// TickInterval is the pulse period for running procedures.
func (c *Config) TickInterval() time.Duration {
	return c.File.TickInterval
}

// ExpiryWarning is the look-ahead window for expiring chemicals.
func (c *Config) ExpiryWarning() time.Duration {
	return c.File.ExpiryWarning
}

// DefaultProcedure returns the configured default procedure reference.
func (c *Config) DefaultProcedure() string {
	return c.File.DefaultProcedure
}

// SetDefaultProcedure records ref as the default procedure and persists the
// value back to config.yaml.
func (c *Config) SetDefaultProcedure(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("config: procedure reference is required")
	}
	c.File.DefaultProcedure = ref
	return c.save()
}

func (c *Config) loadFile() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.File.normalize(c.Root)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed FileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.Root)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.File = parsed
	return nil
}

func defaultFileConfig() FileConfig {
	fc := FileConfig{}
	fc.applyDefaults()
	return fc
}

func (fc *FileConfig) applyDefaults() {
	if fc.Version == 0 {
		fc.Version = 1
	}
	if fc.TickInterval == 0 {
		fc.TickInterval = defaultTickInterval
	}
	if strings.TrimSpace(fc.LogLevel) == "" {
		fc.LogLevel = defaultLogLevel
	}
	if strings.TrimSpace(fc.ProceduresDir) == "" {
		fc.ProceduresDir = defaultProceduresDir
	}
	if strings.TrimSpace(fc.Database) == "" {
		fc.Database = defaultDatabase
	}
	if fc.ExpiryWarning == 0 {
		fc.ExpiryWarning = defaultExpiryWarning
	}
	if strings.TrimSpace(fc.StatusServer.Host) == "" {
		fc.StatusServer.Host = defaultStatusHost
	}
	if fc.StatusServer.Port == 0 {
		fc.StatusServer.Port = defaultStatusPort
	}
}

func (fc *FileConfig) normalize(root string) {
	fc.LogLevel = strings.ToLower(strings.TrimSpace(fc.LogLevel))
	fc.DefaultProcedure = strings.TrimSpace(fc.DefaultProcedure)
	fc.ProceduresDir = resolvePath(root, fc.ProceduresDir)
	fc.Database = resolvePath(root, fc.Database)
	fc.StatusServer.Host = strings.TrimSpace(fc.StatusServer.Host)
}

func (fc *FileConfig) validate() error {
	if fc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if fc.TickInterval < 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	switch fc.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	if fc.ExpiryWarning < 0 {
		return fmt.Errorf("expiry_warning must not be negative")
	}
	if fc.StatusServer.Port < 1 || fc.StatusServer.Port > 65535 {
		return fmt.Errorf("status_server.port must be between 1 and 65535")
	}
	return nil
}

// relativeTo rewrites an absolute path under root as a relative one so the
// saved file stays portable.
func relativeTo(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

func (c *Config) save() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.File.applyDefaults()
	c.File.normalize(c.Root)
	if err := c.File.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.Root, 0o755); err != nil {
		return fmt.Errorf("config: ensure %s: %w", Dir, err)
	}
	out := c.File
	out.ProceduresDir = relativeTo(c.Root, out.ProceduresDir)
	out.Database = relativeTo(c.Root, out.Database)
	data, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("config: write config: %w", err)
	}
	return nil
}
