// Package config loads the connector's job configuration and runtime settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cube-sync/internal/domain"
)

// Defaults applied when the configuration leaves a value unset.
const (
	DefaultDataDir      = "/data"
	DefaultPort         = "30845"
	DefaultPollInterval = time.Second
	DefaultBuildType    = domain.BuildTypeFull
)

// Actions the connector can perform.
const (
	ActionRun            = "run"
	ActionTestConnection = "testConnection"
)

// Config is the job configuration read from <dataDir>/config.json together
// with runtime settings taken from flags and the environment.
type Config struct {
	Action     string     `yaml:"action"`
	Parameters Parameters `yaml:"parameters"`

	// Sections written by the job runner that the connector does not use.
	Storage         map[string]interface{} `yaml:"storage"`
	ImageParameters map[string]interface{} `yaml:"image_parameters"`
	Authorization   map[string]interface{} `yaml:"authorization"`

	DataDir   string `yaml:"-"`
	LogLevel  string `yaml:"-"` // debug, info, warn, error (default "info")
	LogFormat string `yaml:"-"` // text, json, or empty to pick by terminal
}

// Parameters holds the connector-specific settings.
type Parameters struct {
	DB            DB             `yaml:"db"`
	DatamodelName string         `yaml:"datamodelName"`
	DBName        string         `yaml:"dbName"`
	TableID       string         `yaml:"tableId"`
	Items         []Item         `yaml:"items"`
	Relationships []Relationship `yaml:"relationships"`
	BuildType     string         `yaml:"buildType"`
	BuildTimeout  time.Duration  `yaml:"buildTimeout"`
	PollInterval  time.Duration  `yaml:"pollInterval"`
}

// DB holds the platform address and credentials.
type DB struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"#password"`
	Database string `yaml:"database"`
}

// Item is one configured column.
type Item struct {
	ID     string `yaml:"id"`
	DBName string `yaml:"dbName"`
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Size   string `yaml:"size"`
}

// Relationship joins a column of the synced table to a column of another table.
type Relationship struct {
	Column string             `yaml:"column"`
	Target RelationshipTarget `yaml:"target"`
}

// RelationshipTarget names the far side of a relationship.
type RelationshipTarget struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// LoadOptions controls how the configuration file is decoded.
type LoadOptions struct {
	AllowUnknownFields bool
}

// ResolveDataDir picks the data directory: the explicit value, else
// KBC_DATADIR, else DefaultDataDir.
func ResolveDataDir(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv("KBC_DATADIR"); v != "" {
		return v
	}
	return DefaultDataDir
}

// Load reads <dataDir>/config.json, applies defaults and picks up LOG_LEVEL
// and LOG_FORMAT from the environment.
func Load(dataDir string, opts LoadOptions) (*Config, error) {
	path := filepath.Join(dataDir, "config.json")
	data, err := os.ReadFile(path) //nolint:gosec // path is the operator-supplied data directory
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(!opts.AllowUnknownFields)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.DataDir = dataDir
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	cfg.LogFormat = os.Getenv("LOG_FORMAT")
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Action == "" {
		c.Action = ActionRun
	}
	if c.Parameters.DB.Port == "" {
		c.Parameters.DB.Port = DefaultPort
	}
	if c.Parameters.BuildType == "" {
		c.Parameters.BuildType = string(DefaultBuildType)
	}
	if c.Parameters.PollInterval == 0 {
		c.Parameters.PollInterval = DefaultPollInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set are left untouched. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

var schemeRe = regexp.MustCompile(`^https?://`)

// BaseURL returns the platform address. Hosts without an http(s) scheme get
// https.
func (c *Config) BaseURL() string {
	host := c.Parameters.DB.Host
	if !schemeRe.MatchString(host) {
		host = "https://" + host
	}
	return fmt.Sprintf("%s:%s", host, c.Parameters.DB.Port)
}

// DatamodelName returns the datamodel title: datamodelName when set, else the
// db section's database.
func (c *Config) DatamodelName() string {
	if c.Parameters.DatamodelName != "" {
		return c.Parameters.DatamodelName
	}
	return c.Parameters.DB.Database
}

// TableName returns the remote table id: dbName when set, else tableId.
func (c *Config) TableName() string {
	if c.Parameters.DBName != "" {
		return c.Parameters.DBName
	}
	return c.Parameters.TableID
}

// DatasetName returns the dataset name derived from the datamodel and table.
func (c *Config) DatasetName() string {
	return fmt.Sprintf("%s-%s", c.DatamodelName(), c.TableName())
}

// InputFile returns the local CSV path uploaded for the run.
func (c *Config) InputFile() string {
	return filepath.Join(c.DataDir, "in", "tables", c.Parameters.TableID+".csv")
}

// BuildType returns the configured build type.
func (c *Config) BuildType() domain.BuildType {
	return domain.BuildType(c.Parameters.BuildType)
}

// Columns converts the configured items to column specs. A column's id is
// its id when set, else its dbName.
func (c *Config) Columns() []domain.ColumnSpec {
	out := make([]domain.ColumnSpec, 0, len(c.Parameters.Items))
	for _, it := range c.Parameters.Items {
		id := it.ID
		if id == "" {
			id = it.DBName
		}
		out = append(out, domain.ColumnSpec{ID: id, Name: it.Name, Type: it.Type, Size: it.Size})
	}
	return out
}

// Relationships converts the configured relationships to domain specs.
func (c *Config) Relationships() []domain.RelationshipSpec {
	out := make([]domain.RelationshipSpec, 0, len(c.Parameters.Relationships))
	for _, r := range c.Parameters.Relationships {
		out = append(out, domain.RelationshipSpec{
			Column: r.Column,
			Target: domain.RelationshipTarget{Table: r.Target.Table, Column: r.Target.Column},
		})
	}
	return out
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps a level name to an slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
