// Package config loads irrflow settings from an optional YAML file and IRR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backends
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendFile     = "file"
)

// ErrInvalidConfig is wrapped by every Validate failure
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete runtime configuration
// Precedence, lowest first: Default, YAML file, environment
type Config struct {
	Backend string `yaml:"backend" env:"IRR_BACKEND"`

	Database Database `yaml:"database"`
	SQLite   SQLite   `yaml:"sqlite"`
	Files    Files    `yaml:"files"`
	Pipeline Pipeline `yaml:"pipeline"`
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
}

// Database configures the Postgres backend
type Database struct {
	ConnString    string `yaml:"conn_string" env:"IRR_DB_CONN_STR"`
	Host          string `yaml:"host" env:"IRR_DB_HOST"`
	Port          int    `yaml:"port" env:"IRR_DB_PORT"`
	User          string `yaml:"user" env:"IRR_DB_USER"`
	Password      string `yaml:"password" env:"IRR_DB_PASSWORD"`
	Name          string `yaml:"name" env:"IRR_DB_NAME"`
	SSLMode       string `yaml:"sslmode" env:"IRR_DB_SSLMODE"`
	SourceQuery   string `yaml:"source_query" env:"IRR_SOURCE_QUERY"`
	CashflowTable string `yaml:"cashflow_table" env:"IRR_CASHFLOW_TABLE"`
	IrrTable      string `yaml:"irr_table" env:"IRR_IRR_TABLE"`
	EnsureSchema  bool   `yaml:"ensure_schema" env:"IRR_ENSURE_SCHEMA"`
}

// SQLite configures the SQLite backend
type SQLite struct {
	Path string `yaml:"path" env:"IRR_SQLITE_PATH"`
}

// Files configures the file backend and seeding input
type Files struct {
	CSVInput     string `yaml:"csv_input" env:"IRR_CSV_INPUT"`
	NDJSONOutput string `yaml:"ndjson_output" env:"IRR_NDJSON_OUTPUT"`
	SeedInput    string `yaml:"seed_input" env:"IRR_SEED_INPUT"`
}

// Pipeline tunes a run
type Pipeline struct {
	Parallelism       int  `yaml:"parallelism" env:"IRR_PARALLELISM"`
	FailOnSolverError bool `yaml:"fail_on_solver_error" env:"IRR_FAIL_ON_SOLVER_ERROR"`
}

// Server configures the trigger server
type Server struct {
	HTTPAddr string `yaml:"http_addr" env:"IRR_HTTP_ADDR"`
	GRPCAddr string `yaml:"grpc_addr" env:"IRR_GRPC_ADDR"`
	APIToken string `yaml:"api_token" env:"IRR_API_TOKEN"`
}

// Log configures logrus
type Log struct {
	Level  string `yaml:"level" env:"IRR_LOG_LEVEL"`
	Format string `yaml:"format" env:"IRR_LOG_FORMAT"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Backend: BackendPostgres,
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Name:     "irrflow",
			SSLMode:  "disable",
		},
		SQLite: SQLite{Path: "irrflow.db"},
		Files: Files{
			CSVInput:     "cashflows.csv",
			NDJSONOutput: "irrs.ndjson",
		},
		Pipeline: Pipeline{Parallelism: 4},
		Server: Server{
			HTTPAddr: ":8080",
			GRPCAddr: ":9090",
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load builds the configuration
// Logic:
//  1. Load a .env file from the working directory when one exists
//  2. Start from Default
//  3. Overlay the YAML file at path, when path is not empty
//  4. Overlay IRR_* environment variables
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse env: %w", err)
	}

	return cfg, nil
}

// Validate checks the settings the selected backend needs
func (c Config) Validate() error {
	if !slices.Contains([]string{BackendPostgres, BackendSQLite, BackendFile}, c.Backend) {
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}

	switch c.Backend {
	case BackendPostgres:
		if c.Database.ConnString == "" && c.Database.Host == "" {
			return fmt.Errorf("%w: database host or conn_string is required", ErrInvalidConfig)
		}
	case BackendSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("%w: sqlite path is required", ErrInvalidConfig)
		}
	case BackendFile:
		if c.Files.CSVInput == "" || c.Files.NDJSONOutput == "" {
			return fmt.Errorf("%w: csv_input and ndjson_output are required", ErrInvalidConfig)
		}
	}

	if c.Pipeline.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must not be negative", ErrInvalidConfig)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: log format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}

	return nil
}

// DSN returns the Postgres connection string, built from parts when ConnString is not set
func (d Database) DSN() string {
	if d.ConnString != "" {
		return d.ConnString
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}
