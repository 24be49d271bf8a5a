// Package config loads the service configuration from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverFile     = "file"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

var (
	drivers = []string{DriverPostgres, DriverSQLite, DriverFile, DriverRedis, DriverMemory}
	envs    = []string{EnvDev, EnvStage, EnvProd}
)

var ErrInvalidConfig = errors.New("invalid config")

var envPlaceholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${NAME} placeholders with the value of the environment
// variable NAME, empty when unset. Any other "$" is kept as written.
func expandEnv(data []byte) []byte {
	return envPlaceholder.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envPlaceholder.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

type Config struct {
	Env        string     `yaml:"env"`
	BaseURL    string     `yaml:"base_url"`
	ShortCode  ShortCode  `yaml:"short_code"`
	Log        Log        `yaml:"log"`
	HTTPServer HTTPServer `yaml:"http_server"`
	Storage    Storage    `yaml:"storage"`
}

type ShortCode struct {
	Length      int `yaml:"length"`
	MaxAttempts int `yaml:"max_attempts"`
}

var defaultShortCode = ShortCode{
	Length:      6,
	MaxAttempts: 5,
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

var defaultLog = Log{
	Level: "info",
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
	AllowedOrigins: []string{"*"},
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Storage struct {
	Driver   string   `yaml:"driver"`
	SQLite   SQLite   `yaml:"sqlite"`
	File     File     `yaml:"file"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
}

type SQLite struct {
	Path string `yaml:"path"`
}

type File struct {
	Path string `yaml:"path"`
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff"`
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type Redis struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

var defaultStorage = Storage{
	Driver: DriverSQLite,
	SQLite: SQLite{
		Path: "data/urls.db",
	},
	File: File{
		Path: "data/urls.json",
	},
	Postgres: Postgres{
		Host:            "localhost",
		Port:            5432,
		SSLMode:         "disable",
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
		MaxIdleConns:    5,
		MaxOpenConns:    25,
		ConnectAttempts: 3,
		ConnectBackoff:  time.Second,
	},
	Redis: Redis{
		Addr:      "localhost:6379",
		KeyPrefix: "shortlink:",
	},
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	var cfg Config
	setDefaults(&cfg)
	return &cfg
}

// Load reads the YAML file at path, expanding ${NAME} placeholders from the
// environment before decoding. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	cfg := Default()

	data = expandEnv(data)

	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return cfg, nil
}

// Validate reports the first setting that cannot be used to start the service.
func (c *Config) Validate() error {
	if !slices.Contains(envs, c.Env) {
		return fmt.Errorf("%w: unknown env %q", ErrInvalidConfig, c.Env)
	}

	if c.ShortCode.Length < 4 || c.ShortCode.Length > 32 {
		return fmt.Errorf("%w: short_code.length must be between 4 and 32, got %d", ErrInvalidConfig, c.ShortCode.Length)
	}

	if c.ShortCode.MaxAttempts < 1 || c.ShortCode.MaxAttempts > 10 {
		return fmt.Errorf("%w: short_code.max_attempts must be between 1 and 10, got %d", ErrInvalidConfig, c.ShortCode.MaxAttempts)
	}

	if c.HTTPServer.Port < 1 || c.HTTPServer.Port > 65535 {
		return fmt.Errorf("%w: http_server.port out of range: %d", ErrInvalidConfig, c.HTTPServer.Port)
	}

	if c.Env == EnvProd && (c.HTTPServer.CertFile == "" || c.HTTPServer.KeyFile == "") {
		return fmt.Errorf("%w: http_server.cert_file and http_server.key_file are required in %s", ErrInvalidConfig, EnvProd)
	}

	if !slices.Contains(drivers, c.Storage.Driver) {
		return fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver)
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.ShortCode = defaultShortCode
	cfg.Log = defaultLog
	cfg.HTTPServer = defaultHTTPServer
	cfg.HTTPServer.AllowedOrigins = slices.Clone(defaultHTTPServer.AllowedOrigins)
	cfg.Storage = defaultStorage
}
