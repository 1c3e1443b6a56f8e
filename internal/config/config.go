// Package config loads server and database configuration. Database
// credentials come from the environment; server settings come from an
// optional YAML file with sane defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DB holds PostgreSQL connection settings, read from the environment.
type DB struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// LoadDB reads the DB_* environment variables.
func LoadDB() DB {
	return DB{
		Host:     envOr("DB_HOST", "localhost"),
		Port:     envOr("DB_PORT", "5432"),
		User:     envOr("DB_USER", "postgres"),
		Password: envOr("DB_PASSWORD", ""),
		Name:     envOr("DB_NAME", "draftauction"),
		SSLMode:  envOr("DB_SSLMODE", "disable"),
	}
}

// DSN renders the config as a pgx connection string.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// Server holds the gateway's runtime settings.
type Server struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	// StoreBackend selects "postgres" or "memory".
	StoreBackend string `yaml:"store_backend"`

	// NATSURL enables the cross-instance event relay when set.
	NATSURL string `yaml:"nats_url"`

	// ScrimServiceURL enables scrim creation on auction completion when set.
	ScrimServiceURL string `yaml:"scrim_service_url"`
}

// LoadServer reads the YAML config at path. A missing file yields the
// defaults; environment variables override the file.
func LoadServer(path string) (Server, error) {
	cfg := Server{
		Addr:           ":8080",
		AllowedOrigins: []string{"*"},
		StoreBackend:   "memory",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATSURL = v
	}
	if v := os.Getenv("SCRIM_SERVICE_URL"); v != "" {
		cfg.ScrimServiceURL = v
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
