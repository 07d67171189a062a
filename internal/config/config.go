// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Ledger   LedgerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings for postgres or sqlite.
type DatabaseConfig struct {
	Driver     string // "postgres" or "sqlite"
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	RawDSN     string // DATABASE_DSN, takes precedence over the parts above
	SQLitePath string
	Debug      bool
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
	Seed       bool
}

// LedgerConfig holds production ledger settings.
type LedgerConfig struct {
	// Tolerance is the relative slack allowed on the 100% and montantHT ceilings.
	Tolerance float64
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	if d.RawDSN != "" {
		return d.RawDSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format, as needed by
// golang-migrate. A key=value DATABASE_DSN is converted so migrations run
// against the same database the application connects to.
func (d DatabaseConfig) URL() string {
	if d.RawDSN != "" {
		return ToURLDSN(d.RawDSN)
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// ToURLDSN builds a URL style DSN from a lib/pq key=value list. URL DSNs are
// returned unchanged, as are lists missing host, user or dbname.
// sslmode defaults to disable like NormalizeDSN in the db package.
func ToURLDSN(kvDSN string) string {
	s := strings.Trim(strings.TrimSpace(kvDSN), "\"'")
	lower := strings.ToLower(s)
	if s == "" || strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return s
	}
	m := map[string]string{}
	for _, part := range strings.Fields(s) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			m[strings.ToLower(kv[0])] = strings.Trim(kv[1], "'")
		}
	}
	host, user, dbname := m["host"], m["user"], m["dbname"]
	if host == "" || user == "" || dbname == "" {
		return s
	}
	u := &url.URL{Scheme: "postgres", Host: host, Path: "/" + dbname}
	if port := m["port"]; port != "" {
		u.Host = net.JoinHostPort(host, port)
	}
	if pass, ok := m["password"]; ok {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	sslmode := m["sslmode"]
	if sslmode == "" {
		sslmode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {sslmode}}.Encode()
	return u.String()
}

// IsSQLite reports whether the sqlite driver is selected.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "production"),
			Password:   getEnv("DB_PASSWORD", "production123"),
			DBName:     getEnv("DB_NAME", "production"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			RawDSN:     os.Getenv("DATABASE_DSN"),
			SQLitePath: getEnv("SQLITE_PATH", "production.db"),
			Debug:      getEnvBool("DB_DEBUG", false),
		},
		App: AppConfig{
			Dev:        getEnvBool("DEV", true),
			Migrations: getEnvBool("MIGRATIONS", false),
			Seed:       getEnvBool("DB_SEED", false),
		},
		Ledger: LedgerConfig{
			Tolerance: getEnvFloat("LEDGER_TOLERANCE", 1e-9),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvFloat returns the float value of an environment variable or a default.
// Negative values are rejected.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f >= 0 {
			return f
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
