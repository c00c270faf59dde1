// Package config reads process settings from command-line flags, falling back
// to environment variables and then to defaults. A .env file in the working
// directory is loaded into the environment first when present.
//
// Flags take precedence over the environment:
//
//	PORT                           -port
//	STORE_DRIVER                   -store        postgres, sqlite, memory or firestore
//	DATABASE_URL                   -database-url
//	POSTGRES_{HOST,PORT,USER,PASSWORD,DB}   -db-host, -db-port, -db-user, -db-pass, -db-name
//	SQLITE_PATH                    -sqlite-path
//	FIRESTORE_PROJECT_ID           -firestore-project
//	GOOGLE_APPLICATION_CREDENTIALS -firestore-credentials
//	REDIS_URL                      -redis-url
//	CACHE_TTL                      -cache-ttl
//	KAFKA_BROKERS                  -kafka-brokers (comma separated)
//	KAFKA_TOPIC                    -kafka-topic
//	JWT_SECRET                     -jwt-secret
//	GOOGLE_CLIENT_ID               -google-client-id
//	AUTH_REDIRECT_URL              -auth-redirect-url
//	COOKIE_DOMAIN                  -cookie-domain
//	CORS_ORIGINS                   -cors-origins (comma separated)
//	LOG_LEVEL                      -log-level    debug, info, warn or error
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres  = "postgres"
	DriverSQLite    = "sqlite"
	DriverMemory    = "memory"
	DriverFirestore = "firestore"

	defaultPort       = 8080
	defaultCacheTTL   = 30 * time.Second
	defaultKafkaTopic = "poll-events"
	defaultSQLitePath = "polls.db"
	defaultSweepGrace = 10 * time.Minute
)

// LoadDotEnv loads .env into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
}

// StoreConfig selects and locates the data store.
type StoreConfig struct {
	Driver string

	DatabaseURL      string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string

	SQLitePath string

	FirestoreProjectID   string
	FirestoreCredentials string
}

func (c *StoreConfig) register(fs *flag.FlagSet) {
	fs.StringVar(&c.Driver, "store", envOr("STORE_DRIVER", DriverPostgres), "Data store: postgres, sqlite, memory or firestore")
	fs.StringVar(&c.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection URL")
	fs.StringVar(&c.PostgresHost, "db-host", os.Getenv("POSTGRES_HOST"), "Database host")
	fs.StringVar(&c.PostgresPort, "db-port", envOr("POSTGRES_PORT", "5432"), "Database port")
	fs.StringVar(&c.PostgresUser, "db-user", os.Getenv("POSTGRES_USER"), "Database user")
	fs.StringVar(&c.PostgresPassword, "db-pass", os.Getenv("POSTGRES_PASSWORD"), "Database password")
	fs.StringVar(&c.PostgresDB, "db-name", os.Getenv("POSTGRES_DB"), "Database name")
	fs.StringVar(&c.SQLitePath, "sqlite-path", envOr("SQLITE_PATH", defaultSQLitePath), "SQLite database file")
	fs.StringVar(&c.FirestoreProjectID, "firestore-project", os.Getenv("FIRESTORE_PROJECT_ID"), "Firestore project ID")
	fs.StringVar(&c.FirestoreCredentials, "firestore-credentials", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), "Service account JSON file for Firestore")
}

// PostgresDSN prefers DATABASE_URL and otherwise builds a URL from the
// POSTGRES_* parts.
func (c StoreConfig) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

func (c StoreConfig) Validate() error {
	switch c.Driver {
	case DriverPostgres:
		if c.DatabaseURL == "" && (c.PostgresHost == "" || c.PostgresDB == "") {
			return errors.New("postgres store requires DATABASE_URL or POSTGRES_HOST and POSTGRES_DB")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return errors.New("sqlite store requires SQLITE_PATH")
		}
	case DriverFirestore:
		if c.FirestoreProjectID == "" {
			return errors.New("firestore store requires FIRESTORE_PROJECT_ID")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Driver)
	}
	return nil
}

type ServerConfig struct {
	Port  int
	Store StoreConfig

	RedisURL     string
	CacheTTL     time.Duration
	KafkaBrokers []string
	KafkaTopic   string

	JWTSecret       string
	GoogleClientID  string
	AuthRedirectURL string
	CookieDomain    string
	CORSOrigins     []string

	LogLevel slog.Level
}

// Addr is the listen address for Port.
func (c ServerConfig) Addr() string {
	return "0.0.0.0:" + strconv.Itoa(c.Port)
}

// WebSocketOrigins turns the CORS origins into host patterns, which is the
// form WebSocket origin checks match against.
func (c ServerConfig) WebSocketOrigins() []string {
	hosts := make([]string, 0, len(c.CORSOrigins))
	for _, origin := range c.CORSOrigins {
		if _, host, ok := strings.Cut(origin, "://"); ok {
			origin = host
		}
		hosts = append(hosts, strings.TrimSuffix(origin, "/"))
	}
	return hosts
}

// ParseServer reads the API server settings. args excludes the program name.
func ParseServer(args []string) (ServerConfig, error) {
	var (
		cfg                   ServerConfig
		brokers, origins, lvl string
		envErrs               []error
	)

	port, err := envInt("PORT", defaultPort)
	envErrs = append(envErrs, err)
	cacheTTL, err := envDuration("CACHE_TTL", defaultCacheTTL)
	envErrs = append(envErrs, err)
	if err := errors.Join(envErrs...); err != nil {
		return ServerConfig{}, err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", port, "Server port")
	cfg.Store.register(fs)
	fs.StringVar(&cfg.RedisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL for the poll listing cache; empty disables caching")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cacheTTL, "How long a cached poll listing is served")
	fs.StringVar(&brokers, "kafka-brokers", os.Getenv("KAFKA_BROKERS"), "Comma separated Kafka brokers; empty disables event publishing")
	fs.StringVar(&cfg.KafkaTopic, "kafka-topic", envOr("KAFKA_TOPIC", defaultKafkaTopic), "Kafka topic for poll events")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", os.Getenv("JWT_SECRET"), "Secret used to sign access tokens (prefer env)")
	fs.StringVar(&cfg.GoogleClientID, "google-client-id", os.Getenv("GOOGLE_CLIENT_ID"), "Google OAuth client ID")
	fs.StringVar(&cfg.AuthRedirectURL, "auth-redirect-url", envOr("AUTH_REDIRECT_URL", "/"), "Where the browser goes after login")
	fs.StringVar(&cfg.CookieDomain, "cookie-domain", os.Getenv("COOKIE_DOMAIN"), "Domain of the auth cookies")
	fs.StringVar(&origins, "cors-origins", envOr("CORS_ORIGINS", "*"), "Comma separated allowed CORS origins")
	fs.StringVar(&lvl, "log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return ServerConfig{}, err
	}

	cfg.KafkaBrokers = splitList(brokers)
	cfg.CORSOrigins = splitList(origins)
	if cfg.LogLevel, err = parseLevel(lvl); err != nil {
		return ServerConfig{}, err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return ServerConfig{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if err := cfg.Store.Validate(); err != nil {
		return ServerConfig{}, err
	}
	if cfg.JWTSecret == "" {
		return ServerConfig{}, errors.New("JWT_SECRET required (use -jwt-secret or JWT_SECRET env)")
	}
	if len(cfg.CORSOrigins) == 0 {
		return ServerConfig{}, errors.New("at least one CORS origin is required")
	}

	return cfg, nil
}

type SweepConfig struct {
	Store    StoreConfig
	RedisURL string
	Grace    time.Duration
	DryRun   bool
	Timeout  time.Duration
	LogLevel slog.Level
}

// ParseSweep reads the orphan sweep job settings.
func ParseSweep(args []string) (SweepConfig, error) {
	var (
		cfg SweepConfig
		lvl string
	)

	fs := flag.NewFlagSet("orphansweep", flag.ContinueOnError)
	cfg.Store.register(fs)
	fs.StringVar(&cfg.RedisURL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL of the listing cache to invalidate")
	fs.DurationVar(&cfg.Grace, "grace", defaultSweepGrace, "Only polls older than this are considered orphans")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Report orphans without deleting them")
	fs.DurationVar(&cfg.Timeout, "timeout", 5*time.Minute, "Upper bound for the whole job")
	fs.StringVar(&lvl, "log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return SweepConfig{}, err
	}

	var err error
	if cfg.LogLevel, err = parseLevel(lvl); err != nil {
		return SweepConfig{}, err
	}
	if cfg.Grace <= 0 {
		return SweepConfig{}, errors.New("grace must be positive")
	}
	if err := cfg.Store.Validate(); err != nil {
		return SweepConfig{}, err
	}
	return cfg, nil
}

// ParseMigrate reads the postgres settings for the migrations tool and
// returns the positional arguments left after the flags.
func ParseMigrate(args []string) (StoreConfig, []string, error) {
	var cfg StoreConfig

	fs := flag.NewFlagSet("migrations", flag.ContinueOnError)
	cfg.register(fs)
	if err := fs.Parse(args); err != nil {
		return StoreConfig{}, nil, err
	}

	cfg.Driver = DriverPostgres
	if err := cfg.Validate(); err != nil {
		return StoreConfig{}, nil, err
	}
	return cfg, fs.Args(), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
