package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"taskbot/internal/service"
)

// Keys double as flag names; the environment variable is the key upper-cased
// with dashes turned into underscores (jwt-secret -> JWT_SECRET).
const (
	KeyPort              = "port"
	KeyEnvironment       = "environment"
	KeyLogLevel          = "log-level"
	KeyJWTSecret         = "jwt-secret"
	KeyTokenTTL          = "token-ttl"
	KeyBcryptCost        = "bcrypt-cost"
	KeyDatabaseURL       = "database-url"
	KeyDBHost            = "db-host"
	KeyDBPort            = "db-port"
	KeyDBUser            = "db-user"
	KeyDBPassword        = "db-password"
	KeyDBName            = "db-name"
	KeyDBMaxConns        = "db-max-conns"
	KeySQLitePath        = "sqlite-path"
	KeyDefaultStatus     = "default-task-status"
	KeyUpdateEmptyFields = "update-empty-fields"
	KeySerializeRequests = "serialize-requests"
	KeyRetryAttempts     = "retry-attempts"
	KeyRetryDelay        = "retry-delay"
	KeyMetricsAddr       = "metrics-addr"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendSQLite   Backend = "sqlite"
)

type Config struct {
	Port        int
	Environment string
	LogLevel    string

	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int

	DatabaseURL string
	DBHost      string
	DBPort      int
	DBUser      string
	DBPassword  string
	DBName      string
	DBMaxConns  int
	SQLitePath  string

	DefaultTaskStatus string
	UpdatePolicy      service.UpdatePolicy
	SerializeRequests bool

	RetryAttempts int
	RetryDelay    time.Duration

	MetricsAddr string
}

// RegisterFlags declares every setting on fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Int(KeyPort, 3000, "HTTP listen port")
	fs.String(KeyEnvironment, "development", "deployment environment (production enables JSON logs and requires a JWT secret)")
	fs.String(KeyLogLevel, "info", "log level (debug, info, warn, error)")
	fs.String(KeyJWTSecret, "", "HMAC secret for access tokens (random per process when empty outside production)")
	fs.Duration(KeyTokenTTL, 24*time.Hour, "access token lifetime")
	fs.Int(KeyBcryptCost, 10, "bcrypt cost for password hashes")
	fs.String(KeyDatabaseURL, "", "PostgreSQL connection URL")
	fs.String(KeyDBHost, "", "PostgreSQL host (used when no URL is given)")
	fs.Int(KeyDBPort, 5432, "PostgreSQL port")
	fs.String(KeyDBUser, "postgres", "PostgreSQL user")
	fs.String(KeyDBPassword, "", "PostgreSQL password")
	fs.String(KeyDBName, "taskbot", "PostgreSQL database name")
	fs.Int(KeyDBMaxConns, 1, "maximum PostgreSQL pool connections")
	fs.String(KeySQLitePath, "", "sqlite database file (used when no PostgreSQL settings are given)")
	fs.String(KeyDefaultStatus, "pending", "status given to new tasks and subtasks")
	fs.String(KeyUpdateEmptyFields, string(service.IgnoreEmpty), "how updates treat empty strings: ignore-empty or apply-empty")
	fs.Bool(KeySerializeRequests, false, "admit one API request at a time in arrival order")
	fs.Int(KeyRetryAttempts, 3, "store attempts per operation")
	fs.Duration(KeyRetryDelay, time.Second, "base delay between store attempts, multiplied by the attempt number")
	fs.String(KeyMetricsAddr, "", "listen address for /metrics (disabled when empty)")
}

// Bind wires every flag on fs into v and enables environment overrides.
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		if bindErr := v.BindPFlag(f.Name, f); bindErr != nil {
			err = fmt.Errorf("bind flag %q: %w", f.Name, bindErr)
		}
	})
	return err
}

// Load reads the settings bound into v and validates them.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:              v.GetInt(KeyPort),
		Environment:       strings.TrimSpace(v.GetString(KeyEnvironment)),
		LogLevel:          strings.TrimSpace(v.GetString(KeyLogLevel)),
		JWTSecret:         v.GetString(KeyJWTSecret),
		TokenTTL:          v.GetDuration(KeyTokenTTL),
		BcryptCost:        v.GetInt(KeyBcryptCost),
		DatabaseURL:       strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		DBHost:            strings.TrimSpace(v.GetString(KeyDBHost)),
		DBPort:            v.GetInt(KeyDBPort),
		DBUser:            v.GetString(KeyDBUser),
		DBPassword:        v.GetString(KeyDBPassword),
		DBName:            v.GetString(KeyDBName),
		DBMaxConns:        v.GetInt(KeyDBMaxConns),
		SQLitePath:        strings.TrimSpace(v.GetString(KeySQLitePath)),
		DefaultTaskStatus: strings.TrimSpace(v.GetString(KeyDefaultStatus)),
		SerializeRequests: v.GetBool(KeySerializeRequests),
		RetryAttempts:     v.GetInt(KeyRetryAttempts),
		RetryDelay:        v.GetDuration(KeyRetryDelay),
		MetricsAddr:       strings.TrimSpace(v.GetString(KeyMetricsAddr)),
	}

	policy, err := service.ParseUpdatePolicy(v.GetString(KeyUpdateEmptyFields))
	if err != nil {
		return Config{}, err
	}
	cfg.UpdatePolicy = policy

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Production() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1, got %d", c.RetryAttempts)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative, got %s", c.RetryDelay)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("db max conns must be at least 1, got %d", c.DBMaxConns)
	}
	if c.DefaultTaskStatus == "" {
		return errors.New("default task status must not be empty")
	}
	return nil
}

func (c Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Backend picks PostgreSQL when a URL or host is configured, then sqlite
// when a path is, and the in-memory store otherwise.
func (c Config) Backend() Backend {
	switch {
	case c.DatabaseURL != "" || c.DBHost != "":
		return BackendPostgres
	case c.SQLitePath != "":
		return BackendSQLite
	default:
		return BackendMemory
	}
}

// PostgresURL returns DatabaseURL, or one assembled from the DB_* parts.
func (c Config) PostgresURL() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}
