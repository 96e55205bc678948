package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Service names, also used as env prefixes (LOAN_PORT, DEV_LOAN_DB_NAME, ...)
const (
	ServiceAuth    = "auth"
	ServiceLoan    = "loan"
	ServicePayment = "payment"
	ServiceGateway = "gateway"
)

// Config holds all configuration for one service process
type Config struct {
	AppMode   string
	Service   string
	Port      string
	LogLevel  string
	RateLimit int // requests per minute per IP, 0 disables
	Database  DatabaseConfig
	JWT       JWTConfig
	Services  ServicesConfig
	LoanCall  LoanCallConfig
	Reconcile ReconcileConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string // mysql | sqlite
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	Path     string // sqlite file
}

// JWTConfig holds Access Gate token configuration
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	ServiceTokenTTL time.Duration
}

// ServicesConfig holds base URLs of the cooperating services
type ServicesConfig struct {
	AuthURL    string
	LoanURL    string
	PaymentURL string
}

// LoanCallConfig bounds the payment service's call into the loan service
type LoanCallConfig struct {
	Timeout time.Duration
}

// ReconcileConfig configures the payment reconciliation job
type ReconcileConfig struct {
	Enabled   bool
	Schedule  string
	BatchSize int
}

var defaultPorts = map[string]string{
	ServiceGateway: "3000",
	ServiceAuth:    "3001",
	ServiceLoan:    "3002",
	ServicePayment: "3003",
}

// Load reads configuration for service from .env file and environment variables
func Load(service string) (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	_ = godotenv.Load()

	if _, ok := defaultPorts[service]; !ok {
		return nil, fmt.Errorf("unknown service: '%s'", service)
	}

	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	upper := strings.ToUpper(service)

	cfg := &Config{
		AppMode:   appMode,
		Service:   service,
		Port:      getEnv(upper+"_PORT", defaultPorts[service]),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		RateLimit: getInt("RATE_LIMIT_MAX", 100),
		Database:  loadDatabaseConfig(appMode, upper),
		JWT:       loadJWTConfig(appMode),
		Services:  loadServicesConfig(),
		LoanCall:  LoanCallConfig{Timeout: getDuration("LOAN_CALL_TIMEOUT", 5*time.Second)},
		Reconcile: loadReconcileConfig(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadDatabaseConfig loads database config based on mode and owning service
func loadDatabaseConfig(mode, service string) DatabaseConfig {
	prefix := "DEV_" + service + "_"
	if mode == "prod" {
		prefix = "PROD_" + service + "_"
	}

	return DatabaseConfig{
		Driver:   getEnv(prefix+"DB_DRIVER", getEnv("DB_DRIVER", "mysql")),
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "bes_"+strings.ToLower(service)),
		Path:     getEnv(prefix+"DB_PATH", "./data/"+strings.ToLower(service)+".db"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	accessMins, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "10080")) // 7 days
	serviceSecs, _ := strconv.Atoi(getEnv("SERVICE_TOKEN_SECONDS", "60"))

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", "default_secret"),
		AccessTokenTTL:  time.Duration(accessMins) * time.Minute,
		ServiceTokenTTL: time.Duration(serviceSecs) * time.Second,
	}
}

func loadServicesConfig() ServicesConfig {
	return ServicesConfig{
		AuthURL:    strings.TrimRight(getEnv("AUTH_SERVICE_URL", "http://localhost:3001"), "/"),
		LoanURL:    strings.TrimRight(getEnv("LOAN_SERVICE_URL", "http://localhost:3002"), "/"),
		PaymentURL: strings.TrimRight(getEnv("PAYMENT_SERVICE_URL", "http://localhost:3003"), "/"),
	}
}

func loadReconcileConfig() ReconcileConfig {
	enabled, err := strconv.ParseBool(getEnv("RECONCILE_ENABLED", "true"))
	if err != nil {
		enabled = true
	}
	batch, err := strconv.Atoi(getEnv("RECONCILE_BATCH_SIZE", "100"))
	if err != nil || batch <= 0 {
		batch = 100
	}

	return ReconcileConfig{
		Enabled:   enabled,
		Schedule:  getEnv("RECONCILE_SCHEDULE", "@every 1m"),
		BatchSize: batch,
	}
}

func (c *Config) validate() error {
	if c.Database.Driver != "mysql" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("invalid DB_DRIVER: '%s' (must be 'mysql' or 'sqlite')", c.Database.Driver)
	}
	if c.IsProd() && c.JWT.Secret == "default_secret" {
		return fmt.Errorf("PROD_JWT_SECRET must be set in prod mode")
	}
	if c.LoanCall.Timeout <= 0 {
		return fmt.Errorf("LOAN_CALL_TIMEOUT must be positive")
	}
	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt parses an integer with default value
func getInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return n
}

// getDuration parses a Go duration ("5s", "1m") with default value
func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:3000"
	}
	return origins
}
