package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MemoryDSN selects the in-process store instead of PostgreSQL.
const MemoryDSN = "memory://"

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	DBDSN     string
	JWTSecret string

	LogLevel string

	LoginRateLimitPerMin int
	SessionDays          int

	// Languages is the ordered list of content locales. The first entry is
	// the default.
	Languages []string

	RedisURL string

	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	S3PublicURL    string
	IconMaxBytes   int64

	NotificationRetentionDays int
	RetentionSchedule         string

	RoleCacheSize int
	RoleCacheTTL  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("PH_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("PH_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("PH_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("PH_HTTP_ADDR", ":8080")
	cfg.BaseURL = strings.TrimRight(getEnvOrDefault("PH_BASE_URL", "http://localhost:8080"), "/")

	cfg.DBDSN = strings.TrimSpace(os.Getenv("PH_DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("PH_DB_DSN is required")
	}
	if cfg.DBDSN == MemoryDSN && cfg.Env == "prod" {
		return nil, fmt.Errorf("PH_DB_DSN=%s is only allowed in dev", MemoryDSN)
	}

	cfg.JWTSecret = os.Getenv("PH_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("PH_JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("PH_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	cfg.LogLevel = getEnvOrDefault("PH_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("PH_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	var err error
	cfg.LoginRateLimitPerMin, err = getEnvIntOrDefault("PH_LOGIN_RATE_LIMIT_PER_MIN", 10)
	if err != nil {
		return nil, err
	}

	cfg.SessionDays, err = getEnvIntOrDefault("PH_SESSION_DAYS", 7)
	if err != nil {
		return nil, err
	}
	if cfg.SessionDays <= 0 {
		return nil, fmt.Errorf("PH_SESSION_DAYS must be positive (got: %d)", cfg.SessionDays)
	}

	cfg.Languages, err = parseLanguages(getEnvOrDefault("PH_LANGUAGES", "en,pl"))
	if err != nil {
		return nil, err
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("PH_REDIS_URL"))

	cfg.S3Bucket = strings.TrimSpace(os.Getenv("PH_S3_BUCKET"))
	cfg.S3Region = getEnvOrDefault("PH_S3_REGION", "us-east-1")
	cfg.S3Endpoint = strings.TrimSpace(os.Getenv("PH_S3_ENDPOINT"))
	cfg.S3AccessKey = strings.TrimSpace(os.Getenv("PH_S3_ACCESS_KEY"))
	cfg.S3SecretKey = os.Getenv("PH_S3_SECRET_KEY")
	cfg.S3PublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PH_S3_PUBLIC_URL")), "/")
	cfg.S3UsePathStyle, err = getEnvBoolOrDefault("PH_S3_USE_PATH_STYLE", false)
	if err != nil {
		return nil, err
	}
	if (cfg.S3AccessKey == "") != (cfg.S3SecretKey == "") {
		return nil, fmt.Errorf("PH_S3_ACCESS_KEY and PH_S3_SECRET_KEY must be set together")
	}

	cfg.IconMaxBytes, err = getEnvInt64OrDefault("PH_ICON_MAX_BYTES", 1*1024*1024)
	if err != nil {
		return nil, err
	}

	cfg.NotificationRetentionDays, err = getEnvIntOrDefault("PH_NOTIFICATION_RETENTION_DAYS", 30)
	if err != nil {
		return nil, err
	}
	if cfg.NotificationRetentionDays <= 0 {
		return nil, fmt.Errorf("PH_NOTIFICATION_RETENTION_DAYS must be positive (got: %d)", cfg.NotificationRetentionDays)
	}
	cfg.RetentionSchedule = getEnvOrDefault("PH_RETENTION_SCHEDULE", "0 3 * * *")

	cfg.RoleCacheSize, err = getEnvIntOrDefault("PH_ROLE_CACHE_SIZE", 128)
	if err != nil {
		return nil, err
	}
	ttlSeconds, err := getEnvIntOrDefault("PH_ROLE_CACHE_TTL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	cfg.RoleCacheTTL = time.Duration(ttlSeconds) * time.Second

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// UsesMemoryStore reports whether PH_DB_DSN selects the in-process store.
func (c *Config) UsesMemoryStore() bool {
	return c.DBDSN == MemoryDSN
}

// DefaultLanguage is the locale used when a request names none.
func (c *Config) DefaultLanguage() string {
	return c.Languages[0]
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	values := map[string]string{
		"PH_ENV":                         c.Env,
		"PH_HTTP_ADDR":                   c.HTTPAddr,
		"PH_BASE_URL":                    c.BaseURL,
		"PH_DB_DSN":                      redactDSN(c.DBDSN),
		"PH_JWT_SECRET":                  "[REDACTED]",
		"PH_LOG_LEVEL":                   c.LogLevel,
		"PH_LOGIN_RATE_LIMIT_PER_MIN":    strconv.Itoa(c.LoginRateLimitPerMin),
		"PH_SESSION_DAYS":                strconv.Itoa(c.SessionDays),
		"PH_LANGUAGES":                   strings.Join(c.Languages, ","),
		"PH_REDIS_URL":                   redactDSN(c.RedisURL),
		"PH_S3_BUCKET":                   c.S3Bucket,
		"PH_S3_REGION":                   c.S3Region,
		"PH_S3_ENDPOINT":                 c.S3Endpoint,
		"PH_S3_USE_PATH_STYLE":           strconv.FormatBool(c.S3UsePathStyle),
		"PH_S3_PUBLIC_URL":               c.S3PublicURL,
		"PH_ICON_MAX_BYTES":              strconv.FormatInt(c.IconMaxBytes, 10),
		"PH_NOTIFICATION_RETENTION_DAYS": strconv.Itoa(c.NotificationRetentionDays),
		"PH_RETENTION_SCHEDULE":          c.RetentionSchedule,
		"PH_ROLE_CACHE_SIZE":             strconv.Itoa(c.RoleCacheSize),
		"PH_ROLE_CACHE_TTL_SECONDS":      strconv.Itoa(int(c.RoleCacheTTL / time.Second)),
	}
	if c.S3AccessKey != "" {
		values["PH_S3_ACCESS_KEY"] = "[REDACTED]"
		values["PH_S3_SECRET_KEY"] = "[REDACTED]"
	}
	return values
}

func parseLanguages(raw string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		lang := strings.ToLower(strings.TrimSpace(part))
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("PH_LANGUAGES must name at least one language")
	}
	return out, nil
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}

func getEnvInt64OrDefault(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}

func getEnvBoolOrDefault(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean (got: %q)", key, value)
	}
	return parsed, nil
}
