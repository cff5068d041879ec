// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AuthConfig holds authentication and identity provider configuration.
type AuthConfig struct {
	// OIDC / JWKS configuration
	IssuerURL      string        // OIDC issuer URL (e.g., https://login.microsoftonline.com/{tenant}/v2.0)
	JWKSURL        string        // Override JWKS URL (if no .well-known discovery)
	JWTSecret      string        // HS256 shared secret for local/dev JWT auth
	Audience       string        // Required JWT audience claim
	AllowedIssuers []string      // Accepted issuers (defaults to [IssuerURL])
	JWKSCacheTTL   time.Duration // JWKS cache duration (default: 1h)

	// Claim mapping
	NameClaim string // JWT claim for principal name (default: "email")
	RoleClaim string // JWT claim for the caller's role tier (default: "role")

	// AdminRoles lists role values granted access to the audit query surface.
	AdminRoles []string
}

// OIDCEnabled returns true when an external identity provider is configured.
func (a *AuthConfig) OIDCEnabled() bool {
	return a.IssuerURL != "" || a.JWKSURL != ""
}

// Validate checks that the auth configuration is internally consistent.
func (a *AuthConfig) Validate() error {
	if a.IssuerURL == "" && a.JWKSURL == "" && a.JWTSecret == "" {
		return fmt.Errorf("one of AUTH_ISSUER_URL, AUTH_JWKS_URL, or JWT_SECRET must be set")
	}
	if a.IssuerURL != "" && a.Audience == "" {
		return fmt.Errorf("AUTH_AUDIENCE is required when AUTH_ISSUER_URL is set")
	}
	return nil
}

// Config holds the configuration for the gateway HTTP API and its stores.
type Config struct {
	ListenAddr        string // HTTP listen address (default ":8080")
	TLSCertFile       string // TLS certificate file path (optional)
	TLSKeyFile        string // TLS private key file path (optional)
	AllowInsecureHTTP bool   // allow non-TLS listener in production (for trusted TLS termination)
	LogLevel          string // log level: debug, info, warn, error (default "info")
	Env               string // environment: "development" (default) or "production"

	// ClientKeyHeader names the header carrying the caller's client key on the
	// untrusted surface. Requests without it are keyed by remote IP.
	ClientKeyHeader string

	// Rate limiting (fixed window, per client)
	RateLimitWindow     time.Duration // window length W (default 60s)
	RateLimitMax        int           // threshold N per window (default 10)
	RateLimitBackend    string        // "memory" or "redis" (default "memory")
	RateLimitRedisAddr  string        // redis address, required for the redis backend
	RateLimitFailOpen   bool          // admit requests when the redis backend errors (default false)
	RateLimitBeforeAuth bool          // on the authenticated surface, count requests before authorization (default false)

	// Validation
	ValidatorPolicy string // "catalog" or "schema" (default "catalog")
	CatalogPath     string // optional YAML file overriding the built-in allow-list catalog

	// Limit injection
	SQLDialect      string // bound clause dialect: "top" or "limit" (default derived from warehouse backend)
	LimitModeSubmit string // "strict" or "lenient" on the untrusted surface (default "strict")
	LimitModeExec   string // "strict" or "lenient" on the authenticated surface (default "lenient")

	// Role row caps
	RoleCapDefault   int // unauthenticated / unknown roles (default 1000)
	RoleCapAnalyst   int // default 10000
	RoleCapManager   int // default 50000
	RoleCapExecutive int // default 100000

	// Warehouse
	WarehouseBackend string        // "duckdb", "postgres", "mssql", or "none" (default "duckdb")
	WarehouseDSN     string        // driver DSN; empty means in-memory for duckdb
	WarehouseRLS     bool          // warehouse principal is bound by row-level security (reported, not enforced)
	QueryTimeout     time.Duration // hard wall-clock timeout per execution (default 30s)
	DispatchRPS      float64       // sustained warehouse dispatches per second (default 10)
	DispatchBurst    int           // dispatch burst capacity (default 20)

	// Audit store
	AuditDBPath            string // path to the SQLite audit file (default "scout_audit.sqlite")
	AuditRetentionDays     int    // terminal records older than this are swept (default 90; 0 disables)
	AuditRetentionSchedule string // cron spec for the retention sweep (default "@hourly")

	// Audit archive — expiring records are exported before deletion.
	// Backend "none" (default) deletes without export.
	ArchiveBackend  string  // "none", "s3", "azblob", or "gcs"
	ArchiveBucket   string  // bucket or container name
	ArchivePrefix   string  // object key prefix (default "audit/")
	AzureAccountURL string  // azblob service URL (https://{account}.blob.core.windows.net)
	AzureAccountKey string  // azblob shared key, required for the azblob backend
	GCSKeyFile      string  // service-account key file; empty falls back to ambient credentials
	S3KeyID         *string // S3 fields are optional — nil when not configured
	S3Secret        *string
	S3Endpoint      *string
	S3Region        *string

	// TemplatesPath points at a Starlark module defining named query
	// templates. Empty disables the template surface.
	TemplatesPath string

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Auth holds identity provider and authentication configuration.
	Auth AuthConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
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

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Dialect returns the effective bound-clause dialect, deriving it from the
// warehouse backend when SQL_DIALECT is unset. Azure SQL takes a TOP prefix;
// everything else takes a LIMIT suffix.
func (c *Config) Dialect() string {
	if c.SQLDialect != "" {
		return c.SQLDialect
	}
	if c.WarehouseBackend == "mssql" {
		return "top"
	}
	return "limit"
}

// HasS3Config returns true if all required S3 fields are set.
func (c *Config) HasS3Config() bool {
	return c.S3KeyID != nil && c.S3Secret != nil &&
		c.S3Endpoint != nil && c.S3Region != nil
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr:             os.Getenv("LISTEN_ADDR"),
		TLSCertFile:            os.Getenv("TLS_CERT_FILE"),
		TLSKeyFile:             os.Getenv("TLS_KEY_FILE"),
		LogLevel:               os.Getenv("LOG_LEVEL"),
		Env:                    os.Getenv("ENV"),
		ClientKeyHeader:        os.Getenv("CLIENT_KEY_HEADER"),
		RateLimitBackend:       os.Getenv("RATE_LIMIT_BACKEND"),
		RateLimitRedisAddr:     os.Getenv("RATE_LIMIT_REDIS_ADDR"),
		RateLimitFailOpen:      parseBoolEnvDefault("RATE_LIMIT_FAIL_OPEN", false),
		RateLimitBeforeAuth:    parseBoolEnvDefault("RATE_LIMIT_BEFORE_AUTH", false),
		ValidatorPolicy:        os.Getenv("VALIDATOR_POLICY"),
		CatalogPath:            os.Getenv("CATALOG_PATH"),
		SQLDialect:             strings.ToLower(os.Getenv("SQL_DIALECT")),
		LimitModeSubmit:        strings.ToLower(os.Getenv("LIMIT_MODE_SUBMIT")),
		LimitModeExec:          strings.ToLower(os.Getenv("LIMIT_MODE_EXECUTE")),
		WarehouseBackend:       strings.ToLower(os.Getenv("WAREHOUSE_BACKEND")),
		WarehouseDSN:           os.Getenv("WAREHOUSE_DSN"),
		WarehouseRLS:           parseBoolEnvDefault("WAREHOUSE_RLS_ENFORCED", false),
		AuditDBPath:            os.Getenv("AUDIT_DB_PATH"),
		AuditRetentionSchedule: os.Getenv("AUDIT_RETENTION_SCHEDULE"),
		ArchiveBackend:         strings.ToLower(os.Getenv("ARCHIVE_BACKEND")),
		ArchiveBucket:          os.Getenv("ARCHIVE_BUCKET"),
		ArchivePrefix:          os.Getenv("ARCHIVE_PREFIX"),
		AzureAccountURL:        os.Getenv("AZURE_BLOB_ACCOUNT_URL"),
		AzureAccountKey:        os.Getenv("AZURE_BLOB_ACCOUNT_KEY"),
		GCSKeyFile:             os.Getenv("GCS_KEY_FILE"),
		TemplatesPath:          os.Getenv("TEMPLATES_PATH"),
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RateLimitWindow = d
		}
	}
	if v := os.Getenv("RATE_LIMIT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitMax = n
		}
	}

	// Role caps
	cfg.RoleCapDefault = parseIntEnv("ROLE_CAP_DEFAULT")
	cfg.RoleCapAnalyst = parseIntEnv("ROLE_CAP_ANALYST")
	cfg.RoleCapManager = parseIntEnv("ROLE_CAP_MANAGER")
	cfg.RoleCapExecutive = parseIntEnv("ROLE_CAP_EXECUTIVE")

	// Warehouse
	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.QueryTimeout = d
		}
	}
	if v := os.Getenv("DISPATCH_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DispatchRPS = f
		}
	}
	if v := os.Getenv("DISPATCH_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DispatchBurst = n
		}
	}

	// Audit retention
	cfg.AuditRetentionDays = parseIntEnv("AUDIT_RETENTION_DAYS")
	if os.Getenv("AUDIT_RETENTION_DAYS") == "" {
		cfg.AuditRetentionDays = 90
	}

	// S3 archive credentials — only set if present
	if v := os.Getenv("KEY_ID"); v != "" {
		cfg.S3KeyID = &v
	}
	if v := os.Getenv("SECRET"); v != "" {
		cfg.S3Secret = &v
	}
	if v := os.Getenv("ENDPOINT"); v != "" {
		cfg.S3Endpoint = &v
	}
	if v := os.Getenv("REGION"); v != "" {
		cfg.S3Region = &v
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}
	if strings.EqualFold(os.Getenv("ALLOW_INSECURE_HTTP"), "true") {
		cfg.AllowInsecureHTTP = true
	}

	// Auth config
	cfg.Auth = AuthConfig{
		IssuerURL: os.Getenv("AUTH_ISSUER_URL"),
		JWKSURL:   os.Getenv("AUTH_JWKS_URL"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		Audience:  os.Getenv("AUTH_AUDIENCE"),
		NameClaim: os.Getenv("AUTH_NAME_CLAIM"),
		RoleClaim: os.Getenv("AUTH_ROLE_CLAIM"),
	}

	if v := os.Getenv("AUTH_ALLOWED_ISSUERS"); v != "" {
		cfg.Auth.AllowedIssuers = strings.Split(v, ",")
	}
	if v := os.Getenv("AUTH_JWKS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.JWKSCacheTTL = d
		}
	}
	if v := os.Getenv("AUTH_ADMIN_ROLES"); v != "" {
		roles := strings.Split(v, ",")
		for i := range roles {
			roles[i] = strings.TrimSpace(roles[i])
		}
		cfg.Auth.AdminRoles = compactNonEmpty(roles)
	}

	// Auth config defaults
	if cfg.Auth.JWKSCacheTTL == 0 {
		cfg.Auth.JWKSCacheTTL = time.Hour
	}
	if cfg.Auth.NameClaim == "" {
		cfg.Auth.NameClaim = "email"
	}
	if cfg.Auth.RoleClaim == "" {
		cfg.Auth.RoleClaim = "role"
	}
	if len(cfg.Auth.AdminRoles) == 0 {
		cfg.Auth.AdminRoles = []string{"manager", "executive"}
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.ClientKeyHeader == "" {
		cfg.ClientKeyHeader = "X-Client-Id"
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = 60 * time.Second
	}
	if cfg.RateLimitMax == 0 {
		cfg.RateLimitMax = 10
	}
	if cfg.RateLimitBackend == "" {
		cfg.RateLimitBackend = "memory"
	}
	if cfg.ValidatorPolicy == "" {
		cfg.ValidatorPolicy = "catalog"
	}
	if cfg.LimitModeSubmit == "" {
		cfg.LimitModeSubmit = "strict"
	}
	if cfg.LimitModeExec == "" {
		cfg.LimitModeExec = "lenient"
	}
	if cfg.RoleCapDefault == 0 {
		cfg.RoleCapDefault = 1000
	}
	if cfg.RoleCapAnalyst == 0 {
		cfg.RoleCapAnalyst = 10000
	}
	if cfg.RoleCapManager == 0 {
		cfg.RoleCapManager = 50000
	}
	if cfg.RoleCapExecutive == 0 {
		cfg.RoleCapExecutive = 100000
	}
	if cfg.WarehouseBackend == "" {
		cfg.WarehouseBackend = "duckdb"
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.DispatchRPS == 0 {
		cfg.DispatchRPS = 10
	}
	if cfg.DispatchBurst == 0 {
		cfg.DispatchBurst = 20
	}
	if cfg.AuditDBPath == "" {
		cfg.AuditDBPath = "scout_audit.sqlite"
	}
	if cfg.AuditRetentionSchedule == "" {
		cfg.AuditRetentionSchedule = "@hourly"
	}
	if cfg.ArchiveBackend == "" {
		cfg.ArchiveBackend = "none"
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "audit/"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	// Cross-field validation
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return nil, fmt.Errorf("both TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	switch cfg.RateLimitBackend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", cfg.RateLimitBackend)
	}
	if cfg.RateLimitBackend == "redis" && cfg.RateLimitRedisAddr == "" {
		return nil, fmt.Errorf("RATE_LIMIT_REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
	}
	switch cfg.ValidatorPolicy {
	case "catalog", "schema":
	default:
		return nil, fmt.Errorf("VALIDATOR_POLICY must be catalog or schema, got %q", cfg.ValidatorPolicy)
	}
	switch cfg.SQLDialect {
	case "", "top", "limit":
	default:
		return nil, fmt.Errorf("SQL_DIALECT must be top or limit, got %q", cfg.SQLDialect)
	}
	for _, mode := range []string{cfg.LimitModeSubmit, cfg.LimitModeExec} {
		if mode != "strict" && mode != "lenient" {
			return nil, fmt.Errorf("limit injection mode must be strict or lenient, got %q", mode)
		}
	}
	switch cfg.WarehouseBackend {
	case "none", "duckdb", "postgres", "mssql":
	default:
		return nil, fmt.Errorf("WAREHOUSE_BACKEND must be none, duckdb, postgres, or mssql, got %q", cfg.WarehouseBackend)
	}
	if (cfg.WarehouseBackend == "postgres" || cfg.WarehouseBackend == "mssql") && cfg.WarehouseDSN == "" {
		return nil, fmt.Errorf("WAREHOUSE_DSN is required when WAREHOUSE_BACKEND=%s", cfg.WarehouseBackend)
	}
	switch cfg.ArchiveBackend {
	case "none", "s3", "azblob", "gcs":
	default:
		return nil, fmt.Errorf("ARCHIVE_BACKEND must be none, s3, azblob, or gcs, got %q", cfg.ArchiveBackend)
	}
	if cfg.ArchiveBackend != "none" && cfg.ArchiveBucket == "" {
		return nil, fmt.Errorf("ARCHIVE_BUCKET is required when ARCHIVE_BACKEND=%s", cfg.ArchiveBackend)
	}
	if cfg.ArchiveBackend == "s3" && !cfg.HasS3Config() {
		return nil, fmt.Errorf("KEY_ID, SECRET, ENDPOINT, and REGION are required when ARCHIVE_BACKEND=s3")
	}
	if cfg.ArchiveBackend == "azblob" && (cfg.AzureAccountURL == "" || cfg.AzureAccountKey == "") {
		return nil, fmt.Errorf("AZURE_BLOB_ACCOUNT_URL and AZURE_BLOB_ACCOUNT_KEY are required when ARCHIVE_BACKEND=azblob")
	}

	// Non-fatal warnings
	if !cfg.Auth.OIDCEnabled() {
		cfg.Warnings = append(cfg.Warnings, "OIDC is not configured — set AUTH_ISSUER_URL or AUTH_JWKS_URL")
	}
	if cfg.Auth.JWTSecret == "" && !cfg.Auth.OIDCEnabled() {
		cfg.Warnings = append(cfg.Warnings, "no JWT_SECRET and no OIDC — the authenticated surface will reject all requests")
	}
	if cfg.RateLimitFailOpen {
		cfg.Warnings = append(cfg.Warnings, "RATE_LIMIT_FAIL_OPEN=true — redis outages will admit unthrottled traffic")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if !cfg.Auth.OIDCEnabled() {
			return nil, fmt.Errorf("OIDC must be configured in production (set AUTH_ISSUER_URL or AUTH_JWKS_URL)")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.TLSCertFile == "" && !cfg.AllowInsecureHTTP {
			return nil, fmt.Errorf("TLS_CERT_FILE/TLS_KEY_FILE must be set in production unless ALLOW_INSECURE_HTTP=true")
		}
		if cfg.WarehouseBackend == "duckdb" && cfg.WarehouseDSN == "" {
			cfg.Warnings = append(cfg.Warnings, "in-memory duckdb warehouse in production — results vanish on restart")
		}
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func parseIntEnv(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
