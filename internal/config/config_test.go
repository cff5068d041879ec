package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearGatewayEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "LOG_LEVEL", "ENV", "CLIENT_KEY_HEADER",
		"RATE_LIMIT_WINDOW", "RATE_LIMIT_MAX", "RATE_LIMIT_BACKEND", "RATE_LIMIT_REDIS_ADDR",
		"VALIDATOR_POLICY", "CATALOG_PATH", "SQL_DIALECT", "LIMIT_MODE_SUBMIT", "LIMIT_MODE_EXECUTE",
		"WAREHOUSE_BACKEND", "WAREHOUSE_DSN", "WAREHOUSE_RLS_ENFORCED", "QUERY_TIMEOUT",
		"AUDIT_DB_PATH", "AUDIT_RETENTION_DAYS", "ARCHIVE_BACKEND", "ARCHIVE_BUCKET",
		"KEY_ID", "SECRET", "ENDPOINT", "REGION",
		"AZURE_BLOB_ACCOUNT_URL", "AZURE_BLOB_ACCOUNT_KEY", "GCS_KEY_FILE",
		"TLS_CERT_FILE", "TLS_KEY_FILE", "CORS_ALLOWED_ORIGINS",
		"AUTH_ISSUER_URL", "AUTH_JWKS_URL", "JWT_SECRET", "AUTH_AUDIENCE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearGatewayEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "X-Client-Id", cfg.ClientKeyHeader)
	assert.Equal(t, 60*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 10, cfg.RateLimitMax)
	assert.Equal(t, "memory", cfg.RateLimitBackend)
	assert.False(t, cfg.RateLimitBeforeAuth)
	assert.False(t, cfg.RateLimitFailOpen)
	assert.Equal(t, "catalog", cfg.ValidatorPolicy)
	assert.Equal(t, "strict", cfg.LimitModeSubmit)
	assert.Equal(t, "lenient", cfg.LimitModeExec)
	assert.Equal(t, 1000, cfg.RoleCapDefault)
	assert.Equal(t, 10000, cfg.RoleCapAnalyst)
	assert.Equal(t, 50000, cfg.RoleCapManager)
	assert.Equal(t, 100000, cfg.RoleCapExecutive)
	assert.Equal(t, "duckdb", cfg.WarehouseBackend)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, "scout_audit.sqlite", cfg.AuditDBPath)
	assert.Equal(t, 90, cfg.AuditRetentionDays)
	assert.Equal(t, "none", cfg.ArchiveBackend)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "limit", cfg.Dialect())
	assert.Equal(t, "email", cfg.Auth.NameClaim)
	assert.Equal(t, "role", cfg.Auth.RoleClaim)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_MAX", "5")
	t.Setenv("RATE_LIMIT_BACKEND", "redis")
	t.Setenv("RATE_LIMIT_REDIS_ADDR", "localhost:6379")
	t.Setenv("VALIDATOR_POLICY", "schema")
	t.Setenv("SQL_DIALECT", "top")
	t.Setenv("LIMIT_MODE_SUBMIT", "lenient")
	t.Setenv("WAREHOUSE_BACKEND", "postgres")
	t.Setenv("WAREHOUSE_DSN", "postgres://scout@localhost/warehouse")
	t.Setenv("QUERY_TIMEOUT", "10s")
	t.Setenv("ROLE_CAP_ANALYST", "2000")
	t.Setenv("AUDIT_DB_PATH", "/tmp/audit.sqlite")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, "redis", cfg.RateLimitBackend)
	assert.Equal(t, "localhost:6379", cfg.RateLimitRedisAddr)
	assert.Equal(t, "schema", cfg.ValidatorPolicy)
	assert.Equal(t, "top", cfg.Dialect())
	assert.Equal(t, "lenient", cfg.LimitModeSubmit)
	assert.Equal(t, "postgres", cfg.WarehouseBackend)
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 2000, cfg.RoleCapAnalyst)
	assert.Equal(t, "/tmp/audit.sqlite", cfg.AuditDBPath)
}

func TestLoadFromEnv_RedisBackendRequiresAddr(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("RATE_LIMIT_BACKEND", "redis")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RATE_LIMIT_REDIS_ADDR")
}

func TestLoadFromEnv_InvalidValidatorPolicy(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("VALIDATOR_POLICY", "regex")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VALIDATOR_POLICY")
}

func TestLoadFromEnv_TLSPairRequired(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("TLS_CERT_FILE", "/tmp/cert.pem")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TLS_CERT_FILE and TLS_KEY_FILE")
}

func TestDialect_DerivedFromWarehouse(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("WAREHOUSE_BACKEND", "mssql")
	t.Setenv("WAREHOUSE_DSN", "sqlserver://scout@localhost?database=analytics")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "top", cfg.Dialect())

	cfg.SQLDialect = "limit"
	assert.Equal(t, "limit", cfg.Dialect(), "explicit SQL_DIALECT overrides the backend derivation")
}

func TestLoadFromEnv_ProductionRequiresOIDC(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("ENV", "production")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OIDC")
}

func TestLoadFromEnv_ProductionHardened(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("AUTH_ISSUER_URL", "https://login.example.com/tenant/v2.0")
	t.Setenv("AUTH_AUDIENCE", "scout-gateway")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://dashboard.example.com")
	t.Setenv("ALLOW_INSECURE_HTTP", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, []string{"https://dashboard.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnv_ArchiveRequiresBucket(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("ARCHIVE_BACKEND", "s3")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ARCHIVE_BUCKET")
}

func TestLoadFromEnv_AzblobRequiresURLAndKey(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("ARCHIVE_BACKEND", "azblob")
	t.Setenv("ARCHIVE_BUCKET", "audit-archive")
	t.Setenv("AZURE_BLOB_ACCOUNT_URL", "https://scoutaudit.blob.core.windows.net")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_BLOB_ACCOUNT_KEY")

	t.Setenv("AZURE_BLOB_ACCOUNT_KEY", "c2NvdXQtdGVzdC1rZXk=")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://scoutaudit.blob.core.windows.net", cfg.AzureAccountURL)
}

func TestHasS3Config_PartialConfig(t *testing.T) {
	clearGatewayEnv(t)
	t.Setenv("KEY_ID", "testkey")
	t.Setenv("ENDPOINT", "s3.example.com")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.HasS3Config(), "partial S3 config should return false")
}

func TestAuthConfig_Validate(t *testing.T) {
	auth := AuthConfig{}
	require.Error(t, auth.Validate())

	auth.JWTSecret = "dev-secret"
	require.NoError(t, auth.Validate())

	auth = AuthConfig{IssuerURL: "https://login.example.com"}
	require.Error(t, auth.Validate(), "issuer without audience should fail")

	auth.Audience = "scout-gateway"
	require.NoError(t, auth.Validate())
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	if err != nil {
		t.Errorf("expected no error for missing .env, got: %v", err)
	}
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_KEY=test_value\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_KEY"); val != "test_value" {
		t.Errorf("TEST_KEY = %q, want %q", val, "test_value")
	}
	_ = os.Unsetenv("TEST_KEY")
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("TEST_PRECEDENCE_KEY", "from_env")

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte("TEST_PRECEDENCE_KEY=from_file\n"), 0644)
	if err != nil {
		t.Fatalf("write .env: %v", err)
	}

	if err := LoadDotEnv(envFile); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if val := os.Getenv("TEST_PRECEDENCE_KEY"); val != "from_env" {
		t.Errorf("TEST_PRECEDENCE_KEY = %q, want %q (env precedence)", val, "from_env")
	}
}
