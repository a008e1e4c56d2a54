package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Env != Development {
		t.Errorf("expected default env development, got %s", cfg.Env)
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("expected default HTTP_PORT 8080, got %d", cfg.HTTPPort)
	}
	if cfg.ServerSchedulerEnabled {
		t.Errorf("expected SERVER_SCHEDULER_ENABLED to default off")
	}
	if !cfg.RetentionMaintenanceEnabled {
		t.Errorf("expected RETENTION_MAINTENANCE_ENABLED to default on")
	}
	if cfg.RetentionMaintenanceIntervalSeconds != 86400 {
		t.Errorf("expected default retention interval 86400, got %d", cfg.RetentionMaintenanceIntervalSeconds)
	}
	if cfg.ActivityRetentionDays != 2555 {
		t.Errorf("expected default activity retention 2555, got %d", cfg.ActivityRetentionDays)
	}
	if cfg.IndexingRunsRetentionDays != 10950 {
		t.Errorf("expected default indexing runs retention 10950, got %d", cfg.IndexingRunsRetentionDays)
	}
	if cfg.QuarantineRetentionDays != 30 {
		t.Errorf("expected default quarantine retention 30, got %d", cfg.QuarantineRetentionDays)
	}
	if cfg.StaleRunTimeoutSeconds != 21600 {
		t.Errorf("expected default stale run timeout 21600, got %d", cfg.StaleRunTimeoutSeconds)
	}
	if !cfg.APIRequireAuth {
		t.Errorf("expected API_REQUIRE_AUTH to default true")
	}
	if cfg.DemoMode {
		t.Errorf("expected DEMO_MODE to default false")
	}
	if cfg.APIKeyPrefix != "pgv_sk_" {
		t.Errorf("expected default api key prefix pgv_sk_, got %s", cfg.APIKeyPrefix)
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("APP_ENV", "testing")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("SERVER_SCHEDULER_ENABLED", "true")
	t.Setenv("QUARANTINE_RETENTION_DAYS", "14")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Env != Testing {
		t.Errorf("expected testing env, got %s", cfg.Env)
	}
	if cfg.HTTPPort != 9000 {
		t.Errorf("expected HTTP_PORT override 9000, got %d", cfg.HTTPPort)
	}
	if !cfg.ServerSchedulerEnabled {
		t.Errorf("expected SERVER_SCHEDULER_ENABLED override true")
	}
	if cfg.QuarantineRetentionDays != 14 {
		t.Errorf("expected QUARANTINE_RETENTION_DAYS override 14, got %d", cfg.QuarantineRetentionDays)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("expected trimmed CORS origins, got %v", cfg.CORSOrigins)
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("APP_ENV", "bogus")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid APP_ENV")
	}
}

func TestValidateProductionRequiresAuth(t *testing.T) {
	cfg := &Config{
		Env:                                 Production,
		HTTPPort:                            8080,
		APIRequireAuth:                      false,
		RetentionMaintenanceIntervalSeconds: 86400,
		StaleRunTimeoutSeconds:              21600,
		APIKeyPrefix:                        "pgv_sk_",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when auth disabled in production")
	}
}

func TestValidateProductionRejectsDemoMode(t *testing.T) {
	cfg := &Config{
		Env:                                 Production,
		HTTPPort:                            8080,
		APIRequireAuth:                      true,
		DemoMode:                            true,
		RetentionMaintenanceIntervalSeconds: 86400,
		StaleRunTimeoutSeconds:              21600,
		APIKeyPrefix:                        "pgv_sk_",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when demo mode enabled in production")
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := &Config{
		Env:                                 Development,
		HTTPPort:                            0,
		APIRequireAuth:                      true,
		RetentionMaintenanceIntervalSeconds: 86400,
		StaleRunTimeoutSeconds:              21600,
		APIKeyPrefix:                        "pgv_sk_",
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for out-of-range port")
	}
}
