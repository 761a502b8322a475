package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "@every 1h", cfg.Scheduler.ReconcileCron)
	assert.Equal(t, 1, cfg.Ledger.ConflictRetries)
	assert.Equal(t, 4.0, cfg.Ledger.Policy().PassGradePoint)
	assert.False(t, cfg.Ledger.Policy().AllowExitRegression)
	assert.True(t, cfg.IsDevelopment())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.edu, https://b.edu")
	t.Setenv("LEDGER_EXIT_REGRESSION", "ALLOW")
	t.Setenv("LEDGER_PASS_GRADE_POINT", "5")
	t.Setenv("TRANSCRIPT_CACHE_TTL", "2m")
	t.Setenv("RECONCILE_REPAIR", "true")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTP.Addr())
	assert.Equal(t, []string{"https://a.edu", "https://b.edu"}, cfg.HTTP.AllowedOrigins)
	assert.True(t, cfg.Ledger.Policy().AllowExitRegression)
	assert.Equal(t, 5.0, cfg.Ledger.PassGradePoint)
	assert.Equal(t, 2*time.Minute, cfg.Redis.TranscriptTTL)
	assert.True(t, cfg.Scheduler.ReconcileRepair)
}

func TestValidate_AggregatesProblems(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("LEDGER_EXIT_REGRESSION", "sometimes")
	t.Setenv("RECONCILE_CRON", "every hour")

	err := FromEnv().Validate()
	require.Error(t, err)
	for _, want := range []string{"JWT_SECRET", "DATABASE_URL", "LEDGER_EXIT_REGRESSION", "RECONCILE_CRON"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_UnknownDriver(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "mongo")
	assert.ErrorContains(t, FromEnv().Validate(), "STORAGE_DRIVER")
}
