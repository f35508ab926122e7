package config

import (
	"testing"
	"time"

	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "royalty_service", cfg.Database.Database)
	assert.True(t, cfg.Reconciliation.Tolerance.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, cfg.Reconciliation.MatchThreshold.Equal(decimal.RequireFromString("0.85")))
	assert.True(t, cfg.Reconciliation.DefaultCommission.Equal(decimal.RequireFromString("0.20")))
	assert.Equal(t, "flag", cfg.Reconciliation.TiePolicy)
	assert.Equal(t, 15*time.Minute, cfg.Reconciliation.JobLockTTL)
	assert.Equal(t, "env", cfg.Secrets.Backend)
	assert.Empty(t, cfg.Redis.Address)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_PASSWORD_SECRET_PATH", "royalty/db")
	t.Setenv("MATCH_THRESHOLD", "0.9")
	t.Setenv("MATCH_TIE_POLICY", "FIRST")
	t.Setenv("ROLE_COMMISSION_RATES", "writer=0.15, PRODUCER=0.25")
	t.Setenv("JOB_LOCK_TTL", "2m")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.Reconciliation.MatchThreshold.Equal(decimal.RequireFromString("0.9")))
	assert.Equal(t, "first", cfg.Reconciliation.TiePolicy)
	assert.True(t, cfg.Reconciliation.RoleCommission[domain.UserRoleWriter].Equal(decimal.RequireFromString("0.15")))
	assert.True(t, cfg.Reconciliation.RoleCommission[domain.UserRoleProducer].Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, 2*time.Minute, cfg.Reconciliation.JobLockTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "no database password",
			env:  map[string]string{},
		},
		{
			name: "malformed tolerance",
			env:  map[string]string{"DB_PASSWORD": "x", "RECONCILE_TOLERANCE": "one cent"},
		},
		{
			name: "threshold above one",
			env:  map[string]string{"DB_PASSWORD": "x", "MATCH_THRESHOLD": "1.5"},
		},
		{
			name: "unknown tie policy",
			env:  map[string]string{"DB_PASSWORD": "x", "MATCH_TIE_POLICY": "random"},
		},
		{
			name: "unknown secret backend",
			env:  map[string]string{"DB_PASSWORD": "x", "SECRET_MANAGER": "gcp"},
		},
		{
			name: "vault without address",
			env:  map[string]string{"DB_PASSWORD": "x", "SECRET_MANAGER": "vault"},
		},
		{
			name: "role rate without value",
			env:  map[string]string{"DB_PASSWORD": "x", "ROLE_COMMISSION_RATES": "WRITER"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DB_PASSWORD", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

func TestConnectionString(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db",
		Port:     5433,
		User:     "royalty",
		Password: "pw",
		Database: "ledger",
		SSLMode:  "require",
	}
	assert.Equal(t, "host=db port=5433 user=royalty password=pw dbname=ledger sslmode=require", c.ConnectionString())
}
