package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, 60*time.Second, cfg.Pipeline.AnalysisTimeout)
				assert.Equal(t, 0.05, cfg.Pipeline.ErrorRateThreshold)
				assert.False(t, cfg.Pipeline.RefreshSeverity)
				assert.Nil(t, cfg.AuditDatabase)
			},
		},
		{
			name: "production configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"SERVER_PORT": "9000",
				"DB_HOST":     "prod-db.example.com",
				"DB_PORT":     "5433",
				"JWT_SECRET":  "s3cr3t",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
				assert.Equal(t, 9000, cfg.Server.Port)
				assert.Equal(t, "prod-db.example.com", cfg.Database.Host)
				assert.Equal(t, 5433, cfg.Database.Port)
			},
		},
		{
			name: "production without JWT secret",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
			},
			wantErr: true,
		},
		{
			name: "pipeline tuning",
			envVars: map[string]string{
				"ANALYSIS_TIMEOUT":     "2m",
				"ERROR_RATE_THRESHOLD": "0.25",
				"LATENCY_THRESHOLD":    "750ms",
				"NOTIFY_WORKER_COUNT":  "8",
				"REFRESH_SEVERITY":     "true",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2*time.Minute, cfg.Pipeline.AnalysisTimeout)
				assert.Equal(t, 0.25, cfg.Pipeline.ErrorRateThreshold)
				assert.Equal(t, 750*time.Millisecond, cfg.Pipeline.LatencyThreshold)
				assert.Equal(t, 8, cfg.Pipeline.NotifyWorkerCount)
				assert.True(t, cfg.Pipeline.RefreshSeverity)
			},
		},
		{
			name: "invalid error rate threshold",
			envVars: map[string]string{
				"ERROR_RATE_THRESHOLD": "1.5",
			},
			wantErr: true,
		},
		{
			name: "separate audit database",
			envVars: map[string]string{
				"DATABASE_URL_AUDIT": "postgres://dev:pw@audit-db:5432/audit",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				require.NotNil(t, cfg.AuditDatabase)
				assert.Equal(t, "host=audit-db port=5432 database=audit", cfg.AuditDatabase.LogString())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := New()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "dev",
		Password: "pw",
		Database: "tracelens",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=localhost port=5432 user=dev password=pw dbname=tracelens sslmode=disable", cfg.DSN())

	cfg.ConnectionString = "postgres://dev:pw@db:5432/tracelens"
	assert.Equal(t, cfg.ConnectionString, cfg.DSN())
}

func TestDatabaseConfigLogStringHidesPassword(t *testing.T) {
	cfg := DatabaseConfig{ConnectionString: "postgres://dev:supersecret@db:5433/tracelens"}
	s := cfg.LogString()
	assert.NotContains(t, s, "supersecret")
	assert.Contains(t, s, "db")
	assert.Contains(t, s, "5433")
}
