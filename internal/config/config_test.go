package config

import (
	"testing"
	"time"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker  = "localhost:9092"
	testMoataToken = "test-token"
)

// setRequired sets the minimum environment for a file-backed run.
func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TP108_COEFFICIENTS_PATH", "testdata/tp108.csv")
	t.Setenv("SERIES_PATH", "testdata/series.csv")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, time.Duration(0), cfg.RunInterval)
	assert.Equal(t, "outputs", cfg.OutputDir)
	assert.Equal(t, SourceFile, cfg.Source)
	assert.Equal(t, "https://api.moata.io", cfg.MoataBaseURL)
	assert.Equal(t, 30*time.Second, cfg.MoataTimeout)
	assert.Equal(t, 1000, cfg.MoataCacheSize)
	assert.Equal(t, 1, cfg.MoataCollectionID)
	assert.Equal(t, 3, cfg.MoataTraceSetID)
	assert.Equal(t, 5*time.Minute, cfg.MoataDataInterval)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "rainfall-ari-results", cfg.KafkaTopic)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Empty(t, cfg.DatabaseURL)
	assert.True(t, cfg.AnalysisStart.IsZero())
	assert.Equal(t, domain.DefaultSettings(), cfg.Settings)
}

func TestLoad_CustomEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RUN_INTERVAL", "15m")
	t.Setenv("SOURCE", "MOATA")
	t.Setenv("MOATA_TOKEN", testMoataToken)
	t.Setenv("MOATA_CACHE_SIZE", "50")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_TOPIC", "custom-results")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("DATABASE_URL", "postgres://localhost/ari")
	t.Setenv("ANALYSIS_START", "2025-05-01T00:00:00Z")
	t.Setenv("ANALYSIS_END", "2025-05-02T00:00:00+12:00")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 15*time.Minute, cfg.RunInterval)
	assert.Equal(t, SourceMoata, cfg.Source)
	assert.Equal(t, testMoataToken, cfg.MoataToken)
	assert.Equal(t, 50, cfg.MoataCacheSize)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-results", cfg.KafkaTopic)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, "postgres://localhost/ari", cfg.DatabaseURL)
	assert.Equal(t, time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC), cfg.AnalysisEnd)
}

func TestLoad_SettingsOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("ARI_THRESHOLD_YEARS", "10")
	t.Setenv("SPATIAL_PROPORTION_THRESHOLD", "0.25")
	t.Setenv("COVERAGE_FLOOR", "0.6")
	t.Setenv("INACTIVE_THRESHOLD_MONTHS", "6")
	t.Setenv("WINDOW_BEFORE", "2h")
	t.Setenv("BBOX", "-37.0, 174.5, -36.5, 175.0")
	t.Setenv("GAUGE_EXCLUDE_PATTERN", "")
	t.Setenv("DURATIONS", "10m,1h,24h")

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.Settings
	assert.InDelta(t, 10.0, s.ARIThresholdYears, 1e-9)
	assert.InDelta(t, 0.25, s.SpatialProportionThreshold, 1e-9)
	assert.InDelta(t, 0.6, s.CoverageFloor, 1e-9)
	assert.Equal(t, 6, s.InactiveThresholdMonths)
	assert.Equal(t, 2*time.Hour, s.WindowBefore)
	assert.Equal(t, domain.BoundingBox{MinLat: -37.0, MinLon: 174.5, MaxLat: -36.5, MaxLon: 175.0}, s.BoundingBox)
	assert.Empty(t, s.GaugeExcludePattern)
	assert.Equal(t, []domain.Duration{domain.Duration10m, domain.Duration60m, domain.Duration24h}, s.Durations)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing coefficients", map[string]string{"TP108_COEFFICIENTS_PATH": ""}, "TP108_COEFFICIENTS_PATH"},
		{"missing series", map[string]string{"SERIES_PATH": ""}, "SERIES_PATH"},
		{"moata without token", map[string]string{"SOURCE": "moata"}, "MOATA_TOKEN"},
		{"unknown source", map[string]string{"SOURCE": "ftp"}, "SOURCE"},
		{"bad shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "not-a-duration"}, "SHUTDOWN_TIMEOUT"},
		{"negative shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}, "SHUTDOWN_TIMEOUT"},
		{"zero batch size", map[string]string{"BATCH_SIZE": "0"}, "BATCH_SIZE"},
		{"batch size too large", map[string]string{"BATCH_SIZE": "9999"}, "BATCH_SIZE"},
		{"bad run interval", map[string]string{"RUN_INTERVAL": "soon"}, "RUN_INTERVAL"},
		{"zero moata timeout", map[string]string{"MOATA_TIMEOUT": "0s"}, "MOATA_TIMEOUT"},
		{"bad cache size", map[string]string{"MOATA_CACHE_SIZE": "-3"}, "MOATA_CACHE_SIZE"},
		{"bad threshold", map[string]string{"ARI_THRESHOLD_YEARS": "five"}, "ARI_THRESHOLD_YEARS"},
		{"threshold out of range", map[string]string{"COVERAGE_FLOOR": "1.5"}, "CoverageFloor"},
		{"bad bbox", map[string]string{"BBOX": "1,2,3"}, "BBOX"},
		{"bad durations", map[string]string{"DURATIONS": "10m,15m"}, "DURATIONS"},
		{"bad analysis start", map[string]string{"ANALYSIS_START": "yesterday"}, "ANALYSIS_START"},
		{"inverted analysis window", map[string]string{"ANALYSIS_START": "2025-05-02T00:00:00Z", "ANALYSIS_END": "2025-05-01T00:00:00Z"}, "ANALYSIS_END"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
