package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
)

// Source kinds.
const (
	SourceFile  = "file"
	SourceMoata = "moata"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RunInterval     time.Duration

	// Reference inputs.
	CoefficientsPath string
	AlarmLogPath     string
	GaugesPath       string
	CatchmentsPath   string
	OutputDir        string

	AnalysisStart time.Time
	AnalysisEnd   time.Time

	// Upstream data source.
	Source            string
	SeriesPath        string
	MoataBaseURL      string
	MoataToken        string
	MoataTimeout      time.Duration
	MoataCacheSize    int
	MoataCollectionID int
	MoataTraceSetID   int
	MoataDataInterval time.Duration

	// Result sinks.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	BatchSize    int
	DatabaseURL  string

	Settings domain.Settings
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is honoured when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CoefficientsPath: os.Getenv("TP108_COEFFICIENTS_PATH"),
		AlarmLogPath:     os.Getenv("ALARM_LOG_PATH"),
		GaugesPath:       os.Getenv("GAUGES_PATH"),
		CatchmentsPath:   os.Getenv("CATCHMENTS_PATH"),
		OutputDir:        sharedcfg.EnvOrDefault("OUTPUT_DIR", "outputs"),

		Source:       strings.ToLower(sharedcfg.EnvOrDefault("SOURCE", SourceFile)),
		SeriesPath:   os.Getenv("SERIES_PATH"),
		MoataBaseURL: sharedcfg.EnvOrDefault("MOATA_BASE_URL", "https://api.moata.io"),
		MoataToken:   os.Getenv("MOATA_TOKEN"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "rainfall-ari-results"),
		BatchSize:    batchSize,
		DatabaseURL:  os.Getenv("DATABASE_URL"),
	}

	durations := []struct {
		env  string
		def  string
		dst  *time.Duration
		zero bool
	}{
		{"RUN_INTERVAL", "0s", &cfg.RunInterval, true},
		{"MOATA_TIMEOUT", "30s", &cfg.MoataTimeout, false},
		{"MOATA_DATA_INTERVAL", "5m", &cfg.MoataDataInterval, false},
	}
	for _, d := range durations {
		v, err := parseDuration(d.env, d.def, d.zero)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	if cfg.MoataCacheSize, err = parsePositiveInt("MOATA_CACHE_SIZE", 1000); err != nil {
		return nil, err
	}
	if cfg.MoataCollectionID, err = parsePositiveInt("MOATA_COLLECTION_ID", 1); err != nil {
		return nil, err
	}
	if cfg.MoataTraceSetID, err = parsePositiveInt("MOATA_TRACESET_ID", 3); err != nil {
		return nil, err
	}
	if cfg.AnalysisStart, err = parseTime("ANALYSIS_START"); err != nil {
		return nil, err
	}
	if cfg.AnalysisEnd, err = parseTime("ANALYSIS_END"); err != nil {
		return nil, err
	}
	if cfg.Settings, err = loadSettings(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CoefficientsPath == "" {
		return errors.New("TP108_COEFFICIENTS_PATH is required")
	}
	switch c.Source {
	case SourceFile:
		if c.SeriesPath == "" {
			return errors.New("SERIES_PATH is required when SOURCE=file")
		}
	case SourceMoata:
		if c.MoataToken == "" {
			return errors.New("MOATA_TOKEN is required when SOURCE=moata")
		}
	default:
		return fmt.Errorf("invalid SOURCE %q: want %s or %s", c.Source, SourceFile, SourceMoata)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if c.KafkaEnabled && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_ENABLED is true")
	}
	if !c.AnalysisStart.IsZero() && !c.AnalysisEnd.IsZero() && !c.AnalysisEnd.After(c.AnalysisStart) {
		return errors.New("ANALYSIS_END must be after ANALYSIS_START")
	}
	return nil
}

// loadSettings overlays threshold environment variables on the defaults.
func loadSettings() (domain.Settings, error) {
	s := domain.DefaultSettings()

	floats := []struct {
		env string
		dst *float64
	}{
		{"ARI_THRESHOLD_YEARS", &s.ARIThresholdYears},
		{"MAX_ARI_YEARS", &s.MaxARIYears},
		{"SPATIAL_PROPORTION_THRESHOLD", &s.SpatialProportionThreshold},
		{"COVERAGE_FLOOR", &s.CoverageFloor},
		{"TEMPORAL_COVERAGE_MIN", &s.TemporalCoverageMin},
		{"MIN_DEPTH_MM", &s.MinDepthMM},
		{"MAX_DEPTH_MM", &s.MaxDepthMM},
	}
	for _, f := range floats {
		v := os.Getenv(f.env)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return s, fmt.Errorf("invalid %s: %w", f.env, err)
		}
		*f.dst = parsed
	}

	if v := os.Getenv("INACTIVE_THRESHOLD_MONTHS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return s, fmt.Errorf("invalid INACTIVE_THRESHOLD_MONTHS: %w", err)
		}
		s.InactiveThresholdMonths = n
	}

	windows := []struct {
		env string
		dst *time.Duration
	}{
		{"SAMPLE_INTERVAL", &s.SampleInterval},
		{"WINDOW_BEFORE", &s.WindowBefore},
		{"WINDOW_AFTER", &s.WindowAfter},
		{"RECENCY_ALARM_AGE", &s.RecencyAlarmAge},
	}
	for _, w := range windows {
		v := os.Getenv(w.env)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return s, fmt.Errorf("invalid %s: %w", w.env, err)
		}
		*w.dst = d
	}

	if v := os.Getenv("BBOX"); v != "" {
		box, err := parseBoundingBox(v)
		if err != nil {
			return s, err
		}
		s.BoundingBox = box
	}
	if v, ok := os.LookupEnv("GAUGE_EXCLUDE_PATTERN"); ok {
		s.GaugeExcludePattern = v
	}
	if v := os.Getenv("DURATIONS"); v != "" {
		s.Durations = nil
		for _, code := range strings.Split(v, ",") {
			d, err := domain.ParseDuration(code)
			if err != nil {
				return s, fmt.Errorf("invalid DURATIONS: %w", err)
			}
			s.Durations = append(s.Durations, d)
		}
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func parseBoundingBox(v string) (domain.BoundingBox, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return domain.BoundingBox{}, errors.New("invalid BBOX: want minLat,minLon,maxLat,maxLon")
	}
	var vals [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return domain.BoundingBox{}, fmt.Errorf("invalid BBOX: %w", err)
		}
		vals[i] = f
	}
	return domain.BoundingBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}, nil
}

func parseDuration(env, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(env, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", env)
	}
	return d, nil
}

func parsePositiveInt(env string, def int) (int, error) {
	s := os.Getenv(env)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", env)
	}
	return n, nil
}

func parseTime(env string) (time.Time, error) {
	s := os.Getenv(env)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", env, err)
	}
	return t.UTC(), nil
}
