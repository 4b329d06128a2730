package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/skyguard/skyguard/internal/models"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Engine   EngineConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL selects
// the in-memory stores (dev/test mode).
type DatabaseConfig struct {
	URL string
}

// EngineConfig holds the consensus engine tunables. The exact thresholds,
// windows and deltas are product knobs, so every one of them is overridable
// from the environment.
type EngineConfig struct {
	// Probability tier cutoffs on the normalized [0,1] score scale.
	ScoreT1 float64 // below: low; at/above: medium
	ScoreT2 float64 // at/above: high, auto-confirm

	// Clusterer knobs.
	ClusterWindow      time.Duration // max target age to be an attach candidate
	ProximityKM        map[models.TargetType]float64
	DefaultProximityKM float64

	// Scorer knobs.
	TrustWeightFloor   float64 // floor applied to normalized trust weights
	CorroborationBoost float64 // multiplier on ln(report_count)

	// State machine knobs.
	StalenessWindow time.Duration // age without promotion before auto-reject
	SweepInterval   time.Duration

	// Trust feedback knobs.
	ConfirmReward     float64
	RejectBasePenalty float64

	// Concurrency knobs.
	LockTimeout     time.Duration
	FeedbackQueue   int     // buffered feedback queue capacity
	ReportRateLimit float64 // per-reporter submissions per second
	ReportRateBurst int
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"
)

// DefaultEngineConfig returns sensible defaults for the consensus engine.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ScoreT1:       0.3,
		ScoreT2:       0.7,
		ClusterWindow: 30 * time.Minute,
		ProximityKM: map[models.TargetType]float64{
			models.TypeDrone:      2,
			models.TypePlane:      2,
			models.TypeHelicopter: 2,
			models.TypeRocket:     5,
			models.TypeExplosion:  5,
			models.TypeOther:      2,
		},
		DefaultProximityKM: 2,
		TrustWeightFloor:   0.1,
		CorroborationBoost: 0.15,
		StalenessWindow:    2 * time.Hour,
		SweepInterval:      1 * time.Minute,
		ConfirmReward:      0.25,
		RejectBasePenalty:  0.25,
		LockTimeout:        2 * time.Second,
		FeedbackQueue:      256,
		ReportRateLimit:    1,
		ReportRateBurst:    5,
	}
}

// Load reads configuration from environment variables, applying defaults when
// values are not provided.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Engine: DefaultEngineConfig(),
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if err := loadEngineOverrides(&cfg.Engine); err != nil {
		return Config{}, err
	}

	if cfg.Engine.ScoreT1 >= cfg.Engine.ScoreT2 {
		return Config{}, fmt.Errorf("ENGINE_SCORE_T1 (%.2f) must be below ENGINE_SCORE_T2 (%.2f)",
			cfg.Engine.ScoreT1, cfg.Engine.ScoreT2)
	}

	return cfg, nil
}

func loadEngineOverrides(cfg *EngineConfig) error {
	floats := map[string]*float64{
		"ENGINE_SCORE_T1":             &cfg.ScoreT1,
		"ENGINE_SCORE_T2":             &cfg.ScoreT2,
		"ENGINE_TRUST_WEIGHT_FLOOR":   &cfg.TrustWeightFloor,
		"ENGINE_CORROBORATION_BOOST":  &cfg.CorroborationBoost,
		"ENGINE_CONFIRM_REWARD":       &cfg.ConfirmReward,
		"ENGINE_REJECT_BASE_PENALTY":  &cfg.RejectBasePenalty,
		"ENGINE_DEFAULT_PROXIMITY_KM": &cfg.DefaultProximityKM,
		"ENGINE_REPORT_RATE_LIMIT":    &cfg.ReportRateLimit,
	}
	for key, dst := range floats {
		if v := os.Getenv(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = f
		}
	}

	durations := map[string]*time.Duration{
		"ENGINE_CLUSTER_WINDOW":   &cfg.ClusterWindow,
		"ENGINE_STALENESS_WINDOW": &cfg.StalenessWindow,
		"ENGINE_SWEEP_INTERVAL":   &cfg.SweepInterval,
		"ENGINE_LOCK_TIMEOUT":     &cfg.LockTimeout,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				return fmt.Errorf("invalid %s: must be a non-negative duration", key)
			}
			*dst = d
		}
	}

	return nil
}

// ProximityForType returns the clustering threshold for a target type.
func (c EngineConfig) ProximityForType(t models.TargetType) float64 {
	if km, ok := c.ProximityKM[t]; ok {
		return km
	}
	return c.DefaultProximityKM
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
