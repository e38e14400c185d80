package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the dispatch API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	OSRMEndpoint    string
	DefaultSpeedMps float64

	Dispatch DispatchConfig

	LogLevel string
}

// DispatchConfig holds the matching and liveness tunables. None of them are
// hardcoded in the core packages; the engine receives this struct at wiring
// time.
type DispatchConfig struct {
	InitialRadiusM     float64
	RadiusGrowthFactor float64
	MaxRadiusM         float64
	CandidateLimit     int
	OfferExpiry        time.Duration
	MaxMatchAttempts   int
	StalenessWindow    time.Duration
	SweepInterval      time.Duration
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "drivers_geo",
		KafkaTopic:      "driver-pings",
		DefaultSpeedMps: 10,
		Dispatch: DispatchConfig{
			InitialRadiusM:     500,
			RadiusGrowthFactor: 2.0,
			MaxRadiusM:         5000,
			CandidateLimit:     8,
			OfferExpiry:        15 * time.Second,
			MaxMatchAttempts:   3,
			StalenessWindow:    30 * time.Second,
			SweepInterval:      5 * time.Second,
		},
		LogLevel: "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")

	setStringFromEnv(&cfg.OSRMEndpoint, "OSRM_ENDPOINT")
	setFloatFromEnv(&cfg.DefaultSpeedMps, "ETA_DEFAULT_SPEED_MPS", &errs)

	setFloatFromEnv(&cfg.Dispatch.InitialRadiusM, "DISPATCH_INITIAL_RADIUS_M", &errs)
	setFloatFromEnv(&cfg.Dispatch.RadiusGrowthFactor, "DISPATCH_RADIUS_GROWTH", &errs)
	setFloatFromEnv(&cfg.Dispatch.MaxRadiusM, "DISPATCH_MAX_RADIUS_M", &errs)
	setIntFromEnv(&cfg.Dispatch.CandidateLimit, "DISPATCH_CANDIDATE_LIMIT", &errs)
	setDurationFromEnv(&cfg.Dispatch.OfferExpiry, "DISPATCH_OFFER_EXPIRY", &errs)
	setIntFromEnv(&cfg.Dispatch.MaxMatchAttempts, "DISPATCH_MAX_MATCH_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.Dispatch.StalenessWindow, "DISPATCH_STALENESS_WINDOW", &errs)
	setDurationFromEnv(&cfg.Dispatch.SweepInterval, "DISPATCH_SWEEP_INTERVAL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if err := cfg.Dispatch.validate(); err != nil {
		errs = append(errs, err)
	}

	return cfg, errors.Join(errs...)
}

func (d DispatchConfig) validate() error {
	var errs []error
	if d.InitialRadiusM <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_INITIAL_RADIUS_M must be > 0"))
	}
	if d.RadiusGrowthFactor <= 1 {
		errs = append(errs, fmt.Errorf("DISPATCH_RADIUS_GROWTH must be > 1"))
	}
	if d.MaxRadiusM < d.InitialRadiusM {
		errs = append(errs, fmt.Errorf("DISPATCH_MAX_RADIUS_M must be >= initial radius"))
	}
	if d.CandidateLimit <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_CANDIDATE_LIMIT must be > 0"))
	}
	if d.OfferExpiry <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_OFFER_EXPIRY must be > 0"))
	}
	if d.MaxMatchAttempts <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_MAX_MATCH_ATTEMPTS must be > 0"))
	}
	if d.StalenessWindow <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_STALENESS_WINDOW must be > 0"))
	}
	if d.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("DISPATCH_SWEEP_INTERVAL must be > 0"))
	}
	return errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
