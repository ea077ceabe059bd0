package services

import (
	"os"
	"strconv"
	"time"
)

// EngineConfig carries every tunable of the battle lifecycle and tally engine.
// Loaded once at startup and never mutated afterwards.
type EngineConfig struct {
	TallyTickInterval   time.Duration // scheduler tick
	LiveInactivityClose time.Duration // live events close this long after last activity
	PopularWeight       float64
	JudgeWeight         float64
	MaxJudges           int
	MinDurationHours    int
	MaxDurationHours    int
	StatementMaxLen     int
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TallyTickInterval:   5 * time.Second,
		LiveInactivityClose: 5 * time.Minute,
		PopularWeight:       0.33,
		JudgeWeight:         0.67,
		MaxJudges:           5,
		MinDurationHours:    24,
		MaxDurationHours:    720,
		StatementMaxLen:     200,
	}
}

// LoadEngineConfig reads overrides from the environment on top of the
// defaults. Unset or malformed values fall back silently.
func LoadEngineConfig() EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.TallyTickInterval = envDuration("TALLY_TICK_INTERVAL", cfg.TallyTickInterval)
	cfg.LiveInactivityClose = envDuration("LIVE_EVENT_INACTIVITY_CLOSE", cfg.LiveInactivityClose)
	cfg.PopularWeight = envFloat("POPULAR_WEIGHT", cfg.PopularWeight)
	cfg.JudgeWeight = envFloat("JUDGE_WEIGHT", cfg.JudgeWeight)
	cfg.MaxJudges = envInt("MAX_JUDGES", cfg.MaxJudges)
	cfg.MinDurationHours = envInt("MIN_VOTING_DURATION_HOURS", cfg.MinDurationHours)
	cfg.MaxDurationHours = envInt("MAX_VOTING_DURATION_HOURS", cfg.MaxDurationHours)
	cfg.StatementMaxLen = envInt("STATEMENT_MAX_LEN", cfg.StatementMaxLen)
	return cfg
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}
