package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig controls the Redis token-bucket limiter protecting the
// action endpoints.  A disabled config (or missing Redis) turns the
// middleware into a pass-through.
type RateLimitConfig struct {
	Enabled		   bool
	Capacity	   int
	RefillTokens   int
	RefillInterval time.Duration
	TTL			   time.Duration
	KeyStrategy	   string
	Prefix		   string
	Debug		   bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* environment variables and clamps
// the result to sane minimums.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled:		envBool("RATE_LIMIT_ENABLED", true),
		Capacity:		envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:	envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:			envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:	envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user_route"),
		Prefix:			envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:			envBool("RATE_LIMIT_DEBUG", false),
	}
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "on":
		return true
	case "0", "false", "FALSE", "False", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			return dur
		}
	}
	return d
}
