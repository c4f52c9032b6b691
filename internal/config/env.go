package config

import (
	"os"
	"strconv"
	"time"
)

func GetEnvString(env, fallback string) string {
	envString := os.Getenv(env)
	if envString == "" {
		return fallback
	}
	return envString
}

func GetEnvBool(env string, fallback bool) bool {
	envBool, err := strconv.ParseBool(os.Getenv(env))
	if err != nil {
		return fallback
	}
	return envBool
}

func GetEnvInt(env string, fallback int) int {
	envInt, err := strconv.Atoi(os.Getenv(env))
	if err != nil {
		return fallback
	}
	return envInt
}

func GetEnvInt64(env string, fallback int64) int64 {
	envInt64, err := strconv.ParseInt(os.Getenv(env), 10, 64)
	if err != nil {
		return fallback
	}
	return envInt64
}

func GetEnvFloat64(env string, fallback float64) float64 {
	envFloat64, err := strconv.ParseFloat(os.Getenv(env), 64)
	if err != nil {
		return fallback
	}
	return envFloat64
}

// GetEnvDuration accepts Go duration strings ("30s") or bare seconds.
func GetEnvDuration(env string, fallback time.Duration) time.Duration {
	envString := os.Getenv(env)
	if envString == "" {
		return fallback
	}
	if d, err := time.ParseDuration(envString); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(envString); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
