package server

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultOrigin = "http://localhost:3000"

// Config holds server configuration
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	GRPCAddr    string

	NVDURL          string
	NVDAPIKey       string
	AbuseIPDBURL    string
	AbuseIPDBAPIKey string

	AllowedOrigins []string
	DemoMode       bool
	LogLevel       slog.Level
}

// LoadConfig reads a local .env file when present, then environment
// variables, and returns a Config
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env", "err", err)
	}
	return &Config{
		HTTPAddr:        getEnv("TD_HTTP_ADDR", ":9000"),
		MetricsAddr:     getEnv("TD_METRICS_ADDR", ":9090"),
		GRPCAddr:        getEnv("TD_GRPC_ADDR", ":9091"),
		NVDURL:          getEnv("TD_NVD_URL", ""),
		NVDAPIKey:       getEnv("NVD_API_KEY", ""),
		AbuseIPDBURL:    getEnv("TD_ABUSEIPDB_URL", ""),
		AbuseIPDBAPIKey: getEnv("ABUSEIPDB_API_KEY", ""),
		AllowedOrigins:  splitOrigins(getEnv("ORIGINS", defaultOrigin)),
		DemoMode:        getBool("TD_DEMO_MODE", false),
		LogLevel:        getLevel("TD_LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getBool(k string, def bool) bool {
	b, err := strconv.ParseBool(getEnv(k, strconv.FormatBool(def)))
	if err != nil {
		slog.Warn("invalid boolean, using default", "key", k, "default", def)
		return def
	}
	return b
}

func getLevel(k string, def slog.Level) slog.Level {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		slog.Warn("invalid log level, using default", "key", k, "value", v)
		return def
	}
	return lvl
}

func splitOrigins(v string) []string {
	var out []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{defaultOrigin}
	}
	return out
}
