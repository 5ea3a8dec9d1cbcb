package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	// Camera feed
	CameraSource string // "http" or "static"
	CameraURL    string
	CameraFacing string // "environment" or "user"

	// Crop and dispatch
	MinCropSize         int
	DispatchConcurrency int // 0 means one task per image

	// Analysis collaborator
	Analyzer        string // "local" or "remote"
	AnalyzerURL     string
	AnalyzerProfile string // "default" or "strict" thresholds for the local analyzer

	// Local analyzer overrides; zero keeps the profile's value
	BlurThreshold           float64
	OverexposureThreshold   float64
	OversaturationThreshold float64
	MinImageWidth           int
	MinImageHeight          int
	SkipWhiteBalance        bool

	// Hosts the camera and analyzer URLs may point at; empty allows any
	AllowedHosts []string

	// Result consumer
	ResultSink     string // "memory" or "azure"
	HistoryLimit   int
	AzureAccount   string
	AzureKey       string
	AzureContainer string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Host:                    getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                    getEnvOrDefault("PORT", "8080"),
		RequestTimeout:          parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		AnalysisTimeout:         parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize:      parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		LogLevel:                getEnvOrDefault("LOG_LEVEL", "info"),
		CameraSource:            strings.ToLower(getEnvOrDefault("CAMERA_SOURCE", "static")),
		CameraURL:               getEnvOrDefault("CAMERA_URL", ""),
		CameraFacing:            strings.ToLower(getEnvOrDefault("CAMERA_FACING", "environment")),
		MinCropSize:             int(parseIntOrDefault("MIN_CROP_SIZE", 50)),
		DispatchConcurrency:     int(parseIntOrDefault("DISPATCH_CONCURRENCY", 0)),
		Analyzer:                strings.ToLower(getEnvOrDefault("ANALYZER", "local")),
		AnalyzerURL:             getEnvOrDefault("ANALYZER_URL", ""),
		AnalyzerProfile:         strings.ToLower(getEnvOrDefault("ANALYZER_PROFILE", "default")),
		BlurThreshold:           parseFloatOrDefault("BLUR_THRESHOLD", 0),
		OverexposureThreshold:   parseFloatOrDefault("OVEREXPOSURE_THRESHOLD", 0),
		OversaturationThreshold: parseFloatOrDefault("OVERSATURATION_THRESHOLD", 0),
		MinImageWidth:           int(parseIntOrDefault("MIN_IMAGE_WIDTH", 0)),
		MinImageHeight:          int(parseIntOrDefault("MIN_IMAGE_HEIGHT", 0)),
		SkipWhiteBalance:        parseBoolOrDefault("SKIP_WHITE_BALANCE", false),
		AllowedHosts:            parseListOrDefault("ALLOWED_HOSTS"),
		ResultSink:              strings.ToLower(getEnvOrDefault("RESULT_SINK", "memory")),
		HistoryLimit:            int(parseIntOrDefault("HISTORY_LIMIT", 1000)),
		AzureAccount:            getEnvOrDefault("AZURE_STORAGE_ACCOUNT", ""),
		AzureKey:                getEnvOrDefault("AZURE_STORAGE_KEY", ""),
		AzureContainer:          getEnvOrDefault("AZURE_CONTAINER", "analysis-results"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that defaults cannot guarantee.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s)",
			c.RequestTimeout, c.AnalysisTimeout)
	}
	if c.MinCropSize < 1 {
		return fmt.Errorf("MIN_CROP_SIZE must be >= 1 (got %d)", c.MinCropSize)
	}
	if c.DispatchConcurrency < 0 {
		return fmt.Errorf("DISPATCH_CONCURRENCY must be >= 0 (got %d)", c.DispatchConcurrency)
	}

	switch c.CameraSource {
	case "static":
	case "http":
		if c.CameraURL == "" {
			return fmt.Errorf("CAMERA_URL is required when CAMERA_SOURCE=http")
		}
	default:
		return fmt.Errorf("unsupported CAMERA_SOURCE: %q", c.CameraSource)
	}
	if c.CameraFacing != "environment" && c.CameraFacing != "user" {
		return fmt.Errorf("unsupported CAMERA_FACING: %q", c.CameraFacing)
	}

	switch c.Analyzer {
	case "local":
	case "remote":
		if c.AnalyzerURL == "" {
			return fmt.Errorf("ANALYZER_URL is required when ANALYZER=remote")
		}
	default:
		return fmt.Errorf("unsupported ANALYZER: %q", c.Analyzer)
	}

	if c.AnalyzerProfile != "default" && c.AnalyzerProfile != "strict" {
		return fmt.Errorf("unsupported ANALYZER_PROFILE: %q", c.AnalyzerProfile)
	}
	if c.BlurThreshold < 0 {
		return fmt.Errorf("BLUR_THRESHOLD must be >= 0 (got %g)", c.BlurThreshold)
	}
	if c.OverexposureThreshold < 0 || c.OverexposureThreshold > 1 ||
		c.OversaturationThreshold < 0 || c.OversaturationThreshold > 1 {
		return fmt.Errorf("OVEREXPOSURE_THRESHOLD and OVERSATURATION_THRESHOLD must be within 0..1 (got %g, %g)",
			c.OverexposureThreshold, c.OversaturationThreshold)
	}
	if c.MinImageWidth < 0 || c.MinImageHeight < 0 {
		return fmt.Errorf("MIN_IMAGE_WIDTH and MIN_IMAGE_HEIGHT must be >= 0 (got %d, %d)",
			c.MinImageWidth, c.MinImageHeight)
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("HISTORY_LIMIT must be >= 0 (got %d)", c.HistoryLimit)
	}

	switch c.ResultSink {
	case "memory":
	case "azure":
		if c.AzureAccount == "" || c.AzureKey == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_KEY are required when RESULT_SINK=azure")
		}
	default:
		return fmt.Errorf("unsupported RESULT_SINK: %q", c.ResultSink)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// parseListOrDefault splits a comma separated variable, dropping blanks
func parseListOrDefault(key string) []string {
	var items []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
