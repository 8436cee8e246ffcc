package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	NewRelic NewRelicConfig
	Tracking TrackingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NATSConfig holds NATS configuration for alert publication.
type NATSConfig struct {
	Enabled       bool
	URL           string
	SubjectPrefix string
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// TrackingConfig holds the progress-tracking thresholds. The defaults
// are starting points; tune them against real GPS traces.
type TrackingConfig struct {
	WalkArrivalRadiusM        float64
	VehicleArrivalRadiusM     float64
	TransferAlertDistanceM    float64
	TransferAlertTime         time.Duration
	TransferImminentDistanceM float64
	TransferImminentTime      time.Duration
	DestinationAlertDistanceM float64
	AccuracyCeilingM          float64
}

// Load loads configuration from the environment. A .env file in the
// working directory is read first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "waka"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			Enabled:       getBoolEnv("NATS_ENABLED", false),
			URL:           getEnv("NATS_URL", "nats://localhost:4222"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "alerts.trip"),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "waka-tracker"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Tracking: TrackingConfig{
			WalkArrivalRadiusM:        getFloatEnv("TRACK_WALK_ARRIVAL_RADIUS_M", 30),
			VehicleArrivalRadiusM:     getFloatEnv("TRACK_VEHICLE_ARRIVAL_RADIUS_M", 150),
			TransferAlertDistanceM:    getFloatEnv("TRACK_TRANSFER_ALERT_DISTANCE_M", 1500),
			TransferAlertTime:         getDurationEnv("TRACK_TRANSFER_ALERT_TIME", 10*time.Minute),
			TransferImminentDistanceM: getFloatEnv("TRACK_TRANSFER_IMMINENT_DISTANCE_M", 500),
			TransferImminentTime:      getDurationEnv("TRACK_TRANSFER_IMMINENT_TIME", 5*time.Minute),
			DestinationAlertDistanceM: getFloatEnv("TRACK_DESTINATION_ALERT_DISTANCE_M", 300),
			AccuracyCeilingM:          getFloatEnv("TRACK_ACCURACY_CEILING_M", 100),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
