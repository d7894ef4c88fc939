package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Chrome    ChromeConfig
	Recording RecordingConfig
	Playback  PlaybackConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Charset  string
}

type JWTConfig struct {
	Secret     string
	ExpireTime int
}

type ChromeConfig struct {
	HeadlessMode bool
	Path         string
	WindowWidth  int
	WindowHeight int
}

// RecordingConfig tunes event capture: the page poll cadence and the
// debounce windows applied to the raw event stream.
type RecordingConfig struct {
	PollIntervalMS    int
	InputDebounceMS   int
	ScrollDebounceMS  int
	ScrollThresholdPX int
}

// PlaybackConfig tunes replay: the element resolution retry budget and the
// minimum pacing between steps.
type PlaybackConfig struct {
	RetryAttempts   int
	RetryIntervalMS int
	PacingFloorMS   int
	NavTimeoutSec   int
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func LoadConfig() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Mode:         getEnv("SERVER_MODE", "debug"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 30),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnv("DB_PORT", "3306"),
			Username: getEnv("DB_USERNAME", "root"),
			Password: getEnv("DB_PASSWORD", "root"),
			Database: getEnv("DB_NAME", "webreplay"),
			Charset:  getEnv("DB_CHARSET", "utf8mb4"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "webreplay-secret-key"),
			ExpireTime: getEnvAsInt("JWT_EXPIRE_TIME", 24*3600),
		},
		Chrome: ChromeConfig{
			HeadlessMode: getEnvAsBool("CHROME_HEADLESS", false),
			Path:         getEnv("CHROME_PATH", ""),
			WindowWidth:  getEnvAsInt("CHROME_WINDOW_WIDTH", 1920),
			WindowHeight: getEnvAsInt("CHROME_WINDOW_HEIGHT", 1080),
		},
		Recording: RecordingConfig{
			PollIntervalMS:    getEnvAsInt("RECORDING_POLL_INTERVAL_MS", 100),
			InputDebounceMS:   getEnvAsInt("RECORDING_INPUT_DEBOUNCE_MS", 500),
			ScrollDebounceMS:  getEnvAsInt("RECORDING_SCROLL_DEBOUNCE_MS", 150),
			ScrollThresholdPX: getEnvAsInt("RECORDING_SCROLL_THRESHOLD_PX", 50),
		},
		Playback: PlaybackConfig{
			RetryAttempts:   getEnvAsInt("PLAYBACK_RETRY_ATTEMPTS", 10),
			RetryIntervalMS: getEnvAsInt("PLAYBACK_RETRY_INTERVAL_MS", 500),
			PacingFloorMS:   getEnvAsInt("PLAYBACK_PACING_FLOOR_MS", 100),
			NavTimeoutSec:   getEnvAsInt("PLAYBACK_NAV_TIMEOUT_SEC", 30),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
		},
	}

	return config, nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=%s&parseTime=True&loc=Local",
		c.Database.Username,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.Charset,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
