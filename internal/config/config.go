package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	ScoringAPIURL          string
	ScoringTimeout         time.Duration
	OCRBaseURL             string
	OCRTimeout             time.Duration
	EvaluateCooldown       time.Duration
	UploadCooldown         time.Duration
	WorkerConcurrency      int
	MaxUploadSizeMB        int
	MaxArchiveSizeMB       int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("AUTOEVAL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "AutoEval API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("scoring.timeout", "20s")
	v.SetDefault("ocr.timeout", "60s")
	v.SetDefault("evaluate.cooldown", "60s")
	v.SetDefault("upload.cooldown", "60s")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("max.upload_size_mb", 10)
	v.SetDefault("max.archive_size_mb", 100)
	v.SetDefault("cloudinary.folder", "autoeval/sheets")

	scoringTimeout, err := parseDuration(v, "scoring.timeout", 20*time.Second)
	if err != nil {
		return Config{}, err
	}
	ocrTimeout, err := parseDuration(v, "ocr.timeout", 60*time.Second)
	if err != nil {
		return Config{}, err
	}
	evaluateCooldown, err := parseDuration(v, "evaluate.cooldown", time.Minute)
	if err != nil {
		return Config{}, err
	}
	uploadCooldown, err := parseDuration(v, "upload.cooldown", time.Minute)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		ScoringAPIURL:          v.GetString("scoring.api_url"),
		ScoringTimeout:         scoringTimeout,
		OCRBaseURL:             v.GetString("ocr.base_url"),
		OCRTimeout:             ocrTimeout,
		EvaluateCooldown:       evaluateCooldown,
		UploadCooldown:         uploadCooldown,
		WorkerConcurrency:      v.GetInt("worker.concurrency"),
		MaxUploadSizeMB:        v.GetInt("max.upload_size_mb"),
		MaxArchiveSizeMB:       v.GetInt("max.archive_size_mb"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.ScoringAPIURL == "" {
		return Config{}, fmt.Errorf("scoring api url must be provided")
	}
	if cfg.WorkerConcurrency <= 0 {
		cfg.WorkerConcurrency = 4
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
