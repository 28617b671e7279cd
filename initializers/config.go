package initializers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds the service configuration. Secrets have no defaults and
// must come from the environment, a .env file or config/config.json.
type AppConfig struct {
	Port           string   `json:"port"`
	BaseURL        string   `json:"baseUrl"`
	GinMode        string   `json:"ginMode"`
	AllowedOrigins []string `json:"allowedOrigins"`

	DBDriver    string `json:"dbDriver"`
	DBURL       string `json:"dbUrl"`
	StoragePath string `json:"storagePath"`

	JWTSecret     string `json:"jwtSecret"`
	SessionSecret string `json:"sessionSecret"`
	OwnerEmail    string `json:"ownerEmail"`
	OwnerPassword string `json:"ownerPassword"`

	LoginRatePerMinute       int           `json:"loginRatePerMinute"`
	CounterReconcileInterval time.Duration `json:"-"`

	RedisAddr     string `json:"redisAddr"`
	RedisPassword string `json:"redisPassword"`
	RedisDB       int    `json:"redisDb"`

	AWSRegion     string `json:"awsRegion"`
	AWSBucketName string `json:"awsBucketName"`

	LogLevel      string `json:"logLevel"`
	LogPath       string `json:"logPath"`
	LogMaxSizeMB  int    `json:"logMaxSizeMb"`
	LogMaxBackups int    `json:"logMaxBackups"`
	LogMaxAgeDays int    `json:"logMaxAgeDays"`
	LogCompress   bool   `json:"logCompress"`
}

var Config AppConfig

// LoadConfig resolves configuration with the precedence
// config/config.json -> defaults -> environment.
func LoadConfig() (AppConfig, error) {
	if os.Getenv("RENDER") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("no .env file found, using system environment variables")
		}
	}

	var cfg AppConfig
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config/config.json: %w", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET must be set")
	}
	if cfg.SessionSecret == "" {
		return cfg, errors.New("SESSION_SECRET must be set")
	}
	switch cfg.DBDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return cfg, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	Config = cfg
	return cfg, nil
}

// loadJSONConfig is a no-op when the file is missing.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(out)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	if cfg.GinMode == "" {
		cfg.GinMode = "release"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if cfg.DBDriver == "" {
		cfg.DBDriver = "sqlite"
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = "data"
	}
	if cfg.LoginRatePerMinute == 0 {
		cfg.LoginRatePerMinute = 10
	}
	if cfg.CounterReconcileInterval == 0 {
		cfg.CounterReconcileInterval = time.Hour
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(cfg.StoragePath, "logs", "pitchvault.log")
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.BaseURL, "BASE_URL")
	setString(&cfg.GinMode, "GIN_MODE")
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}

	setString(&cfg.DBDriver, "DB_DRIVER")
	setString(&cfg.DBURL, "DB_URL")
	setString(&cfg.StoragePath, "STORAGE_PATH")

	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.SessionSecret, "SESSION_SECRET")
	setString(&cfg.OwnerEmail, "OWNER_EMAIL")
	setString(&cfg.OwnerPassword, "OWNER_PASSWORD")

	setInt(&cfg.LoginRatePerMinute, "LOGIN_RATE_PER_MINUTE")
	if v := os.Getenv("COUNTER_RECONCILE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CounterReconcileInterval = d
		}
	}

	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.RedisDB, "REDIS_DB")

	setString(&cfg.AWSRegion, "AWS_REGION")
	setString(&cfg.AWSBucketName, "AWS_BUCKET_NAME")

	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.LogPath, "LOG_PATH")
	setInt(&cfg.LogMaxSizeMB, "LOG_MAX_SIZE_MB")
	setInt(&cfg.LogMaxBackups, "LOG_MAX_BACKUPS")
	setInt(&cfg.LogMaxAgeDays, "LOG_MAX_AGE_DAYS")
	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogCompress = b
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
