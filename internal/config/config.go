package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level" validate:"oneof=debug info warn error"`
	} `yaml:"log"`

	Database struct {
		Driver       string `yaml:"driver" validate:"oneof=mysql postgres"`
		Host         string `yaml:"host" validate:"required"`
		Port         int    `yaml:"port" validate:"gt=0"`
		User         string `yaml:"user"`
		Password     string `yaml:"password"`
		Name         string `yaml:"name" validate:"required"`
		SSLMode      string `yaml:"sslmode"`
		AutoMigrate  bool   `yaml:"auto_migrate"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
	} `yaml:"database"`

	Models struct {
		ServingURL       string        `yaml:"serving_url" validate:"required,url"`
		Lung             string        `yaml:"lung" validate:"required"`
		Brain            string        `yaml:"brain" validate:"required"`
		InferenceSlots   int64         `yaml:"inference_slots" validate:"gt=0"`
		InferenceTimeout time.Duration `yaml:"inference_timeout"`
		MaxImageEdge     int           `yaml:"max_image_edge" validate:"gte=0"`
	} `yaml:"models"`

	OpenAI struct {
		APIKey    string `yaml:"api_key"`
		BaseURL   string `yaml:"base_url"`
		Model     string `yaml:"model" validate:"required"`
		MaxTokens int    `yaml:"max_tokens" validate:"gte=0"`
	} `yaml:"openai"`

	// Minio is optional; an empty endpoint disables scan archiving.
	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName" validate:"required_with=Endpoint"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Chat struct {
		SystemPrompt    string `yaml:"system_prompt"`
		HistoryWindow   int    `yaml:"history_window" validate:"gte=0"`
		MaxMessageChars int    `yaml:"max_message_chars" validate:"gt=0"`
		// MaxExtractedChars bounds the text pulled out of an attachment.
		MaxExtractedChars int           `yaml:"max_extracted_chars" validate:"gt=0"`
		Timeout           time.Duration `yaml:"timeout"`
		UploadDir         string        `yaml:"upload_dir" validate:"required"`
		MaxUploadBytes    int64         `yaml:"max_upload_bytes" validate:"gt=0"`
	} `yaml:"chat"`

	Analysis struct {
		UploadDir      string `yaml:"upload_dir" validate:"required"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes" validate:"gt=0"`
	} `yaml:"analysis"`

	Auth struct {
		// APIKeys maps a portal user id to its key.
		APIKeys map[int64]string `yaml:"api_keys" validate:"min=1,dive,required"`
	} `yaml:"auth"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`

	RateLimit struct {
		RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
	} `yaml:"rate_limit"`
}

// Load reads the YAML file at path, then .env and the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Database.Password, "DATABASE_PASSWORD")
	set(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	set(&c.Minio.AccessKey, "MINIO_ACCESS_KEY")
	set(&c.Minio.SecretKey, "MINIO_SECRET_KEY")
	set(&c.Models.ServingURL, "TF_SERVING_URL")

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 120 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Port == 0 {
		if c.Database.Driver == "postgres" {
			c.Database.Port = 5432
		} else {
			c.Database.Port = 3306
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Models.Lung == "" {
		c.Models.Lung = "lung_model"
	}
	if c.Models.Brain == "" {
		c.Models.Brain = "brain_model"
	}
	if c.Models.InferenceSlots == 0 {
		c.Models.InferenceSlots = 1
	}
	if c.Models.MaxImageEdge == 0 {
		c.Models.MaxImageEdge = 4096
	}
	if c.Models.InferenceTimeout == 0 {
		c.Models.InferenceTimeout = 30 * time.Second
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "monotykamary/medichat-llama3:8b"
	}
	if c.Chat.HistoryWindow == 0 {
		c.Chat.HistoryWindow = 10
	}
	if c.Chat.MaxMessageChars == 0 {
		c.Chat.MaxMessageChars = 8000
	}
	if c.Chat.MaxExtractedChars == 0 {
		c.Chat.MaxExtractedChars = 100000
	}
	if c.Chat.Timeout == 0 {
		c.Chat.Timeout = 60 * time.Second
	}
	if c.Chat.UploadDir == "" {
		c.Chat.UploadDir = "uploads/chat"
	}
	if c.Chat.MaxUploadBytes == 0 {
		c.Chat.MaxUploadBytes = 16 << 20
	}
	if c.Analysis.UploadDir == "" {
		c.Analysis.UploadDir = "uploads/scans"
	}
	if c.Analysis.MaxUploadBytes == 0 {
		c.Analysis.MaxUploadBytes = 16 << 20
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 60
	}
}

var validate = validator.New()

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: url.Values{"sslmode": {c.Database.SSLMode}}.Encode(),
	}
	return u.String()
}

// DSN picks the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.Database.Driver == "postgres" {
		return c.PostgresDSN()
	}
	return c.MySQLDSN()
}
