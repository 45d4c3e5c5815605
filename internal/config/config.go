package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/melascope-dx/internal/middleware"
)

const (
	ChatProviderAnalysisAPI = "analysis-api"
	ChatProviderOpenAI      = "openai"

	PreviewBackendMemory = "memory"
	PreviewBackendMinio  = "minio"
)

type Config struct {
	Server struct {
		Port           int           `yaml:"port"`
		ReadTimeout    time.Duration `yaml:"readTimeout"`
		WriteTimeout   time.Duration `yaml:"writeTimeout"`
		MaxUploadBytes int64         `yaml:"maxUploadBytes"`
		AllowedOrigins []string      `yaml:"allowedOrigins"`
	} `yaml:"server"`

	AnalysisAPI struct {
		BaseURL string        `yaml:"baseURL"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"analysisAPI"`

	Chat struct {
		Provider string `yaml:"provider"`
		LLM      struct {
			APIKey  string `yaml:"apiKey"`
			BaseURL string `yaml:"baseURL"`
			Model   string `yaml:"model"`
		} `yaml:"llm"`
	} `yaml:"chat"`

	Previews struct {
		Backend   string        `yaml:"backend"`
		URLExpiry time.Duration `yaml:"urlExpiry"`
	} `yaml:"previews"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
		Prefix     string `yaml:"prefix"`
	} `yaml:"minio"`

	Sessions struct {
		IdleTTL       time.Duration `yaml:"idleTTL"`
		SweepInterval time.Duration `yaml:"sweepInterval"`
	} `yaml:"sessions"`

	History struct {
		Capacity int `yaml:"capacity"`
	} `yaml:"history"`

	RateLimit struct {
		Enabled    bool `yaml:"enabled"`
		Capacity   int  `yaml:"capacity"`
		RefillRate int  `yaml:"refillRate"`
	} `yaml:"rateLimit"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default is used as the base before the file and env are applied.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	// covers analyze + advisory at their client timeout
	c.Server.WriteTimeout = 75 * time.Second
	c.Server.MaxUploadBytes = 10 << 20
	c.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

	c.AnalysisAPI.BaseURL = "http://localhost:8000"
	c.AnalysisAPI.Timeout = 30 * time.Second

	c.Chat.Provider = ChatProviderAnalysisAPI
	c.Chat.LLM.Model = "gpt-4o-mini"

	c.Previews.Backend = PreviewBackendMemory
	c.Previews.URLExpiry = 15 * time.Minute
	c.Minio.Prefix = "previews"

	c.Sessions.IdleTTL = 30 * time.Minute
	c.Sessions.SweepInterval = time.Minute

	c.History.Capacity = 50

	c.RateLimit.Enabled = true
	c.RateLimit.Capacity = 20
	c.RateLimit.RefillRate = 1

	c.Log.Level = "info"
	c.Log.Format = "console"
	return &c
}

// Load baca file config.yaml on top of Default, then env overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("ANALYSIS_API_BASE_URL", &c.AnalysisAPI.BaseURL)
	str("CHAT_PROVIDER", &c.Chat.Provider)
	str("LLM_API_KEY", &c.Chat.LLM.APIKey)
	str("LLM_BASE_URL", &c.Chat.LLM.BaseURL)
	str("LLM_MODEL", &c.Chat.LLM.Model)
	str("PREVIEW_BACKEND", &c.Previews.Backend)
	str("MINIO_ENDPOINT", &c.Minio.Endpoint)
	str("MINIO_ACCESS_KEY", &c.Minio.AccessKey)
	str("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	str("MINIO_BUCKET", &c.Minio.BucketName)
	str("MINIO_REGION", &c.Minio.Region)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("SERVER_PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v, ok := lookup("MINIO_USE_SSL"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MINIO_USE_SSL: %w", err)
		}
		c.Minio.UseSSL = b
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("server.maxUploadBytes must be positive"))
	}
	if err := middleware.ValidateBaseURL(c.AnalysisAPI.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("analysisAPI.baseURL: %w", err))
	}

	switch c.Chat.Provider {
	case ChatProviderAnalysisAPI:
	case ChatProviderOpenAI:
		if c.Chat.LLM.APIKey == "" {
			errs = append(errs, errors.New("chat.llm.apiKey is required for the openai provider"))
		}
		if c.Chat.LLM.BaseURL != "" {
			if err := middleware.ValidateBaseURL(c.Chat.LLM.BaseURL); err != nil {
				errs = append(errs, fmt.Errorf("chat.llm.baseURL: %w", err))
			}
		}
	default:
		errs = append(errs, fmt.Errorf("chat.provider %q unknown (allowed: %s, %s)", c.Chat.Provider, ChatProviderAnalysisAPI, ChatProviderOpenAI))
	}

	switch c.Previews.Backend {
	case PreviewBackendMemory:
	case PreviewBackendMinio:
		if c.Minio.Endpoint == "" || c.Minio.BucketName == "" {
			errs = append(errs, errors.New("minio.endpoint and minio.bucketName are required for the minio preview backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("previews.backend %q unknown (allowed: %s, %s)", c.Previews.Backend, PreviewBackendMemory, PreviewBackendMinio))
	}

	if c.History.Capacity <= 0 {
		errs = append(errs, errors.New("history.capacity must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.Capacity <= 0 {
		errs = append(errs, errors.New("rateLimit.capacity must be positive when enabled"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q unknown (allowed: console, json)", c.Log.Format))
	}
	return errors.Join(errs...)
}
