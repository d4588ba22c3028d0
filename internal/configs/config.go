package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	defaultPort           = "8080"
	defaultAllowedOrigin  = "http://localhost:3000"
	defaultBackendTimeout = 15 * time.Second
	defaultSummaryTTL     = 60 * time.Second
	defaultOTPRequests    = 5
	defaultOTPWindow      = 10 * time.Minute
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		Env            string   `yaml:"env"`
		AllowedOrigins string   `yaml:"allowed_origins"`
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	Backend struct {
		BaseURL string        `yaml:"base_url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"backend"`

	Cookies struct {
		Secure bool `yaml:"secure"`
	} `yaml:"cookies"`

	Redis struct {
		Addr     string `yaml:"redis_addr"`
		Password string `yaml:"redis_password"`
		DB       int    `yaml:"redis_db"`
	} `yaml:"redis"`

	Cache struct {
		SummaryTTL time.Duration `yaml:"summary_ttl"`
	} `yaml:"cache"`

	RateLimit struct {
		OTPRequests int           `yaml:"otp_requests"`
		OTPWindow   time.Duration `yaml:"otp_window"`
	} `yaml:"rate_limit"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads dev.yml or prod.yml from CONFIG_DIR (default internal/configs).
// A .env file, when present, is loaded into the environment first so that
// ${VAR} references in the YAML can resolve against it.
func Load(env string) (*Config, error) {
	_ = godotenv.Load()

	configFile := "dev.yml"
	if env == EnvProduction {
		configFile = "prod.yml"
	}

	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = filepath.Join("internal", "configs")
	}

	cfg, err := LoadFile(filepath.Join(dir, configFile))
	if err != nil {
		return nil, err
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = env
	}
	return cfg, nil
}

func LoadFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	expandConfig(&cfg)
	applyOverrides(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backend.BaseURL) == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == EnvProduction
}

// RedisEnabled is false when no address is configured; the server then runs
// without cache, rate limiting and the profile event stream.
func (c *Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}

func expandConfig(cfg *Config) {
	cfg.Server.Port = os.ExpandEnv(cfg.Server.Port)
	cfg.Server.Env = os.ExpandEnv(cfg.Server.Env)
	cfg.Server.AllowedOrigins = os.ExpandEnv(cfg.Server.AllowedOrigins)
	cfg.Backend.BaseURL = os.ExpandEnv(cfg.Backend.BaseURL)
	cfg.Redis.Addr = os.ExpandEnv(cfg.Redis.Addr)
	cfg.Redis.Password = os.ExpandEnv(cfg.Redis.Password)
	cfg.Log.Level = os.ExpandEnv(cfg.Log.Level)
}

// applyOverrides lets the plain deployment variables win over the file.
func applyOverrides(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Server.Env = env
	}
	if url := os.Getenv("BACKEND_BASE_URL"); url != "" {
		cfg.Backend.BaseURL = url
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.AllowedOrigins == "" {
		cfg.Server.AllowedOrigins = defaultAllowedOrigin
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = defaultBackendTimeout
	}
	if cfg.Cache.SummaryTTL <= 0 {
		cfg.Cache.SummaryTTL = defaultSummaryTTL
	}
	if cfg.RateLimit.OTPRequests <= 0 {
		cfg.RateLimit.OTPRequests = defaultOTPRequests
	}
	if cfg.RateLimit.OTPWindow <= 0 {
		cfg.RateLimit.OTPWindow = defaultOTPWindow
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
