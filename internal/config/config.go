// Package config loads member-assist settings from defaults, an optional
// YAML file, a .env file and ASSIST_* environment variables, in that order.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ModeDev  = "dev"
	ModeProd = "prod"

	StoreMemory   = "memory"
	StorePebble   = "pebble"
	StoreDynamoDB = "dynamodb"

	// DevPassword is accepted in dev mode when no password is configured.
	DevPassword = "123"
)

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Store struct {
	Backend string        `yaml:"backend"`
	Path    string        `yaml:"path"`
	Table   string        `yaml:"table"`
	TTL     time.Duration `yaml:"ttl"`
}

type Config struct {
	APIURL           string        `yaml:"api_url"`
	ListenAddr       string        `yaml:"listen_addr"`
	Mode             string        `yaml:"mode"`
	LoginPassword    string        `yaml:"login_password"`
	ParamPrefix      string        `yaml:"param_prefix"`
	PasswordParam    string        `yaml:"password_param"`
	TokenParam       string        `yaml:"token_param"`
	FileStorageHosts []string      `yaml:"file_storage_hosts"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	RateLimit        float64       `yaml:"rate_limit"`
	RateBurst        int           `yaml:"rate_burst"`
	DeviceIdle       time.Duration `yaml:"device_idle"`
	Log              Log           `yaml:"log"`
	Store            Store         `yaml:"store"`
}

func Default() *Config {
	return &Config{
		APIURL:           "http://localhost:8000",
		ListenAddr:       ":8080",
		Mode:             ModeDev,
		PasswordParam:    "login-password",
		FileStorageHosts: []string{"storage.googleapis.com"},
		RequestTimeout:   30 * time.Second,
		RateBurst:        1,
		DeviceIdle:       24 * time.Hour,
		Log:              Log{Level: "info", Format: "console"},
		Store:            Store{Backend: StoreMemory, Path: "./.member-assist", TTL: 30 * 24 * time.Hour},
	}
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: read %s", path)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
	}

	_ = godotenv.Load(".env")
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
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "config: %s", key)
		}
		*dst = d
		return nil
	}

	str("ASSIST_API_URL", &c.APIURL)
	str("ASSIST_LISTEN_ADDR", &c.ListenAddr)
	str("ASSIST_MODE", &c.Mode)
	str("ASSIST_LOGIN_PASSWORD", &c.LoginPassword)
	str("ASSIST_PARAM_PREFIX", &c.ParamPrefix)
	str("ASSIST_PASSWORD_PARAM", &c.PasswordParam)
	str("ASSIST_TOKEN_PARAM", &c.TokenParam)
	str("ASSIST_LOG_LEVEL", &c.Log.Level)
	str("ASSIST_LOG_FORMAT", &c.Log.Format)
	str("ASSIST_STORE", &c.Store.Backend)
	str("ASSIST_STATE_PATH", &c.Store.Path)
	str("ASSIST_STATE_TABLE", &c.Store.Table)

	if v, ok := lookup("ASSIST_FILE_HOSTS"); ok && strings.TrimSpace(v) != "" {
		c.FileStorageHosts = splitList(v)
	}
	for key, dst := range map[string]*time.Duration{
		"ASSIST_REQUEST_TIMEOUT": &c.RequestTimeout,
		"ASSIST_DEVICE_IDLE":     &c.DeviceIdle,
		"ASSIST_STATE_TTL":       &c.Store.TTL,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	if v, ok := lookup("ASSIST_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "config: ASSIST_RATE_LIMIT")
		}
		c.RateLimit = f
	}
	if v, ok := lookup("ASSIST_RATE_BURST"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "config: ASSIST_RATE_BURST")
		}
		c.RateBurst = n
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Mode {
	case ModeDev, ModeProd:
	default:
		return errors.Errorf("config: unknown mode %q", c.Mode)
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StorePebble:
		if c.Store.Path == "" {
			return errors.New("config: pebble store needs a path")
		}
	case StoreDynamoDB:
		if c.Store.Table == "" {
			return errors.New("config: dynamodb store needs a table")
		}
	default:
		return errors.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	if c.Mode == ModeProd && c.LoginPassword == "" && c.ParamPrefix == "" {
		return errors.New("config: prod mode needs a login password or a parameter prefix")
	}
	if c.TokenParam != "" && c.ParamPrefix == "" {
		return errors.New("config: token_param needs a parameter prefix")
	}
	if c.RateLimit < 0 || c.RateBurst < 1 {
		return errors.New("config: rate limit must be >= 0 and burst >= 1")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: request timeout must be positive")
	}
	return nil
}

// Password is the static login password, or "" when it must come from the
// parameter store.
func (c *Config) Password() string {
	if c.LoginPassword != "" {
		return c.LoginPassword
	}
	if c.Mode == ModeDev {
		return DevPassword
	}
	return ""
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.Store.Backend == StoreDynamoDB || c.ParamPrefix != ""
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
