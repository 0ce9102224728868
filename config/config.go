package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system configuration
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	NodeID   int64  `yaml:"node_id"`
	Debug    bool   `yaml:"debug"`
}

// WebConfig web server configuration
type WebConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Secret       string        `yaml:"secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	AllowOrigins []string      `yaml:"allow_origins"`
}

// LogConfig logging configuration
// LogConfig controls zap output. An empty Level follows Mode: debug in
// development, info in production. The rotation fields apply to the file.
type LogConfig struct {
	Mode       string `yaml:"mode"`
	Level      string `yaml:"level"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// StorageConfig selects the persistence backend: "json", "bbolt" or "memory".
type StorageConfig struct {
	Type           string        `yaml:"type"`
	Dir            string        `yaml:"dir"`
	Timeout        time.Duration `yaml:"timeout"`
	BackupKeepDays int           `yaml:"backup_keep_days"`
}

// DeviceConfig governs how physical carts are identified.
type DeviceConfig struct {
	RequireToken  bool              `yaml:"require_token"`
	Tokens        map[string]string `yaml:"tokens"`
	DefaultUserID string            `yaml:"default_user_id"`
	TestTag       string            `yaml:"test_tag"`
}

// PaymentConfig payment gateway configuration. Provider is "mock" or "razorpay".
type PaymentConfig struct {
	Provider        string        `yaml:"provider"`
	KeyID           string        `yaml:"key_id"`
	KeySecret       string        `yaml:"key_secret"`
	Currency        string        `yaml:"currency"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	VerifySignature bool          `yaml:"verify_signature"`
}

type AppConfig struct {
	System  SysConfig     `yaml:"system"`
	Web     WebConfig     `yaml:"web"`
	Logger  LogConfig     `yaml:"logger"`
	Storage StorageConfig `yaml:"storage"`
	Device  DeviceConfig  `yaml:"device"`
	Payment PaymentConfig `yaml:"payment"`
}

const DefaultSecret = "smartcart_secret_key"

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "SmartCart",
		Location: "Local",
		Workdir:  "./var",
		NodeID:   1,
		Debug:    false,
	},
	Web: WebConfig{
		Host:         "0.0.0.0",
		Port:         5000,
		Secret:       DefaultSecret,
		TokenTTL:     24 * time.Hour,
		AllowOrigins: []string{"*"},
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: false,
		Filename:   "smartcart.log",
		MaxSizeMB:  64,
		MaxBackups: 7,
		MaxAgeDays: 7,
	},
	Storage: StorageConfig{
		Type:           "json",
		Dir:            "data",
		Timeout:        5 * time.Second,
		BackupKeepDays: 4,
	},
	Device: DeviceConfig{
		RequireToken:  false,
		Tokens:        map[string]string{},
		DefaultUserID: "2",
		TestTag:       "TEST_TAG",
	},
	Payment: PaymentConfig{
		Provider:        "mock",
		Currency:        "INR",
		BaseURL:         "https://api.razorpay.com",
		Timeout:         10 * time.Second,
		VerifySignature: true,
	},
}

// DataDir returns the storage directory, resolved against the workdir.
func (c *AppConfig) DataDir() string {
	if filepath.IsAbs(c.Storage.Dir) {
		return c.Storage.Dir
	}
	return filepath.Join(c.System.Workdir, c.Storage.Dir)
}

// BackupDir returns the directory receiving periodic store backups.
func (c *AppConfig) BackupDir() string {
	return filepath.Join(c.System.Workdir, "backup")
}

// LogFile returns the log file path, resolved against the workdir.
func (c *AppConfig) LogFile() string {
	if filepath.IsAbs(c.Logger.Filename) {
		return c.Logger.Filename
	}
	return filepath.Join(c.System.Workdir, "logs", c.Logger.Filename)
}

// Addr returns the HTTP listen address.
func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// Validate checks settings that cannot be defaulted.
func (c *AppConfig) Validate() error {
	switch strings.ToLower(c.Storage.Type) {
	case "json", "bbolt", "memory":
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}
	switch strings.ToLower(c.Payment.Provider) {
	case "mock", "razorpay":
	default:
		return fmt.Errorf("unsupported payment provider %q", c.Payment.Provider)
	}
	if c.Payment.Provider == "razorpay" && (c.Payment.KeyID == "" || c.Payment.KeySecret == "") {
		return fmt.Errorf("razorpay provider requires key_id and key_secret")
	}
	if c.Device.RequireToken && len(c.Device.Tokens) == 0 {
		return fmt.Errorf("device.require_token is set but no device tokens are configured")
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("invalid web port %d", c.Web.Port)
	}
	return nil
}

// LoadConfig reads cfile (when it exists) over the defaults, then applies
// environment overrides.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := defaults()
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", cfile, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config %s: %w", cfile, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *AppConfig {
	cfg := *DefaultAppConfig
	cfg.Web.AllowOrigins = append([]string(nil), DefaultAppConfig.Web.AllowOrigins...)
	cfg.Device.Tokens = make(map[string]string, len(DefaultAppConfig.Device.Tokens))
	for k, v := range DefaultAppConfig.Device.Tokens {
		cfg.Device.Tokens[k] = v
	}
	return &cfg
}

func applyEnv(cfg *AppConfig) {
	setEnvString("SMARTCART_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvString("SMARTCART_SYSTEM_LOCATION", &cfg.System.Location)
	setEnvBool("SMARTCART_SYSTEM_DEBUG", &cfg.System.Debug)
	setEnvBool("DEBUG", &cfg.System.Debug)

	setEnvString("SMARTCART_WEB_HOST", &cfg.Web.Host)
	setEnvInt("SMARTCART_WEB_PORT", &cfg.Web.Port)
	setEnvInt("PORT", &cfg.Web.Port)
	setEnvString("SMARTCART_WEB_SECRET", &cfg.Web.Secret)
	setEnvString("JWT_SECRET", &cfg.Web.Secret)
	setEnvDuration("SMARTCART_WEB_TOKEN_TTL", &cfg.Web.TokenTTL)

	setEnvString("SMARTCART_LOGGER_MODE", &cfg.Logger.Mode)
	setEnvString("SMARTCART_LOGGER_LEVEL", &cfg.Logger.Level)
	setEnvBool("SMARTCART_LOGGER_FILE_ENABLE", &cfg.Logger.FileEnable)

	setEnvString("SMARTCART_STORAGE_TYPE", &cfg.Storage.Type)
	setEnvString("SMARTCART_STORAGE_DIR", &cfg.Storage.Dir)
	setEnvDuration("SMARTCART_STORAGE_TIMEOUT", &cfg.Storage.Timeout)

	setEnvBool("SMARTCART_DEVICE_REQUIRE_TOKEN", &cfg.Device.RequireToken)
	setEnvString("SMARTCART_DEVICE_DEFAULT_USER_ID", &cfg.Device.DefaultUserID)
	// SMARTCART_DEVICE_TOKENS=cart-01:secret1,cart-02:secret2
	if v, ok := os.LookupEnv("SMARTCART_DEVICE_TOKENS"); ok {
		for _, pair := range strings.Split(v, ",") {
			id, token, found := strings.Cut(strings.TrimSpace(pair), ":")
			if found && id != "" {
				cfg.Device.Tokens[id] = token
			}
		}
	}

	setEnvString("SMARTCART_PAYMENT_PROVIDER", &cfg.Payment.Provider)
	setEnvString("RAZORPAY_KEY_ID", &cfg.Payment.KeyID)
	setEnvString("RAZORPAY_KEY_SECRET", &cfg.Payment.KeySecret)
	setEnvString("SMARTCART_PAYMENT_CURRENCY", &cfg.Payment.Currency)
	setEnvBool("SMARTCART_PAYMENT_VERIFY_SIGNATURE", &cfg.Payment.VerifySignature)
}

func setEnvString(name string, val *string) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		*val = v
	}
}

func setEnvInt(name string, val *int) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			*val = i
		}
	}
}

func setEnvBool(name string, val *bool) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			*val = b
		}
	}
}

func setEnvDuration(name string, val *time.Duration) {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			*val = d
		}
	}
}
