package config

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/arko-chat/protect/internal/credentials"
	"github.com/arko-chat/protect/internal/simulator"
)

const (
	appName    = "protect"
	configFile = "config.json"

	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

type SimulatorConfig struct {
	Seed              uint64 `json:"seed"`
	Dialog            string `json:"dialog"`
	AutoResumeSeconds int    `json:"auto_resume_seconds"`
	PaymentStatus     string `json:"payment_status"`
}

type Config struct {
	StereAPIURL  string `json:"stere_api_url"`
	MerchantCode string `json:"beep_merchant_code"`
	AppName      string `json:"app_name"`
	Version      string `json:"app_version"`
	Environment  string `json:"environment"`
	DebugMode    bool   `json:"debug_mode"`
	LogFormat    string `json:"log_format"`

	// HostURL points at a remote host server; empty means the simulator.
	HostURL  string `json:"host_url,omitempty"`
	HostAddr string `json:"host_addr"`

	Simulator SimulatorConfig `json:"simulator"`

	StereAPIKey string `json:"-"`
	TokenSecret string `json:"-"`
}

func defaults() Config {
	return Config{
		StereAPIURL: "http://localhost:8000",
		AppName:     "Beep Mini App",
		Version:     "1.0.0",
		Environment: EnvDevelopment,
		LogFormat:   "text",
		HostAddr:    "127.0.0.1:7345",
		Simulator: SimulatorConfig{
			AutoResumeSeconds: 30,
			PaymentStatus:     "success",
		},
	}
}

func (c *Config) IsDevelopment() bool { return c.Environment == EnvDevelopment }
func (c *Config) IsStaging() bool     { return c.Environment == EnvStaging }
func (c *Config) IsProduction() bool  { return c.Environment == EnvProduction }

// SimulatorOptions turns the simulator settings into simulator options on
// top of the realistic defaults.
func (c *Config) SimulatorOptions() simulator.Options {
	opts := simulator.DefaultOptions()
	opts.Seed = c.Simulator.Seed
	switch d := strings.ToLower(c.Simulator.Dialog); d {
	case "", "random":
		opts.Dialog = simulator.DialogRandom
	default:
		opts.Dialog = simulator.DialogMode(d)
	}
	opts.AutoResumeAfter = time.Duration(c.Simulator.AutoResumeSeconds) * time.Second
	if c.Simulator.PaymentStatus != "" {
		opts.PaymentStatus = c.Simulator.PaymentStatus
	}
	return opts
}

func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(configDir, appName))
}

// LoadFrom reads config.json in appDir, writing the defaults there on first
// run, then applies keyring secrets and environment overrides.
func LoadFrom(appDir string) (*Config, error) {
	path := filepath.Join(appDir, configFile)
	cfg := defaults()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(appDir, 0700); err != nil {
			return nil, err
		}
		out, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(path, out, 0600); err != nil {
			return nil, err
		}
		log.Printf("Generated new config at: %s", path)
	default:
		return nil, err
	}

	cfg.TokenSecret, err = credentials.LoadAppSecret("token_secret")
	if err != nil {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		cfg.TokenSecret = base64.StdEncoding.EncodeToString(secret)
		if err := credentials.StoreAppSecret("token_secret", cfg.TokenSecret); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.StereAPIKey == "" {
		if key, err := credentials.LoadAPIKey(cfg.Environment); err == nil {
			cfg.StereAPIKey = key
		}
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envString("STERE_API_URL", &cfg.StereAPIURL)
	envString("STERE_API_KEY", &cfg.StereAPIKey)
	envString("BEEP_MERCHANT_CODE", &cfg.MerchantCode)
	envString("APP_NAME", &cfg.AppName)
	envString("APP_VERSION", &cfg.Version)
	envString("ENVIRONMENT", &cfg.Environment)
	envBool("DEBUG_MODE", &cfg.DebugMode)
	envString("LOG_FORMAT", &cfg.LogFormat)
	envString("PROTECT_HOST_URL", &cfg.HostURL)
	envString("PROTECT_HOST_ADDR", &cfg.HostAddr)
	envString("SESSION_SECRET", &cfg.TokenSecret)

	envUint("PROTECT_SIM_SEED", &cfg.Simulator.Seed)
	envString("PROTECT_SIM_DIALOG", &cfg.Simulator.Dialog)
	envString("PROTECT_SIM_PAYMENT_STATUS", &cfg.Simulator.PaymentStatus)

	// true keeps the default delay, false disables it, a number is seconds.
	switch v := envValue("PROTECT_SIM_AUTO_RESUME").(type) {
	case bool:
		if !v {
			cfg.Simulator.AutoResumeSeconds = 0
		} else if cfg.Simulator.AutoResumeSeconds == 0 {
			cfg.Simulator.AutoResumeSeconds = defaults().Simulator.AutoResumeSeconds
		}
	case float64:
		if v >= 0 {
			cfg.Simulator.AutoResumeSeconds = int(v)
		}
	}
}

// envValue reads key, turning "true"/"false" into a bool and numeric text
// into a float64. Unset or empty keys yield nil.
func envValue(key string) any {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
		return n
	}
	return raw
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	switch v := envValue(key).(type) {
	case bool:
		*dst = v
	case nil:
	default:
		log.Printf("ignoring %s: not a boolean", key)
	}
}

func envUint(key string, dst *uint64) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		log.Printf("ignoring %s: not a positive integer", key)
		return
	}
	*dst = n
}
