package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Tuya TuyaConfig `yaml:"tuya"`
	Log  LogConfig  `yaml:"log"`
}

type TuyaConfig struct {
	AccessID  string `yaml:"access_id"`
	AccessKey string `yaml:"access_key"`
	BaseURL   string `yaml:"base_url"`
	Region    string `yaml:"region"`
	DeviceID  string `yaml:"device_id"`
	TokenFile string `yaml:"token_file"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file. ${VAR} references are expanded from the
// environment before parsing so credentials can stay out of the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FromEnv builds the configuration from process environment variables,
// first loading the given dotenv file if it exists.
func FromEnv(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading %s: %w", dotenvPath, err)
		}
	}

	cfg := &Config{
		Tuya: TuyaConfig{
			AccessID:  os.Getenv("TUYA_ACCESS_ID"),
			AccessKey: os.Getenv("TUYA_ACCESS_KEY"),
			BaseURL:   os.Getenv("TUYA_BASE_URL"),
			Region:    os.Getenv("TUYA_REGION"),
			DeviceID:  os.Getenv("DEVICE_ID"),
			TokenFile: os.Getenv("TUYA_TOKEN_FILE"),
		},
		Log: LogConfig{
			Level:  os.Getenv("LOG_LEVEL"),
			Format: os.Getenv("LOG_FORMAT"),
		},
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Tuya.AccessID == "" {
		return fmt.Errorf("%w: tuya access id is required", ErrInvalidConfig)
	}
	if c.Tuya.AccessKey == "" {
		return fmt.Errorf("%w: tuya access key is required", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Tuya.Region == "" {
		c.Tuya.Region = "us"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
