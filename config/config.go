// Package config loads runtime configuration for the listening client.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all client configuration.
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Recording   RecordingConfig   `mapstructure:"recording"`
	Assistant   AssistantConfig   `mapstructure:"assistant"`
	Device      DeviceConfig      `mapstructure:"device"`
}

// APIConfig points the client at the backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	RecordingsDir string `mapstructure:"recordings_dir"`
	TranscriptDB  string `mapstructure:"transcript_db"`
}

type CredentialsConfig struct {
	Backend string `mapstructure:"backend"` // keyring or memory
	Service string `mapstructure:"service"`
}

type RecordingConfig struct {
	Format       string        `mapstructure:"format"` // wav or flac
	SampleRate   int           `mapstructure:"sample_rate"`
	PollAttempts int           `mapstructure:"poll_attempts"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Device       string        `mapstructure:"device"`
	Cues         bool          `mapstructure:"cues"` // start/stop beeps
}

type AssistantConfig struct {
	CharsPerSecond int           `mapstructure:"chars_per_second"`
	ChunkInterval  time.Duration `mapstructure:"chunk_interval"`
	SearchURL      string        `mapstructure:"search_url"`
}

// DeviceConfig describes which phone-like capabilities this machine offers.
type DeviceConfig struct {
	Telephony    bool   `mapstructure:"telephony"`
	SMS          bool   `mapstructure:"sms"`
	ContactsFile string `mapstructure:"contacts_file"`
}

const envPrefix = "LISTENING"

// DefaultDataDir returns the OS-specific application data directory.
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "listening")
	}
	return ".listening"
}

// DefaultPath returns the config file location used when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dataDir := DefaultDataDir()

	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("storage.data_dir", dataDir)
	v.SetDefault("storage.recordings_dir", "")
	v.SetDefault("storage.transcript_db", "")

	v.SetDefault("credentials.backend", "keyring")
	v.SetDefault("credentials.service", "listening")

	v.SetDefault("recording.format", "wav")
	v.SetDefault("recording.sample_rate", 44100)
	v.SetDefault("recording.poll_attempts", 3)
	v.SetDefault("recording.poll_interval", 120*time.Millisecond)
	v.SetDefault("recording.device", "")
	v.SetDefault("recording.cues", true)

	v.SetDefault("assistant.chars_per_second", 30)
	v.SetDefault("assistant.chunk_interval", 33*time.Millisecond)
	v.SetDefault("assistant.search_url", "https://www.google.com/search?q=")

	// phones dial and text; desktops don't unless told otherwise
	v.SetDefault("device.telephony", runtime.GOOS == "android" || runtime.GOOS == "ios")
	v.SetDefault("device.sms", runtime.GOOS == "android" || runtime.GOOS == "ios")
	v.SetDefault("device.contacts_file", "")
}

// Load reads defaults, then the YAML file at path (if it exists), then LISTENING_* env vars.
// An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.fillDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDerived() {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.Storage.RecordingsDir == "" {
		c.Storage.RecordingsDir = filepath.Join(c.Storage.DataDir, "recordings")
	}
	if c.Storage.TranscriptDB == "" {
		c.Storage.TranscriptDB = filepath.Join(c.Storage.DataDir, "transcript.db")
	}
	if c.Device.ContactsFile == "" {
		c.Device.ContactsFile = filepath.Join(c.Storage.DataDir, "contacts.yaml")
	}
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	switch c.Credentials.Backend {
	case "keyring", "memory":
	default:
		return fmt.Errorf("unknown credentials.backend %q (use keyring or memory)", c.Credentials.Backend)
	}
	switch c.Recording.Format {
	case "wav", "flac":
	default:
		return fmt.Errorf("unknown recording.format %q (use wav or flac)", c.Recording.Format)
	}
	if c.Recording.SampleRate <= 0 {
		return fmt.Errorf("recording.sample_rate must be positive, got %d", c.Recording.SampleRate)
	}
	if c.Recording.PollAttempts < 1 {
		return fmt.Errorf("recording.poll_attempts must be at least 1, got %d", c.Recording.PollAttempts)
	}
	if c.Recording.PollInterval < 0 {
		return fmt.Errorf("recording.poll_interval must not be negative, got %s", c.Recording.PollInterval)
	}
	if c.Assistant.CharsPerSecond <= 0 {
		return fmt.Errorf("assistant.chars_per_second must be positive, got %d", c.Assistant.CharsPerSecond)
	}
	if c.Assistant.ChunkInterval < 0 {
		return fmt.Errorf("assistant.chunk_interval must not be negative, got %s", c.Assistant.ChunkInterval)
	}
	return nil
}
