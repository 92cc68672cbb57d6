package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	LogDir     string `toml:"log_dir"`
}

// Scratch contains limits for the per-job scratch regions.
type Scratch struct {
	// DiskFloorMB is the minimum free space (in MiB) that must remain
	// on the scratch filesystem for a new job to be accepted.
	DiskFloorMB int64 `toml:"disk_floor_mb"`
	// StaleAfterHours controls the startup sweep of regions left
	// behind by crashed executions.
	StaleAfterHours int `toml:"stale_after_hours"`
}

// Media contains audio normalization and validation settings.
type Media struct {
	SampleRate         int     `toml:"sample_rate"`
	MaxDurationSeconds float64 `toml:"max_duration_seconds"`
	MinDurationSeconds float64 `toml:"min_duration_seconds"`
}

// Chunking contains chunk planning settings.
type Chunking struct {
	MaxChunkDurationSeconds float64 `toml:"max_chunk_duration_seconds"`
}

// Storage contains object-store connection and retry settings.
type Storage struct {
	Endpoint              string `toml:"endpoint"`
	AccessKey             string `toml:"access_key"`
	SecretKey             string `toml:"secret_key"`
	Bucket                string `toml:"bucket"`
	UseSSL                bool   `toml:"use_ssl"`
	RetryLimit            int    `toml:"retry_limit"`
	RetryDelayMS          int    `toml:"retry_delay_ms"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	UploadConcurrency     int    `toml:"upload_concurrency"`
}

// Transcription contains speech-to-text provider settings.
type Transcription struct {
	APIKey                string `toml:"api_key"`
	BaseURL               string `toml:"base_url"`
	Model                 string `toml:"model"`
	Language              string `toml:"language"`
	Concurrency           int    `toml:"concurrency"`
	RetryLimit            int    `toml:"retry_limit"`
	RetryDelayMS          int    `toml:"retry_delay_ms"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Workflow contains daemon timing and concurrency settings.
type Workflow struct {
	JobConcurrency     int `toml:"job_concurrency"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains ntfy push notification settings.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for scribed.
//
// Sections by subsystem:
//   - Paths: scratch and log directories
//   - Scratch: disk floor and stale-region sweep
//   - Media: normalization sample rate and duration bounds
//   - Chunking: chunk planning limits
//   - Storage: object-store connection and retry policy
//   - Transcription: provider connection, concurrency, retry policy
//   - Workflow: daemon polling, heartbeats, job concurrency
//   - Logging: log format and level
//   - Notifications: ntfy status notifications
type Config struct {
	Paths         Paths         `toml:"paths"`
	Scratch       Scratch       `toml:"scratch"`
	Media         Media         `toml:"media"`
	Chunking      Chunking      `toml:"chunking"`
	Storage       Storage       `toml:"storage"`
	Transcription Transcription `toml:"transcription"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scribed/config.toml")
}

// Load locates, parses, and validates a configuration file. The
// returned config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("scribed.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules to other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the given location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
