package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Execution *ExecutionConfig `json:"execution"`
	Reaper    *ReaperConfig    `json:"reaper"`
	Database  *DatabaseConfig  `json:"database"`
}

type HTTPConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	Host         string        `json:"host"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
	MaxFrameSize int64         `json:"max_frame_size"`
}

// FUNCTIONAL DISCOVERY: Budgets differ per executor - the in-process JavaScript
// runtime gets a short budget, the external interpreter a longer one
type ExecutionConfig struct {
	ScratchDir       string        `json:"scratch_dir"`
	JavaScriptBudget time.Duration `json:"javascript_budget"`
	PythonBudget     time.Duration `json:"python_budget"`
	PythonBinary     string        `json:"python_binary"`
	Sandbox          bool          `json:"sandbox"`
	ThrottleRate     float64       `json:"throttle_rate"`
	ThrottleBurst    int           `json:"throttle_burst"`
}

type ReaperConfig struct {
	Interval time.Duration `json:"interval"`
}

// DatabaseConfig controls the optional execution audit log
type DatabaseConfig struct {
	Enabled bool          `json:"enabled"`
	Path    string        `json:"path"`
	Timeout time.Duration `json:"timeout"`
}

// DefaultConfig returns the settings used when nothing is configured:
// port 5000 on all interfaces, scratch files under ./temp, interpreters
// confined by the sandbox, audit log off
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Port:         5000,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			Host:         "0.0.0.0",
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
			MaxFrameSize: 1 << 20,
		},
		Execution: &ExecutionConfig{
			ScratchDir:       "./temp",
			JavaScriptBudget: 5 * time.Second,
			PythonBudget:     10 * time.Second,
			PythonBinary:     "python3",
			Sandbox:          true,
			ThrottleRate:     2,
			ThrottleBurst:    5,
		},
		Reaper: &ReaperConfig{
			Interval: time.Hour,
		},
		Database: &DatabaseConfig{
			Enabled: false,
			Path:    "./data/codesync.db",
			Timeout: 30 * time.Second,
		},
	}
}

// FUNCTIONAL DISCOVERY: Comprehensive validation prevents invalid system configurations
// Critical for preventing runtime failures in production deployment
func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	// Port 0 binds an ephemeral port
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}

	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.WebSocket.MaxFrameSize <= 0 {
		return fmt.Errorf("WebSocket max frame size must be positive")
	}

	if c.Execution == nil {
		return fmt.Errorf("execution configuration is required")
	}
	if c.Execution.ScratchDir == "" {
		return fmt.Errorf("scratch directory cannot be empty")
	}
	if c.Execution.JavaScriptBudget <= 0 || c.Execution.PythonBudget <= 0 {
		return fmt.Errorf("execution budgets must be positive")
	}
	if c.Execution.PythonBinary == "" {
		return fmt.Errorf("python binary cannot be empty")
	}
	if c.Execution.ThrottleRate < 0 || c.Execution.ThrottleBurst < 0 {
		return fmt.Errorf("execution throttle cannot be negative")
	}

	if c.Reaper == nil {
		return fmt.Errorf("reaper configuration is required")
	}
	if c.Reaper.Interval <= 0 {
		return fmt.Errorf("reaper interval must be positive")
	}

	if c.Database == nil {
		return fmt.Errorf("database configuration is required")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty when the audit log is enabled")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	return nil
}

// Environment helpers - unparsable values leave the current setting untouched

func envString(name string, target *string) {
	if v := os.Getenv(name); v != "" {
		*target = v
	}
}

func envInt(name string, target *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func envInt64(name string, target *int64) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*target = n
		}
	}
}

func envFloat(name string, target *float64) {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*target = f
		}
	}
}

func envBool(name string, target *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*target = b
		}
	}
}

func envDuration(name string, target *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*target = d
		}
	}
}

// LoadFromEnv applies PORT and CODESYNC_* variables on top of the defaults
// FUNCTIONAL DISCOVERY: PORT is honoured for platform deployments; CODESYNC_HTTP_PORT wins over it
func LoadFromEnv() *Config {
	config := DefaultConfig()

	envInt("PORT", &config.HTTP.Port)
	envInt("CODESYNC_HTTP_PORT", &config.HTTP.Port)
	envString("CODESYNC_HTTP_HOST", &config.HTTP.Host)
	envDuration("CODESYNC_HTTP_READ_TIMEOUT", &config.HTTP.ReadTimeout)
	envDuration("CODESYNC_HTTP_WRITE_TIMEOUT", &config.HTTP.WriteTimeout)

	envDuration("CODESYNC_WEBSOCKET_PING_INTERVAL", &config.WebSocket.PingInterval)
	envDuration("CODESYNC_WEBSOCKET_READ_TIMEOUT", &config.WebSocket.ReadTimeout)
	envDuration("CODESYNC_WEBSOCKET_WRITE_TIMEOUT", &config.WebSocket.WriteTimeout)
	envInt("CODESYNC_WEBSOCKET_BUFFER_SIZE", &config.WebSocket.BufferSize)
	envInt64("CODESYNC_WEBSOCKET_MAX_FRAME_SIZE", &config.WebSocket.MaxFrameSize)

	envString("CODESYNC_SCRATCH_DIR", &config.Execution.ScratchDir)
	envDuration("CODESYNC_JS_BUDGET", &config.Execution.JavaScriptBudget)
	envDuration("CODESYNC_PYTHON_BUDGET", &config.Execution.PythonBudget)
	envString("CODESYNC_PYTHON_BINARY", &config.Execution.PythonBinary)
	envBool("CODESYNC_SANDBOX", &config.Execution.Sandbox)
	envFloat("CODESYNC_THROTTLE_RATE", &config.Execution.ThrottleRate)
	envInt("CODESYNC_THROTTLE_BURST", &config.Execution.ThrottleBurst)

	envDuration("CODESYNC_REAPER_INTERVAL", &config.Reaper.Interval)

	envBool("CODESYNC_DATABASE_ENABLED", &config.Database.Enabled)
	envString("CODESYNC_DATABASE_PATH", &config.Database.Path)
	envDuration("CODESYNC_DATABASE_TIMEOUT", &config.Database.Timeout)

	return config
}

// ConfigFile represents the JSON structure for file-based configuration
// FUNCTIONAL DISCOVERY: Separate struct for JSON parsing to handle duration strings
type ConfigFile struct {
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Execution *ExecutionConfigFile `json:"execution"`
	Reaper    *ReaperConfigFile    `json:"reaper"`
	Database  *DatabaseConfigFile  `json:"database"`
}

type HTTPConfigFile struct {
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	Host         string `json:"host"`
}

type WebSocketConfigFile struct {
	PingInterval string `json:"ping_interval"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	BufferSize   int    `json:"buffer_size"`
	MaxFrameSize int64  `json:"max_frame_size"`
}

type ExecutionConfigFile struct {
	ScratchDir       string   `json:"scratch_dir"`
	JavaScriptBudget string   `json:"javascript_budget"`
	PythonBudget     string   `json:"python_budget"`
	PythonBinary     string   `json:"python_binary"`
	Sandbox          *bool    `json:"sandbox"`
	ThrottleRate     *float64 `json:"throttle_rate"`
	ThrottleBurst    *int     `json:"throttle_burst"`
}

type ReaperConfigFile struct {
	Interval string `json:"interval"`
}

type DatabaseConfigFile struct {
	Enabled *bool  `json:"enabled"`
	Path    string `json:"path"`
	Timeout string `json:"timeout"`
}

// setDuration parses a duration string into target. Empty means keep.
func setDuration(field, value string, target *time.Duration) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	*target = d
	return nil
}

// LoadFromFile reads a JSON configuration file on top of the defaults
func LoadFromFile(filepath string) (*Config, error) {
	return loadFileOnto(filepath, DefaultConfig())
}

// loadFileOnto overlays the values present in a JSON file onto base
// FUNCTIONAL DISCOVERY: Fields missing from the file keep their base value,
// so a file only needs to name what it changes
func loadFileOnto(filepath string, config *Config) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	var errs []error
	if f := configFile.HTTP; f != nil {
		if f.Port > 0 {
			config.HTTP.Port = f.Port
		}
		if f.Host != "" {
			config.HTTP.Host = f.Host
		}
		errs = append(errs,
			setDuration("http.read_timeout", f.ReadTimeout, &config.HTTP.ReadTimeout),
			setDuration("http.write_timeout", f.WriteTimeout, &config.HTTP.WriteTimeout))
	}

	if f := configFile.WebSocket; f != nil {
		if f.BufferSize > 0 {
			config.WebSocket.BufferSize = f.BufferSize
		}
		if f.MaxFrameSize > 0 {
			config.WebSocket.MaxFrameSize = f.MaxFrameSize
		}
		errs = append(errs,
			setDuration("websocket.ping_interval", f.PingInterval, &config.WebSocket.PingInterval),
			setDuration("websocket.read_timeout", f.ReadTimeout, &config.WebSocket.ReadTimeout),
			setDuration("websocket.write_timeout", f.WriteTimeout, &config.WebSocket.WriteTimeout))
	}

	if f := configFile.Execution; f != nil {
		if f.ScratchDir != "" {
			config.Execution.ScratchDir = f.ScratchDir
		}
		if f.PythonBinary != "" {
			config.Execution.PythonBinary = f.PythonBinary
		}
		if f.Sandbox != nil {
			config.Execution.Sandbox = *f.Sandbox
		}
		if f.ThrottleRate != nil {
			config.Execution.ThrottleRate = *f.ThrottleRate
		}
		if f.ThrottleBurst != nil {
			config.Execution.ThrottleBurst = *f.ThrottleBurst
		}
		errs = append(errs,
			setDuration("execution.javascript_budget", f.JavaScriptBudget, &config.Execution.JavaScriptBudget),
			setDuration("execution.python_budget", f.PythonBudget, &config.Execution.PythonBudget))
	}

	if f := configFile.Reaper; f != nil {
		errs = append(errs, setDuration("reaper.interval", f.Interval, &config.Reaper.Interval))
	}

	if f := configFile.Database; f != nil {
		if f.Enabled != nil {
			config.Database.Enabled = *f.Enabled
		}
		if f.Path != "" {
			config.Database.Path = f.Path
		}
		errs = append(errs, setDuration("database.timeout", f.Timeout, &config.Database.Timeout))
	}

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
		}
	}

	// ARCHITECTURAL DISCOVERY: Validate configuration after loading to catch errors early
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// FUNCTIONAL DISCOVERY: Configuration precedence: file > environment > defaults
// A broken file is reported and ignored so environment/defaults still work
func LoadConfigWithPrecedence(filepath string) (*Config, error) {
	config := LoadFromEnv()

	if filepath != "" {
		fileConfig, err := loadFileOnto(filepath, LoadFromEnv())
		if err != nil {
			return config, err
		}
		config = fileConfig
	}

	return config, nil
}
