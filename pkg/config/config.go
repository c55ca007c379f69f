package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the configuration file is created when none exists
const DefaultPath = "config.yaml"

// ErrConfigNotFound is returned by Load when no configuration file exists
var ErrConfigNotFound = errors.New("config file not found")

// Config holds all configuration options for e621dl
type Config struct {
	// Toggles are global on/off switches
	Toggles Toggles `yaml:"toggles" json:"toggles"`

	// DefaultSearch applies to every search that does not override a value
	DefaultSearch SearchDefaults `yaml:"default_search" json:"default_search"`

	// Blacklist holds tags (globs allowed) that exclude a post from every search
	Blacklist StringList `yaml:"blacklist" json:"blacklist"`

	// Searches are run in the order they appear in the file
	Searches Searches `yaml:"searches" json:"searches"`

	Output  OutputConfig  `yaml:"output" json:"output"`
	Network NetworkConfig `yaml:"network" json:"network"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// Toggles holds boolean switches
type Toggles struct {
	IncludeMD5 bool `yaml:"include_md5" json:"include_md5"`
}

// SearchDefaults holds the values a search inherits
type SearchDefaults struct {
	Days     int        `yaml:"days" json:"days"`
	MinScore int        `yaml:"min_score" json:"min_score"`
	MinFavs  int        `yaml:"min_favs" json:"min_favs"`
	Ratings  StringList `yaml:"ratings" json:"ratings"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// NetworkConfig holds API and transport settings
type NetworkConfig struct {
	BaseURL         string        `yaml:"base_url" json:"base_url"`
	UserAgent       string        `yaml:"user_agent" json:"user_agent"`
	RequestInterval time.Duration `yaml:"request_interval" json:"request_interval"`
	Timeout         time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
	RetryStatuses   []int         `yaml:"retry_statuses" json:"retry_statuses"`
	ReleaseURL      string        `yaml:"release_url" json:"release_url"`
	CheckRelease    bool          `yaml:"check_release" json:"check_release"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with the stock defaults
func DefaultConfig() *Config {
	return &Config{
		DefaultSearch: SearchDefaults{
			Days:    1,
			Ratings: StringList{"s"},
		},
		Output: OutputConfig{
			BaseDirectory: "downloads",
		},
		Network: NetworkConfig{
			BaseURL:         "https://e621.net",
			UserAgent:       "e621dl",
			RequestInterval: time.Second,
			Timeout:         time.Minute,
			MaxRetries:      5,
			RetryStatuses:   []int{500, 502, 503, 504},
			ReleaseURL:      "https://api.github.com/repos/wulfre/e621dl/releases/latest",
			CheckRelease:    true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from E621DL_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	setString("E621DL_OUTPUT_DIR", &c.Output.BaseDirectory)
	setString("E621DL_BASE_URL", &c.Network.BaseURL)
	setString("E621DL_USER_AGENT", &c.Network.UserAgent)
	setString("E621DL_RELEASE_URL", &c.Network.ReleaseURL)
	setString("E621DL_LOG_LEVEL", &c.Logging.Level)
	setString("E621DL_LOG_FILE", &c.Logging.File)
	setInt("E621DL_MAX_RETRIES", &c.Network.MaxRetries)
	setBool("E621DL_INCLUDE_MD5", &c.Toggles.IncludeMD5)
	setBool("E621DL_CHECK_RELEASE", &c.Network.CheckRelease)
	setDuration("E621DL_REQUEST_INTERVAL", &c.Network.RequestInterval)
	setDuration("E621DL_TIMEOUT", &c.Network.Timeout)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the standard locations. ErrConfigNotFound is returned when there is no file.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return ErrConfigNotFound
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// findConfigFile searches for a config file in standard locations
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		DefaultPath,
		"config.yml",
		filepath.Join(home, ".config", "e621dl", "config.yaml"),
		filepath.Join(home, ".config", "e621dl", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

var validRatings = map[string]bool{"s": true, "q": true, "e": true}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	checkRatings := func(where string, ratings StringList) {
		for _, r := range ratings {
			if !validRatings[r] {
				errs = append(errs, fmt.Errorf("%s: unknown rating %q (want s, q or e)", where, r))
			}
		}
	}

	checkRatings("default_search", c.DefaultSearch.Ratings)
	if len(c.DefaultSearch.Ratings) == 0 {
		errs = append(errs, errors.New("default_search: at least one rating is required"))
	}

	seen := make(map[string]bool, len(c.Searches))
	for _, s := range c.Searches {
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("search %q is defined twice", s.Name))
		}
		seen[s.Name] = true
		if len(s.Tags) == 0 {
			errs = append(errs, fmt.Errorf("search %q: at least one tag is required", s.Name))
		}
		checkRatings(fmt.Sprintf("search %q", s.Name), s.Ratings)
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if u, err := url.Parse(c.Network.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid base url %q", c.Network.BaseURL))
	}
	if c.Network.UserAgent == "" {
		errs = append(errs, errors.New("user agent is required"))
	}
	if c.Network.RequestInterval < 0 {
		errs = append(errs, errors.New("request interval cannot be negative"))
	}
	if c.Network.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	for _, code := range c.Network.RetryStatuses {
		if code < 400 || code > 599 {
			errs = append(errs, fmt.Errorf("retry status %d is not an error status", code))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile, ok := flags["log-file"].(string); ok && logFile != "" {
		c.Logging.File = logFile
	}
	if baseURL, ok := flags["base-url"].(string); ok && baseURL != "" {
		c.Network.BaseURL = baseURL
	}
	if includeMD5, ok := flags["include-md5"].(bool); ok && includeMD5 {
		c.Toggles.IncludeMD5 = true
	}
	if noCheck, ok := flags["no-release-check"].(bool); ok && noCheck {
		c.Network.CheckRelease = false
	}
}

// Load loads configuration from all sources with proper precedence:
// flags > environment (including .env) > config file > defaults.
// When no file exists the returned error wraps ErrConfigNotFound.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".config", "e621dl", ".env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, err
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
