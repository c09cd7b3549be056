package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	DBPath string
	// ServerURL selects remote mode; empty means the local SQLite file.
	ServerURL   string
	ListenAddr  string
	LogLevel    string
	LogDir      string
	LogMaxFiles int

	SearchDebounce  time.Duration
	SearchMinLength int
	NoticeDuration  time.Duration
	RequestTimeout  time.Duration

	CORSOrigins   []string
	ResolveTitles bool
}

// NewConfig creates a new configuration with defaults
func NewConfig() *Config {
	return &Config{
		DBPath:          getDefaultDBPath(),
		ListenAddr:      "127.0.0.1:8080",
		LogLevel:        "info",
		LogDir:          getDefaultLogDir(),
		LogMaxFiles:     5,
		SearchDebounce:  500 * time.Millisecond,
		SearchMinLength: 2,
		NoticeDuration:  time.Second,
		RequestTimeout:  10 * time.Second,
		ResolveTitles:   true,
	}
}

// WithDBPath sets a custom database path
func (c *Config) WithDBPath(path string) *Config {
	c.DBPath = path
	return c
}

// Remote reports whether the tree lives on a bookmark server.
func (c *Config) Remote() bool {
	return c.ServerURL != ""
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DBPath, validation.When(!c.Remote(), validation.Required)),
		validation.Field(&c.ServerURL, is.URL),
		validation.Field(&c.ListenAddr, validation.Required),
		validation.Field(&c.LogLevel, validation.Required, validation.By(logLevel)),
		validation.Field(&c.LogMaxFiles, validation.Required, validation.Min(1)),
		validation.Field(&c.SearchDebounce, validation.Min(time.Duration(0))),
		validation.Field(&c.SearchMinLength, validation.Required, validation.Min(1)),
		validation.Field(&c.NoticeDuration, validation.Required, validation.Min(time.Duration(1))),
		validation.Field(&c.RequestTimeout, validation.Required, validation.Min(time.Duration(1))),
	)
}

func logLevel(value any) error {
	s, _ := value.(string)
	_, err := logrus.ParseLevel(s)
	return err
}

// SetDefaults registers every key with its default so environment
// variables are picked up for all of them.
func SetDefaults(v *viper.Viper) {
	d := NewConfig()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("server_url", d.ServerURL)
	v.SetDefault("listen_addr", d.ListenAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_dir", d.LogDir)
	v.SetDefault("log_max_files", d.LogMaxFiles)
	v.SetDefault("search.debounce", d.SearchDebounce)
	v.SetDefault("search.min_length", d.SearchMinLength)
	v.SetDefault("notice_duration", d.NoticeDuration)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("resolve_titles", d.ResolveTitles)
}

// Load reads cfgFile, or config.yaml from the user config directory when
// cfgFile is empty, on top of defaults and BOOKMARKS_* environment
// variables. A missing default config file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("BOOKMARKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "bookmarks"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	c := &Config{
		DBPath:          expandHome(v.GetString("db_path")),
		ServerURL:       v.GetString("server_url"),
		ListenAddr:      v.GetString("listen_addr"),
		LogLevel:        v.GetString("log_level"),
		LogDir:          expandHome(v.GetString("log_dir")),
		LogMaxFiles:     v.GetInt("log_max_files"),
		SearchDebounce:  v.GetDuration("search.debounce"),
		SearchMinLength: v.GetInt("search.min_length"),
		NoticeDuration:  v.GetDuration("notice_duration"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		CORSOrigins:     v.GetStringSlice("cors_origins"),
		ResolveTitles:   v.GetBool("resolve_titles"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func getDefaultDBPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "bookmarks.db"
	}
	return filepath.Join(homeDir, ".bookmarks", "bookmarks.db")
}

func getDefaultLogDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "logs"
	}
	return filepath.Join(homeDir, ".bookmarks", "logs")
}
