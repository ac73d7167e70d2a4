// Package config loads and validates the shelf.yaml configuration.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ddingpy/shelfbuilder/internal/logfields"
)

// Config is the full shelfbuilder configuration.
type Config struct {
	Site    SiteConfig    `yaml:"site"`
	Content ContentConfig `yaml:"content"`
	Listing ListingConfig `yaml:"listing"`
	Output  OutputConfig  `yaml:"output"`
	Serve   ServeConfig   `yaml:"serve"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Events  EventsConfig  `yaml:"events"`
	State   StateConfig   `yaml:"state"`
}

// SiteConfig carries the site identity rendered into every layout.
type SiteConfig struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty"`
	Author      string `yaml:"author,omitempty"`
	UnsafeHTML  bool   `yaml:"unsafe_html,omitempty"`
}

// ContentConfig locates the content tree and its optional git source.
type ContentConfig struct {
	Dir        string        `yaml:"dir"`
	LayoutsDir string        `yaml:"layouts_dir,omitempty"`
	Source     *SourceConfig `yaml:"source,omitempty"`
}

// SourceConfig describes a git repository the content is synced from.
type SourceConfig struct {
	URL    string      `yaml:"url"`
	Branch string      `yaml:"branch,omitempty"`
	Auth   *AuthConfig `yaml:"auth,omitempty"`
}

// AuthConfig configures git transport authentication.
type AuthConfig struct {
	Type     string `yaml:"type"` // "none", "ssh", "token", "basic"
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	KeyPath  string `yaml:"key_path,omitempty"`
}

// ListingConfig tunes the listing views. Non-positive limits fall back to
// the built-in defaults.
type ListingConfig struct {
	GroupLimit       int      `yaml:"group_limit,omitempty"`
	DescriptionLimit int      `yaml:"description_limit,omitempty"`
	ExcludedURLs     []string `yaml:"excluded_urls,omitempty"`
}

// OutputConfig controls where and how the site is written.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Clean  bool   `yaml:"clean"`  // remove the previous-output backup after promotion
	Verify bool   `yaml:"verify"` // link-check the staged site before promotion
}

// ServeConfig configures the preview server.
type ServeConfig struct {
	Port    int  `yaml:"port,omitempty"`
	Metrics bool `yaml:"metrics,omitempty"`
}

// DaemonConfig configures continuous-build mode. Interval is a
// time.ParseDuration string, parsed at use so an invalid value degrades
// to the default instead of failing the load.
type DaemonConfig struct {
	Interval  string `yaml:"interval,omitempty"`
	Workers   int    `yaml:"workers,omitempty"`
	QueueSize int    `yaml:"queue_size,omitempty"`
	History   int    `yaml:"history,omitempty"`
	AdminPort int    `yaml:"admin_port,omitempty"`
}

// EventsConfig enables NATS build-lifecycle events when NATSURL is set.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// StateConfig locates the build-history database.
type StateConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Load reads the configuration file, expanding ${VAR} references from the
// environment. A .env / .env.local file next to the working directory is
// loaded first so local secrets stay out of the YAML.
func Load(configPath string) (*Config, error) {
	loadDotEnv()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", configPath, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	return &cfg, nil
}

// Default returns the configuration used when no config file exists: a
// local ./content tree built into ./public.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Site.Title == "" {
		c.Site.Title = "Shelf"
	}
	if c.Content.Dir == "" {
		c.Content.Dir = "./content"
	}
	if c.Content.LayoutsDir == "" {
		c.Content.LayoutsDir = "."
	}
	if c.Content.Source != nil && c.Content.Source.Branch == "" {
		c.Content.Source.Branch = "main"
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "./public"
		c.Output.Clean = true
		c.Output.Verify = true
	}
	if c.Serve.Port == 0 {
		c.Serve.Port = 8080
	}
	if c.Daemon.Interval == "" {
		c.Daemon.Interval = "15m"
	}
	if c.Daemon.Workers <= 0 {
		c.Daemon.Workers = 2
	}
	if c.Daemon.QueueSize <= 0 {
		c.Daemon.QueueSize = 16
	}
	if c.Daemon.History <= 0 {
		c.Daemon.History = 50
	}
	if c.Daemon.AdminPort == 0 {
		c.Daemon.AdminPort = 8081
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "shelfbuilder.builds"
	}
	if c.State.Path == "" {
		c.State.Path = "./shelfbuilder.db"
	}
}

func (c *Config) validate() error {
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	if c.Content.Source != nil && c.Content.Source.URL == "" {
		return fmt.Errorf("content.source.url must not be empty when a source is configured")
	}
	if c.Site.BaseURL != "" {
		if _, err := url.Parse(c.Site.BaseURL); err != nil {
			return fmt.Errorf("site.base_url: %w", err)
		}
	}
	return nil
}

// BasePath returns the path component of base_url without a trailing
// slash, so a site served under https://user.github.io/project/ prefixes
// its hrefs correctly. Empty for root-hosted sites.
func (s SiteConfig) BasePath() string {
	if s.BaseURL == "" {
		return ""
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(u.Path, "/")
}

// Hash digests the fields that shape build output. The incremental skip
// compares it across builds so a config edit forces a rebuild.
func (c *Config) Hash() string {
	h := sha256.New()
	fmt.Fprintf(h, "site:%s|%s|%s|%s|%t\n",
		c.Site.Title, c.Site.Description, c.Site.BaseURL, c.Site.Author, c.Site.UnsafeHTML)
	fmt.Fprintf(h, "content:%s|%s\n", c.Content.Dir, c.Content.LayoutsDir)
	if c.Content.Source != nil {
		fmt.Fprintf(h, "source:%s|%s\n", c.Content.Source.URL, c.Content.Source.Branch)
	}
	fmt.Fprintf(h, "listing:%d|%d|%s\n",
		c.Listing.GroupLimit, c.Listing.DescriptionLimit, strings.Join(c.Listing.ExcludedURLs, ","))
	fmt.Fprintf(h, "output:%t\n", c.Output.Verify)
	return hex.EncodeToString(h.Sum(nil))
}

// loadDotEnv loads .env then .env.local, never overriding variables the
// environment already sets. Missing files are the normal case.
func loadDotEnv() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("Could not load env file", logfields.File(name), logfields.Error(err))
			continue
		}
		slog.Debug("Loaded env file", logfields.File(name))
	}
}
