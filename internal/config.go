package internal

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quire/internal/loader"
	"github.com/starford/quire/internal/slug"
	"github.com/starford/quire/internal/storage"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Content ContentConfig     `yaml:"content"`
	Loader  LoaderConfig      `yaml:"loader"`
	Render  RenderConfig      `yaml:"render"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Content, &c.Loader, &c.Render, &c.SQLite, &c.Auth, &c.Metrics,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ContentConfig describes the content tree.
type ContentConfig struct {
	Root       string   `yaml:"root"`
	Categories []string `yaml:"categories"`
	Extensions []string `yaml:"extensions"`
	// Watch reindexes and invalidates cached documents when files change.
	Watch bool `yaml:"watch"`
}

// Validate validates the content configuration.
func (c *ContentConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Categories, validation.Each(validation.Required)),
		validation.Field(&c.Extensions, validation.Each(validation.Required, validation.By(isExtension))),
	)
}

func isExtension(v any) error {
	s, _ := v.(string)
	if !strings.HasPrefix(s, ".") || strings.ContainsAny(s, `/\ `) {
		return fmt.Errorf("must look like .md")
	}
	return nil
}

// LoaderConfig bounds the loader's parallelism.
type LoaderConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// Validate validates the loader configuration.
func (c *LoaderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxConcurrency, validation.Required, validation.Min(1), validation.Max(256)),
	)
}

// RenderConfig controls link generation in rendered output.
type RenderConfig struct {
	PageBase  string `yaml:"page_base"`
	AssetBase string `yaml:"asset_base"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PageBase, validation.Required),
		validation.Field(&c.AssetBase, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Content: ContentConfig{
			Root:       "./content",
			Categories: slices.Clone(slug.Categories),
			Extensions: slices.Clone(storage.DefaultExtensions),
			Watch:      true,
		},
		Loader: LoaderConfig{
			MaxConcurrency: loader.DefaultMaxConcurrency,
		},
		Render: RenderConfig{
			PageBase:  "/",
			AssetBase: "/assets/",
		},
		SQLite: SQLiteConfig{
			Path: "./quire.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
