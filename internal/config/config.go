package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	appErrors "github.com/unclebandit/campaign-studio/internal/errors"
	"github.com/unclebandit/campaign-studio/internal/model"
)

// Vault backends.
const (
	BackendNotion   = "notion"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for the studio.
// Values come from the environment (after .env loading) and, when CONFIG_FILE
// is set, from a TOML secrets file using the same key names.
type Config struct {
	HTTPAddr   string
	LogLevel   string
	LogConsole bool

	GeminiKey       string
	ImageModel      string
	TextModel       string
	ProviderTimeout time.Duration

	VaultBackend string
	NotionKey    string
	DatabaseID   string // Notion database identifier
	DatabaseURL  string // postgres DSN
	SQLitePath   string
	VaultTimeout time.Duration

	AppPassword string

	RedisAddr  string
	SessionTTL time.Duration

	AMQPURL string

	MetricsEnabled bool
	MetricsPath    string

	Timezone          string
	Location          *time.Location
	AnchorAllStatuses bool

	QueueLimit    int
	DashboardSize int

	Brand model.BrandVoice
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("image_model", "gemini-3-pro-image-preview")
	v.SetDefault("text_model", "gemini-3-pro")
	v.SetDefault("provider_timeout", "120s")
	v.SetDefault("vault_backend", BackendNotion)
	v.SetDefault("sqlite_path", "studio.db")
	v.SetDefault("vault_timeout", "10s")
	v.SetDefault("session_ttl", "12h")
	v.SetDefault("metrics_path", "/metrics")
	v.SetDefault("timezone", "Local")
	v.SetDefault("queue_limit", 10)
	v.SetDefault("dashboard_size", 3)
	v.SetDefault("brand_mission", "Turning beloved pets into premium art portraits.")
	v.SetDefault("brand_vibe", "Empathetic but excited")
	v.SetDefault("brand_format", "Instagram caption")

	p := model.DefaultPalette()
	v.SetDefault("color_bg1", p.Background1)
	v.SetDefault("color_bg2", p.Background2)
	v.SetDefault("color_accent1", p.Accent1)
	v.SetDefault("color_accent2", p.Accent2)
	v.SetDefault("color_text", p.Text)
}

// Load reads configuration with defaults. It only fails when a configured
// value cannot be parsed; missing secrets are reported by Warnings.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		HTTPAddr:          v.GetString("http_addr"),
		LogLevel:          v.GetString("log_level"),
		LogConsole:        v.GetBool("log_console"),
		GeminiKey:         v.GetString("gemini_key"),
		ImageModel:        v.GetString("image_model"),
		TextModel:         v.GetString("text_model"),
		VaultBackend:      strings.ToLower(v.GetString("vault_backend")),
		NotionKey:         v.GetString("notion_key"),
		DatabaseID:        v.GetString("database_id"),
		DatabaseURL:       v.GetString("database_url"),
		SQLitePath:        v.GetString("sqlite_path"),
		AppPassword:       v.GetString("app_password"),
		RedisAddr:         v.GetString("redis_addr"),
		AMQPURL:           v.GetString("amqp_url"),
		MetricsEnabled:    v.GetBool("metrics_enabled"),
		MetricsPath:       v.GetString("metrics_path"),
		Timezone:          v.GetString("timezone"),
		AnchorAllStatuses: v.GetBool("scheduler_anchor_all_statuses"),
		QueueLimit:        v.GetInt("queue_limit"),
		DashboardSize:     v.GetInt("dashboard_size"),
		Brand: model.BrandVoice{
			Mission:      v.GetString("brand_mission"),
			FounderName:  v.GetString("brand_founder"),
			Vibe:         v.GetString("brand_vibe"),
			FormatLayout: v.GetString("brand_format"),
			Palette: model.Palette{
				Background1: v.GetString("color_bg1"),
				Background2: v.GetString("color_bg2"),
				Accent1:     v.GetString("color_accent1"),
				Accent2:     v.GetString("color_accent2"),
				Text:        v.GetString("color_text"),
			},
		},
	}

	// Support a bare PORT as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := v.GetString("port"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}

	var err error
	if cfg.ProviderTimeout, err = parseDuration(v, "provider_timeout"); err != nil {
		return cfg, err
	}
	if cfg.VaultTimeout, err = parseDuration(v, "vault_timeout"); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = parseDuration(v, "session_ttl"); err != nil {
		return cfg, err
	}

	if cfg.Location, err = time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, cfg.Validate()
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToUpper(key), raw, err)
	}
	return d, nil
}

// GenerationEnabled reports whether the provider key is present.
func (c Config) GenerationEnabled() bool {
	return c.GeminiKey != ""
}

// VaultEnabled reports whether the selected backend has what it needs.
func (c Config) VaultEnabled() bool {
	return c.vaultMissing() == nil
}

func (c Config) vaultMissing() error {
	switch c.VaultBackend {
	case BackendNotion:
		if c.NotionKey == "" {
			return appErrors.NewConfigMissing("NOTION_KEY")
		}
		if c.DatabaseID == "" {
			return appErrors.NewConfigMissing("DATABASE_ID")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return appErrors.NewConfigMissing("DATABASE_URL")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return appErrors.NewConfigMissing("SQLITE_PATH")
		}
	}
	return nil
}

// Warnings lists features that are inert because of missing configuration.
func (c Config) Warnings() []error {
	var out []error
	if !c.GenerationEnabled() {
		out = append(out, fmt.Errorf("generation disabled: %w", appErrors.NewConfigMissing("GEMINI_KEY")))
	}
	if err := c.vaultMissing(); err != nil {
		out = append(out, fmt.Errorf("vault disabled: %w", err))
	}
	if c.AppPassword == "" {
		out = append(out, fmt.Errorf("passphrase gate open: %w", appErrors.NewConfigMissing("APP_PASSWORD")))
	}
	return out
}

// Validate rejects values that are present but unusable.
func (c Config) Validate() error {
	var errs []error

	switch c.VaultBackend {
	case BackendNotion, BackendPostgres, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("VAULT_BACKEND must be one of notion, postgres, sqlite (got %q)", c.VaultBackend))
	}

	if c.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("PROVIDER_TIMEOUT must be positive"))
	}
	if c.VaultTimeout <= 0 {
		errs = append(errs, errors.New("VAULT_TIMEOUT must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.QueueLimit < 1 || c.QueueLimit > 100 {
		errs = append(errs, fmt.Errorf("QUEUE_LIMIT must be between 1 and 100 (got %d)", c.QueueLimit))
	}
	if c.DashboardSize < 1 || c.DashboardSize > 100 {
		errs = append(errs, fmt.Errorf("DASHBOARD_SIZE must be between 1 and 100 (got %d)", c.DashboardSize))
	}
	if c.MetricsEnabled && !strings.HasPrefix(c.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("METRICS_PATH must start with / (got %q)", c.MetricsPath))
	}

	return errors.Join(errs...)
}
