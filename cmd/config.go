package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"evalgo.org/muxsite/auth"
	"evalgo.org/muxsite/internal/storage"
)

// Config is the complete runtime configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   storage.Config  `mapstructure:"storage"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Pages     auth.Pages      `mapstructure:"pages"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Profile   ProfileConfig   `mapstructure:"profile"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	PublicURL string `mapstructure:"public_url"`
}

// AuthConfig holds the scope cookie signing secret
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

// OAuthConfig configures the Discord login stub
type OAuthConfig struct {
	ClientID string        `mapstructure:"client_id"`
	Scope    string        `mapstructure:"scope"`
	Delay    time.Duration `mapstructure:"delay"`
}

// AuditConfig configures the audit trail and its rotation
type AuditConfig struct {
	Dir            string `mapstructure:"dir"`
	RetentionDays  int    `mapstructure:"retention_days"`
	CompressAfter  int    `mapstructure:"compress_after_days"`
	RotateSchedule string `mapstructure:"rotate_schedule"`
}

// TelemetryConfig toggles OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ProfileConfig locates the CLI session profile
type ProfileConfig struct {
	Dir string `mapstructure:"dir"`
}

// setDefaults registers every configuration key with its default value.
func setDefaults(v *viper.Viper) {
	pages := auth.DefaultPages()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.public_url", "")
	v.SetDefault("auth.secret", "")
	v.SetDefault("storage.driver", storage.DriverFile)
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("oauth.client_id", auth.DefaultOAuthClientID)
	v.SetDefault("oauth.scope", auth.DefaultOAuthScope)
	v.SetDefault("oauth.delay", auth.DefaultOAuthDelay)
	v.SetDefault("pages.login", pages.Login)
	v.SetDefault("pages.register", pages.Register)
	v.SetDefault("pages.landing", pages.Landing)
	v.SetDefault("pages.admin", pages.Admin)
	v.SetDefault("pages.logout", pages.Logout)
	v.SetDefault("pages.redirect_delay", pages.RedirectDelay)
	v.SetDefault("audit.dir", "")
	v.SetDefault("audit.retention_days", 30)
	v.SetDefault("audit.compress_after_days", 7)
	v.SetDefault("audit.rotate_schedule", "@daily")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("profile.dir", "")
}

// loadConfig decodes v into a Config and fills derived defaults.
func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if cfg.Audit.Dir == "" {
		cfg.Audit.Dir = cfg.Storage.Path
	}
	if cfg.Profile.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.Profile.Dir = filepath.Join(home, ".muxsite")
	}
	if cfg.Server.PublicURL == "" {
		cfg.Server.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	return cfg, nil
}

// stubProvider builds the Discord login stub from configuration.
func (c Config) stubProvider() *auth.StubProvider {
	p := auth.NewStubProvider(c.OAuth.Delay)
	if c.OAuth.ClientID != "" {
		p.ClientID = c.OAuth.ClientID
	}
	if c.OAuth.Scope != "" {
		p.Scope = c.OAuth.Scope
	}
	p.CallbackPath = c.Pages.Login
	return p
}
