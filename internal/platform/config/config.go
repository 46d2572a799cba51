package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "contest.config"

const envPrefix = "contest"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

// FromContext returns the config stored by WithContext, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configContextKey).(*Config)
	return cfg
}

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName     string        `yaml:"serviceName"     envconfig:"SERVICE_NAME"`
	HTTPPort        string        `yaml:"httpPort"        envconfig:"HTTP_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`
	Debug           bool          `yaml:"debug"           envconfig:"DEBUG"`
	DryRun          bool          `yaml:"dryRun"          envconfig:"DRY_RUN"`

	GatewayURL    string `yaml:"gatewayUrl"    envconfig:"GATEWAY_URL"`
	GatewayToken  string `yaml:"gatewayToken"  envconfig:"GATEWAY_TOKEN"`
	WebhookSecret string `yaml:"webhookSecret" envconfig:"WEBHOOK_SECRET"`

	GuildID         string   `yaml:"guildId"         envconfig:"GUILD_ID"`
	PhotoChannelID  string   `yaml:"photoChannelId"  envconfig:"PHOTO_CHANNEL_ID"`
	ResultChannelID string   `yaml:"resultChannelId" envconfig:"RESULT_CHANNEL_ID"`
	VoteMarker      string   `yaml:"voteMarker"      envconfig:"VOTE_MARKER"`
	RoleMentions    []string `yaml:"roleMentions"    envconfig:"ROLE_MENTIONS"`

	DefaultTieMinutes int `yaml:"defaultTieMinutes" envconfig:"DEFAULT_TIE_MINUTES"`
	MaxTieMinutes     int `yaml:"maxTieMinutes"     envconfig:"MAX_TIE_MINUTES"`

	ArchiveDriver string `yaml:"archiveDriver" envconfig:"ARCHIVE_DRIVER"`
	ArchiveDSN    string `yaml:"archiveDsn"    envconfig:"ARCHIVE_DSN"`

	EnablePlatformConsumer bool `yaml:"enablePlatformConsumer" envconfig:"ENABLE_PLATFORM_CONSUMER"`
	EnableResultArchiver   bool `yaml:"enableResultArchiver"   envconfig:"ENABLE_RESULT_ARCHIVER"`
}

func Defaults() Config {
	return Config{
		ServiceName:            "contestd",
		HTTPPort:               "8080",
		ShutdownTimeout:        10 * time.Second,
		VoteMarker:             "👍",
		DefaultTieMinutes:      360,
		MaxTieMinutes:          1440,
		ArchiveDriver:          "sqlite",
		EnablePlatformConsumer: true,
		EnableResultArchiver:   true,
	}
}

// Load applies defaults, then the optional YAML file, then CONTEST_*
// environment variables, and validates the result.
func Load(configFile string) (Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(configFile); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTPPort) == "" {
		errs = append(errs, errors.New("http port is required"))
	}
	if strings.TrimSpace(c.VoteMarker) == "" {
		errs = append(errs, errors.New("vote marker is required"))
	}
	if c.MaxTieMinutes < 1 {
		errs = append(errs, fmt.Errorf("max tie minutes must be positive, got %d", c.MaxTieMinutes))
	}
	if c.DefaultTieMinutes < 1 || c.DefaultTieMinutes > c.MaxTieMinutes {
		errs = append(errs, fmt.Errorf("default tie minutes must be in [1, %d], got %d", c.MaxTieMinutes, c.DefaultTieMinutes))
	}
	switch c.ArchiveDriver {
	case "", "memory", "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unknown archive driver %q", c.ArchiveDriver))
	}
	if c.ArchiveDriver == "postgres" && strings.TrimSpace(c.ArchiveDSN) == "" {
		errs = append(errs, errors.New("archive dsn is required for the postgres driver"))
	}
	if !c.DryRun {
		if strings.TrimSpace(c.GatewayURL) == "" {
			errs = append(errs, errors.New("gateway url is required unless dry-run is enabled"))
		}
		if strings.TrimSpace(c.PhotoChannelID) == "" {
			errs = append(errs, errors.New("photo channel id is required"))
		}
		if strings.TrimSpace(c.ResultChannelID) == "" {
			errs = append(errs, errors.New("result channel id is required"))
		}
	}
	return errors.Join(errs...)
}
