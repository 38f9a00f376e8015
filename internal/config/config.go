// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package config loads FamTrack settings from a YAML file, command-line
// flags and environment secrets.
package config

import (
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/internal/jobs"
	"github.com/famtrack/famtrack/internal/logging"
	"github.com/famtrack/famtrack/internal/mail"
	"github.com/famtrack/famtrack/internal/reminder"
	"github.com/famtrack/famtrack/internal/xdg"
)

// Environment variables holding secrets. They override the file.
const (
	EnvDatabaseURL   = "DATABASE_URL"
	EnvAccessSecret  = "FAMTRACK_JWT_ACCESS_SECRET"
	EnvRefreshSecret = "FAMTRACK_JWT_REFRESH_SECRET"
	EnvSMTPPassword  = "FAMTRACK_SMTP_PASSWORD"
)

// Error codes.
const (
	CodeInvalid    = "CONFIG_INVALID"
	CodeReadFailed = "CONFIG_READ_FAILED"
)

// Config is the complete runtime configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Mail     MailConfig     `koanf:"mail"`
	Reminder ReminderConfig `koanf:"reminder"`
	Sweep    SweepConfig    `koanf:"sweep"`
	Jobs     JobsConfig     `koanf:"jobs"`
}

// ServerConfig holds listen addresses. An empty MetricsAddr disables the
// observability server.
type ServerConfig struct {
	Addr        string `koanf:"addr"`
	MetricsAddr string `koanf:"metrics_addr"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig holds the PostgreSQL settings.
type DatabaseConfig struct {
	URL      string `koanf:"url"`
	MaxConns int32  `koanf:"max_conns"`
}

// AuthConfig holds token and password settings.
type AuthConfig struct {
	AccessSecret  string        `koanf:"access_secret"`
	RefreshSecret string        `koanf:"refresh_secret"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
	Issuer        string        `koanf:"issuer"`
	BcryptCost    int           `koanf:"bcrypt_cost"`
}

// MailConfig holds the outgoing mail settings.
type MailConfig struct {
	Driver  string        `koanf:"driver"`
	From    string        `koanf:"from"`
	AppURL  string        `koanf:"app_url"`
	Timeout time.Duration `koanf:"timeout"`
	SMTP    SMTPConfig    `koanf:"smtp"`
	SES     SESConfig     `koanf:"ses"`
}

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// SESConfig holds the Amazon SES settings.
type SESConfig struct {
	Region string `koanf:"region"`
}

// ReminderConfig tunes the daily reminder.
type ReminderConfig struct {
	Concurrency int    `koanf:"concurrency"`
	Schedule    string `koanf:"schedule"`
	Timezone    string `koanf:"timezone"`
}

// SweepConfig schedules the expiry sweep.
type SweepConfig struct {
	Schedule string `koanf:"schedule"`
}

// JobsConfig bounds scheduled job runs.
type JobsConfig struct {
	Timeout time.Duration `koanf:"timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:        "localhost:3000",
			MetricsAddr: "127.0.0.1:9100",
		},
		Log: LogConfig{Format: "json", Level: "info"},
		Auth: AuthConfig{
			AccessTTL:  auth.DefaultAccessTTL,
			RefreshTTL: auth.DefaultRefreshTTL,
			Issuer:     auth.DefaultIssuer,
			BcryptCost: auth.DefaultBcryptCost,
		},
		Mail: MailConfig{
			Driver:  mail.DriverLog,
			From:    "FamTrack <no-reply@famtrack.app>",
			Timeout: mail.DefaultTimeout,
			SMTP:    SMTPConfig{Port: 587},
		},
		Reminder: ReminderConfig{
			Concurrency: reminder.DefaultConcurrency,
			Schedule:    jobs.DefaultReminderSpec,
			Timezone:    jobs.DefaultReminderTimezone,
		},
		Sweep: SweepConfig{Schedule: jobs.DefaultSweepSpec},
		Jobs:  JobsConfig{Timeout: jobs.DefaultTimeout},
	}
}

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// Path is the config file. Empty means the XDG default, which may be
	// absent.
	Path string
	// Flags are overlaid on the file. Only flags listed in FlagKeys are read.
	Flags *pflag.FlagSet
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"addr":         "server.addr",
	"metrics-addr": "server.metrics_addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
}

// Load builds a Config from the defaults, the config file, flags and
// environment, in increasing precedence. Flags left at their default only
// fill keys the file did not set.
func Load(opts LoadOptions) (*Config, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	k := koanf.New(".")

	path := opts.Path
	if path == "" {
		path = xdg.DefaultConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeReadFailed).With("path", path).Wrap(err)
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := FlagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeReadFailed).With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code(CodeInvalid).With("operation", "decode config").Wrap(err)
	}

	overlay(&cfg.Database.URL, getenv(EnvDatabaseURL))
	overlay(&cfg.Auth.AccessSecret, getenv(EnvAccessSecret))
	overlay(&cfg.Auth.RefreshSecret, getenv(EnvRefreshSecret))
	overlay(&cfg.Mail.SMTP.Password, getenv(EnvSMTPPassword))

	return &cfg, nil
}

func overlay(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ValidateDatabase checks the settings needed to reach PostgreSQL.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return Invalid("%s environment variable is required", EnvDatabaseURL)
	}
	return nil
}

// Validate checks everything the server needs.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.Server.Addr == "" {
		return Invalid("server.addr is required")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return Invalid("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return Invalid("log.level %q is not a level", c.Log.Level)
	}
	if c.Auth.AccessSecret == "" {
		return Invalid("%s environment variable is required", EnvAccessSecret)
	}
	if c.Auth.RefreshSecret == "" {
		return Invalid("%s environment variable is required", EnvRefreshSecret)
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return Invalid("access and refresh secrets must differ")
	}
	if !slices.Contains(mail.Drivers, c.Mail.Driver) {
		return Invalid("mail.driver must be one of %s, got %q", strings.Join(mail.Drivers, ", "), c.Mail.Driver)
	}
	if c.Mail.From == "" {
		return Invalid("mail.from is required")
	}
	switch c.Mail.Driver {
	case mail.DriverSMTP:
		if c.Mail.SMTP.Host == "" {
			return Invalid("mail.smtp.host is required for the smtp driver")
		}
	case mail.DriverSES:
		if c.Mail.SES.Region == "" {
			return Invalid("mail.ses.region is required for the ses driver")
		}
	}
	if c.Reminder.Concurrency < 1 {
		return Invalid("reminder.concurrency must be at least 1")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() slog.Level {
	level, _ := logging.ParseLevel(c.Log.Level) //nolint:errcheck // checked by Validate
	return level
}

// Location loads the reminder time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		return nil, oops.Code(CodeInvalid).With("timezone", c.Reminder.Timezone).Wrap(err)
	}
	return loc, nil
}

// TokenConfig returns the token issuer settings.
func (c *Config) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  c.Auth.AccessSecret,
		RefreshSecret: c.Auth.RefreshSecret,
		AccessTTL:     c.Auth.AccessTTL,
		RefreshTTL:    c.Auth.RefreshTTL,
		Issuer:        c.Auth.Issuer,
	}
}

// MailConfig returns the transport settings.
func (c *Config) MailConfig() mail.Config {
	return mail.Config{
		Driver: c.Mail.Driver,
		SMTP: mail.SMTPConfig{
			Host:     c.Mail.SMTP.Host,
			Port:     c.Mail.SMTP.Port,
			Username: c.Mail.SMTP.Username,
			Password: c.Mail.SMTP.Password,
		},
		SES: mail.SESConfig{Region: c.Mail.SES.Region},
	}
}

// Invalid returns a CONFIG_INVALID error.
func Invalid(format string, args ...any) error {
	return oops.Code(CodeInvalid).Errorf(format, args...)
}
