// Package config resolves the run configuration from a YAML file, the
// action inputs and command-line flags.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GoCodeAlone/release-action/check"
)

// Error is a configuration problem detected before any remote call.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Config is the resolved, validated run configuration.
type Config struct {
	URL            string
	Token          string
	Project        string
	FilePattern    string
	ValidateOnly   bool
	CheckRelease   check.Level
	Targets        []string
	LogLevel       slog.Level
	PushgatewayURL string
}

// Values holds the settings provided by one source. Nil fields are unset
// and leave lower-precedence values in place.
type Values struct {
	URL            *string  `yaml:"url"`
	Token          *string  `yaml:"token"`
	Project        *string  `yaml:"project"`
	FilePattern    *string  `yaml:"file-pattern"`
	ValidateOnly   *bool    `yaml:"validate-only"`
	CheckRelease   *string  `yaml:"check-release"`
	Targets        *Targets `yaml:"targets"`
	LogLevel       *string  `yaml:"log-level"`
	PushgatewayURL *string  `yaml:"pushgateway-url"`
}

// merge overlays the set fields of o onto v.
func (v *Values) merge(o *Values) {
	if o == nil {
		return
	}
	setIf(&v.URL, o.URL)
	setIf(&v.Token, o.Token)
	setIf(&v.Project, o.Project)
	setIf(&v.FilePattern, o.FilePattern)
	setIf(&v.ValidateOnly, o.ValidateOnly)
	setIf(&v.CheckRelease, o.CheckRelease)
	setIf(&v.Targets, o.Targets)
	setIf(&v.LogLevel, o.LogLevel)
	setIf(&v.PushgatewayURL, o.PushgatewayURL)
}

func setIf[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

// Load merges sources in ascending precedence and validates the result.
func Load(ctx context.Context, sources ...Source) (*Config, error) {
	merged := &Values{}
	for _, s := range sources {
		v, err := s.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", s.Name(), err)
		}
		merged.merge(v)
	}
	return resolve(merged)
}

func resolve(v *Values) (*Config, error) {
	cfg := &Config{
		URL:            deref(v.URL),
		Token:          deref(v.Token),
		Project:        deref(v.Project),
		FilePattern:    deref(v.FilePattern),
		PushgatewayURL: deref(v.PushgatewayURL),
	}
	if v.ValidateOnly != nil {
		cfg.ValidateOnly = *v.ValidateOnly
	}
	if v.Targets != nil {
		cfg.Targets = []string(*v.Targets)
	}

	level := string(check.LevelFailOnError)
	if v.CheckRelease != nil && *v.CheckRelease != "" {
		level = *v.CheckRelease
	}
	parsed, err := check.ParseLevel(level)
	if err != nil {
		return nil, &Error{Field: "check-release", Message: err.Error()}
	}
	cfg.CheckRelease = parsed

	logLevel, err := ParseLogLevel(deref(v.LogLevel))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = logLevel

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"url", c.URL},
		{"token", c.Token},
		{"project", c.Project},
		{"file-pattern", c.FilePattern},
	}
	for _, r := range required {
		if r.value == "" {
			return &Error{Field: r.field, Message: "Input required and not supplied: " + r.field}
		}
	}
	if c.CheckRelease != check.LevelSkip && len(c.Targets) == 0 {
		return &Error{Field: "targets", Message: "targets must be set because check-release is not SKIP"}
	}
	return nil
}

// ParseLogLevel accepts debug, info, warn and error. Empty means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, &Error{Field: "log-level", Message: fmt.Sprintf("unknown log-level value %s", s)}
	}
}

// SplitTargets splits a comma separated list, dropping blank entries.
func SplitTargets(s string) Targets {
	var out Targets
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
