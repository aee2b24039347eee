package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	hhmmRe    = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)
	hhmmEndRe = regexp.MustCompile(`^(([01]?\d|2[0-3]):[0-5]\d|24:00)$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	// "HH:MM" within the day
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmRe.MatchString(fl.Field().String())
	})
	// "HH:MM" or the end-of-day sentinel "24:00"
	_ = v.RegisterValidation("hhmm_end", func(fl validator.FieldLevel) bool {
		return hhmmEndRe.MatchString(fl.Field().String())
	})
	return v
}

// Load reads the YAML configuration at path, layers PHOTOLOOP_* environment
// variables on top, and validates the result. A missing file yields the
// defaults. Validation failures are returned to the caller; they are the
// only configuration errors surfaced to the user layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}
	// PHOTOLOOP_SYNC__INTERVAL_MINUTES=30 -> sync.interval_minutes
	if err := k.Load(env.Provider("PHOTOLOOP_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "PHOTOLOOP_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	cfg.Cache.Directory = expandHome(cfg.Cache.Directory)
	for i := range cfg.Sources {
		if cfg.Sources[i].Path != "" {
			cfg.Sources[i].Path = expandHome(cfg.Sources[i].Path)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies the policy-validation rules to an already built Config.
func Validate(cfg *Config) error {
	if err := newValidator().Struct(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if cfg.KenBurns.ZoomRange[0] < 1.0 || cfg.KenBurns.ZoomRange[1] < cfg.KenBurns.ZoomRange[0] {
		return fmt.Errorf("config validation: ken_burns.zoom_range must satisfy 1.0 <= min <= max")
	}
	for _, s := range cfg.Sources {
		if s.Type == "remote_album" && s.URL == "" {
			return fmt.Errorf("config validation: remote_album source %q has no url", s.Label())
		}
		if s.Type == "local" && s.Path == "" {
			return fmt.Errorf("config validation: local source %q has no path", s.Label())
		}
	}
	return nil
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
