// Package config contains the runtime-adjustable interception settings and
// their loading from the defaults, a YAML file, and the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/netinterceptor/blockfilter"
)

// EnvPrefix is the prefix of the environment variables that override the
// settings, e.g. MITM_RESPONSE_STATUS.
const EnvPrefix = "MITM_"

// Config holds the interception settings.  The koanf keys keep the names of
// the proxy options they are compatible with.
type Config struct {
	// BlacklistConfig is the path to the blacklist document.  Changing it
	// reloads the patterns.
	BlacklistConfig string `koanf:"blacklist_config"`

	// ResponseBody is the body of the synthetic responses.
	ResponseBody string `koanf:"response_body"`

	// MetricsAddr is the address of the Prometheus metrics endpoint.  If
	// empty, the endpoint is disabled.
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,hostname_port"`

	// ResponseStatus is the status code of the synthetic responses.
	ResponseStatus int `koanf:"response_status" validate:"gte=100,lte=599"`

	// MatchCacheSize is the size of the match result cache.  Zero disables
	// the cache.  It is only read at startup.
	MatchCacheSize int `koanf:"match_cache_size" validate:"gte=0"`

	// LogBlocked enables logging of every blocked request.
	LogBlocked bool `koanf:"log_blocked"`
}

// Default is the configuration used for the values that are not set
// anywhere else.
var Default = Config{
	BlacklistConfig: "",
	ResponseBody:    "",
	MetricsAddr:     "",
	ResponseStatus:  blockfilter.DefaultStatusCode,
	MatchCacheSize:  0,
	LogBlocked:      true,
}

// defaultLoader loads the default values.
var defaultLoader = func(k *koanf.Koanf) (err error) {
	return k.Load(structs.Provider(Default, "koanf"), nil)
}

// fileLoader loads the YAML file at path.
var fileLoader = func(k *koanf.Koanf, path string) (err error) {
	return k.Load(file.Provider(path), yaml.Parser())
}

// envLoader loads the environment variables with [EnvPrefix].  The keys are
// lowercased and stripped of the prefix.
var envLoader = func(k *koanf.Koanf) (err error) {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), value
		},
	}), nil)
}

// Load returns the configuration built from the defaults, the YAML file at
// path, and the environment, in that order of precedence from the lowest.  If
// path is empty, the file is skipped.  The result is validated.
func Load(path string) (c *Config, err error) {
	k := koanf.New(".")

	err = defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		err = fileLoader(k, path)
		if err != nil {
			return nil, fmt.Errorf("loading file: %w", err)
		}
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("loading env: %w", err)
	}

	c = &Config{}
	err = k.Unmarshal("", c)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	err = c.Validate()
	if err != nil {
		return nil, err
	}

	return c, nil
}

// Validate returns an error if c contains invalid values.
func (c *Config) Validate() (err error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	err = v.Struct(c)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// Settings returns the engine response settings of c.
func (c *Config) Settings() (s *blockfilter.Settings) {
	s = &blockfilter.Settings{
		StatusCode: c.ResponseStatus,
		LogBlocked: c.LogBlocked,
	}

	if c.ResponseBody != "" {
		s.Body = []byte(c.ResponseBody)
	}

	return s
}

// Diff returns the settings update containing only the fields of c that
// differ from prev, and whether the blacklist path has changed.  If prev is
// nil, every field is considered changed.
func (c *Config) Diff(prev *Config) (u *blockfilter.SettingsUpdate, reload bool) {
	u = &blockfilter.SettingsUpdate{}
	if prev == nil {
		prev = &Config{}
		reload = true
	}

	if prev.ResponseStatus != c.ResponseStatus || reload {
		status := c.ResponseStatus
		u.StatusCode = &status
	}

	if prev.ResponseBody != c.ResponseBody || reload {
		var body []byte
		if c.ResponseBody != "" {
			body = []byte(c.ResponseBody)
		}

		u.Body = &body
	}

	if prev.LogBlocked != c.LogBlocked || reload {
		logBlocked := c.LogBlocked
		u.LogBlocked = &logBlocked
	}

	return u, reload || prev.BlacklistConfig != c.BlacklistConfig
}
