// Package config resolves cm settings with a defined precedence:
// CLI flags > environment variables > project file > home file > defaults.
//
// Paths:
//   - Project: .cmrc.toml in the repository root
//   - Home: ~/.cmrc.toml (see os.UserHomeDir)
//
// Environment variables (override config files when set):
//   - CM_PROVIDER (auto, ollama, claude), CM_MODEL, CM_STYLE (conventional, simple, detailed)
//   - CM_INCLUDE_BODY (1/true/yes/on or 0/false/no/off), CM_MAX_SUBJECT_LENGTH, CM_TICKET_PREFIX
//   - CM_TIMEOUT (Go duration string or integer seconds), CM_BUDGET (diff bytes), CM_TEMPERATURE
//   - CM_CONCURRENCY (parallel calls for multiple options)
//   - OLLAMA_HOST, ANTHROPIC_API_KEY
//
// Resolution is a pure fold over Layer values (Resolve); Load does the I/O
// that produces the layers.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"cm/cli/internal/commit"
	"cm/cli/internal/erruser"
)

// FileName is the config file name in the repository root and home directory.
const FileName = ".cmrc.toml"

// Config is the resolved configuration.
type Config struct {
	Provider   string
	Model      string // Empty means the selected provider's default.
	OllamaHost string
	APIKey     string
	Style      commit.MessageStyle
	// IncludeBody keeps bullet points after the subject.
	IncludeBody      bool
	MaxSubjectLength int
	TicketPrefix     string
	Timeout          time.Duration
	// Budget is the byte allowance for diff content in the prompt.
	Budget      int
	Temperature float64
	// Concurrency bounds parallel provider calls when several options are requested.
	Concurrency int
	// Exclude holds extra noise patterns (globs) from config files.
	Exclude []string
	// Origins maps a setting key (e.g. "model") to the layer that last set it.
	Origins map[string]string
}

// Layer is one configuration source. Nil fields leave the value unchanged.
type Layer struct {
	// Source names the layer in Origins, e.g. "env" or a file path.
	Source           string
	Provider         *string
	Model            *string
	OllamaHost       *string
	APIKey           *string
	Style            *string
	IncludeBody      *bool
	MaxSubjectLength *int
	TicketPrefix     *string
	Timeout          *time.Duration
	Budget           *int
	Temperature      *float64
	Concurrency      *int
	// Exclude patterns are appended, not replaced.
	Exclude []string
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; if set, the project file is RepoRoot/.cmrc.toml.
	RepoRoot string
	// HomeConfigPath is the home config file path; if empty, ~/.cmrc.toml is used.
	HomeConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Layer
}

const (
	_defaultProvider         = "auto"
	_defaultOllamaHost       = "http://localhost:11434"
	_defaultStyle            = commit.Conventional
	_defaultIncludeBody      = true
	_defaultMaxSubjectLength = 72
	_defaultTicketPrefix     = "Refs"
	_defaultTimeout          = 300 * time.Second
	_defaultBudget           = 12000
	_defaultTemperature      = 0.4
	_defaultConcurrency      = 1

	_minSubjectLength = 10
	_maxConcurrency   = 4
)

var validProviders = []string{"auto", "ollama", "claude"}

// errIntOverflow is returned when an int64 value does not fit in int (e.g. on 32-bit or huge TOML/env values).
var errIntOverflow = errors.New("value out of range for int")

// int64ToInt converts n to int. It returns an error if n is outside the range of int (e.g. overflow on 32-bit).
func int64ToInt(n int64) (int, error) {
	if n < int64(math.MinInt) || n > int64(math.MaxInt) {
		return 0, errIntOverflow
	}
	return int(n), nil
}

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		Provider:         _defaultProvider,
		OllamaHost:       _defaultOllamaHost,
		Style:            _defaultStyle,
		IncludeBody:      _defaultIncludeBody,
		MaxSubjectLength: _defaultMaxSubjectLength,
		TicketPrefix:     _defaultTicketPrefix,
		Timeout:          _defaultTimeout,
		Budget:           _defaultBudget,
		Temperature:      _defaultTemperature,
		Concurrency:      _defaultConcurrency,
		Origins:          map[string]string{},
	}
}

// Resolve folds layers over the defaults, lowest precedence first, and
// validates the result. It performs no I/O.
func Resolve(layers ...Layer) (*Config, error) {
	cfg := DefaultConfig()
	for _, l := range layers {
		if err := apply(&cfg, l); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func apply(cfg *Config, l Layer) error {
	set := func(key string) { cfg.Origins[key] = l.Source }
	if l.Provider != nil && *l.Provider != "" {
		p, err := validateProvider(*l.Provider)
		if err != nil {
			return err
		}
		cfg.Provider = p
		set("provider")
	}
	if l.Model != nil {
		cfg.Model = strings.TrimSpace(*l.Model)
		set("model")
	}
	if l.OllamaHost != nil && *l.OllamaHost != "" {
		cfg.OllamaHost = strings.TrimSpace(*l.OllamaHost)
		set("ollama_host")
	}
	if l.APIKey != nil && *l.APIKey != "" {
		cfg.APIKey = strings.TrimSpace(*l.APIKey)
		set("api_key")
	}
	if l.Style != nil && *l.Style != "" {
		s, err := commit.ParseStyle(*l.Style)
		if err != nil {
			return erruser.New("Invalid style; use conventional, simple, or detailed.", err)
		}
		cfg.Style = s
		set("style")
	}
	if l.IncludeBody != nil {
		cfg.IncludeBody = *l.IncludeBody
		set("include_body")
	}
	if l.MaxSubjectLength != nil {
		if *l.MaxSubjectLength < _minSubjectLength {
			return erruser.New(fmt.Sprintf("max_subject_length must be at least %d.", _minSubjectLength), nil)
		}
		cfg.MaxSubjectLength = *l.MaxSubjectLength
		set("max_subject_length")
	}
	if l.TicketPrefix != nil && strings.TrimSpace(*l.TicketPrefix) != "" {
		cfg.TicketPrefix = strings.TrimSpace(*l.TicketPrefix)
		set("ticket_prefix")
	}
	if l.Timeout != nil {
		if *l.Timeout <= 0 {
			return erruser.New("timeout must be positive.", nil)
		}
		cfg.Timeout = *l.Timeout
		set("timeout")
	}
	if l.Budget != nil {
		if *l.Budget <= 0 {
			return erruser.New("budget must be a positive number of bytes.", nil)
		}
		cfg.Budget = *l.Budget
		set("budget")
	}
	if l.Temperature != nil {
		if *l.Temperature < 0 || *l.Temperature > 1 {
			return erruser.New("temperature must be between 0 and 1.", nil)
		}
		cfg.Temperature = *l.Temperature
		set("temperature")
	}
	if l.Concurrency != nil {
		if *l.Concurrency < 1 || *l.Concurrency > _maxConcurrency {
			return erruser.New(fmt.Sprintf("concurrency must be between 1 and %d.", _maxConcurrency), nil)
		}
		cfg.Concurrency = *l.Concurrency
		set("concurrency")
	}
	if len(l.Exclude) > 0 {
		cfg.Exclude = append(cfg.Exclude, l.Exclude...)
		set("exclude")
	}
	return nil
}

func validateProvider(s string) (string, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, p := range validProviders {
		if norm == p {
			return norm, nil
		}
	}
	return "", erruser.New("Invalid provider; use "+strings.Join(validProviders, ", ")+".", nil)
}

// Load builds the layers (home file, project file, environment, overrides)
// and resolves them. Missing config files are ignored. Invalid TOML or
// invalid env values return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	homePath := opts.HomeConfigPath
	if homePath == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return nil, erruser.New("Could not determine home directory.", err)
		}
		homePath = filepath.Join(dir, FileName)
	}

	var layers []Layer
	home, err := fileLayer(homePath)
	if err != nil {
		return nil, err
	}
	if home != nil {
		layers = append(layers, *home)
	}
	if opts.RepoRoot != "" {
		project, err := fileLayer(filepath.Join(opts.RepoRoot, FileName))
		if err != nil {
			return nil, err
		}
		if project != nil {
			layers = append(layers, *project)
		}
	}
	env, err := envLayer(opts.Env)
	if err != nil {
		return nil, err
	}
	layers = append(layers, env)
	if opts.Overrides != nil {
		o := *opts.Overrides
		if o.Source == "" {
			o.Source = "flag"
		}
		layers = append(layers, o)
	}
	return Resolve(layers...)
}

type fileConfig struct {
	Provider         *string  `toml:"provider"`
	Model            *string  `toml:"model"`
	OllamaHost       *string  `toml:"ollama_host"`
	Style            *string  `toml:"style"`
	IncludeBody      *bool    `toml:"include_body"`
	MaxSubjectLength *int64   `toml:"max_subject_length"`
	TicketPrefix     *string  `toml:"ticket_prefix"`
	Timeout          *string  `toml:"timeout"`
	Budget           *int64   `toml:"budget"`
	Temperature      *float64 `toml:"temperature"`
	Concurrency      *int64   `toml:"concurrency"`
	Exclude          []string `toml:"exclude"`
}

// fileLayer reads path into a Layer. A missing file yields nil and no error.
// The API key is never read from files.
func fileLayer(path string) (*Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, erruser.New("Could not read configuration file "+path+".", err)
	}
	var file fileConfig
	md, err := toml.Decode(string(data), &file)
	if err != nil {
		return nil, erruser.New("Invalid configuration in "+path+".", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, erruser.New("Unknown keys in "+path+": "+strings.Join(keys, ", ")+".", nil)
	}
	l := &Layer{
		Source:       path,
		Provider:     file.Provider,
		Model:        file.Model,
		OllamaHost:   file.OllamaHost,
		Style:        file.Style,
		IncludeBody:  file.IncludeBody,
		TicketPrefix: file.TicketPrefix,
		Temperature:  file.Temperature,
		Exclude:      file.Exclude,
	}
	if l.MaxSubjectLength, err = intPtr(file.MaxSubjectLength); err != nil {
		return nil, erruser.New("Configuration max_subject_length value out of range.", err)
	}
	if l.Budget, err = intPtr(file.Budget); err != nil {
		return nil, erruser.New("Configuration budget value out of range.", err)
	}
	if l.Concurrency, err = intPtr(file.Concurrency); err != nil {
		return nil, erruser.New("Configuration concurrency value out of range.", err)
	}
	if file.Timeout != nil && *file.Timeout != "" {
		d, err := parseDuration(*file.Timeout)
		if err != nil {
			return nil, erruser.New("Configuration timeout is invalid.", err)
		}
		l.Timeout = &d
	}
	return l, nil
}

func intPtr(n *int64) (*int, error) {
	if n == nil {
		return nil, nil
	}
	v, err := int64ToInt(*n)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	// Try Go duration first (e.g. "5m", "30s")
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	// Try integer seconds
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * time.Second, nil
}

// env key names for config
const (
	envProvider         = "CM_PROVIDER"
	envModel            = "CM_MODEL"
	envStyle            = "CM_STYLE"
	envIncludeBody      = "CM_INCLUDE_BODY"
	envMaxSubjectLength = "CM_MAX_SUBJECT_LENGTH"
	envTicketPrefix     = "CM_TICKET_PREFIX"
	envTimeout          = "CM_TIMEOUT"
	envBudget           = "CM_BUDGET"
	envTemperature      = "CM_TEMPERATURE"
	envConcurrency      = "CM_CONCURRENCY"
	envOllamaHost       = "OLLAMA_HOST"
	envAPIKey           = "ANTHROPIC_API_KEY"
)

// EnvKeys lists the environment variables Load reads, for display.
var EnvKeys = []string{
	envProvider, envModel, envStyle, envIncludeBody, envMaxSubjectLength, envTicketPrefix,
	envTimeout, envBudget, envTemperature, envConcurrency, envOllamaHost, envAPIKey,
}

// Keys lists the setting names used in Origins, in display order.
var Keys = []string{
	"provider", "model", "ollama_host", "api_key", "style", "include_body", "max_subject_length",
	"ticket_prefix", "timeout", "budget", "temperature", "concurrency", "exclude",
}

func envLayer(env []string) (Layer, error) {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(e[:idx])
		val := strings.TrimSpace(e[idx+1:])
		vals[key] = val
	}
	l := Layer{Source: "env"}
	str := func(key string) *string {
		if v, ok := vals[key]; ok && v != "" {
			return &v
		}
		return nil
	}
	l.Provider = str(envProvider)
	l.Model = str(envModel)
	l.Style = str(envStyle)
	l.TicketPrefix = str(envTicketPrefix)
	l.OllamaHost = str(envOllamaHost)
	l.APIKey = str(envAPIKey)

	if v := str(envIncludeBody); v != nil {
		b, err := parseBool(*v)
		if err != nil {
			return l, erruser.New(envIncludeBody+" must be 1/true/yes/on or 0/false/no/off.", err)
		}
		l.IncludeBody = &b
	}
	for _, f := range []struct {
		key string
		dst **int
	}{
		{envMaxSubjectLength, &l.MaxSubjectLength},
		{envBudget, &l.Budget},
		{envConcurrency, &l.Concurrency},
	} {
		v := str(f.key)
		if v == nil {
			continue
		}
		n, err := strconv.ParseInt(*v, 10, 64)
		if err != nil {
			return l, erruser.New(f.key+" must be a valid number.", err)
		}
		i, err := int64ToInt(n)
		if err != nil {
			return l, erruser.New(f.key+" value out of range.", err)
		}
		*f.dst = &i
	}
	if v := str(envTimeout); v != nil {
		d, err := parseDuration(*v)
		if err != nil {
			return l, erruser.New(envTimeout+" must be a valid duration.", err)
		}
		l.Timeout = &d
	}
	if v := str(envTemperature); v != nil {
		f, err := strconv.ParseFloat(*v, 64)
		if err != nil {
			return l, erruser.New(envTemperature+" must be a valid number.", err)
		}
		l.Temperature = &f
	}
	return l, nil
}

// parseBool parses common boolean env values: 1/true/yes/on = true, 0/false/no/off = false (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

// Origin returns the layer that set key, or "default".
func (c *Config) Origin(key string) string {
	if src, ok := c.Origins[key]; ok && src != "" {
		return src
	}
	return "default"
}

type view struct {
	Provider         string   `toml:"provider"`
	Model            string   `toml:"model"`
	OllamaHost       string   `toml:"ollama_host"`
	APIKey           string   `toml:"api_key"`
	Style            string   `toml:"style"`
	IncludeBody      bool     `toml:"include_body"`
	MaxSubjectLength int      `toml:"max_subject_length"`
	TicketPrefix     string   `toml:"ticket_prefix"`
	Timeout          string   `toml:"timeout"`
	Budget           int      `toml:"budget"`
	Temperature      float64  `toml:"temperature"`
	Concurrency      int      `toml:"concurrency"`
	Exclude          []string `toml:"exclude"`
}

// Encode writes the resolved settings as TOML. The API key is masked.
func (c *Config) Encode(w io.Writer) error {
	v := view{
		Provider:         c.Provider,
		Model:            c.Model,
		OllamaHost:       c.OllamaHost,
		APIKey:           MaskKey(c.APIKey),
		Style:            string(c.Style),
		IncludeBody:      c.IncludeBody,
		MaxSubjectLength: c.MaxSubjectLength,
		TicketPrefix:     c.TicketPrefix,
		Timeout:          c.Timeout.String(),
		Budget:           c.Budget,
		Temperature:      c.Temperature,
		Concurrency:      c.Concurrency,
		Exclude:          c.Exclude,
	}
	if v.Exclude == nil {
		v.Exclude = []string{}
	}
	return toml.NewEncoder(w).Encode(v)
}

// MaskKey keeps the last four characters of a secret.
func MaskKey(k string) string {
	switch {
	case k == "":
		return ""
	case len(k) <= 8:
		return "****"
	default:
		return "****" + k[len(k)-4:]
	}
}
