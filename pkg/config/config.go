package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// FileName is the optional config file read from the working directory
const FileName = "procgraph.toml"

// EnvPrefix prefixes environment overrides (e.g. PROCGRAPH_FORMAT=dot)
const EnvPrefix = "PROCGRAPH_"

// Formats accepted by --format
var Formats = []string{"text", "json", "dot", "mermaid"}

// Config holds all configuration for the application
type Config struct {
	Input      string   `koanf:"input" validate:"required"`
	Format     string   `koanf:"format" validate:"oneof=text json dot mermaid"`
	Output     string   `koanf:"output"`
	Strict     bool     `koanf:"strict"`
	Analyze    bool     `koanf:"analyze"`
	Watch      bool     `koanf:"watch"`
	WebMode    bool     `koanf:"web"`
	Port       int      `koanf:"port" validate:"min=1,max=65535"`
	Focus      []string `koanf:"focus" validate:"dive,required"`
	Distance   int      `koanf:"distance" validate:"min=0"`
	Verbosity  string   `koanf:"verbosity"`
	VerboseCnt int      `koanf:"verbose"`
	JSONLogs   bool     `koanf:"json-logs"`
}

// Defaults returns the lowest-priority configuration layer
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"input":     "",
		"format":    "text",
		"output":    "",
		"strict":    false,
		"analyze":   false,
		"watch":     false,
		"web":       false,
		"port":      8080,
		"focus":     []string{},
		"distance":  1,
		"verbosity": "",
		"verbose":   0,
		"json-logs": false,
	}
}

// RegisterFlags declares the command line flags Load understands
func RegisterFlags(f *pflag.FlagSet) {
	f.StringP("input", "i", "", "Procedure file (.toml, .yaml, .json)")
	f.StringP("format", "f", "text", "Output format: "+strings.Join(Formats, ", "))
	f.StringP("output", "o", "", "Write output to file instead of stdout")
	f.Bool("strict", false, "Fail when assembly produces diagnostics")
	f.Bool("analyze", false, "Report control-flow loops and unreachable nodes")
	f.BoolP("watch", "w", false, "Recompile when the input changes")
	f.Bool("web", false, "Serve the compiled graph over HTTP")
	f.IntP("port", "p", 8080, "Port for the web server")
	f.StringSlice("focus", nil, "Only render these streams and their neighbors")
	f.Int("distance", 1, "Neighbor hops kept around --focus streams")
	f.String("verbosity", "", "Log level: trace, debug, info, warn, error")
	f.CountP("verbose", "v", "Increase log verbosity (-v debug, -vv trace)")
	f.Bool("json-logs", false, "Log as JSON")
}

// Load loads configuration from defaults, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > Defaults
func Load(f *pflag.FlagSet) (*Config, error) {
	return load(f, FileName)
}

func load(f *pflag.FlagSet, configFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(makeMapProvider(Defaults()), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// The file is optional
	_ = k.Load(file.Provider(configFile), toml.Parser())

	// PROCGRAPH_JSON_LOGS -> json-logs
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", "-")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
		// A positional argument names the input when --input is absent
		if args := f.Args(); len(args) > 0 && !f.Changed("input") {
			_ = k.Set("input", args[0])
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report the key users write, not the Go field name
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return fld.Tag.Get("koanf")
		})
	})
	return validate
}

// Validate rejects values no command can act on
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("invalid config: %w", err)
	}

	messages := make([]string, 0, len(fieldErrors))
	for _, e := range fieldErrors {
		messages = append(messages, fmt.Sprintf("%s %s", e.Field(), describe(e)))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}

func describe(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		if e.Field() == "input" {
			return "is required (no procedure file given)"
		}
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("%q must be one of: %s", e.Value(), e.Param())
	case "min":
		return fmt.Sprintf("%v must be at least %s", e.Value(), e.Param())
	case "max":
		return fmt.Sprintf("%v must be at most %s", e.Value(), e.Param())
	}
	return "is invalid"
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
