// Package procedure loads the structured stream description of a test
// procedure from TOML, YAML or JSON.
package procedure

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/ritzau/procgraph/pkg/logging"
	"github.com/ritzau/procgraph/pkg/model"
)

// Supported input formats
const (
	FormatTOML = "toml"
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// FormatFromPath derives the input format from a file extension
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("cannot infer input format of %q", path)
}

func parserFor(format string) (koanf.Parser, error) {
	switch strings.ToLower(format) {
	case FormatTOML:
		return toml.Parser(), nil
	case FormatYAML, "yml":
		return yaml.Parser(), nil
	case FormatJSON:
		return json.Parser(), nil
	}
	return nil, fmt.Errorf("unsupported input format %q", format)
}

// Load reads a procedure file. The format follows the extension.
func Load(path string) (*model.Procedure, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	parser, err := parserFor(format)
	if err != nil {
		return nil, err
	}

	// Streams and keys may legitimately contain dots, so use a delimiter
	// that never appears in them.
	k := koanf.New("/")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	proc, err := decode(k)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if proc.Name == "" {
		proc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	logging.Debug("loaded procedure", "path", path, "name", proc.Name, "streams", len(proc.Streams))
	return proc, nil
}

// LoadBytes decodes a procedure from memory
func LoadBytes(data []byte, format string) (*model.Procedure, error) {
	parser, err := parserFor(format)
	if err != nil {
		return nil, err
	}

	k := koanf.New("/")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return nil, fmt.Errorf("failed to parse %s input: %w", format, err)
	}
	return decode(k)
}

func decode(k *koanf.Koanf) (*model.Procedure, error) {
	var proc model.Procedure
	if err := k.UnmarshalWithConf("", &proc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode procedure: %w", err)
	}
	if err := Validate(&proc); err != nil {
		return nil, err
	}
	return &proc, nil
}

// Validate checks the parts of the input the compiler relies on: stream
// keys are present and unique and every step has exactly one kind.
func Validate(proc *model.Procedure) error {
	if len(proc.Streams) == 0 {
		return fmt.Errorf("procedure declares no streams")
	}

	seen := make(map[string]bool, len(proc.Streams))
	for i, s := range proc.Streams {
		if s.Key == "" {
			return fmt.Errorf("stream %d has no key", i)
		}
		if seen[s.Key] {
			return fmt.Errorf("stream %q declared twice", s.Key)
		}
		seen[s.Key] = true

		for j := range s.Steps {
			if err := s.Steps[j].Validate(); err != nil {
				return fmt.Errorf("stream %q step %d: %w", s.Key, j, err)
			}
		}
	}
	return nil
}
