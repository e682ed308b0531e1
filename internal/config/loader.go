package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/ZebulonRouseFrantzich/artifetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/artifetch/internal/platform"
)

// DefaultFileName is looked up in the base directory when no explicit
// configuration path is given.
const DefaultFileName = "artifacts.json"

// Format identifies a configuration encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatLua  Format = "lua"
)

// FormatFromPath picks the format from the file extension. Anything that is
// not YAML or Lua is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".lua":
		return FormatLua
	default:
		return FormatJSON
	}
}

// DefaultPath returns the configuration path used when none is given.
func DefaultPath(baseDir string) string {
	return filepath.Join(baseDir, DefaultFileName)
}

// Loader reads configuration files.
type Loader struct {
	detector platform.Detector
	log      logging.Logger
}

// NewLoader creates a loader. The detector is only consulted for Lua
// configurations and may be nil otherwise.
func NewLoader(detector platform.Detector, log logging.Logger) *Loader {
	return &Loader{detector: detector, log: logging.OrNop(log)}
}

// Load reads and decodes the configuration at path.
func (l *Loader) Load(ctx context.Context, path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	format := FormatFromPath(path)
	l.log.Debug("loading config", "path", path, "format", format)

	entries, err := l.Decode(ctx, data, format)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return entries, nil
}

// Decode decodes configuration data in the given format.
func (l *Loader) Decode(ctx context.Context, data []byte, format Format) ([]Entry, error) {
	var (
		jsonData []byte
		err      error
	)

	switch format {
	case FormatJSON:
		jsonData = data
	case FormatYAML:
		jsonData, err = yaml.YAMLToJSON(data)
		if err != nil {
			return nil, &ParseError{Message: "invalid YAML", Detail: err.Error()}
		}
	case FormatLua:
		jsonData, err = l.luaToJSON(ctx, string(data))
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown config format: %s", format)
	}

	return decodeEntries(jsonData)
}

// decodeEntries decodes a JSON array of entries. Keys that match no field
// are recorded on the entry rather than rejected.
func decodeEntries(data []byte) ([]Entry, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Message: "invalid config", Detail: err.Error()}
	}

	entries := make([]Entry, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &entries[i]); err != nil {
			return nil, &ParseError{Message: fmt.Sprintf("invalid config entry %d", i), Detail: err.Error()}
		}
		entries[i].Index = i
		entries[i].UnknownFields = unknownKeys(r)
	}
	return entries, nil
}

// unknownKeys returns the sorted keys of obj that no entry field matches.
// Matching is exact, unlike encoding/json's case-insensitive field lookup.
func unknownKeys(obj json.RawMessage) []string {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(obj, &keys); err != nil {
		return nil
	}

	var unknown []string
	for k := range keys {
		if !knownFields[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// ParseError represents a config decoding error with a friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}
