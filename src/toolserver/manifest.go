// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package toolserver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifestFormat represents supported manifest file formats.
type manifestFormat int

const (
	// manifestFormatJSON represents JSON manifest format (.json)
	manifestFormatJSON manifestFormat = iota
	// manifestFormatYAML represents YAML manifest format (.yaml, .yml)
	manifestFormatYAML
)

// manifestFileNames are the candidate file names probed during manifest
// resolution, in preference order.
var manifestFileNames = []string{
	"tool-manifest.json",
	"tool-manifest.yaml",
	"tool-manifest.yml",
}

// Default limit values merged under whatever a manifest declares.
const (
	DefaultTimeoutMs      = 12000
	DefaultMaxConcurrency = 5
	DefaultMaxResultBytes = 2_000_000
)

// Limits holds the operational limits a tool server declares.
// Zero values are replaced with the package defaults at load time.
type Limits struct {
	// TimeoutMsDefault: Per-call deadline in milliseconds for tools that
	// declare no timeout of their own
	TimeoutMsDefault int `json:"timeoutMsDefault" yaml:"timeoutMsDefault"`
	// MaxConcurrency: Maximum number of tools/call requests executing at once
	MaxConcurrency int `json:"maxConcurrency" yaml:"maxConcurrency"`
	// MaxHTMLSizeBytes: Upper bound on payload sizes tools should produce
	MaxHTMLSizeBytes int `json:"maxHtmlSizeBytes" yaml:"maxHtmlSizeBytes"`
}

// ManifestTool is one tool declaration inside a manifest. A schema may be
// given inline as a JSON-schema object or as a path to a schema file
// relative to the manifest; when both are absent the tool accepts any
// object-shaped arguments.
type ManifestTool struct {
	Name             string         `json:"name" yaml:"name"`
	Description      string         `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema      map[string]any `json:"inputSchema,omitempty" yaml:"inputSchema,omitempty"`
	InputSchemaPath  string         `json:"inputSchemaPath,omitempty" yaml:"inputSchemaPath,omitempty"`
	OutputSchema     map[string]any `json:"outputSchema,omitempty" yaml:"outputSchema,omitempty"`
	OutputSchemaPath string         `json:"outputSchemaPath,omitempty" yaml:"outputSchemaPath,omitempty"`
	TimeoutMs        int            `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// Manifest describes a tool server: its identity, limits, and tool catalog.
// It is loaded once per process start and treated as immutable afterwards.
//
// The manifest can be stored as JSON or YAML; the format is detected from
// the file extension (.json, .yaml, .yml).
type Manifest struct {
	Name    string         `json:"name" yaml:"name"`
	Version string         `json:"version" yaml:"version"`
	Vendor  string         `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Limits  Limits         `json:"limits,omitempty" yaml:"limits,omitempty"`
	Tools   []ManifestTool `json:"tools" yaml:"tools"`

	// baseDir is the directory the manifest was loaded from, used to
	// resolve relative schema file paths. Empty for in-memory manifests.
	baseDir string
}

// BaseDir returns the directory relative schema paths resolve against.
func (m *Manifest) BaseDir() string { return m.baseDir }

// detectManifestFormat determines the manifest file format based on file
// extension, matching case-insensitively.
func detectManifestFormat(path string) manifestFormat {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return manifestFormatYAML
	default:
		return manifestFormatJSON
	}
}

// unmarshalManifest unmarshals manifest data based on the specified format.
func unmarshalManifest(data []byte, m *Manifest, format manifestFormat) error {
	switch format {
	case manifestFormatYAML:
		if err := yaml.Unmarshal(data, m); err != nil {
			return fmt.Errorf("failed to parse YAML manifest: %w", err)
		}
	default:
		if err := json.Unmarshal(data, m); err != nil {
			return fmt.Errorf("failed to parse JSON manifest: %w", err)
		}
	}
	return nil
}

// LoadManifest locates, parses, and validates a tool manifest.
//
// Resolution order (first existing file wins):
//  1. overridePath, when non-empty (missing file is then a hard error)
//  2. the current working directory
//  3. the executable's directory
//  4. the parent of the current working directory
//
// Within each directory the candidates tool-manifest.json, .yaml, .yml are
// probed in that order. When nothing matches, the error lists every path
// that was checked.
//
// Parameters:
//   - overridePath: Explicit manifest path, or empty to search
//
// Returns:
//   - *Manifest: The validated manifest with limit defaults applied
//   - error: Error if no manifest is found or validation fails
func LoadManifest(overridePath string) (*Manifest, error) {
	path, err := resolveManifestPath(overridePath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	m := &Manifest{}
	if err := unmarshalManifest(data, m, detectManifestFormat(path)); err != nil {
		return nil, err
	}
	m.baseDir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	m.applyLimitDefaults()
	return m, nil
}

// resolveManifestPath walks the resolution order and returns the first
// existing candidate.
func resolveManifestPath(overridePath string) (string, error) {
	if overridePath != "" {
		if _, err := os.Stat(overridePath); err != nil {
			return "", fmt.Errorf("manifest override path %s: %w", overridePath, err)
		}
		return overridePath, nil
	}

	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd, filepath.Dir(cwd))
	}
	if exe, err := os.Executable(); err == nil {
		// Probe the binary's directory between CWD and the parent.
		exeDir := filepath.Dir(exe)
		if len(dirs) == 2 {
			dirs = []string{dirs[0], exeDir, dirs[1]}
		} else {
			dirs = append(dirs, exeDir)
		}
	}

	var checked []string
	for _, dir := range dirs {
		for _, name := range manifestFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			checked = append(checked, candidate)
		}
	}
	return "", fmt.Errorf("no tool manifest found; checked: %s", strings.Join(checked, ", "))
}

// Validate checks the structural requirements: name, version, and at least
// one tool, with every tool named and names unique. A duplicate tool name
// is a fatal load failure.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest is missing required field: name")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest is missing required field: version")
	}
	if len(m.Tools) == 0 {
		return fmt.Errorf("manifest declares no tools")
	}

	seen := make(map[string]struct{}, len(m.Tools))
	for i, tool := range m.Tools {
		if tool.Name == "" {
			return fmt.Errorf("tool at index %d is missing required field: name", i)
		}
		if _, dup := seen[tool.Name]; dup {
			return fmt.Errorf("duplicate tool name: %s", tool.Name)
		}
		seen[tool.Name] = struct{}{}
	}
	return nil
}

// applyLimitDefaults merges the package defaults under declared values.
func (m *Manifest) applyLimitDefaults() {
	if m.Limits.TimeoutMsDefault <= 0 {
		m.Limits.TimeoutMsDefault = DefaultTimeoutMs
	}
	if m.Limits.MaxConcurrency <= 0 {
		m.Limits.MaxConcurrency = DefaultMaxConcurrency
	}
	if m.Limits.MaxHTMLSizeBytes <= 0 {
		m.Limits.MaxHTMLSizeBytes = DefaultMaxResultBytes
	}
}

// schemaDocument returns the JSON bytes of a tool's schema declaration.
// Inline schemas win over file paths; a tool with neither gets the
// permissive empty-object schema. The second return reports whether the
// tool declared a schema at all.
func schemaDocument(inline map[string]any, path, baseDir string) (json.RawMessage, bool, error) {
	if inline != nil {
		data, err := json.Marshal(inline)
		if err != nil {
			return nil, false, fmt.Errorf("failed to encode inline schema: %w", err)
		}
		return data, true, nil
	}
	if path != "" {
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("failed to read schema file %s: %w", path, err)
		}
		return data, true, nil
	}
	return json.RawMessage(`{"type":"object"}`), false, nil
}
