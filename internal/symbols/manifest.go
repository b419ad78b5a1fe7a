// Package symbols holds the versioned calling contract shared by the bindings
// and the compiled artifact: symbol names, parameter shapes, result shapes and
// whether a native call runs off the caller's goroutine.
package symbols

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// SupportedVersion is the manifest version this build understands.
const SupportedVersion = 1

//go:embed symbols.yaml
var defaultManifest []byte

// Section selects the native or the WebAssembly half of the manifest.
type Section string

const (
	Native Section = "native"
	Wasm   Section = "wasm"
)

// Shapes accepted in each section.
var validShapes = map[Section]map[string]bool{
	Native: {"buffer": true, "usize": true, "u8": true},
	Wasm:   {"i32": true, "i64": true},
}

// Symbol describes one entry point.
type Symbol struct {
	Name        string   `yaml:"name"`
	Parameters  []string `yaml:"parameters"`
	Result      string   `yaml:"result"`
	Nonblocking bool     `yaml:"nonblocking"`
}

// Manifest is the parsed symbol table.
type Manifest struct {
	Version int      `yaml:"version"`
	Library string   `yaml:"library"`
	Native  []Symbol `yaml:"native"`
	Wasm    []Symbol `yaml:"wasm"`

	source string
}

// Default returns the manifest compiled into this binary.
func Default() (*Manifest, error) {
	return Parse(defaultManifest, "embedded:symbols.yaml")
}

// Load reads the manifest at path, or the embedded one when path is empty.
func Load(path string) (*Manifest, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestNotFoundError{Path: path, Err: err}
	}
	return Parse(data, path)
}

// Parse decodes and validates a manifest. source names it in errors.
func Parse(data []byte, source string) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{Source: source, Err: err}
	}

	m.source = source

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Version != SupportedVersion {
		return &ManifestValidationError{
			Source:  m.source,
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (want %d)", m.Version, SupportedVersion),
		}
	}

	if m.Library == "" {
		return &ManifestValidationError{
			Source:  m.source,
			Field:   "library",
			Message: "library is required",
		}
	}

	for _, section := range []Section{Native, Wasm} {
		seen := make(map[string]bool)
		for i, sym := range m.symbols(section) {
			field := fmt.Sprintf("%s[%d]", section, i)
			if sym.Name == "" {
				return &ManifestValidationError{Source: m.source, Field: field, Message: "name is required"}
			}
			if seen[sym.Name] {
				return &ManifestValidationError{
					Source:  m.source,
					Field:   field,
					Message: fmt.Sprintf("duplicate symbol %s", sym.Name),
				}
			}
			seen[sym.Name] = true

			shapes := append(slices.Clone(sym.Parameters), sym.Result)
			for _, shape := range shapes {
				if shape != "" && !validShapes[section][shape] {
					return &ManifestValidationError{
						Source:  m.source,
						Field:   field,
						Message: fmt.Sprintf("unknown shape %q for %s", shape, sym.Name),
					}
				}
			}
			if section == Wasm && sym.Nonblocking {
				return &ManifestValidationError{
					Source:  m.source,
					Field:   field,
					Message: fmt.Sprintf("wasm export %s cannot be nonblocking", sym.Name),
				}
			}
		}
	}

	return nil
}

func (m *Manifest) symbols(section Section) []Symbol {
	if section == Wasm {
		return m.Wasm
	}
	return m.Native
}

// Source names where the manifest came from.
func (m *Manifest) Source() string {
	return m.source
}

// Lookup finds a symbol by name.
func (m *Manifest) Lookup(section Section, name string) (Symbol, bool) {
	for _, sym := range m.symbols(section) {
		if sym.Name == name {
			return sym, true
		}
	}
	return Symbol{}, false
}

// Require checks that the manifest declares want with exactly its shape.
func (m *Manifest) Require(section Section, want Symbol) error {
	got, ok := m.Lookup(section, want.Name)
	if !ok {
		return &MismatchError{Section: section, Name: want.Name, Field: "name", Want: want.Name}
	}

	if !slices.Equal(got.Parameters, want.Parameters) {
		return &MismatchError{
			Section: section,
			Name:    want.Name,
			Field:   "parameters",
			Want:    fmt.Sprint(want.Parameters),
			Got:     fmt.Sprint(got.Parameters),
		}
	}
	if got.Result != want.Result {
		return &MismatchError{Section: section, Name: want.Name, Field: "result", Want: want.Result, Got: got.Result}
	}
	if got.Nonblocking != want.Nonblocking {
		return &MismatchError{
			Section: section,
			Name:    want.Name,
			Field:   "nonblocking",
			Want:    fmt.Sprint(want.Nonblocking),
			Got:     fmt.Sprint(got.Nonblocking),
		}
	}
	return nil
}

// RequireAll runs Require for every symbol in want.
func (m *Manifest) RequireAll(section Section, want []Symbol) error {
	for _, sym := range want {
		if err := m.Require(section, sym); err != nil {
			return err
		}
	}
	return nil
}
