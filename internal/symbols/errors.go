package symbols

import "fmt"

// ManifestNotFoundError occurs when a manifest file cannot be read.
type ManifestNotFoundError struct {
	Path string
	Err  error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("symbol manifest not found at '%s': %v", e.Path, e.Err)
}

func (e *ManifestNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestParseError occurs when a manifest is not valid YAML.
type ManifestParseError struct {
	Source string
	Err    error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("failed to parse symbol manifest '%s': %v", e.Source, e.Err)
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// ManifestValidationError occurs when a manifest fails validation.
type ManifestValidationError struct {
	Source  string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("symbol manifest '%s' invalid: %s (field: %s)", e.Source, e.Message, e.Field)
	}
	return fmt.Sprintf("symbol manifest '%s' invalid: %s", e.Source, e.Message)
}

// MismatchError occurs when the bindings and the manifest disagree about a
// symbol. It is a load-time failure and is never retried.
type MismatchError struct {
	Section Section
	Name    string
	Field   string
	Want    string
	Got     string
}

func (e *MismatchError) Error() string {
	if e.Field == "name" {
		return fmt.Sprintf("%s symbol '%s' not declared in manifest", e.Section, e.Name)
	}
	return fmt.Sprintf("%s symbol '%s' %s mismatch: binding expects %s, manifest has %s",
		e.Section, e.Name, e.Field, e.Want, e.Got)
}
