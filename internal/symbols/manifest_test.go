package symbols

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	m, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}

	if m.Library != "blst_deno" {
		t.Errorf("expected library 'blst_deno', got '%s'", m.Library)
	}
	if len(m.Native) != 6 {
		t.Errorf("expected 6 native symbols, got %d", len(m.Native))
	}
	if len(m.Wasm) != 8 {
		t.Errorf("expected 8 wasm exports, got %d", len(m.Wasm))
	}

	for _, sym := range m.Native {
		if !sym.Nonblocking {
			t.Errorf("native symbol %s should be nonblocking", sym.Name)
		}
	}

	verify, ok := m.Lookup(Native, "verify")
	if !ok {
		t.Fatal("verify not found in native section")
	}
	if verify.Result != "u8" || len(verify.Parameters) != 6 {
		t.Errorf("unexpected verify shape: %+v", verify)
	}
}

func TestLoad_EmptyPathUsesEmbedded(t *testing.T) {
	m, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") failed: %v", err)
	}
	if m.Source() != "embedded:symbols.yaml" {
		t.Errorf("unexpected source %q", m.Source())
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))

	var notFound *ManifestNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ManifestNotFoundError, got %T: %v", err, err)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("version: [1"), "inline")

	var parseErr *ManifestParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ManifestParseError, got %T", err)
	}
	if parseErr.Source != "inline" {
		t.Errorf("expected source 'inline', got '%s'", parseErr.Source)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		file  string
		field string
	}{
		{"bad-version.yaml", "version"},
		{"unknown-shape.yaml", "native[0]"},
		{"duplicate.yaml", "wasm[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := Load(filepath.Join("testdata", tt.file))

			var valErr *ManifestValidationError
			if !errors.As(err, &valErr) {
				t.Fatalf("expected ManifestValidationError, got %T: %v", err, err)
			}
			if valErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, valErr.Field)
			}
		})
	}
}

func TestParse_MissingLibrary(t *testing.T) {
	_, err := Parse([]byte("version: 1\n"), "inline")

	var valErr *ManifestValidationError
	if !errors.As(err, &valErr) || valErr.Field != "library" {
		t.Errorf("expected library validation error, got %v", err)
	}
}

func TestParse_WasmNonblocking(t *testing.T) {
	data := []byte("version: 1\nlibrary: x\nwasm:\n  - name: sign\n    nonblocking: true\n")

	_, err := Parse(data, "inline")
	if err == nil {
		t.Fatal("expected error for nonblocking wasm export")
	}
}

func TestRequire(t *testing.T) {
	m, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}

	ok := Symbol{Name: "get_random", Parameters: []string{"usize"}, Result: "buffer", Nonblocking: true}
	if err := m.Require(Native, ok); err != nil {
		t.Errorf("Require() failed: %v", err)
	}

	tests := []struct {
		name  string
		want  Symbol
		field string
	}{
		{"missing", Symbol{Name: "get_secret"}, "name"},
		{"params", Symbol{Name: "get_random", Parameters: []string{"buffer"}, Result: "buffer", Nonblocking: true}, "parameters"},
		{"result", Symbol{Name: "get_random", Parameters: []string{"usize"}, Result: "u8", Nonblocking: true}, "result"},
		{"nonblocking", Symbol{Name: "get_random", Parameters: []string{"usize"}, Result: "buffer"}, "nonblocking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.Require(Native, tt.want)

			var mismatch *MismatchError
			if !errors.As(err, &mismatch) {
				t.Fatalf("expected MismatchError, got %T: %v", err, err)
			}
			if mismatch.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, mismatch.Field)
			}
		})
	}
}

func TestRequireAll_RenamedSymbol(t *testing.T) {
	m, err := Load(filepath.Join("testdata", "renamed.yaml"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	err = m.RequireAll(Native, []Symbol{
		{Name: "get_public_key", Parameters: []string{"buffer", "usize"}, Result: "buffer", Nonblocking: true},
	})

	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %v", err)
	}
	want := "native symbol 'get_public_key' parameters mismatch: binding expects [buffer usize], manifest has [buffer]"
	if mismatch.Error() != want {
		t.Errorf("unexpected message:\n got %s\nwant %s", mismatch.Error(), want)
	}
}
