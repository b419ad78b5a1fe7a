package native_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/bls-bridge/internal/bridgetest"
	"github.com/woxQAQ/bls-bridge/internal/native"
	"github.com/woxQAQ/bls-bridge/internal/symbols"
)

func newBinding(t *testing.T, lib *bridgetest.FakeLibrary) *native.Binding {
	t.Helper()
	b, err := native.NewWithSymbols(lib.Symbols(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWithSymbols() failed: %v", err)
	}
	return b
}

func TestBindingOperations(t *testing.T) {
	ctx := context.Background()
	lib := &bridgetest.FakeLibrary{Random: bytes.NewReader(bytes.Repeat([]byte{0x11}, 64))}
	b := newBinding(t, lib)

	sk, err := b.GeneratePrivateKeyRandom().Wait(ctx)
	if err != nil {
		t.Fatalf("GeneratePrivateKeyRandom() failed: %v", err)
	}
	if diff := cmp.Diff(bytes.Repeat([]byte{0x11}, bridgetest.KeySize), sk); diff != "" {
		t.Errorf("random key mismatch (-want +got):\n%s", diff)
	}

	pk, err := b.GetPublicKey(sk).Wait(ctx)
	if err != nil {
		t.Fatalf("GetPublicKey() failed: %v", err)
	}
	if diff := cmp.Diff(bridgetest.ToyPublicKey(sk), pk); diff != "" {
		t.Errorf("public key mismatch (-want +got):\n%s", diff)
	}

	msg := []byte("foo bar baz")
	sig, err := b.Sign(sk, msg).Wait(ctx)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	ok, err := b.Verify(pk, sig, msg).Wait(ctx)
	if err != nil || !ok {
		t.Errorf("Verify(valid) = %v, %v; want true", ok, err)
	}
	ok, err = b.Verify(pk, sig, []byte("foo bar qux")).Wait(ctx)
	if err != nil || ok {
		t.Errorf("Verify(other message) = %v, %v; want false", ok, err)
	}

	rnd, err := b.GetRandom(16).Wait(ctx)
	if err != nil {
		t.Fatalf("GetRandom() failed: %v", err)
	}
	if len(rnd) != 16 {
		t.Errorf("GetRandom(16) returned %d bytes", len(rnd))
	}

	if lib.Calls() != 6 {
		t.Errorf("library saw %d calls, want 6", lib.Calls())
	}
}

func TestBindingEmptyInputs(t *testing.T) {
	lib := &bridgetest.FakeLibrary{}
	b := newBinding(t, lib)
	ctx := context.Background()

	sig, err := b.Sign(nil, nil).Wait(ctx)
	if err != nil {
		t.Fatalf("Sign(nil, nil) failed: %v", err)
	}
	if len(sig) != 0 {
		t.Errorf("Sign(nil, nil) = %x, want empty", sig)
	}

	if _, err := b.Verify([]byte{}, nil, make([]byte, 0, 8)).Wait(ctx); err != nil {
		t.Fatalf("Verify() with empty inputs failed: %v", err)
	}
	if _, err := b.GetPublicKey(nil).Wait(ctx); err != nil {
		t.Fatalf("GetPublicKey(nil) failed: %v", err)
	}

	if n := lib.NullArguments(); n != 0 {
		t.Errorf("library received %d null buffer arguments, want 0", n)
	}
}

func TestBindingVerifyProtocolViolation(t *testing.T) {
	b := newBinding(t, &bridgetest.FakeLibrary{VerifyResult: 2})

	ok, err := b.Verify([]byte{1}, []byte{2}, []byte{3}).Wait(context.Background())

	var protoErr *native.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if protoErr.Symbol != "verify" {
		t.Errorf("Symbol = %s, want verify", protoErr.Symbol)
	}
	if ok {
		t.Error("protocol violation must not report success")
	}
}

func TestBindingNullPointer(t *testing.T) {
	b := newBinding(t, &bridgetest.FakeLibrary{NullResults: map[string]bool{"sign": true}})

	_, err := b.Sign([]byte("sk"), []byte("msg")).Wait(context.Background())

	var protoErr *native.ProtocolError
	if !errors.As(err, &protoErr) || protoErr.Symbol != "sign" {
		t.Fatalf("expected ProtocolError for sign, got %v", err)
	}
}

func TestBindingPanicBecomesError(t *testing.T) {
	b := newBinding(t, &bridgetest.FakeLibrary{PanicOn: map[string]bool{"get_public_key": true}})

	pk, err := b.GetPublicKey([]byte("sk")).Wait(context.Background())
	if err == nil {
		t.Fatal("expected error from panicking symbol")
	}
	if !strings.Contains(err.Error(), "get_public_key aborted") {
		t.Errorf("error does not carry the panic value: %v", err)
	}
	if pk != nil {
		t.Errorf("expected no value alongside the error, got %x", pk)
	}
}

func TestNewWithSymbolsMissing(t *testing.T) {
	syms := (&bridgetest.FakeLibrary{}).Symbols()
	syms.Verify = nil

	_, err := native.NewWithSymbols(syms, zaptest.NewLogger(t))

	var notFound *native.SymbolNotFoundError
	if !errors.As(err, &notFound) || notFound.Symbol != "verify" {
		t.Fatalf("expected SymbolNotFoundError for verify, got %v", err)
	}
}

func TestLoadMissingLibrary(t *testing.T) {
	_, err := native.Load(native.Config{LibDir: t.TempDir()}, zaptest.NewLogger(t))

	var unsupported *native.UnsupportedPlatformError
	if errors.As(err, &unsupported) {
		t.Skipf("native loading unsupported on %s", runtime.GOOS)
	}

	var loadErr *native.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %T: %v", err, err)
	}
	if !strings.Contains(loadErr.Path, "blst_deno") {
		t.Errorf("library name not taken from manifest: %s", loadErr.Path)
	}
}

func TestLoadManifestMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	manifest := `
version: 1
library: blst_deno
native:
  - name: get_random
    parameters: [buffer, usize]
    result: buffer
    nonblocking: true
`
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := native.Load(native.Config{LibDir: t.TempDir(), SymbolsFile: path}, zaptest.NewLogger(t))

	var mismatch *symbols.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %T: %v", err, err)
	}
}
