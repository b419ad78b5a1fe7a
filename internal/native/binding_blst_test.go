//go:build blst

package native_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/bls-bridge/internal/bridgetest"
	"github.com/woxQAQ/bls-bridge/internal/native"
)

func TestBindingBLS(t *testing.T) {
	ctx := context.Background()
	lib := &bridgetest.BLSLibrary{}
	b, err := native.NewWithSymbols(lib.Symbols(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewWithSymbols() failed: %v", err)
	}

	sk, err := b.GeneratePrivateKeySeed([]byte("this seed is long enough for keygen")).Wait(ctx)
	if err != nil {
		t.Fatalf("GeneratePrivateKeySeed() failed: %v", err)
	}
	if len(sk) != bridgetest.BLSSecretSize {
		t.Errorf("len(sk) = %d, want %d", len(sk), bridgetest.BLSSecretSize)
	}

	pk, err := b.GetPublicKey(sk).Wait(ctx)
	if err != nil {
		t.Fatalf("GetPublicKey() failed: %v", err)
	}
	if len(pk) != bridgetest.BLSPublicKeySize {
		t.Errorf("len(pk) = %d, want %d", len(pk), bridgetest.BLSPublicKeySize)
	}

	sig, err := b.Sign(sk, []byte("foo bar baz")).Wait(ctx)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	if len(sig) != bridgetest.BLSSignatureSize {
		t.Errorf("len(sig) = %d, want %d", len(sig), bridgetest.BLSSignatureSize)
	}

	tests := []struct {
		msg  string
		want bool
	}{
		{"foo bar baz", true},
		{"foo bar qux", false},
	}
	for _, tt := range tests {
		got, err := b.Verify(pk, sig, []byte(tt.msg)).Wait(ctx)
		if err != nil {
			t.Fatalf("Verify(%q) failed: %v", tt.msg, err)
		}
		if got != tt.want {
			t.Errorf("Verify(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}

	_, err = b.GeneratePrivateKeySeed([]byte("short")).Wait(ctx)
	var perr *native.ProtocolError
	if !errors.As(err, &perr) {
		t.Errorf("GeneratePrivateKeySeed(short) error = %v, want ProtocolError", err)
	}
}
