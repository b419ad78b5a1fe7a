package bls

import (
	"context"
	"fmt"

	"github.com/woxQAQ/bls-bridge/internal/native"
	"github.com/woxQAQ/bls-bridge/internal/wasm"
	"github.com/woxQAQ/bls-bridge/pkg/pending"
)

// Backend is one way of reaching the compiled BLS library.
type Backend interface {
	// Name identifies the backend, "native" or "wasm".
	Name() string

	GeneratePrivateKeyRandom(ctx context.Context) *pending.Pending[[]byte]
	GeneratePrivateKeySeed(ctx context.Context, seed []byte) *pending.Pending[[]byte]
	GetPublicKey(ctx context.Context, sk []byte) *pending.Pending[[]byte]
	Sign(ctx context.Context, sk, msg []byte) *pending.Pending[[]byte]
	Verify(ctx context.Context, pk, sig, msg []byte) *pending.Pending[bool]
	GetRandom(ctx context.Context, n uint64) *pending.Pending[[]byte]

	Close(ctx context.Context) error
}

// UnsupportedError is returned for operations a backend does not export.
type UnsupportedError struct {
	Backend   string
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s backend does not support %s", e.Backend, e.Operation)
}

// nativeBackend runs every call on its own goroutine. Contexts are not
// consulted: a foreign call cannot be interrupted.
type nativeBackend struct {
	binding *native.Binding
}

// NewNativeBackend wraps a loaded native library.
func NewNativeBackend(binding *native.Binding) Backend {
	return &nativeBackend{binding: binding}
}

func (n *nativeBackend) Name() string { return "native" }

func (n *nativeBackend) GeneratePrivateKeyRandom(context.Context) *pending.Pending[[]byte] {
	return n.binding.GeneratePrivateKeyRandom()
}

func (n *nativeBackend) GeneratePrivateKeySeed(_ context.Context, seed []byte) *pending.Pending[[]byte] {
	return n.binding.GeneratePrivateKeySeed(seed)
}

func (n *nativeBackend) GetPublicKey(_ context.Context, sk []byte) *pending.Pending[[]byte] {
	return n.binding.GetPublicKey(sk)
}

func (n *nativeBackend) Sign(_ context.Context, sk, msg []byte) *pending.Pending[[]byte] {
	return n.binding.Sign(sk, msg)
}

func (n *nativeBackend) Verify(_ context.Context, pk, sig, msg []byte) *pending.Pending[bool] {
	return n.binding.Verify(pk, sig, msg)
}

func (n *nativeBackend) GetRandom(_ context.Context, size uint64) *pending.Pending[[]byte] {
	return n.binding.GetRandom(size)
}

// Close is a no-op; the library stays loaded for the life of the process.
func (n *nativeBackend) Close(context.Context) error { return nil }

// wasmBackend runs each call to completion inside the method and hands back
// an already resolved result.
type wasmBackend struct {
	binding *wasm.Binding
	runtime *wasm.Runtime
}

// NewWasmBackend wraps a Wasm binding. Close shuts down runtime.
func NewWasmBackend(binding *wasm.Binding, runtime *wasm.Runtime) Backend {
	return &wasmBackend{binding: binding, runtime: runtime}
}

func (w *wasmBackend) Name() string { return "wasm" }

func (w *wasmBackend) GeneratePrivateKeyRandom(ctx context.Context) *pending.Pending[[]byte] {
	sk, err := w.binding.GenerateKey(ctx)
	return pending.Resolved(sk, err)
}

func (w *wasmBackend) GeneratePrivateKeySeed(context.Context, []byte) *pending.Pending[[]byte] {
	return pending.Failed[[]byte](&UnsupportedError{Backend: "wasm", Operation: "generate_private_key_seed"})
}

func (w *wasmBackend) GetPublicKey(ctx context.Context, sk []byte) *pending.Pending[[]byte] {
	pk, err := w.binding.GetPublicKey(ctx, sk)
	return pending.Resolved(pk, err)
}

func (w *wasmBackend) Sign(ctx context.Context, sk, msg []byte) *pending.Pending[[]byte] {
	sig, err := w.binding.Sign(ctx, sk, msg)
	return pending.Resolved(sig, err)
}

func (w *wasmBackend) Verify(ctx context.Context, pk, sig, msg []byte) *pending.Pending[bool] {
	ok, err := w.binding.Verify(ctx, pk, sig, msg)
	return pending.Resolved(ok, err)
}

func (w *wasmBackend) GetRandom(context.Context, uint64) *pending.Pending[[]byte] {
	return pending.Failed[[]byte](&UnsupportedError{Backend: "wasm", Operation: "get_random"})
}

func (w *wasmBackend) Close(ctx context.Context) error {
	if w.runtime == nil {
		return nil
	}
	return w.runtime.Close(ctx)
}
