// Package bls signs and verifies BLS12-381 signatures through the blst_deno
// library, loaded either as a native shared library or as a WebAssembly
// module. The backend is chosen once, when the Client is created.
//
// Every operation returns a pending result. Native calls complete on another
// goroutine; Wasm calls have already completed when the method returns.
// Callers always Wait.
package bls

import (
	"context"

	"go.uber.org/zap"

	"github.com/woxQAQ/bls-bridge/internal/codec"
	"github.com/woxQAQ/bls-bridge/internal/config"
	"github.com/woxQAQ/bls-bridge/internal/native"
	"github.com/woxQAQ/bls-bridge/internal/wasm"
	"github.com/woxQAQ/bls-bridge/pkg/pending"
)

// Client dispatches operations to a single backend.
type Client struct {
	backend Backend
	logger  *zap.Logger
}

// Option adjusts how New builds its backend.
type Option func(*options)

type options struct {
	loader []wasm.LoaderOption
}

// WithDecompress runs fn over the Wasm module bytes before they are
// compiled, for modules shipped compressed. The native backend ignores it.
func WithDecompress(fn func(compressed []byte) ([]byte, error)) Option {
	return func(o *options) {
		o.loader = append(o.loader, wasm.WithDecompress(fn))
	}
}

// New loads the backend cfg selects. Load failures are returned as is and
// are not retried; there is no fallback to the other backend.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		backend Backend
		err     error
	)

	switch cfg.Backend {
	case config.BackendWasm:
		backend, err = newWasm(ctx, cfg, logger, &o)
	default:
		backend, err = newNative(cfg, logger)
	}
	if err != nil {
		return nil, err
	}

	return NewWithBackend(backend, logger), nil
}

func newNative(cfg *config.Config, logger *zap.Logger) (Backend, error) {
	binding, err := native.Load(native.Config{
		LibDir:      cfg.Native.LibDir,
		LibName:     cfg.Native.LibName,
		SymbolsFile: cfg.Native.SymbolsFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	return NewNativeBackend(binding), nil
}

func newWasm(ctx context.Context, cfg *config.Config, logger *zap.Logger, o *options) (Backend, error) {
	runtime, err := wasm.NewRuntime(ctx, logger, &wasm.RuntimeConfig{
		MemoryPages:  cfg.Wasm.MemoryPages,
		DebugEnabled: cfg.Wasm.Debug,
		CacheDir:     cfg.Wasm.CacheDir,
	})
	if err != nil {
		return nil, err
	}

	binding := wasm.NewBinding(wasm.NewModuleLoader(runtime, logger, o.loader...), wasm.BindingConfig{
		Source: &wasm.FileModuleSource{Path: cfg.Wasm.ModulePath},
	}, logger)

	if _, err := binding.Instantiate(ctx); err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}
	return NewWasmBackend(binding, runtime), nil
}

// NewWithBackend builds a client over an existing backend.
func NewWithBackend(backend Backend, logger *zap.Logger) *Client {
	logger = logger.With(zap.String("component", "bls-client"))
	logger.Info("BLS client ready", zap.String("backend", backend.Name()))

	return &Client{backend: backend, logger: logger}
}

// Backend names the active backend.
func (c *Client) Backend() string {
	return c.backend.Name()
}

// Synchronous is the blocking form of the Wasm operations, for callers that
// do not want a pending result.
type Synchronous interface {
	GenerateKey(ctx context.Context) ([]byte, error)
	GetPublicKey(ctx context.Context, sk []byte) ([]byte, error)
	Sign(ctx context.Context, sk, msg []byte) ([]byte, error)
	Verify(ctx context.Context, pk, sig, msg []byte) (bool, error)
}

// Synchronous returns the Wasm binding behind c. It reports false for the
// native backend, whose calls cannot run on the caller's goroutine.
func (c *Client) Synchronous() (Synchronous, bool) {
	w, ok := c.backend.(*wasmBackend)
	if !ok {
		return nil, false
	}
	return w.binding, true
}

// Close releases the backend.
func (c *Client) Close(ctx context.Context) error {
	return c.backend.Close(ctx)
}

// Message returns the bytes of a message given as bytes or text.
func Message[V ~[]byte | ~string](v V) []byte {
	return codec.Encode(v)
}

// GeneratePrivateKeyRandom creates a private key from a random source.
func (c *Client) GeneratePrivateKeyRandom(ctx context.Context) *pending.Pending[[]byte] {
	return c.backend.GeneratePrivateKeyRandom(ctx)
}

// GeneratePrivateKeySeed derives a private key from seed.
func (c *Client) GeneratePrivateKeySeed(ctx context.Context, seed []byte) *pending.Pending[[]byte] {
	return c.backend.GeneratePrivateKeySeed(ctx, seed)
}

// GetPublicKey derives the public key of sk.
func (c *Client) GetPublicKey(ctx context.Context, sk []byte) *pending.Pending[[]byte] {
	return c.backend.GetPublicKey(ctx, sk)
}

// Sign signs msg with sk.
func (c *Client) Sign(ctx context.Context, sk, msg []byte) *pending.Pending[[]byte] {
	return c.backend.Sign(ctx, sk, msg)
}

// Verify checks sig over msg against pk.
func (c *Client) Verify(ctx context.Context, pk, sig, msg []byte) *pending.Pending[bool] {
	return c.backend.Verify(ctx, pk, sig, msg)
}

// GetRandom returns n random bytes.
func (c *Client) GetRandom(ctx context.Context, n uint64) *pending.Pending[[]byte] {
	return c.backend.GetRandom(ctx, n)
}
