// Package native calls the blst_deno shared library through a foreign
// function interface. Every call runs on its own goroutine and resolves a
// pending.Pending exactly once.
package native

import (
	"fmt"
	"runtime"
	"unsafe"

	"go.uber.org/zap"

	"github.com/woxQAQ/bls-bridge/internal/codec"
	"github.com/woxQAQ/bls-bridge/internal/symbols"
	"github.com/woxQAQ/bls-bridge/pkg/pending"
)

// Symbols holds the library entry points as Go functions. Buffer arguments
// are passed as a pointer to the first byte and a length; buffer results are
// length-prefixed regions owned by the library.
type Symbols struct {
	GeneratePrivateKeyRandom func() unsafe.Pointer
	GeneratePrivateKeySeed   func(seed *byte, seedLen uintptr) unsafe.Pointer
	GetPublicKey             func(sk *byte, skLen uintptr) unsafe.Pointer
	GetRandom                func(n uintptr) unsafe.Pointer
	Sign                     func(sk *byte, skLen uintptr, msg *byte, msgLen uintptr) unsafe.Pointer
	Verify                   func(pk *byte, pkLen uintptr, sig *byte, sigLen uintptr, msg *byte, msgLen uintptr) uint8
}

// Expected is the shape of every symbol as this package calls it. Load
// refuses a manifest that disagrees.
var Expected = []symbols.Symbol{
	{Name: "generate_private_key_random", Parameters: []string{}, Result: "buffer", Nonblocking: true},
	{Name: "generate_private_key_seed", Parameters: []string{"buffer", "usize"}, Result: "buffer", Nonblocking: true},
	{Name: "get_public_key", Parameters: []string{"buffer", "usize"}, Result: "buffer", Nonblocking: true},
	{Name: "get_random", Parameters: []string{"usize"}, Result: "buffer", Nonblocking: true},
	{Name: "sign", Parameters: []string{"buffer", "usize", "buffer", "usize"}, Result: "buffer", Nonblocking: true},
	{Name: "verify", Parameters: []string{"buffer", "usize", "buffer", "usize", "buffer", "usize"}, Result: "u8", Nonblocking: true},
}

// Config locates the shared library and its symbol manifest.
type Config struct {
	LibDir      string
	LibName     string
	SymbolsFile string
	// GOOS overrides runtime.GOOS when resolving the file name.
	GOOS string
}

// Binding is a loaded native library. The library stays mapped for the life
// of the process; there is no Close.
type Binding struct {
	syms   *Symbols
	path   string
	logger *zap.Logger
}

// Load validates the symbol manifest, opens the library and binds every
// symbol. Any failure is fatal for this backend.
func Load(cfg Config, logger *zap.Logger) (*Binding, error) {
	logger = logger.With(zap.String("component", "native-binding"))

	manifest, err := symbols.Load(cfg.SymbolsFile)
	if err != nil {
		return nil, err
	}
	if err := manifest.RequireAll(symbols.Native, Expected); err != nil {
		return nil, err
	}

	name := cfg.LibName
	if name == "" {
		name = manifest.Library
	}
	goos := cfg.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	path, err := LibraryPath(cfg.LibDir, name, goos)
	if err != nil {
		return nil, err
	}

	lib, err := openLibrary(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	syms, err := bindSymbols(lib)
	if err != nil {
		return nil, err
	}

	logger.Info("Native library loaded",
		zap.String("path", path),
		zap.String("manifest", manifest.Source()),
	)

	return &Binding{syms: syms, path: path, logger: logger}, nil
}

// NewWithSymbols builds a binding over functions that are already bound.
func NewWithSymbols(syms *Symbols, logger *zap.Logger) (*Binding, error) {
	if syms == nil {
		return nil, fmt.Errorf("native symbols are nil")
	}

	missing := map[string]bool{
		"generate_private_key_random": syms.GeneratePrivateKeyRandom == nil,
		"generate_private_key_seed":   syms.GeneratePrivateKeySeed == nil,
		"get_public_key":              syms.GetPublicKey == nil,
		"get_random":                  syms.GetRandom == nil,
		"sign":                        syms.Sign == nil,
		"verify":                      syms.Verify == nil,
	}
	for _, sym := range Expected {
		if missing[sym.Name] {
			return nil, &SymbolNotFoundError{Symbol: sym.Name}
		}
	}

	return &Binding{
		syms:   syms,
		path:   "<in-process>",
		logger: logger.With(zap.String("component", "native-binding")),
	}, nil
}

// Path is the library file the binding was loaded from.
func (b *Binding) Path() string {
	return b.path
}

// GeneratePrivateKeyRandom creates a private key from the library's RNG.
func (b *Binding) GeneratePrivateKeyRandom() *pending.Pending[[]byte] {
	return pending.Go(func() ([]byte, error) {
		return b.buffer("generate_private_key_random", b.syms.GeneratePrivateKeyRandom())
	})
}

// GeneratePrivateKeySeed derives a private key from seed.
func (b *Binding) GeneratePrivateKeySeed(seed []byte) *pending.Pending[[]byte] {
	return pending.Go(func() ([]byte, error) {
		p, n := buf(seed)
		return b.buffer("generate_private_key_seed", b.syms.GeneratePrivateKeySeed(p, n))
	})
}

// GetPublicKey derives the public key of sk.
func (b *Binding) GetPublicKey(sk []byte) *pending.Pending[[]byte] {
	return pending.Go(func() ([]byte, error) {
		p, n := buf(sk)
		return b.buffer("get_public_key", b.syms.GetPublicKey(p, n))
	})
}

// GetRandom returns n bytes from the library's RNG.
func (b *Binding) GetRandom(n uint64) *pending.Pending[[]byte] {
	if uint64(uintptr(n)) != n {
		return pending.Failed[[]byte](&ProtocolError{
			Symbol:  "get_random",
			Message: fmt.Sprintf("length %d does not fit the platform word", n),
		})
	}

	return pending.Go(func() ([]byte, error) {
		return b.buffer("get_random", b.syms.GetRandom(uintptr(n)))
	})
}

// Sign signs msg with sk.
func (b *Binding) Sign(sk, msg []byte) *pending.Pending[[]byte] {
	return pending.Go(func() ([]byte, error) {
		skp, skn := buf(sk)
		mp, mn := buf(msg)
		return b.buffer("sign", b.syms.Sign(skp, skn, mp, mn))
	})
}

// Verify checks sig over msg against pk. A result other than 0 or 1 is a
// ProtocolError.
func (b *Binding) Verify(pk, sig, msg []byte) *pending.Pending[bool] {
	return pending.Go(func() (bool, error) {
		pkp, pkn := buf(pk)
		sp, sn := buf(sig)
		mp, mn := buf(msg)

		switch r := b.syms.Verify(pkp, pkn, sp, sn, mp, mn); r {
		case 1:
			return true, nil
		case 0:
			return false, nil
		default:
			b.logger.Error("Unexpected verify result", zap.Uint8("result", r))
			return false, &ProtocolError{
				Symbol:  "verify",
				Message: fmt.Sprintf("returned %d, want 0 or 1", r),
			}
		}
	})
}

func (b *Binding) buffer(symbol string, p unsafe.Pointer) ([]byte, error) {
	if p == nil {
		return nil, &ProtocolError{Symbol: symbol, Message: "returned a null pointer"}
	}

	out := codec.ReadPointer(p)
	b.logger.Debug("Native call returned",
		zap.String("symbol", symbol),
		zap.Int("bytes", len(out)),
	)
	return out, nil
}

// zeroByte backs empty arguments; the library builds a slice from every
// pointer it is given and a null pointer is undefined behaviour there.
var zeroByte byte

// buf splits b into the pointer and length pair the library expects. An
// empty b is passed as a valid pointer with length 0, never as null.
func buf(b []byte) (*byte, uintptr) {
	if len(b) == 0 {
		return &zeroByte, 0
	}
	return unsafe.SliceData(b), uintptr(len(b))
}
