package bridgetest

import (
	"crypto/rand"
	"io"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/woxQAQ/bls-bridge/internal/codec"
	"github.com/woxQAQ/bls-bridge/internal/native"
)

// FakeLibrary implements the native symbol table in Go. Returned regions are
// Go memory laid out exactly like the library's length-prefixed buffers.
type FakeLibrary struct {
	// Random feeds generate_private_key_random and get_random. Defaults to
	// crypto/rand.
	Random io.Reader
	// VerifyResult, when non-zero, replaces every verify result.
	VerifyResult uint8
	// NullResults names symbols that return a null pointer.
	NullResults map[string]bool
	// PanicOn names symbols that panic instead of returning.
	PanicOn map[string]bool

	calls    atomic.Int64
	nullArgs atomic.Int64
	mu       sync.Mutex
}

// Calls reports how many symbols were invoked.
func (f *FakeLibrary) Calls() int64 {
	return f.calls.Load()
}

// NullArguments reports how many buffer arguments arrived as null pointers.
func (f *FakeLibrary) NullArguments() int64 {
	return f.nullArgs.Load()
}

// Symbols binds the fake as a native symbol table.
func (f *FakeLibrary) Symbols() *native.Symbols {
	return &native.Symbols{
		GeneratePrivateKeyRandom: func() unsafe.Pointer {
			return f.result("generate_private_key_random", f.random(KeySize))
		},
		GeneratePrivateKeySeed: func(seed *byte, n uintptr) unsafe.Pointer {
			return f.result("generate_private_key_seed", ToySeedKey(f.view(seed, n)))
		},
		GetPublicKey: func(sk *byte, n uintptr) unsafe.Pointer {
			return f.result("get_public_key", ToyPublicKey(f.view(sk, n)))
		},
		GetRandom: func(n uintptr) unsafe.Pointer {
			return f.result("get_random", f.random(int(n)))
		},
		Sign: func(sk *byte, skLen uintptr, msg *byte, msgLen uintptr) unsafe.Pointer {
			return f.result("sign", ToySign(f.view(sk, skLen), f.view(msg, msgLen)))
		},
		Verify: func(pk *byte, pkLen uintptr, sig *byte, sigLen uintptr, msg *byte, msgLen uintptr) uint8 {
			f.enter("verify")
			if f.VerifyResult != 0 {
				return f.VerifyResult
			}
			return ToyVerify(f.view(pk, pkLen), f.view(sig, sigLen), f.view(msg, msgLen))
		},
	}
}

func (f *FakeLibrary) enter(symbol string) {
	f.calls.Add(1)
	if f.PanicOn[symbol] {
		panic("fake library: " + symbol + " aborted")
	}
}

func (f *FakeLibrary) result(symbol string, payload []byte) unsafe.Pointer {
	f.enter(symbol)
	if f.NullResults[symbol] {
		return nil
	}
	region := codec.AppendLengthPrefixed(nil, payload)
	return unsafe.Pointer(&region[0])
}

func (f *FakeLibrary) random(n int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	r := f.Random
	if r == nil {
		r = rand.Reader
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(err)
	}
	return out
}

// view reads an argument buffer and counts null pointers.
func (f *FakeLibrary) view(p *byte, n uintptr) []byte {
	if p == nil {
		f.nullArgs.Add(1)
		return nil
	}
	return unsafe.Slice(p, n)
}
