package wasm

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/bls-bridge/internal/heap"
)

// MaxRandomValues is the largest buffer crypto.getRandomValues fills in one
// call, matching the WebCrypto quota.
const MaxRandomValues = 65536

// ReferenceError is raised when the guest reads a global that is not defined.
type ReferenceError struct {
	Name string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("ReferenceError: %s is not defined", e.Name)
}

// TypeError is raised when a host operation is applied to the wrong kind of
// value.
type TypeError struct {
	Message string
}

func (e *TypeError) Error() string {
	return "TypeError: " + e.Message
}

// QuotaExceededError is raised when getRandomValues is asked for more than
// MaxRandomValues bytes.
type QuotaExceededError struct {
	Length int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("QuotaExceededError: requested %d random bytes, limit is %d", e.Length, MaxRandomValues)
}

// Environment is the set of globals visible to the guest. Only globalThis is
// defined; it exposes crypto and nothing that identifies a Node.js process.
type Environment struct {
	global *globalScope
}

// NewEnvironment builds an environment whose crypto object draws from random.
// A nil reader means crypto/rand.
func NewEnvironment(random io.Reader) *Environment {
	if random == nil {
		random = rand.Reader
	}
	return &Environment{
		global: &globalScope{crypto: &cryptoObject{random: random}},
	}
}

// Host object kinds as seen through the heap table.
type (
	globalScope struct {
		crypto *cryptoObject
	}

	cryptoObject struct {
		mu     sync.Mutex
		random io.Reader
	}

	// memoryObject is WebAssembly.Memory of the calling guest.
	memoryObject struct {
		mem api.Memory
	}

	// arrayBuffer is either the guest memory or a host-owned allocation.
	arrayBuffer struct {
		mem  api.Memory
		data []byte
	}

	// uint8Array is a window of length bytes at offset into buf.
	uint8Array struct {
		buf    *arrayBuffer
		offset uint32
		length uint32
	}

	jsFunction struct {
		body string
	}

	jsString string
)

func (b *arrayBuffer) size() uint32 {
	if b.mem != nil {
		return b.mem.Size()
	}
	return uint32(len(b.data))
}

func (a *uint8Array) bytes() ([]byte, error) {
	if a.buf.mem == nil {
		return a.buf.data[a.offset : a.offset+a.length], nil
	}
	// Guest views are resolved on every access since memory may have grown.
	b, ok := a.buf.mem.Read(a.offset, a.length)
	if !ok {
		return nil, &TypeError{Message: fmt.Sprintf("view [%d, %d) is outside guest memory", a.offset, a.offset+a.length)}
	}
	return b, nil
}

// lookupGlobal resolves a bare identifier.
func (e *Environment) lookupGlobal(name string) (heap.Value, error) {
	if name == "globalThis" {
		return heap.Object(e.global), nil
	}
	return heap.Undefined(), &ReferenceError{Name: name}
}

// property reads obj[name].
func (e *Environment) property(obj heap.Value, name string) (heap.Value, error) {
	if obj.IsUndefined() || obj.IsNull() {
		return heap.Undefined(), &TypeError{
			Message: fmt.Sprintf("Cannot read properties of %s (reading '%s')", obj.Kind(), name),
		}
	}

	switch o := obj.Object().(type) {
	case *globalScope:
		switch name {
		case "crypto":
			return heap.Object(o.crypto), nil
		case "globalThis":
			return obj, nil
		}
	case *memoryObject:
		if name == "buffer" {
			return heap.Object(&arrayBuffer{mem: o.mem}), nil
		}
	case *uint8Array:
		if name == "buffer" {
			return heap.Object(o.buf), nil
		}
	}
	return heap.Undefined(), nil
}

func isObject(v heap.Value) bool {
	switch v.Kind() {
	case heap.KindError:
		return true
	case heap.KindObject:
		switch v.Object().(type) {
		case jsString, *jsFunction:
			return false
		}
		return true
	}
	return false
}

func isString(v heap.Value) bool {
	_, ok := v.Object().(jsString)
	return ok
}

func isFunction(v heap.Value) bool {
	_, ok := v.Object().(*jsFunction)
	return ok
}

// call invokes fn with the given receiver. The only body the environment can
// evaluate is "return this", which js-sys uses as a last resort to find the
// global object.
func (e *Environment) call(fn, this heap.Value, args ...heap.Value) (heap.Value, error) {
	f, ok := fn.Object().(*jsFunction)
	if !ok {
		return heap.Undefined(), &TypeError{Message: "value is not a function"}
	}
	if f.body != "return this" {
		return heap.Undefined(), &TypeError{Message: fmt.Sprintf("cannot evaluate function body %q", f.body)}
	}
	if this.IsUndefined() || this.IsNull() {
		return heap.Object(e.global), nil
	}
	return this, nil
}

// newUint8Array implements new Uint8Array(src) for a buffer or an array.
func newUint8Array(src heap.Value) (*uint8Array, error) {
	switch s := src.Object().(type) {
	case *arrayBuffer:
		return &uint8Array{buf: s, length: s.size()}, nil
	case *uint8Array:
		b, err := s.bytes()
		if err != nil {
			return nil, err
		}
		data := append([]byte(nil), b...)
		return &uint8Array{buf: &arrayBuffer{data: data}, length: uint32(len(data))}, nil
	}
	return nil, &TypeError{Message: "Uint8Array source must be an ArrayBuffer or Uint8Array"}
}

func newUint8ArrayView(buf heap.Value, offset, length uint32) (*uint8Array, error) {
	b, ok := buf.Object().(*arrayBuffer)
	if !ok {
		return nil, &TypeError{Message: "Uint8Array view requires an ArrayBuffer"}
	}
	if uint64(offset)+uint64(length) > uint64(b.size()) {
		return nil, &TypeError{Message: fmt.Sprintf("view [%d, %d) exceeds buffer of %d bytes", offset, uint64(offset)+uint64(length), b.size())}
	}
	return &uint8Array{buf: b, offset: offset, length: length}, nil
}

func newUint8ArrayLength(length uint32) *uint8Array {
	return &uint8Array{buf: &arrayBuffer{data: make([]byte, length)}, length: length}
}

func asUint8Array(v heap.Value) (*uint8Array, error) {
	a, ok := v.Object().(*uint8Array)
	if !ok {
		return nil, &TypeError{Message: fmt.Sprintf("expected Uint8Array, got %s", v.Kind())}
	}
	return a, nil
}

// subarray clamps begin and end to the array like the JS method.
func (a *uint8Array) subarray(begin, end uint32) *uint8Array {
	end = min(end, a.length)
	begin = min(begin, end)
	return &uint8Array{buf: a.buf, offset: a.offset + begin, length: end - begin}
}

// set copies src into a starting at offset.
func (a *uint8Array) set(src *uint8Array, offset uint32) error {
	if uint64(offset)+uint64(src.length) > uint64(a.length) {
		return &TypeError{Message: "offset is out of bounds"}
	}
	from, err := src.bytes()
	if err != nil {
		return err
	}
	to, err := a.bytes()
	if err != nil {
		return err
	}
	copy(to[offset:], from)
	return nil
}

// fillRandom fills arr from the crypto object. quota enforces the WebCrypto
// limit; randomFillSync has none.
func fillRandom(cryptoVal, arrVal heap.Value, quota bool) error {
	c, ok := cryptoVal.Object().(*cryptoObject)
	if !ok {
		return &TypeError{Message: "receiver is not a Crypto object"}
	}
	arr, err := asUint8Array(arrVal)
	if err != nil {
		return err
	}
	if quota && arr.length > MaxRandomValues {
		return &QuotaExceededError{Length: int(arr.length)}
	}

	dst, err := arr.bytes()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := io.ReadFull(c.random, dst); err != nil {
		return fmt.Errorf("crypto.getRandomValues: %w", err)
	}
	return nil
}
