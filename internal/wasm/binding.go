package wasm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/bls-bridge/internal/symbols"
)

// Expected is the shape of every export as this package calls it.
var Expected = []symbols.Symbol{
	{Name: "__wbindgen_malloc", Parameters: []string{"i32", "i32"}, Result: "i32"},
	{Name: "__wbindgen_free", Parameters: []string{"i32", "i32"}},
	{Name: "__wbindgen_add_to_stack_pointer", Parameters: []string{"i32"}, Result: "i32"},
	{Name: "__wbindgen_exn_store", Parameters: []string{"i32"}},
	{Name: "generate_key", Parameters: []string{"i32"}},
	{Name: "get_public_key", Parameters: []string{"i32", "i32", "i32"}},
	{Name: "sign", Parameters: []string{"i32", "i32", "i32", "i32", "i32"}},
	{Name: "verify", Parameters: []string{"i32", "i32", "i32", "i32", "i32", "i32"}, Result: "i32"},
}

// BindingConfig describes what a Binding instantiates.
type BindingConfig struct {
	Source ModuleSource

	// Environment seen by the guest. Defaults to crypto/rand randomness.
	Environment *Environment

	// Manifest to check exports against. Defaults to the embedded one.
	Manifest *symbols.Manifest
}

// Binding exposes the blst_deno exports as Go calls. The guest is
// instantiated once, on first use, and every call is serialised. Calls look
// the instance up in the runtime, so closing the runtime ends the binding.
type Binding struct {
	loader *ModuleLoader
	config BindingConfig
	logger *zap.Logger

	once       sync.Once
	instanceID string
	err        error
	ready      atomic.Bool

	mu sync.Mutex
}

// NewBinding creates a binding; nothing is compiled until Instantiate.
func NewBinding(loader *ModuleLoader, config BindingConfig, logger *zap.Logger) *Binding {
	return &Binding{
		loader: loader,
		config: config,
		logger: logger.With(zap.String("component", "wasm-binding")),
	}
}

// Instantiate compiles and instantiates the guest. Concurrent and repeated
// calls return the same instance, or the same error. Once the instance has
// been closed an InstanceClosedError is returned.
func (b *Binding) Instantiate(ctx context.Context) (*Instance, error) {
	b.once.Do(func() {
		var inst *Instance
		inst, b.err = b.instantiate(ctx)
		if b.err != nil {
			b.logger.Error("Wasm instantiation failed", zap.Error(b.err))
			return
		}
		b.instanceID = inst.ID
		b.ready.Store(true)
	})
	if b.err != nil {
		return nil, b.err
	}

	inst, ok := b.loader.Runtime().GetInstance(b.instanceID)
	if !ok {
		return nil, &InstanceClosedError{InstanceID: b.instanceID}
	}
	return inst, nil
}

func (b *Binding) instantiate(ctx context.Context) (*Instance, error) {
	if b.config.Source == nil {
		return nil, fmt.Errorf("wasm binding has no module source")
	}

	manifest := b.config.Manifest
	if manifest == nil {
		var err error
		if manifest, err = symbols.Default(); err != nil {
			return nil, err
		}
	}
	if err := manifest.RequireAll(symbols.Wasm, Expected); err != nil {
		return nil, err
	}

	compiled, err := b.loader.LoadModule(ctx, b.config.Source)
	if err != nil {
		return nil, err
	}

	manager := NewInstanceManager(b.loader.Runtime(), manifest, b.logger)
	return manager.Instantiate(ctx, &InstanceConfig{
		ModuleName:  compiled.Name,
		Environment: b.config.Environment,
	})
}

// Instantiated reports whether the guest has been instantiated successfully
// and is still open.
func (b *Binding) Instantiated() bool {
	if !b.ready.Load() {
		return false
	}
	_, ok := b.loader.Runtime().GetInstance(b.instanceID)
	return ok
}

// GenerateKey returns a private key drawn from the host crypto object.
func (b *Binding) GenerateKey(ctx context.Context) ([]byte, error) {
	return b.callBuffer(ctx, "generate_key")
}

// GetPublicKey derives the public key of sk.
func (b *Binding) GetPublicKey(ctx context.Context, sk []byte) ([]byte, error) {
	return b.callBuffer(ctx, "get_public_key", sk)
}

// Sign signs msg with sk.
func (b *Binding) Sign(ctx context.Context, sk, msg []byte) ([]byte, error) {
	return b.callBuffer(ctx, "sign", sk, msg)
}

// Verify checks sig over msg against pk. A result other than 0 or 1 is a
// ProtocolError.
func (b *Binding) Verify(ctx context.Context, pk, sig, msg []byte) (bool, error) {
	res, err := b.call(ctx, "verify", nil, pk, sig, msg)
	if err != nil {
		return false, err
	}

	switch r := api.DecodeI32(res[0]); r {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		b.logger.Error("Unexpected verify result", zap.Int32("result", r))
		return false, &ProtocolError{
			Export:  "verify",
			Message: fmt.Sprintf("returned %d, want 0 or 1", r),
		}
	}
}

// callBuffer runs an export whose result is written through a retptr.
func (b *Binding) callBuffer(ctx context.Context, export string, inputs ...[]byte) ([]byte, error) {
	var out []byte
	_, err := b.call(ctx, export, &out, inputs...)
	return out, err
}

// call passes inputs into guest memory and invokes export. When out is
// non-nil a retptr is prepended to the arguments and the result buffer is
// copied into *out. A done ctx fails the call before it reaches the guest;
// once running, a call is never interrupted.
func (b *Binding) call(ctx context.Context, export string, out *[]byte, inputs ...[]byte) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inst, err := b.Instantiate(ctx)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	mem := inst.Memory()

	pass := func(params []uint64) ([]uint64, error) {
		for _, in := range inputs {
			ptr, n, err := mem.WriteBytes(ctx, in)
			if err != nil {
				return nil, err
			}
			params = append(params, uint64(ptr), uint64(n))
		}
		return inst.Call(ctx, export, params...)
	}

	if out == nil {
		return pass(nil)
	}

	var res []uint64
	*out, err = mem.WithReturn(ctx, func(retptr uint32) error {
		var err error
		res, err = pass([]uint64{uint64(retptr)})
		return err
	})
	return res, err
}
