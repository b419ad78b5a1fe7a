package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/woxQAQ/bls-bridge/internal/codec"
	"github.com/woxQAQ/bls-bridge/internal/heap"
)

// ImportModule is the module name wasm-bindgen gives host imports.
const ImportModule = "__wbindgen_placeholder__"

const exnStoreExport = "__wbindgen_exn_store"

// Host implements the wasm-bindgen import surface over a heap table. Host
// values reach the guest only as table indices.
//
// Host is not safe for concurrent use; the binding serialises guest calls.
type Host struct {
	table  *heap.Table
	env    *Environment
	logger *zap.Logger

	// Exceptions stored during the current export call.
	exceptions []uint32
	// Message passed to __wbindgen_throw during the current export call.
	thrown string
}

// NewHost creates the import surface for env.
func NewHost(env *Environment, logger *zap.Logger) *Host {
	return &Host{
		table:  heap.NewTable(),
		env:    env,
		logger: logger.With(zap.String("component", "wasm-host")),
	}
}

// Table exposes the heap table, mainly for leak checks.
func (h *Host) Table() *heap.Table {
	return h.table
}

// thrownError unwinds the guest when it calls __wbindgen_throw.
type thrownError struct {
	message string
}

func (e *thrownError) Error() string {
	return e.message
}

// beginCall resets per-call exception state.
func (h *Host) beginCall() {
	h.exceptions = h.exceptions[:0]
	h.thrown = ""
}

// endCall collects exceptions the guest stored but never dropped and
// releases their slots.
func (h *Host) endCall() (thrown string, uncaught []error) {
	for _, idx := range h.exceptions {
		// A dropped exception slot may since have been reused by another value.
		if !h.table.Live(idx) || h.table.Get(idx).Kind() != heap.KindError {
			continue
		}
		uncaught = append(uncaught, h.table.Take(idx).Err())
	}
	h.exceptions = h.exceptions[:0]
	return h.thrown, uncaught
}

// Instantiate registers every import under ImportModule in r.
func (h *Host) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	b := r.NewHostModuleBuilder(ImportModule)

	export := func(name string, fn any, params ...string) {
		b.NewFunctionBuilder().
			WithFunc(fn).
			WithParameterNames(params...).
			Export(name)
	}

	// Environment lookups.
	export("__wbg_self_1ff1d729e9aae938", h.globalGetter("self"))
	export("__wbg_window_5f4faef6c12b79ec", h.globalGetter("window"))
	export("__wbg_globalThis_1d39714405582d3c", h.globalGetter("globalThis"))
	export("__wbg_global_651f05c6a0944d1c", h.globalGetter("global"))
	export("__wbg_require_2784e593a4674877", h.globalGetter("module"))
	export("__wbg_crypto_58f13aa23ffcb166", h.propertyGetter("crypto"), "obj")
	export("__wbg_msCrypto_abcb1295e768d1f2", h.propertyGetter("msCrypto"), "obj")
	export("__wbg_process_5b786e71d465a513", h.propertyGetter("process"), "obj")
	export("__wbg_versions_c2ab80650590b6a2", h.propertyGetter("versions"), "obj")
	export("__wbg_node_523d7bd03ef69fba", h.propertyGetter("node"), "obj")
	export("__wbg_buffer_085ec1f694018c4f", h.propertyGetter("buffer"), "obj")

	// Type predicates.
	export("__wbindgen_is_object", h.predicate(isObject), "idx")
	export("__wbindgen_is_string", h.predicate(isString), "idx")
	export("__wbindgen_is_function", h.predicate(isFunction), "idx")
	export("__wbindgen_is_undefined", h.predicate(heap.Value.IsUndefined), "idx")

	// References.
	export("__wbindgen_object_drop_ref", h.dropRef, "idx")
	export("__wbindgen_object_clone_ref", h.cloneRef, "idx")

	// Randomness.
	export("__wbg_getRandomValues_504510b5564925af", h.getRandomValues, "crypto", "array")
	export("__wbg_randomFillSync_a0d98aa11c81fe89", h.randomFillSync, "crypto", "array")

	// Functions.
	export("__wbg_newnoargs_581967eacc0e2604", h.newFunction, "ptr", "len")
	export("__wbg_call_cb65541d95d71282", h.call0, "fn", "this")
	export("__wbg_call_01734de55d61e11d", h.call1, "fn", "this", "arg")

	// Typed arrays and memory.
	export("__wbindgen_memory", h.memory)
	export("__wbg_new_8125e318e6245eed", h.newArray, "src")
	export("__wbg_newwithlength_e5d69174d6984cd7", h.newArrayWithLength, "len")
	export("__wbg_newwithbyteoffsetandlength_6da8e527659b86aa", h.newArrayView, "buffer", "offset", "len")
	export("__wbg_subarray_13db269f57aa838d", h.subarray, "array", "begin", "end")
	export("__wbg_set_5cf90238115182c3", h.setArray, "dst", "src", "offset")

	// Strings and errors.
	export("__wbindgen_string_new", h.stringNew, "ptr", "len")
	export("__wbindgen_throw", h.throw, "ptr", "len")

	mod, err := b.Instantiate(ctx)
	if err != nil {
		return nil, &HostFunctionError{FunctionName: ImportModule, Err: err}
	}
	return mod, nil
}

// guard runs an import that may throw. A thrown error is pushed onto the
// heap and handed to the guest's exception store; the import then returns 0.
func (h *Host) guard(ctx context.Context, mod api.Module, name string, fn func() (uint32, error)) uint32 {
	ret, err := fn()
	if err == nil {
		return ret
	}

	idx := h.table.Push(heap.Error(err))
	h.exceptions = append(h.exceptions, idx)

	h.logger.Debug("Host import raised",
		zap.String("import", name),
		zap.Uint32("idx", idx),
		zap.Error(err),
	)

	store := mod.ExportedFunction(exnStoreExport)
	if store == nil {
		panic(&FunctionNotFoundError{ModuleName: mod.Name(), FunctionName: exnStoreExport})
	}
	if _, err := store.Call(ctx, uint64(idx)); err != nil {
		panic(err)
	}
	return 0
}

// push adds v to the table unless err is set.
func (h *Host) push(v heap.Value, err error) (uint32, error) {
	if err != nil {
		return 0, err
	}
	return h.table.Push(v), nil
}

// must panics with err, trapping the guest. Used for operations the generated
// bindings do not wrap in an exception handler.
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func (h *Host) globalGetter(name string) func(context.Context, api.Module) uint32 {
	return func(ctx context.Context, mod api.Module) uint32 {
		return h.guard(ctx, mod, name, func() (uint32, error) {
			return h.push(h.env.lookupGlobal(name))
		})
	}
}

func (h *Host) propertyGetter(name string) func(context.Context, uint32) uint32 {
	return func(_ context.Context, obj uint32) uint32 {
		return h.table.Push(must(h.env.property(h.table.Get(obj), name)))
	}
}

func (h *Host) predicate(fn func(heap.Value) bool) func(context.Context, uint32) uint32 {
	return func(_ context.Context, idx uint32) uint32 {
		if fn(h.table.Get(idx)) {
			return 1
		}
		return 0
	}
}

func (h *Host) dropRef(_ context.Context, idx uint32) {
	h.table.Drop(idx)
}

func (h *Host) cloneRef(_ context.Context, idx uint32) uint32 {
	return h.table.Push(h.table.Get(idx))
}

func (h *Host) getRandomValues(ctx context.Context, mod api.Module, crypto, array uint32) {
	h.guard(ctx, mod, "getRandomValues", func() (uint32, error) {
		return 0, fillRandom(h.table.Get(crypto), h.table.Get(array), true)
	})
}

func (h *Host) randomFillSync(ctx context.Context, mod api.Module, crypto, array uint32) {
	h.guard(ctx, mod, "randomFillSync", func() (uint32, error) {
		return 0, fillRandom(h.table.Get(crypto), h.table.Take(array), false)
	})
}

func (h *Host) newFunction(_ context.Context, mod api.Module, ptr, length uint32) uint32 {
	body := must(readString(mod, ptr, length))
	return h.table.Push(heap.Object(&jsFunction{body: body}))
}

func (h *Host) call0(ctx context.Context, mod api.Module, fn, this uint32) uint32 {
	return h.guard(ctx, mod, "call", func() (uint32, error) {
		return h.push(h.env.call(h.table.Get(fn), h.table.Get(this)))
	})
}

func (h *Host) call1(ctx context.Context, mod api.Module, fn, this, arg uint32) uint32 {
	return h.guard(ctx, mod, "call", func() (uint32, error) {
		return h.push(h.env.call(h.table.Get(fn), h.table.Get(this), h.table.Get(arg)))
	})
}

func (h *Host) memory(_ context.Context, mod api.Module) uint32 {
	return h.table.Push(heap.Object(&memoryObject{mem: mod.Memory()}))
}

func (h *Host) newArray(_ context.Context, src uint32) uint32 {
	return h.table.Push(heap.Object(must(newUint8Array(h.table.Get(src)))))
}

func (h *Host) newArrayWithLength(_ context.Context, length uint32) uint32 {
	return h.table.Push(heap.Object(newUint8ArrayLength(length)))
}

func (h *Host) newArrayView(_ context.Context, buffer, offset, length uint32) uint32 {
	return h.table.Push(heap.Object(must(newUint8ArrayView(h.table.Get(buffer), offset, length))))
}

func (h *Host) subarray(_ context.Context, array, begin, end uint32) uint32 {
	a := must(asUint8Array(h.table.Get(array)))
	return h.table.Push(heap.Object(a.subarray(begin, end)))
}

func (h *Host) setArray(_ context.Context, dst, src, offset uint32) {
	to := must(asUint8Array(h.table.Get(dst)))
	from := must(asUint8Array(h.table.Get(src)))
	if err := to.set(from, offset); err != nil {
		panic(err)
	}
}

func (h *Host) stringNew(_ context.Context, mod api.Module, ptr, length uint32) uint32 {
	return h.table.Push(heap.Object(jsString(must(readString(mod, ptr, length)))))
}

func (h *Host) throw(_ context.Context, mod api.Module, ptr, length uint32) {
	msg, err := readString(mod, ptr, length)
	if err != nil {
		msg = fmt.Sprintf("<unreadable message: %v>", err)
	}
	h.thrown = msg
	panic(&thrownError{message: msg})
}

// readString decodes length bytes of guest memory at ptr as UTF-8.
func readString(mod api.Module, ptr, length uint32) (string, error) {
	b, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return "", &MemoryAccessError{Operation: "read string", Address: ptr, Length: length}
	}
	return codec.Decode(b)
}
