package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// retptrSize is the scratch area an export writes its (ptr, len) result to.
const retptrSize = 16

// Memory moves buffers in and out of guest memory using the guest's own
// allocator. Inputs are owned by the guest once passed; outputs are copied
// out and released right away.
type Memory struct {
	mem    api.Memory
	malloc api.Function
	free   api.Function
	stack  api.Function
}

// NewMemory binds the allocator exports of module.
func NewMemory(module api.Module) (*Memory, error) {
	m := &Memory{
		mem:    module.Memory(),
		malloc: module.ExportedFunction("__wbindgen_malloc"),
		free:   module.ExportedFunction("__wbindgen_free"),
		stack:  module.ExportedFunction("__wbindgen_add_to_stack_pointer"),
	}

	if m.mem == nil {
		return nil, &FunctionNotFoundError{ModuleName: module.Name(), FunctionName: "memory"}
	}
	for name, fn := range map[string]api.Function{
		"__wbindgen_malloc":               m.malloc,
		"__wbindgen_free":                 m.free,
		"__wbindgen_add_to_stack_pointer": m.stack,
	} {
		if fn == nil {
			return nil, &FunctionNotFoundError{ModuleName: module.Name(), FunctionName: name}
		}
	}

	return m, nil
}

// WriteBytes copies data into a fresh guest allocation.
func (m *Memory) WriteBytes(ctx context.Context, data []byte) (uint32, uint32, error) {
	res, err := m.malloc.Call(ctx, uint64(len(data)), 1)
	if err != nil {
		return 0, 0, fmt.Errorf("__wbindgen_malloc(%d): %w", len(data), err)
	}

	ptr := api.DecodeU32(res[0])
	if !m.mem.Write(ptr, data) {
		return 0, 0, &MemoryAccessError{Operation: "write", Address: ptr, Length: uint32(len(data))}
	}
	return ptr, uint32(len(data)), nil
}

// ReadBytes copies length bytes at ptr out of guest memory.
func (m *Memory) ReadBytes(ptr, length uint32) ([]byte, error) {
	b, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read", Address: ptr, Length: length}
	}
	return append([]byte(nil), b...), nil
}

// Free releases a guest allocation.
func (m *Memory) Free(ctx context.Context, ptr, length uint32) error {
	if _, err := m.free.Call(ctx, uint64(ptr), uint64(length)); err != nil {
		return fmt.Errorf("__wbindgen_free(%d, %d): %w", ptr, length, err)
	}
	return nil
}

// WithReturn reserves the result scratch area on the guest shadow stack, runs
// fn with its address, then copies and frees the buffer the guest left there.
// The stack pointer is restored even when fn fails.
func (m *Memory) WithReturn(ctx context.Context, fn func(retptr uint32) error) (out []byte, err error) {
	res, err := m.stack.Call(ctx, api.EncodeI32(-retptrSize))
	if err != nil {
		return nil, fmt.Errorf("__wbindgen_add_to_stack_pointer: %w", err)
	}
	retptr := api.DecodeU32(res[0])

	defer func() {
		if _, restoreErr := m.stack.Call(ctx, api.EncodeI32(retptrSize)); restoreErr != nil && err == nil {
			err = fmt.Errorf("__wbindgen_add_to_stack_pointer: %w", restoreErr)
		}
	}()

	if err := fn(retptr); err != nil {
		return nil, err
	}

	ptr, ok := m.mem.ReadUint32Le(retptr)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read retptr", Address: retptr, Length: 4}
	}
	length, ok := m.mem.ReadUint32Le(retptr + 4)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read retptr", Address: retptr + 4, Length: 4}
	}

	out, err = m.ReadBytes(ptr, length)
	if err != nil {
		return nil, err
	}
	if err := m.Free(ctx, ptr, length); err != nil {
		return nil, err
	}
	return out, nil
}
