// Package heap implements the indirection table that lets a WebAssembly guest
// refer to host values by integer index.
//
// Indices 0-3 hold the sentinels undefined, null, true and false. Indices up
// to ReservedEnd-1 are never handed out or recycled. Slots 128-131 repeat the
// sentinels because the wasm-bindgen ABI addresses them there; slots 4-127 are
// the borrowed-reference stack and read as undefined.
//
// A Table is not safe for concurrent use.
package heap

const (
	// SentinelAliasBase is where wasm-bindgen guests expect the sentinels.
	SentinelAliasBase = 128

	// ReservedEnd is the first index that may be allocated.
	ReservedEnd = 132
)

var sentinels = [4]Value{Undefined(), Null(), Bool(true), Bool(false)}

type slot struct {
	value Value
	next  uint32
	live  bool
}

// Table is an append/reuse arena of host values with an intrusive free list.
type Table struct {
	slots []slot
	next  uint32
	live  int
}

// NewTable creates a table containing only the reserved region.
func NewTable() *Table {
	t := &Table{
		slots: make([]slot, ReservedEnd, ReservedEnd+32),
		next:  ReservedEnd,
	}
	for i, v := range sentinels {
		t.slots[i] = slot{value: v, live: true}
		t.slots[SentinelAliasBase+i] = slot{value: v, live: true}
	}
	return t
}

// Push stores v and returns its index, reusing a freed slot when available.
func (t *Table) Push(v Value) uint32 {
	if int(t.next) == len(t.slots) {
		t.slots = append(t.slots, slot{next: t.next + 1})
	}

	idx := t.next
	t.next = t.slots[idx].next
	t.slots[idx] = slot{value: v, live: true}
	t.live++
	return idx
}

// Get returns the value at idx without releasing it. Free or unknown indices
// yield undefined.
func (t *Table) Get(idx uint32) Value {
	if int(idx) >= len(t.slots) {
		return Undefined()
	}
	s := t.slots[idx]
	if !s.live {
		return Undefined()
	}
	return s.value
}

// Take returns the value at idx and releases the slot.
func (t *Table) Take(idx uint32) Value {
	v := t.Get(idx)
	t.Drop(idx)
	return v
}

// Drop releases idx. Reserved, free and unknown indices are ignored.
func (t *Table) Drop(idx uint32) {
	if idx < ReservedEnd || int(idx) >= len(t.slots) || !t.slots[idx].live {
		return
	}
	t.slots[idx] = slot{next: t.next}
	t.next = idx
	t.live--
}

// Live reports whether idx currently holds a value.
func (t *Table) Live(idx uint32) bool {
	return int(idx) < len(t.slots) && t.slots[idx].live
}

// Len returns the number of live values outside the reserved region.
func (t *Table) Len() int {
	return t.live
}
