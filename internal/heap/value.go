package heap

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindError
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindError:
		return "error"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a host value as seen by the guest: one of the sentinels, an error
// captured from a host call, or an opaque host object.
type Value struct {
	kind Kind
	b    bool
	err  error
	obj  any
}

// Undefined returns the undefined sentinel. It is also the zero Value.
func Undefined() Value { return Value{} }

// Null returns the null sentinel.
func Null() Value { return Value{kind: KindNull} }

// Bool returns the true or false sentinel.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Error wraps an error raised by a host operation.
func Error(err error) Value { return Value{kind: KindError, err: err} }

// Object wraps an opaque host object. A nil object is undefined.
func Object(obj any) Value {
	if obj == nil {
		return Undefined()
	}
	return Value{kind: KindObject, obj: obj}
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is the undefined sentinel.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNull reports whether v is the null sentinel.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean held by v and whether v is a boolean at all.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Err returns the captured error, or nil.
func (v Value) Err() error { return v.err }

// Object returns the wrapped host object, or nil.
func (v Value) Object() any { return v.obj }
