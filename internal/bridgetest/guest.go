package bridgetest

import (
	"strings"
	"sync"
	"text/template"

	"github.com/wippyai/wasm-runtime/wat"
)

// ImportModule is the module name wasm-bindgen gives the host imports.
const ImportModule = "__wbindgen_placeholder__"

// GuestOptions alters the generated guest.
type GuestOptions struct {
	// VerifyResult, when non-zero, replaces every verify result.
	VerifyResult int32
}

var (
	guestOnce  sync.Once
	guestBytes []byte
)

// Guest returns the default guest module binary.
func Guest() []byte {
	guestOnce.Do(func() {
		guestBytes = BuildGuest(GuestOptions{})
	})
	return guestBytes
}

// BuildGuest assembles a guest exporting the blst_deno surface plus
// live_allocations, which reports how many guest allocations have not been
// freed. It panics if the generated source does not compile.
//
// generate_key looks up the global scope the way js-sys does (self first,
// globalThis when self throws), asks for crypto and fills the key through a
// Uint8Array view over guest memory. A failure in getRandomValues leaves the
// stored exception in the heap and traps.
func BuildGuest(opts GuestOptions) []byte {
	bin, err := wat.Compile(GuestSource(opts))
	if err != nil {
		panic("bridgetest: guest does not compile: " + err.Error())
	}
	return bin
}

// GuestSource renders the guest as WebAssembly text.
func GuestSource(opts GuestOptions) string {
	var sb strings.Builder
	err := guestTemplate.Execute(&sb, struct {
		Import       string
		KeySize      int
		Mask         int
		Message      string
		VerifyResult int32
	}{
		Import:       ImportModule,
		KeySize:      KeySize,
		Mask:         pkMask,
		Message:      cryptoMissing,
		VerifyResult: opts.VerifyResult,
	})
	if err != nil {
		panic(err)
	}
	return sb.String()
}

const cryptoMissing = "crypto unavailable"

var guestTemplate = template.Must(template.New("guest").Parse(`
(module
  (import "{{.Import}}" "__wbg_self_1ff1d729e9aae938" (func $js_self (result i32)))
  (import "{{.Import}}" "__wbg_globalThis_1d39714405582d3c" (func $js_global_this (result i32)))
  (import "{{.Import}}" "__wbg_crypto_58f13aa23ffcb166" (func $js_crypto (param i32) (result i32)))
  (import "{{.Import}}" "__wbindgen_is_object" (func $js_is_object (param i32) (result i32)))
  (import "{{.Import}}" "__wbindgen_object_drop_ref" (func $js_drop_ref (param i32)))
  (import "{{.Import}}" "__wbindgen_memory" (func $js_memory (result i32)))
  (import "{{.Import}}" "__wbg_buffer_085ec1f694018c4f" (func $js_buffer (param i32) (result i32)))
  (import "{{.Import}}" "__wbg_newwithbyteoffsetandlength_6da8e527659b86aa" (func $js_new_view (param i32 i32 i32) (result i32)))
  (import "{{.Import}}" "__wbg_getRandomValues_504510b5564925af" (func $js_get_random_values (param i32 i32)))
  (import "{{.Import}}" "__wbindgen_throw" (func $js_throw (param i32 i32)))
  (import "{{.Import}}" "__wbg_process_5b786e71d465a513" (func $js_process (param i32) (result i32)))

  (memory (export "memory") 16)

  ;; Shadow stack grows down from 1024; the bump heap starts at 4096.
  (global $sp (mut i32) (i32.const 1024))
  (global $top (mut i32) (i32.const 4096))
  (global $live (mut i32) (i32.const 0))
  (global $exn_flag (mut i32) (i32.const 0))
  (global $exn_idx (mut i32) (i32.const 0))

  (data (i32.const 512) "{{.Message}}")

  ;; Bump allocator that rewinds when nothing is live.
  (func $malloc (export "__wbindgen_malloc") (param $len i32) (param $align i32) (result i32)
    (local $ptr i32)
    (if (i32.eqz (global.get $live))
      (then (global.set $top (i32.const 4096))))
    (local.set $ptr (global.get $top))
    (global.set $top (i32.add (global.get $top) (local.get $len)))
    (global.set $live (i32.add (global.get $live) (i32.const 1)))
    (local.get $ptr))

  (func $free (export "__wbindgen_free") (param $ptr i32) (param $len i32)
    (global.set $live (i32.sub (global.get $live) (i32.const 1))))

  (func (export "__wbindgen_add_to_stack_pointer") (param $delta i32) (result i32)
    (global.set $sp (i32.add (global.get $sp) (local.get $delta)))
    (global.get $sp))

  (func (export "__wbindgen_exn_store") (param $idx i32)
    (global.set $exn_flag (i32.const 1))
    (global.set $exn_idx (local.get $idx)))

  (func (export "live_allocations") (result i32)
    (global.get $live))

  ;; 32-bit FNV-1a.
  (func $fnv (param $ptr i32) (param $len i32) (result i32)
    (local $h i32) (local $i i32)
    (local.set $h (i32.const 0x811c9dc5))
    (block $done
      (loop $next
        (br_if $done (i32.ge_u (local.get $i) (local.get $len)))
        (local.set $h
          (i32.mul
            (i32.xor (local.get $h) (i32.load8_u (i32.add (local.get $ptr) (local.get $i))))
            (i32.const 16777619)))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $next)))
    (local.get $h))

  ;; Byte i&3 of h, in the low bits.
  (func $hash_byte (param $h i32) (param $i i32) (result i32)
    (i32.shr_u (local.get $h)
      (i32.shl (i32.and (local.get $i) (i32.const 3)) (i32.const 3))))

  (func (export "generate_key") (param $retptr i32)
    (local $scope i32) (local $crypto i32) (local $proc i32) (local $out i32)
    (local $mem i32) (local $buf i32) (local $view i32)
    (global.set $exn_flag (i32.const 0))
    (local.set $scope (call $js_self))
    (if (global.get $exn_flag)
      (then
        (call $js_drop_ref (global.get $exn_idx))
        (global.set $exn_flag (i32.const 0))
        (local.set $scope (call $js_global_this))))
    (local.set $proc (call $js_process (local.get $scope)))
    (drop (call $js_is_object (local.get $proc)))
    (call $js_drop_ref (local.get $proc))
    (local.set $crypto (call $js_crypto (local.get $scope)))
    (call $js_drop_ref (local.get $scope))
    (if (i32.eqz (call $js_is_object (local.get $crypto)))
      (then
        (call $js_drop_ref (local.get $crypto))
        (call $js_throw (i32.const 512) (i32.const {{len .Message}}))
        (unreachable)))
    (local.set $out (call $malloc (i32.const {{.KeySize}}) (i32.const 1)))
    (local.set $mem (call $js_memory))
    (local.set $buf (call $js_buffer (local.get $mem)))
    (call $js_drop_ref (local.get $mem))
    (local.set $view (call $js_new_view (local.get $buf) (local.get $out) (i32.const {{.KeySize}})))
    (call $js_drop_ref (local.get $buf))
    (global.set $exn_flag (i32.const 0))
    (call $js_get_random_values (local.get $crypto) (local.get $view))
    (call $js_drop_ref (local.get $view))
    (call $js_drop_ref (local.get $crypto))
    (if (global.get $exn_flag)
      (then
        (call $free (local.get $out) (i32.const {{.KeySize}}))
        (unreachable)))
    (i32.store (local.get $retptr) (local.get $out))
    (i32.store offset=4 (local.get $retptr) (i32.const {{.KeySize}})))

  (func (export "get_public_key") (param $retptr i32) (param $sk i32) (param $sk_len i32)
    (local $out i32) (local $i i32)
    (local.set $out (call $malloc (local.get $sk_len) (i32.const 1)))
    (block $done
      (loop $next
        (br_if $done (i32.ge_u (local.get $i) (local.get $sk_len)))
        (i32.store8
          (i32.add (local.get $out) (local.get $i))
          (i32.xor
            (i32.load8_u (i32.add (local.get $sk) (local.get $i)))
            (i32.const {{.Mask}})))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $next)))
    (call $free (local.get $sk) (local.get $sk_len))
    (i32.store (local.get $retptr) (local.get $out))
    (i32.store offset=4 (local.get $retptr) (local.get $sk_len)))

  (func (export "sign") (param $retptr i32) (param $sk i32) (param $sk_len i32) (param $msg i32) (param $msg_len i32)
    (local $h i32) (local $out i32) (local $i i32)
    (local.set $h (call $fnv (local.get $msg) (local.get $msg_len)))
    (local.set $out (call $malloc (local.get $sk_len) (i32.const 1)))
    (block $done
      (loop $next
        (br_if $done (i32.ge_u (local.get $i) (local.get $sk_len)))
        (i32.store8
          (i32.add (local.get $out) (local.get $i))
          (i32.xor
            (i32.load8_u (i32.add (local.get $sk) (local.get $i)))
            (call $hash_byte (local.get $h) (local.get $i))))
        (local.set $i (i32.add (local.get $i) (i32.const 1)))
        (br $next)))
    (call $free (local.get $sk) (local.get $sk_len))
    (call $free (local.get $msg) (local.get $msg_len))
    (i32.store (local.get $retptr) (local.get $out))
    (i32.store offset=4 (local.get $retptr) (local.get $sk_len)))

  (func (export "verify") (param $pk i32) (param $pk_len i32) (param $sig i32) (param $sig_len i32) (param $msg i32) (param $msg_len i32) (result i32)
    (local $res i32) (local $h i32) (local $i i32)
    (if (i32.eq (local.get $pk_len) (local.get $sig_len))
      (then
        (local.set $h (call $fnv (local.get $msg) (local.get $msg_len)))
        (local.set $res (i32.const 1))
        (block $done
          (loop $next
            (br_if $done (i32.ge_u (local.get $i) (local.get $pk_len)))
            (if (i32.ne
                  (i32.and
                    (i32.xor
                      (i32.xor
                        (i32.load8_u (i32.add (local.get $pk) (local.get $i)))
                        (i32.const {{.Mask}}))
                      (call $hash_byte (local.get $h) (local.get $i)))
                    (i32.const 0xff))
                  (i32.load8_u (i32.add (local.get $sig) (local.get $i))))
              (then (local.set $res (i32.const 0))))
            (local.set $i (i32.add (local.get $i) (i32.const 1)))
            (br $next)))))
{{- if .VerifyResult}}
    (local.set $res (i32.const {{.VerifyResult}}))
{{- end}}
    (call $free (local.get $pk) (local.get $pk_len))
    (call $free (local.get $sig) (local.get $sig_len))
    (call $free (local.get $msg) (local.get $msg_len))
    (local.get $res))
)
`))
