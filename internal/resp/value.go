// Package resp implements the RESP2 wire protocol: decoding bytes off a
// connection into typed values and encoding typed values back to bytes.
package resp

import "fmt"

// Type tags the wire representation of a Value, matching RESP2's five
// leading-byte markers.
type Type byte

const (
	SimpleString Type = '+'
	Error        Type = '-'
	Integer      Type = ':'
	BulkString   Type = '$'
	Array        Type = '*'
)

// Value is a decoded RESP wire value. Only the field matching Type is
// meaningful; the zero Value is not itself a valid RESP value.
type Value struct {
	Type Type

	Str   string  // SimpleString, Error
	Int   int64   // Integer
	Bulk  []byte  // BulkString; nil distinguishes a null bulk string ($-1)
	Array []Value // Array; nil distinguishes a null array (*-1)
}

// IsNullBulk reports whether v is a BulkString with a nil payload ($-1\r\n).
func (v Value) IsNullBulk() bool { return v.Type == BulkString && v.Bulk == nil }

// IsNullArray reports whether v is an Array with a nil payload (*-1\r\n).
func (v Value) IsNullArray() bool { return v.Type == Array && v.Array == nil }

// SimpleStr constructs a +OK\r\n-style value.
func SimpleStr(s string) Value { return Value{Type: SimpleString, Str: s} }

// Err constructs a -ERR ...\r\n-style value.
func Err(s string) Value { return Value{Type: Error, Str: s} }

// Errf is Err with fmt.Sprintf formatting.
func Errf(format string, args ...any) Value { return Err(fmt.Sprintf(format, args...)) }

// Int64 constructs an :N\r\n-style value.
func Int64(n int64) Value { return Value{Type: Integer, Int: n} }

// Bool encodes a boolean as the Redis-conventional 0/1 integer reply.
func Bool(b bool) Value {
	if b {
		return Int64(1)
	}
	return Int64(0)
}

// BulkStr constructs a $N\r\n...\r\n value from a Go string.
func BulkStr(s string) Value { return Value{Type: BulkString, Bulk: []byte(s)} }

// BulkBytes constructs a $N\r\n...\r\n value from raw bytes. A nil slice
// encodes as a non-null empty bulk string ($0\r\n\r\n); use NullBulk for
// $-1.
func BulkBytes(b []byte) Value {
	if b == nil {
		b = []byte{}
	}
	return Value{Type: BulkString, Bulk: b}
}

// NullBulk is the RESP "missing value" bulk string ($-1\r\n).
func NullBulk() Value { return Value{Type: BulkString, Bulk: nil} }

// Arr constructs a *N\r\n... value from a slice of already-built Values.
func Arr(vs ...Value) Value { return Value{Type: Array, Array: vs} }

// NullArr is the RESP "missing array" reply (*-1\r\n), used by blocking
// pops that time out.
func NullArr() Value { return Value{Type: Array, Array: nil} }

// NoReply is a sentinel the zero Value naturally satisfies: commands
// like REPLCONF ACK that the protocol never replies to return this, and
// the connection write loop skips encoding anything for it.
func NoReply() Value { return Value{} }

// IsNoReply reports whether v is the NoReply sentinel.
func (v Value) IsNoReply() bool { return v.Type == 0 }
