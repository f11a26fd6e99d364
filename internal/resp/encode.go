package resp

import "strconv"

// Encode appends the RESP wire encoding of v to dst and returns the
// extended slice. Encode is the exact inverse of Decode: Decode(Encode(v))
// reproduces v for every Value Encode can produce.
func Encode(dst []byte, v Value) []byte {
	switch v.Type {
	case SimpleString:
		dst = append(dst, '+')
		dst = append(dst, v.Str...)
		return appendCRLF(dst)

	case Error:
		dst = append(dst, '-')
		dst = append(dst, v.Str...)
		return appendCRLF(dst)

	case Integer:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, v.Int, 10)
		return appendCRLF(dst)

	case BulkString:
		if v.Bulk == nil {
			return append(dst, '$', '-', '1', '\r', '\n')
		}
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v.Bulk)), 10)
		dst = appendCRLF(dst)
		dst = append(dst, v.Bulk...)
		return appendCRLF(dst)

	case Array:
		if v.Array == nil {
			return append(dst, '*', '-', '1', '\r', '\n')
		}
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(v.Array)), 10)
		dst = appendCRLF(dst)
		for _, item := range v.Array {
			dst = Encode(dst, item)
		}
		return dst

	default:
		panic("resp: encode of zero-value Value")
	}
}

// Bytes is a convenience wrapper around Encode for one-off use.
func Bytes(v Value) []byte { return Encode(nil, v) }

func appendCRLF(dst []byte) []byte { return append(dst, '\r', '\n') }

// EncodeRawCommand serializes args as a RESP array of bulk strings, the
// wire form every client command and every forwarded replication command
// takes. It is used both to build outbound commands and, on the primary,
// to compute the serialized byte length appended to the replication
// offset.
func EncodeRawCommand(args ...string) []byte {
	vs := make([]Value, len(args))
	for i, a := range args {
		vs[i] = BulkStr(a)
	}
	return Bytes(Arr(vs...))
}
