package record

import (
	"errors"

	"github.com/moonsql/moonsql/internal/bx"
)

var (
	ErrSchemaMismatch = errors.New("rowcodec: schema/values mismatch")
	ErrDecode         = errors.New("rowcodec: malformed row bytes")
	ErrVarTooLong     = errors.New("rowcodec: varchar exceeds declared length")
)

// EncodeRow serializes one row.
// Format:
// [u16 column count] [nullmap: ceil(N/8) bytes, bit=1 => NULL] | [field0?] [field1?] ...
// INT is 8 bytes LE, BOOLEAN 1 byte, VARCHAR u16 length (LE) + UTF-8 data.
func EncodeRow(s Schema, values []any) ([]byte, error) {
	nc := s.NumCols()
	if len(values) != nc {
		return nil, ErrSchemaMismatch
	}

	nbBytes := (nc + 7) / 8
	out := make([]byte, 2+nbBytes)
	bx.PutU16(out, uint16(nc))

	for i, col := range s.Cols {
		v := values[i]
		if v == nil {
			out[2+i/8] |= 1 << (uint(i) & 7) // bit=1 => NULL
			continue
		}

		switch col.Type {
		case ColInt:
			x, ok := asInt64(v)
			if !ok {
				return nil, ErrSchemaMismatch
			}
			var b [8]byte
			bx.PutU64(b[:], uint64(x))
			out = append(out, b[:]...)

		case ColBool:
			x, ok := v.(bool)
			if !ok {
				return nil, ErrSchemaMismatch
			}
			if x {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}

		case ColVarchar:
			str, ok := v.(string)
			if !ok {
				return nil, ErrSchemaMismatch
			}
			bs := []byte(str)
			if len(bs) > int(col.Param) || len(bs) > MaxVarcharLen {
				return nil, ErrVarTooLong
			}
			var l [2]byte
			bx.PutU16(l[:], uint16(len(bs)))
			out = append(out, l[:]...)
			out = append(out, bs...)

		default:
			return nil, ErrSchemaMismatch
		}
	}
	return out, nil
}

// DecodeRow deserializes one row; decoding is driven by the schema.
func DecodeRow(s Schema, buf []byte) ([]any, error) {
	nc := s.NumCols()
	nbBytes := (nc + 7) / 8
	if len(buf) < 2+nbBytes {
		return nil, ErrDecode
	}
	if int(bx.U16(buf)) != nc {
		return nil, ErrDecode
	}
	nullmap := buf[2 : 2+nbBytes]
	i := 2 + nbBytes

	out := make([]any, nc)
	for colIdx, col := range s.Cols {
		isNull := (nullmap[colIdx/8]>>(uint(colIdx)&7))&1 == 1
		if isNull {
			out[colIdx] = nil
			continue
		}

		switch col.Type {
		case ColInt:
			if i+8 > len(buf) {
				return nil, ErrDecode
			}
			out[colIdx] = bx.I64(buf[i : i+8])
			i += 8

		case ColBool:
			if i+1 > len(buf) {
				return nil, ErrDecode
			}
			out[colIdx] = buf[i] != 0
			i++

		case ColVarchar:
			if i+2 > len(buf) {
				return nil, ErrDecode
			}
			l := int(bx.U16(buf[i : i+2]))
			i += 2
			if l > int(col.Param) {
				return nil, ErrDecode
			}
			if i+l > len(buf) {
				return nil, ErrDecode
			}
			out[colIdx] = string(buf[i : i+l]) // UTF-8
			i += l

		default:
			return nil, ErrDecode
		}
	}
	return out, nil
}

// asInt64 accepts the numeric types literals may arrive as.
func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	}
	return 0, false
}
