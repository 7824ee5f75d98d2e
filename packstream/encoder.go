package packstream

import (
	"fmt"
	"math"

	"boltgraph/internal/errs"
)

// Encoder writes canonical Packstream values into an internal buffer. It
// picks the narrowest valid marker for every integer and the narrowest size
// class for every string/list/map/structure, matching the "emit the
// shortest valid form" encoder contract.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with a small pre-allocated buffer.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 128)}
}

// Bytes returns the bytes written so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Reset clears the buffer for reuse.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// Encode appends the canonical encoding of v.
func (e *Encoder) Encode(v any) error {
	switch val := v.(type) {
	case nil:
		e.writeNull()
	case bool:
		e.writeBool(val)
	case int:
		return e.writeInt(int64(val))
	case int8:
		return e.writeInt(int64(val))
	case int16:
		return e.writeInt(int64(val))
	case int32:
		return e.writeInt(int64(val))
	case int64:
		return e.writeInt(val)
	case uint:
		return e.encodeUint(uint64(val))
	case uint8:
		return e.writeInt(int64(val))
	case uint16:
		return e.writeInt(int64(val))
	case uint32:
		return e.writeInt(int64(val))
	case uint64:
		return e.encodeUint(val)
	case float32:
		e.writeFloat(float64(val))
	case float64:
		e.writeFloat(val)
	case string:
		return e.writeString(val)
	case List:
		return e.writeList([]any(val))
	case []any:
		return e.writeList(val)
	case Map:
		return e.writeMap(map[string]any(val))
	case map[string]any:
		return e.writeMap(val)
	case Structure:
		return e.writeStructure(val)
	default:
		return errs.New(errs.Protocol, fmt.Sprintf("packstream: unsupported value type %T", v))
	}
	return nil
}

func (e *Encoder) encodeUint(u uint64) error {
	if u > math.MaxInt64 {
		return errs.New(errs.Protocol, "packstream: integer out of 64-bit signed range")
	}
	return e.writeInt(int64(u))
}

func (e *Encoder) writeNull() {
	e.buf = append(e.buf, markerNullValue)
}

func (e *Encoder) writeBool(b bool) {
	if b {
		e.buf = append(e.buf, markerTrue)
	} else {
		e.buf = append(e.buf, markerFalse)
	}
}

// writeInt picks TINY_INT, INT_8, INT_16, INT_32, or INT_64, the narrowest
// that fits n.
func (e *Encoder) writeInt(n int64) error {
	switch {
	case n >= tinyIntNegative && n <= tinyIntPositive:
		e.buf = append(e.buf, byte(int8(n)))
	case n >= math.MinInt8 && n <= math.MaxInt8:
		e.buf = append(e.buf, markerInt8, byte(int8(n)))
	case n >= math.MinInt16 && n <= math.MaxInt16:
		e.buf = append(e.buf, markerInt16)
		e.appendUint16(uint16(int16(n)))
	case n >= math.MinInt32 && n <= math.MaxInt32:
		e.buf = append(e.buf, markerInt32)
		e.appendUint32(uint32(int32(n)))
	default:
		e.buf = append(e.buf, markerInt64)
		e.appendUint64(uint64(n))
	}
	return nil
}

func (e *Encoder) writeFloat(f float64) {
	e.buf = append(e.buf, markerFloat64)
	e.appendUint64(math.Float64bits(f))
}

func (e *Encoder) writeString(s string) error {
	n := len(s)
	switch {
	case n <= maxTinySize:
		e.buf = append(e.buf, byte(tinyStringBase|n))
	case n <= maxUint8Size:
		e.buf = append(e.buf, markerString8, byte(n))
	case n <= maxUint16Size:
		e.buf = append(e.buf, markerString16)
		e.appendUint16(uint16(n))
	case n <= maxUint32Size:
		e.buf = append(e.buf, markerString32)
		e.appendUint32(uint32(n))
	default:
		return errs.New(errs.Protocol, "packstream: string exceeds 32-bit length")
	}
	e.buf = append(e.buf, s...)
	return nil
}

func (e *Encoder) writeListHeader(n int) error {
	switch {
	case n <= maxTinySize:
		e.buf = append(e.buf, byte(tinyListBase|n))
	case n <= maxUint8Size:
		e.buf = append(e.buf, markerList8, byte(n))
	case n <= maxUint16Size:
		e.buf = append(e.buf, markerList16)
		e.appendUint16(uint16(n))
	case n <= maxUint32Size:
		e.buf = append(e.buf, markerList32)
		e.appendUint32(uint32(n))
	default:
		return errs.New(errs.Protocol, "packstream: list exceeds 32-bit length")
	}
	return nil
}

func (e *Encoder) writeList(items []any) error {
	if err := e.writeListHeader(len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := e.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeMapHeader(n int) error {
	switch {
	case n <= maxTinySize:
		e.buf = append(e.buf, byte(tinyMapBase|n))
	case n <= maxUint8Size:
		e.buf = append(e.buf, markerMap8, byte(n))
	case n <= maxUint16Size:
		e.buf = append(e.buf, markerMap16)
		e.appendUint16(uint16(n))
	case n <= maxUint32Size:
		e.buf = append(e.buf, markerMap32)
		e.appendUint32(uint32(n))
	default:
		return errs.New(errs.Protocol, "packstream: map exceeds 32-bit length")
	}
	return nil
}

func (e *Encoder) writeMap(m map[string]any) error {
	if err := e.writeMapHeader(len(m)); err != nil {
		return err
	}
	for k, v := range m {
		if err := e.writeString(k); err != nil {
			return err
		}
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	return nil
}

// StructHeader writes a structure marker for n fields with the given
// signature, without encoding the fields. Encoding a Structure writes its
// header through this method; callers may also use it directly and encode
// the fields themselves.
func (e *Encoder) StructHeader(signature byte, n int) error {
	switch {
	case n <= maxTinySize:
		e.buf = append(e.buf, byte(tinyStructBase|n))
	case n <= maxUint8Size:
		e.buf = append(e.buf, markerStruct8, byte(n))
	case n <= maxUint16Size:
		e.buf = append(e.buf, markerStruct16)
		e.appendUint16(uint16(n))
	default:
		return errs.New(errs.Protocol, "packstream: structure exceeds 16-bit field count")
	}
	e.buf = append(e.buf, signature)
	return nil
}

func (e *Encoder) writeStructure(s Structure) error {
	if len(s.Fields) > maxUint16Size {
		return errs.New(errs.Protocol, "packstream: structure exceeds 16-bit field count")
	}
	if err := e.StructHeader(s.Signature, len(s.Fields)); err != nil {
		return err
	}
	for _, f := range s.Fields {
		if err := e.Encode(f); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) appendUint16(v uint16) {
	e.buf = append(e.buf, byte(v>>8), byte(v))
}

func (e *Encoder) appendUint32(v uint32) {
	e.buf = append(e.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (e *Encoder) appendUint64(v uint64) {
	e.buf = append(e.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
