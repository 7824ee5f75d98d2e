package packstream

import (
	"reflect"
	"testing"
)

func roundTrip(t *testing.T, v any) any {
	t.Helper()
	enc := NewEncoder()
	if err := enc.Encode(v); err != nil {
		t.Fatalf("encode(%v): %v", v, err)
	}
	dec := NewDecoder(enc.Bytes(), 0)
	got, err := dec.Decode()
	if err != nil {
		t.Fatalf("decode(encode(%v)): %v", v, err)
	}
	if dec.Remaining() != 0 {
		t.Fatalf("decode left %d unread bytes", dec.Remaining())
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []any{
		nil, true, false,
		int64(0), int64(-16), int64(127), int64(128), int64(-129),
		int64(32767), int64(32768), int64(-2147483648), int64(2147483647),
		int64(1 << 40), int64(-(1 << 40)),
		3.14159, -0.0, 1e300,
		"", "hi", string(make([]byte, 300)),
	}
	for _, c := range cases {
		got := roundTrip(t, c)
		if !reflect.DeepEqual(got, c) {
			t.Errorf("round trip mismatch: want %#v got %#v", c, got)
		}
	}
}

func TestIntegerCanonicalization(t *testing.T) {
	tests := []struct {
		v        int64
		wantLen  int
		wantMark byte
	}{
		{0, 1, 0x00},
		{-1, 1, 0xFF},
		{127, 1, 0x7F},
		{-16, 1, 0xF0},
		{-17, 2, markerInt8},
		{128, 3, markerInt16},
		{32767, 3, markerInt16},
		{-32768, 3, markerInt16},
		{2147483647, 5, markerInt32},
		{1 << 40, 9, markerInt64},
	}
	for _, tt := range tests {
		enc := NewEncoder()
		if err := enc.Encode(tt.v); err != nil {
			t.Fatalf("encode(%d): %v", tt.v, err)
		}
		b := enc.Bytes()
		if len(b) != tt.wantLen {
			t.Errorf("encode(%d): want len %d got %d (% X)", tt.v, tt.wantLen, len(b), b)
		}
		if b[0] != tt.wantMark {
			t.Errorf("encode(%d): want marker 0x%02X got 0x%02X", tt.v, tt.wantMark, b[0])
		}
	}
}

func TestRoundTripList(t *testing.T) {
	v := List{int64(1), "two", 3.0, nil, true}
	got := roundTrip(t, v)
	gl, ok := got.(List)
	if !ok {
		t.Fatalf("expected List, got %T", got)
	}
	if !reflect.DeepEqual(gl, v) {
		t.Fatalf("want %#v got %#v", v, gl)
	}
}

func TestRoundTripMap(t *testing.T) {
	v := Map{"a": int64(1), "b": "two"}
	got := roundTrip(t, v)
	gm, ok := got.(Map)
	if !ok {
		t.Fatalf("expected Map, got %T", got)
	}
	if !reflect.DeepEqual(gm, v) {
		t.Fatalf("want %#v got %#v", v, gm)
	}
}

func TestRoundTripStructure(t *testing.T) {
	v := Structure{Signature: 0x4E, Fields: []any{int64(1), List{"Person"}, Map{"name": "Ann"}}}
	got := roundTrip(t, v)
	gs, ok := got.(Structure)
	if !ok {
		t.Fatalf("expected Structure, got %T", got)
	}
	if gs.Signature != v.Signature || !reflect.DeepEqual(gs.Fields, v.Fields) {
		t.Fatalf("want %#v got %#v", v, gs)
	}
}

func TestDecodeRejectsUnknownMarker(t *testing.T) {
	dec := NewDecoder([]byte{0xC7}, 0)
	if _, err := dec.Decode(); err == nil {
		t.Fatal("expected error for unknown marker")
	}
}

func TestDecodeRejectsTruncatedLength(t *testing.T) {
	// STRING_8 marker claiming 10 bytes but none follow.
	dec := NewDecoder([]byte{markerString8, 10}, 0)
	if _, err := dec.Decode(); err == nil {
		t.Fatal("expected error for truncated string")
	}
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	dec := NewDecoder([]byte{byte(tinyStringBase | 1), 0xFF}, 0)
	if _, err := dec.Decode(); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
}

func TestDecodeRejectsExcessiveDepth(t *testing.T) {
	enc := NewEncoder()
	// Build a deeply nested single-element list.
	cur := any(int64(0))
	for i := 0; i < 300; i++ {
		cur = List{cur}
	}
	if err := enc.Encode(cur); err != nil {
		t.Fatalf("encode: %v", err)
	}
	dec := NewDecoder(enc.Bytes(), 256)
	if _, err := dec.Decode(); err == nil {
		t.Fatal("expected depth-limit error")
	}
}

func TestEncodeRejectsUnsupportedType(t *testing.T) {
	enc := NewEncoder()
	if err := enc.Encode(struct{ X int }{1}); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
