// Package packstream implements the Packstream binary value codec used to
// carry every Bolt message field: null, boolean, integer, float, string,
// list, map, and tagged structure values.
package packstream

import "fmt"

// Structure is a Packstream structure: a one-byte signature plus an ordered
// list of fields. Messages and rich graph/temporal types are both carried
// as structures; this package is signature-agnostic about what they mean.
type Structure struct {
	Signature byte
	Fields    []any
}

func (s Structure) String() string {
	return fmt.Sprintf("Structure{sig=0x%02X, fields=%v}", s.Signature, s.Fields)
}

// Marker bytes, narrowest-first. Exact values are fixed by the Bolt wire
// protocol and must not change.
const (
	markerNullValue  = 0xC0
	markerFalse      = 0xC2
	markerTrue       = 0xC3
	markerFloat64    = 0xC1
	markerInt8       = 0xC8
	markerInt16      = 0xC9
	markerInt32      = 0xCA
	markerInt64      = 0xCB
	markerString8    = 0xD0
	markerString16   = 0xD1
	markerString32   = 0xD2
	markerList8      = 0xD4
	markerList16     = 0xD5
	markerList32     = 0xD6
	markerMap8       = 0xD8
	markerMap16      = 0xD9
	markerMap32      = 0xDA
	markerStruct8    = 0xDC
	markerStruct16   = 0xDD
	tinyStringBase   = 0x80
	tinyListBase     = 0x90
	tinyMapBase      = 0xA0
	tinyStructBase   = 0xB0
	tinyIntPositive  = 0x7F // highest tiny-int value
	tinyIntNegative  = -16  // lowest tiny-int value
	maxTinySize      = 0x0F
	maxUint8Size     = 1<<8 - 1
	maxUint16Size    = 1<<16 - 1
	maxUint32Size    = 1<<32 - 1
	maxStructFields  = 0xFF
	defaultMaxDepth  = 256
)

// Map is a Packstream map value with string keys. It is a Go map, so entry
// order is not preserved: the encoder writes entries in map iteration order.
type Map map[string]any

// List is a Packstream list value.
type List []any
