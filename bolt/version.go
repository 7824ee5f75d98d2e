package bolt

import (
	"fmt"
	"io"

	"boltgraph/internal/errs"
)

// magicPreamble is the 4-byte Bolt handshake magic.
var magicPreamble = [4]byte{0x60, 0x60, 0xB0, 0x17}

// Version is a Bolt protocol major.minor pair.
type Version struct {
	Major byte
	Minor byte
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// IsZero reports the server's "unsupported" response.
func (v Version) IsZero() bool { return v.Major == 0 && v.Minor == 0 }

// proposal is one 4-byte entry in the client's version-preference table:
// [0x00, range, minor, major]. range lets the server pick any minor in
// [minor-range, minor] of the same major.
type proposal struct {
	major, minor, rangeSpan byte
}

// preferenceTable is the client's proposal order, declared as data per the
// design note ("adding a new minor version is a single-line change").
// Proposals are tried most-preferred first; at most 4 are sent, per the
// handshake wire format.
var preferenceTable = []proposal{
	{major: 5, minor: 4, rangeSpan: 4}, // covers 5.0-5.4
	{major: 4, minor: 4, rangeSpan: 0},
	{major: 4, minor: 3, rangeSpan: 0},
	{major: 4, minor: 4, rangeSpan: 0}, // padding repeat if table is shorter than 4
}

// minSupported is the lowest version this client will ever accept from the
// table above.
var minSupported = Version{Major: 4, Minor: 4}

// BuildHandshake renders the 4-byte magic plus up to 4 four-byte proposals
// in preference order.
func BuildHandshake() []byte {
	buf := make([]byte, 0, 20)
	buf = append(buf, magicPreamble[:]...)
	n := len(preferenceTable)
	if n > 4 {
		n = 4
	}
	for i := 0; i < 4; i++ {
		if i < n {
			p := preferenceTable[i]
			buf = append(buf, 0x00, p.rangeSpan, p.minor, p.major)
		} else {
			buf = append(buf, 0x00, 0x00, 0x00, 0x00)
		}
	}
	return buf
}

// WriteHandshake sends the preamble+proposals to w.
func WriteHandshake(w io.Writer) error {
	if _, err := w.Write(BuildHandshake()); err != nil {
		return errs.Wrap(errs.ConnectionLost, err, "bolt: write handshake")
	}
	return nil
}

// ReadHandshakeResponse reads the server's 4-byte chosen version. All-zero
// means the server rejected every proposal.
func ReadHandshakeResponse(r io.Reader) (Version, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Version{}, errs.Wrap(errs.ConnectionLost, err, "bolt: read handshake response")
	}
	v := Version{Major: buf[3], Minor: buf[2]}
	if v.IsZero() {
		return Version{}, errs.New(errs.Unsupported, "bolt: server rejected all proposed versions")
	}
	if v.Major < minSupported.Major || (v.Major == minSupported.Major && v.Minor < minSupported.Minor) {
		return Version{}, errs.New(errs.Unsupported, fmt.Sprintf("bolt: negotiated version %s below minimum supported %s", v, minSupported))
	}
	return v, nil
}

// SupportsLogon reports whether HELLO and LOGON are separate messages at
// this version (true for >=5.1), or whether credentials travel inside
// HELLO itself (<=5.0).
func (v Version) SupportsLogon() bool {
	return v.Major > 5 || (v.Major == 5 && v.Minor >= 1)
}
