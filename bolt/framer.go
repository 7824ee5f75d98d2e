// Package bolt implements the Bolt wire protocol: chunked framing, the
// message catalog, the per-connection protocol state machine, and the
// Connection type that drives a socket through it.
package bolt

import (
	"encoding/binary"
	"io"
	"time"

	"boltgraph/internal/errs"
)

const maxChunkSize = 65535

// Framer splits outgoing message bytes into <=65535-byte chunks terminated
// by a zero-length chunk, and reassembles incoming chunked messages. It
// owns no socket of its own; callers supply an io.Reader/io.Writer (see
// Connection, which layers read timeouts on top).
type Framer struct {
	rw io.ReadWriter
}

// NewFramer wraps rw for chunked message framing.
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{rw: rw}
}

// WriteMessage splits msg into chunks and appends the zero-length
// terminator, writing the whole thing as one or more socket writes.
func (f *Framer) WriteMessage(msg []byte) error {
	var hdr [2]byte
	for len(msg) > 0 {
		n := len(msg)
		if n > maxChunkSize {
			n = maxChunkSize
		}
		binary.BigEndian.PutUint16(hdr[:], uint16(n))
		if _, err := f.rw.Write(hdr[:]); err != nil {
			return errs.Wrap(errs.ConnectionLost, err, "framer: write chunk header")
		}
		if _, err := f.rw.Write(msg[:n]); err != nil {
			return errs.Wrap(errs.ConnectionLost, err, "framer: write chunk body")
		}
		msg = msg[n:]
	}
	// zero-length terminator chunk
	binary.BigEndian.PutUint16(hdr[:], 0)
	if _, err := f.rw.Write(hdr[:]); err != nil {
		return errs.Wrap(errs.ConnectionLost, err, "framer: write terminator")
	}
	return nil
}

// ReadMessage concatenates chunks until the terminator and returns the
// assembled message bytes.
func (f *Framer) ReadMessage() ([]byte, error) {
	var out []byte
	var hdr [2]byte
	for {
		if _, err := io.ReadFull(f.rw, hdr[:]); err != nil {
			return nil, errs.Wrap(errs.ConnectionLost, err, "framer: read chunk header")
		}
		n := binary.BigEndian.Uint16(hdr[:])
		if n == 0 {
			if out == nil {
				out = []byte{}
			}
			return out, nil
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(f.rw, chunk); err != nil {
			return nil, errs.Wrap(errs.ConnectionLost, err, "framer: read chunk body")
		}
		out = append(out, chunk...)
	}
}

// deadlineSetter is implemented by net.Conn; Framer callers that need read
// timeouts pass a reader/writer that also implements this.
type deadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

// ReadMessageWithTimeout behaves like ReadMessage but sets a read deadline
// on rw first, when rw supports it. A timeout, EOF, or any other socket
// error all surface as the same ConnectionLost kind, per the framer
// contract.
func (f *Framer) ReadMessageWithTimeout(timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		if ds, ok := f.rw.(deadlineSetter); ok {
			if err := ds.SetReadDeadline(time.Now().Add(timeout)); err != nil {
				return nil, errs.Wrap(errs.ConnectionLost, err, "framer: set read deadline")
			}
		}
	}
	return f.ReadMessage()
}
