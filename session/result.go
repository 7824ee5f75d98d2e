// Package session implements the transaction-scoped façade over one
// borrowed bolt.Connection: auto-commit `Run`, explicit transactions, and
// transaction-function retry.
package session

import (
	"context"

	"boltgraph/bolt"
	"boltgraph/internal/errs"
	"boltgraph/packstream"
)

// Record is one row of a Result, keyed by the field names the server
// returned in the RUN SUCCESS metadata.
type Record struct {
	fields map[string]any
	keys   []string
}

// Get returns the value for a field name.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.fields[key]
	return v, ok
}

// Values returns the record's values in server field order.
func (r Record) Values() []any {
	out := make([]any, len(r.keys))
	for i, k := range r.keys {
		out[i] = r.fields[k]
	}
	return out
}

// Keys returns the field names in server order.
func (r Record) Keys() []string { return r.keys }

// Summary carries the trailing metadata a statement's SUCCESS response
// returns once streaming completes.
type Summary struct {
	Metadata map[string]any
}

// Result is a lazy, single-pass sequence of Records plus a trailing
// Summary, per the spec's "result streaming is lazy" resolution of the
// corresponding open question. Consuming it fully releases the server-side
// cursor; to abandon it early, call Discard.
type Result struct {
	conn       *bolt.Connection
	keys       []string
	runSig     bolt.Signature
	done       bool
	discarded  bool
	summary    Summary
	pullIssued bool
}

func newResult(conn *bolt.Connection, runSig bolt.Signature, keys []string) *Result {
	return &Result{conn: conn, runSig: runSig, keys: keys}
}

// Next advances to the next record, pulling more from the server on
// demand. It returns (Record{}, false, nil) once the stream is exhausted.
func (r *Result) Next(ctx context.Context) (Record, bool, error) {
	if r.done {
		return Record{}, false, nil
	}
	if !r.pullIssued {
		if err := r.conn.Send(bolt.SigPull, map[string]any{"n": int64(-1)}); err != nil {
			return Record{}, false, err
		}
		r.pullIssued = true
	}
	for {
		msg, err := r.conn.Recv()
		if err != nil {
			return Record{}, false, err
		}
		switch msg.Signature {
		case bolt.SigRecord:
			var raw []any
			if len(msg.Fields) > 0 {
				if l, ok := msg.Fields[0].(packstream.List); ok {
					raw = []any(l)
				}
			}
			fields := make(map[string]any, len(r.keys))
			for i, k := range r.keys {
				if i < len(raw) {
					fields[k] = raw[i]
				}
			}
			return Record{fields: fields, keys: r.keys}, true, nil
		case bolt.SigSuccess, bolt.SigFailure, bolt.SigIgnored:
			if err := r.conn.Complete(bolt.SigPull, msg); err != nil {
				r.done = true
				return Record{}, false, err
			}
			r.done = true
			r.summary = Summary{Metadata: map[string]any(msg.Metadata(0))}
			return Record{}, false, nil
		default:
			return Record{}, false, errs.New(errs.Protocol, "session: unexpected message while streaming")
		}
	}
}

// Collect eagerly materializes every remaining record. Eager
// materialization is an explicit opt-in layered on the lazy contract, not
// the default (see the corresponding resolved open question).
func (r *Result) Collect(ctx context.Context) ([]Record, error) {
	var out []Record
	for {
		rec, ok, err := r.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}

// Summary returns the trailing summary. Valid only after the stream is
// exhausted (Next returned ok=false with a nil error).
func (r *Result) Summary() Summary { return r.summary }

// Keys returns the field names for records in this result.
func (r *Result) Keys() []string { return r.keys }

// Discard abandons the remainder of the stream, issuing DISCARD if
// records have not yet been fully consumed (or, once PULL has been sent,
// reading and dropping its remaining records). Safe to call multiple times.
func (r *Result) Discard(ctx context.Context) error {
	if r.done || r.discarded {
		return nil
	}
	r.discarded = true
	sig := bolt.SigDiscard
	if r.pullIssued {
		// The PULL(all) is still outstanding; drain it instead.
		sig = bolt.SigPull
	} else if err := r.conn.Send(bolt.SigDiscard, map[string]any{"n": int64(-1)}); err != nil {
		return err
	}
	for {
		msg, err := r.conn.Recv()
		if err != nil {
			return err
		}
		if msg.Signature == bolt.SigRecord {
			continue
		}
		if err := r.conn.Complete(sig, msg); err != nil {
			r.done = true
			return err
		}
		r.done = true
		return nil
	}
}
