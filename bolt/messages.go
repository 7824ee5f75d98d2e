package bolt

import (
	"boltgraph/internal/errs"
	"boltgraph/packstream"
)

// Signature is the one-byte tag identifying a Bolt message structure.
type Signature byte

// Message signatures, fixed by the Bolt wire protocol.
const (
	SigHello     Signature = 0x01
	SigGoodbye   Signature = 0x02
	SigRun       Signature = 0x10
	SigBegin     Signature = 0x11
	SigCommit    Signature = 0x12
	SigRollback  Signature = 0x13
	SigDiscard   Signature = 0x2F
	SigPull      Signature = 0x3F
	SigRoute     Signature = 0x66
	SigTelemetry Signature = 0x54
	SigLogon     Signature = 0x6A
	SigLogoff    Signature = 0x6B
	SigReset     Signature = 0x0F
	SigSuccess   Signature = 0x70
	SigRecord    Signature = 0x71
	SigIgnored   Signature = 0x7E
	SigFailure   Signature = 0x7F
)

// Kind classifies a message as a client request, a server response, or a
// server-streamed record.
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
	KindRecord
)

var catalog = map[Signature]Kind{
	SigHello:     KindRequest,
	SigGoodbye:   KindRequest,
	SigRun:       KindRequest,
	SigBegin:     KindRequest,
	SigCommit:    KindRequest,
	SigRollback:  KindRequest,
	SigDiscard:   KindRequest,
	SigPull:      KindRequest,
	SigRoute:     KindRequest,
	SigTelemetry: KindRequest,
	SigLogon:     KindRequest,
	SigLogoff:    KindRequest,
	SigReset:     KindRequest,
	SigSuccess:   KindResponse,
	SigIgnored:   KindResponse,
	SigFailure:   KindResponse,
	SigRecord:    KindRecord,
}

// KindOf reports how sig is classified. The second result is false for
// signatures outside the closed catalog.
func KindOf(sig Signature) (Kind, bool) {
	k, ok := catalog[sig]
	return k, ok
}

// Message is a decoded Bolt structure: its signature and its fields.
type Message struct {
	Signature Signature
	Fields    []any
}

// Metadata returns Fields[i] as a packstream.Map, or an empty map if the
// field is absent or not a map (SUCCESS/FAILURE/IGNORED carry their
// metadata as the sole field).
func (m Message) Metadata(i int) packstream.Map {
	if i < 0 || i >= len(m.Fields) {
		return packstream.Map{}
	}
	if mm, ok := m.Fields[i].(packstream.Map); ok {
		return mm
	}
	return packstream.Map{}
}

// DecodeMessage interprets a fully-assembled, framer-delivered byte slice
// as exactly one Bolt message structure. Unknown signatures are a protocol
// violation, per the receive-path contract.
func DecodeMessage(raw []byte) (Message, error) {
	dec := packstream.NewDecoder(raw, 0)
	v, err := dec.Decode()
	if err != nil {
		return Message{}, errs.Wrap(errs.Protocol, err, "bolt: decode message")
	}
	if dec.Remaining() != 0 {
		return Message{}, errs.New(errs.Protocol, "bolt: trailing bytes after message")
	}
	st, ok := v.(packstream.Structure)
	if !ok {
		return Message{}, errs.New(errs.Protocol, "bolt: message is not a structure")
	}
	sig := Signature(st.Signature)
	if _, known := catalog[sig]; !known {
		return Message{}, errs.New(errs.Protocol, "bolt: unknown message signature")
	}
	return Message{Signature: sig, Fields: st.Fields}, nil
}

// EncodeMessage renders a request message as a Packstream structure ready
// for chunking. Only request signatures may be encoded by a client.
func EncodeMessage(sig Signature, fields ...any) ([]byte, error) {
	if k, ok := catalog[sig]; !ok || k != KindRequest {
		return nil, errs.New(errs.Protocol, "bolt: not a client request signature")
	}
	enc := packstream.NewEncoder()
	if err := enc.Encode(packstream.Structure{Signature: byte(sig), Fields: fields}); err != nil {
		return nil, errs.Wrap(errs.Protocol, err, "bolt: encode message")
	}
	return enc.Bytes(), nil
}

// Convenience constructors for the client-side requests.

func Hello(meta map[string]any) ([]byte, error) { return EncodeMessage(SigHello, meta) }

func Logon(meta map[string]any) ([]byte, error) { return EncodeMessage(SigLogon, meta) }

func Logoff() ([]byte, error) { return EncodeMessage(SigLogoff) }

func Goodbye() ([]byte, error) { return EncodeMessage(SigGoodbye) }

func ResetMsg() ([]byte, error) { return EncodeMessage(SigReset) }

func Run(cypher string, params map[string]any, meta map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return EncodeMessage(SigRun, cypher, params, meta)
}

func Begin(meta map[string]any) ([]byte, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	return EncodeMessage(SigBegin, meta)
}

func Commit() ([]byte, error) { return EncodeMessage(SigCommit) }

func Rollback() ([]byte, error) { return EncodeMessage(SigRollback) }

func Pull(n int64) ([]byte, error) {
	return EncodeMessage(SigPull, map[string]any{"n": n})
}

func Discard(n int64) ([]byte, error) {
	return EncodeMessage(SigDiscard, map[string]any{"n": n})
}
