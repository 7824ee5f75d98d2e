// Package errs defines the closed error taxonomy shared by every boltgraph
// component. Errors cross component boundaries wrapped in *Error so callers
// can recover the endpoint and protocol state that were active at failure.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories from the Bolt/session/pool design.
type Kind string

const (
	Configuration  Kind = "configuration"
	Connection     Kind = "connection"
	ConnectionLost Kind = "connection_lost"
	Authentication Kind = "authentication"
	Protocol       Kind = "protocol_violation"
	Unsupported    Kind = "unsupported"
	ServerFailure  Kind = "server_failure"
	Transient      Kind = "transient"
	Client         Kind = "client"
	Query          Kind = "query"
	Transaction    Kind = "transaction"
	PoolTimeout    Kind = "pool_timeout"
	PoolClosed     Kind = "pool_closed"
	AliasConflict  Kind = "alias_conflict"
	Cancelled      Kind = "cancelled"
)

// sentinels support errors.Is(err, errs.ErrPoolTimeout) style checks without
// exposing the Kind comparison to callers that only care about one case.
var (
	ErrConnectionLost = errors.New("connection lost")
	ErrProtocol       = errors.New("protocol violation")
	ErrUnsupported    = errors.New("unsupported protocol version")
	ErrPoolTimeout    = errors.New("pool: acquire timed out")
	ErrPoolClosed     = errors.New("pool: closed")
	ErrAliasConflict  = errors.New("query: alias conflict")
	ErrCancelled      = errors.New("cancelled")
)

// Error is the concrete error type surfaced to callers. It always carries
// enough context to explain where and in what Bolt state the failure
// happened, per the "user-visible behavior" requirement.
type Error struct {
	Kind     Kind
	Endpoint string
	State    string // Bolt state at failure, if known
	Code     string // server error code, e.g. "Neo.ClientError.Statement.SyntaxError"
	Category string // server error category, e.g. "ClientError", "TransientError"
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Endpoint == "" && e.State == "" && e.Code == "" {
		if e.Err != nil {
			return fmt.Sprintf("boltgraph: %s: %s: %v", e.Kind, e.Message, e.Err)
		}
		return fmt.Sprintf("boltgraph: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("boltgraph: %s: %s [endpoint=%s state=%s code=%s]: %v",
		e.Kind, e.Message, e.Endpoint, e.State, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrPoolTimeout) etc. work against the Kind-derived
// sentinels above.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConnectionLost:
		return e.Kind == ConnectionLost
	case ErrProtocol:
		return e.Kind == Protocol
	case ErrUnsupported:
		return e.Kind == Unsupported
	case ErrPoolTimeout:
		return e.Kind == PoolTimeout
	case ErrPoolClosed:
		return e.Kind == PoolClosed
	case ErrAliasConflict:
		return e.Kind == AliasConflict
	case ErrCancelled:
		return e.Kind == Cancelled
	}
	return false
}

// New builds a bare *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind/message context to an underlying error, mirroring the
// teacher's pkg/utils.Wrap but producing a typed *Error instead of a bare
// fmt.Errorf chain.
func Wrap(kind Kind, err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithContext returns a copy of e with endpoint and state filled in. Used
// at the connection/pool boundary where that context becomes available.
func (e *Error) WithContext(endpoint, state string) *Error {
	cp := *e
	cp.Endpoint = endpoint
	cp.State = state
	return &cp
}

// IsTransient reports whether err should trigger a transaction-function
// retry.
func IsTransient(err error) bool {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind == Transient
	}
	return false
}
