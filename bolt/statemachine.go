package bolt

import (
	"fmt"

	"boltgraph/internal/errs"
)

// State is one of the connection's protocol states, per the Bolt state
// machine.
type State int

const (
	Disconnected State = iota
	Connected
	Authenticated
	Ready
	Streaming
	TxReady
	TxStreaming
	Failed
	Interrupted
	Defunct
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connected:
		return "CONNECTED"
	case Authenticated:
		return "AUTHENTICATED"
	case Ready:
		return "READY"
	case Streaming:
		return "STREAMING"
	case TxReady:
		return "TX_READY"
	case TxStreaming:
		return "TX_STREAMING"
	case Failed:
		return "FAILED"
	case Interrupted:
		return "INTERRUPTED"
	case Defunct:
		return "DEFUNCT"
	default:
		return "UNKNOWN"
	}
}

// transitionKey pairs a state with the signature of the request sent (or,
// for failure/goodbye, the response received) from it.
type transitionKey struct {
	from State
	sig  Signature
}

// transitions is the legal-transition table as data, per the design note
// that version/transition tables should be data, not control flow. Each
// entry names the state reached once the matching SUCCESS response (or,
// for RECORD streaming, an in-progress state) comes back.
var transitions = map[transitionKey]State{
	{Connected, SigHello}:        Authenticated,
	{Authenticated, SigLogon}:    Ready,
	{Ready, SigRun}:              Streaming,
	{Streaming, SigPull}:         Ready, // success with no more records; Streaming on partial
	{Streaming, SigDiscard}:      Ready,
	{Ready, SigBegin}:            TxReady,
	{TxReady, SigRun}:            TxStreaming,
	{TxStreaming, SigPull}:       TxReady,
	{TxStreaming, SigDiscard}:    TxReady,
	{TxReady, SigCommit}:         Ready,
	{TxReady, SigRollback}:       Ready,
	{Failed, SigReset}:           Ready,
	{Interrupted, SigReset}:      Ready,
}

// StateMachine tracks one connection's Bolt state and validates every
// attempted transition against the table above, rejecting illegal
// sequences before a byte ever reaches the socket.
type StateMachine struct {
	state    State
	pending  bool // true while a request has been sent and its reply not yet received
	failedAt State
}

// NewStateMachine starts a machine in Disconnected.
func NewStateMachine() *StateMachine {
	return &StateMachine{state: Disconnected}
}

// State reports the current state.
func (sm *StateMachine) State() State { return sm.state }

// CanSend reports whether sig may legally be sent from the current state,
// without mutating the machine. Exactly one request may be outstanding at
// a time.
func (sm *StateMachine) CanSend(sig Signature) bool {
	if sm.pending {
		return false
	}
	if sig == SigGoodbye {
		return sm.state != Disconnected && sm.state != Defunct
	}
	if sig == SigReset {
		return sm.state == Failed || sm.state == Interrupted || sm.state == Ready || sm.state == TxReady
	}
	_, ok := transitions[transitionKey{sm.state, sig}]
	return ok
}

// BeginSend marks sig as outstanding after validating the transition is
// legal; it does not yet move to the destination state (that happens on
// the matching response) except for GOODBYE, which is terminal
// immediately.
func (sm *StateMachine) BeginSend(sig Signature) error {
	if sig == SigGoodbye {
		if sm.state == Disconnected || sm.state == Defunct {
			return sm.violation("cannot send GOODBYE from %s", sm.state)
		}
		sm.state = Defunct
		return nil
	}
	if sm.pending {
		return sm.violation("a request is already outstanding")
	}
	if sig == SigReset {
		if sm.state != Failed && sm.state != Interrupted && sm.state != Ready && sm.state != TxReady {
			return sm.violation("cannot send RESET from %s", sm.state)
		}
		sm.pending = true
		return nil
	}
	if _, ok := transitions[transitionKey{sm.state, sig}]; !ok {
		return sm.violation("cannot send %s from %s", sigName(sig), sm.state)
	}
	sm.pending = true
	return nil
}

// OnSuccess completes the outstanding request with a SUCCESS reply and
// applies the corresponding transition.
func (sm *StateMachine) OnSuccess(sig Signature) error {
	if !sm.pending {
		return sm.violation("SUCCESS with no outstanding request")
	}
	if sig == SigReset {
		sm.state = Ready
		sm.pending = false
		return nil
	}
	dest, ok := transitions[transitionKey{sm.state, sig}]
	if !ok {
		return sm.violation("no transition for %s from %s", sigName(sig), sm.state)
	}
	sm.state = dest
	sm.pending = false
	return nil
}

// OnMore marks that PULL/DISCARD produced further RECORDs and the stream
// has not yet completed; the pending request stays outstanding.
func (sm *StateMachine) OnMore() {
	// state remains Streaming/TxStreaming; pending remains true until the
	// terminating SUCCESS/IGNORED arrives.
}

// OnFailure transitions to Failed from any state and remembers where the
// failure originated so RESET knows what it is recovering from. A second
// FAILURE before RESET is itself a protocol violation.
func (sm *StateMachine) OnFailure() error {
	if sm.state == Failed {
		return sm.violation("FAILURE received while already Failed (RESET required)")
	}
	sm.failedAt = sm.state
	sm.state = Failed
	sm.pending = false
	return nil
}

// OnIgnored completes an outstanding request that the server ignored
// because the connection is Failed/Interrupted; state does not change.
func (sm *StateMachine) OnIgnored() error {
	if !sm.pending {
		return sm.violation("IGNORED with no outstanding request")
	}
	sm.pending = false
	return nil
}

// Interrupt marks the connection Interrupted due to client-side
// cancellation of a pending recv; RESET is required before further use.
func (sm *StateMachine) Interrupt() {
	sm.state = Interrupted
	sm.pending = false
}

// MarkDefunct forces the terminal state after I/O loss.
func (sm *StateMachine) MarkDefunct() {
	sm.state = Defunct
	sm.pending = false
}

// Recoverable reports whether the machine is in a state the pool may
// safely hand back out (Ready with no request outstanding is the only one;
// everything else needs RESET or is terminal).
func (sm *StateMachine) Recoverable() bool {
	return !sm.pending && (sm.state == Ready)
}

func (sm *StateMachine) violation(format string, args ...any) error {
	return errs.New(errs.Protocol, fmt.Sprintf("bolt sm: "+format, args...))
}

func sigName(sig Signature) string {
	names := map[Signature]string{
		SigHello: "HELLO", SigLogon: "LOGON", SigLogoff: "LOGOFF", SigGoodbye: "GOODBYE",
		SigReset: "RESET", SigRun: "RUN", SigBegin: "BEGIN", SigCommit: "COMMIT",
		SigRollback: "ROLLBACK", SigDiscard: "DISCARD", SigPull: "PULL", SigRoute: "ROUTE",
		SigTelemetry: "TELEMETRY", SigSuccess: "SUCCESS", SigFailure: "FAILURE",
		SigIgnored: "IGNORED", SigRecord: "RECORD",
	}
	if n, ok := names[sig]; ok {
		return n
	}
	return fmt.Sprintf("0x%02X", byte(sig))
}
