// Package authstate owns the canonical authentication state of the shell.
//
// Three independent sources feed it: the persisted session (read once at
// Start), server events from the message channel, and navigation parameters
// left by a full-page redirect. User actions (Login, Logout,
// RequestVerification) are the fourth input. Every input is applied under
// one lock, so the machine sees them in a single order and the persisted
// record is only ever written from here.
package authstate

import "github.com/infodancer/shellauth"

// Kind enumerates the machine's states.
type Kind int

const (
	// Initializing is the state before the persisted session has been read.
	Initializing Kind = iota

	// Unauthenticated means no session and no verification in progress.
	Unauthenticated

	// AwaitingVerification means an email code was requested and the
	// outcome has not arrived.
	AwaitingVerification

	// Authenticated means an active identity is established.
	Authenticated
)

// String returns the state name.
func (k Kind) String() string {
	switch k {
	case Initializing:
		return "initializing"
	case Unauthenticated:
		return "unauthenticated"
	case AwaitingVerification:
		return "awaiting_verification"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// VerificationRequest is the email-code flow in progress. It lives only as
// long as the AwaitingVerification state that carries it.
type VerificationRequest struct {
	// Email is the address the code was sent to.
	Email string

	// SubmittedCode is the last code the user submitted, empty until then.
	SubmittedCode string
}

// State is a snapshot of the machine. Session is set only when Kind is
// Authenticated; Verification only when Kind is AwaitingVerification.
type State struct {
	Kind         Kind
	Session      *shellauth.Session
	Verification *VerificationRequest
}

// IsAuthenticated reports whether the state is Authenticated.
func (s State) IsAuthenticated() bool {
	return s.Kind == Authenticated
}

// IsLoading reports whether the state is Initializing.
func (s State) IsLoading() bool {
	return s.Kind == Initializing
}

// clone returns a deep copy so snapshots never alias machine internals.
func (s State) clone() State {
	out := State{Kind: s.Kind}
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	if s.Verification != nil {
		v := *s.Verification
		out.Verification = &v
	}
	return out
}

func (s State) equal(o State) bool {
	if s.Kind != o.Kind {
		return false
	}
	if (s.Session == nil) != (o.Session == nil) {
		return false
	}
	if s.Session != nil && *s.Session != *o.Session {
		return false
	}
	if (s.Verification == nil) != (o.Verification == nil) {
		return false
	}
	if s.Verification != nil && *s.Verification != *o.Verification {
		return false
	}
	return true
}

// Transition describes one state change.
type Transition struct {
	// Seq increases by one for every transition of a machine.
	Seq uint64

	From State
	To   State
}
