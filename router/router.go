// Package router decides which top-level screen the shell shows.
package router

import (
	"github.com/infodancer/shellauth"
	"github.com/infodancer/shellauth/authstate"
)

// ScreenKind enumerates the top-level screens.
type ScreenKind int

const (
	ScreenLoading ScreenKind = iota
	ScreenLogin
	ScreenVerification
	ScreenFrame
)

// String returns the screen name.
func (k ScreenKind) String() string {
	switch k {
	case ScreenLoading:
		return "loading"
	case ScreenLogin:
		return "login"
	case ScreenVerification:
		return "verification"
	case ScreenFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Reasons attached to a login screen that replaced a requested one.
const (
	ReasonMissingVerificationContext = "missing_verification_context"
)

// Screen is a routing decision.
type Screen struct {
	Kind ScreenKind

	// FrameURL is the address the frame should show, set for
	// ScreenFrame and ScreenVerification.
	FrameURL string

	// Email is the verification target, set for ScreenVerification.
	Email string

	// Reason explains why the login entry point was chosen instead of the
	// requested screen. Empty for an ordinary login screen.
	Reason string
}

// Router maps machine state to screens.
type Router struct {
	handshake shellauth.Handshake
}

// New creates a router that builds frame addresses with h.
func New(h shellauth.Handshake) *Router {
	return &Router{handshake: h}
}

// Route returns the screen for state. nav is the navigation the shell was
// entered with; it only matters when the state alone is ambiguous.
func (r *Router) Route(state authstate.State, nav shellauth.Navigation) Screen {
	switch state.Kind {
	case authstate.Initializing:
		return Screen{Kind: ScreenLoading}

	case authstate.Authenticated:
		if state.Session == nil {
			return Screen{Kind: ScreenLogin}
		}
		return Screen{
			Kind:     ScreenFrame,
			FrameURL: r.handshake.AuthenticatedURL(*state.Session),
		}

	case authstate.AwaitingVerification:
		if state.Verification == nil || state.Verification.Email == "" {
			return Screen{Kind: ScreenLogin, Reason: ReasonMissingVerificationContext}
		}
		v := state.Verification
		return Screen{
			Kind:     ScreenVerification,
			Email:    v.Email,
			FrameURL: r.handshake.VerificationURL(v.Email, v.SubmittedCode),
		}

	default:
		if nav.Verification && nav.Email == "" {
			return Screen{Kind: ScreenLogin, Reason: ReasonMissingVerificationContext}
		}
		return Screen{Kind: ScreenLogin}
	}
}
