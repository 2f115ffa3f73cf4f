package shellauth

import "strings"

// Purpose values sent by the remote peer. The peer is not under this
// system's control, so these are matched rather than enumerated.
const (
	// PurposeAuthenticated marks the only success event that establishes a user.
	PurposeAuthenticated = "Authenticated"

	// PurposeCodeSent confirms a verification code email was dispatched.
	PurposeCodeSent = "Send verify code email"
)

// verificationMarkers identify failures caused by a rejected one-time code.
var verificationMarkers = []string{"Verify", "Verification"}

// Outcome is the meaning of a session payload once its status and purpose
// have been interpreted.
type Outcome int

const (
	// OutcomeInvalid is a payload that cannot drive any transition.
	OutcomeInvalid Outcome = iota

	// OutcomeAuthenticated establishes an identity.
	OutcomeAuthenticated

	// OutcomeCodeSent acknowledges that a verification code was sent.
	OutcomeCodeSent

	// OutcomeAcknowledged is any other success payload.
	OutcomeAcknowledged

	// OutcomeVerificationFailed invalidates the submitted one-time code.
	OutcomeVerificationFailed

	// OutcomeFailed is a generic authentication failure.
	OutcomeFailed
)

// String returns a short name for logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeCodeSent:
		return "code_sent"
	case OutcomeAcknowledged:
		return "acknowledged"
	case OutcomeVerificationFailed:
		return "verification_failed"
	case OutcomeFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// IsFailure reports whether the outcome ends the current authentication attempt.
func (o Outcome) IsFailure() bool {
	return o == OutcomeVerificationFailed || o == OutcomeFailed
}

// Classify interprets a session payload. All purpose matching lives here:
//
//   - success + "Authenticated" (exact) with email and token: OutcomeAuthenticated
//   - success + "Authenticated" missing email or token:       OutcomeInvalid
//   - success + prefix "Send verify code email":              OutcomeCodeSent
//   - any other success:                                      OutcomeAcknowledged
//   - fail + purpose containing "Verify" or "Verification":   OutcomeVerificationFailed
//   - any other fail:                                         OutcomeFailed
//
// Matching is case-sensitive.
func Classify(s Session) Outcome {
	switch s.Status {
	case StatusSuccess:
		switch {
		case s.Purpose == PurposeAuthenticated:
			if s.Email == "" || s.SessionToken == "" {
				return OutcomeInvalid
			}
			return OutcomeAuthenticated
		case strings.HasPrefix(s.Purpose, PurposeCodeSent):
			return OutcomeCodeSent
		default:
			return OutcomeAcknowledged
		}
	case StatusFail:
		for _, marker := range verificationMarkers {
			if strings.Contains(s.Purpose, marker) {
				return OutcomeVerificationFailed
			}
		}
		return OutcomeFailed
	default:
		return OutcomeInvalid
	}
}
