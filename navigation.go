package shellauth

import "net/url"

// Navigation holds the parameters the shell was entered with. A handshake
// that completed through a full-page redirect rather than a message arrives
// here as Result.
type Navigation struct {
	// Verification is set when the verification screen was requested.
	Verification bool

	// Email is the address carried by the navigation, if any.
	Email string

	// Result is the handshake outcome carried by the redirect. nil when no
	// status parameter was present.
	Result *Session
}

// ParseNavigation reads the entry parameters verification, email, status,
// session, name and purpose.
//
// verification is a presence flag; an explicit "false" or "0" disables it.
func ParseNavigation(q url.Values) Navigation {
	nav := Navigation{
		Email: q.Get("email"),
	}
	if q.Has("verification") {
		switch q.Get("verification") {
		case "false", "0":
		default:
			nav.Verification = true
		}
	}
	if q.Has("status") {
		nav.Result = &Session{
			Status:       Status(q.Get("status")),
			Email:        q.Get("email"),
			Name:         q.Get("name"),
			SessionToken: q.Get("session"),
			Purpose:      q.Get("purpose"),
		}
	}
	return nav
}
