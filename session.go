// Package shellauth bridges authentication state between a native shell and
// the remote web application it embeds in a sandboxed frame.
//
// The root package holds the data model shared by every component: the
// Session record, the purpose classification rules, handshake URLs and
// navigation parameters, and the interfaces of the shell's collaborators.
package shellauth

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zeebo/blake3"

	autherrors "github.com/infodancer/shellauth/errors"
)

// Status is the outcome of the most recent authentication attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusFail
}

// Session is the authenticated-identity record exchanged with the remote peer
// and persisted on the device.
type Session struct {
	// Status is the outcome reported by the peer.
	Status Status `json:"status"`

	// Email identifies the user. Required when Status is success.
	Email string `json:"email"`

	// Name is an optional display name.
	Name string `json:"name,omitempty"`

	// SessionToken is an opaque bearer credential. It is never parsed and
	// never logged.
	SessionToken string `json:"sessionToken"`

	// Purpose is free text from the peer. It doubles as a sub-status
	// discriminator; see Classify.
	Purpose string `json:"purpose"`
}

// wireSession is the decoding shape for Session. The peer has historically
// sent the token as "session" and a missing name as false.
type wireSession struct {
	Status       *string         `json:"status"`
	Email        *string         `json:"email"`
	Name         json.RawMessage `json:"name"`
	SessionToken *string         `json:"sessionToken"`
	LegacyToken  *string         `json:"session"`
	Purpose      *string         `json:"purpose"`
}

// UnmarshalJSON decodes a session record. Known fields with the wrong JSON
// type make the record malformed; unknown fields are ignored.
func (s *Session) UnmarshalJSON(data []byte) error {
	var w wireSession
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Status == nil {
		return fmt.Errorf("session: missing status")
	}

	name, err := decodeName(w.Name)
	if err != nil {
		return err
	}

	out := Session{
		Status: Status(*w.Status),
		Name:   name,
	}
	if w.Email != nil {
		out.Email = *w.Email
	}
	if w.Purpose != nil {
		out.Purpose = *w.Purpose
	}
	switch {
	case w.SessionToken != nil:
		out.SessionToken = *w.SessionToken
	case w.LegacyToken != nil:
		out.SessionToken = *w.LegacyToken
	}

	*s = out
	return nil
}

// decodeName accepts a string, null, or a boolean (false meaning "no name").
func decodeName(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return name, nil
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		return "", nil
	}
	return "", fmt.Errorf("session: name must be a string or boolean")
}

// DecodeSession parses a JSON-encoded session record. The top-level value
// must be an object.
func DecodeSession(data []byte) (Session, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Session{}, fmt.Errorf("session: expected JSON object")
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Validate checks the record shape: a known status, and an email and token
// for successful outcomes.
func (s Session) Validate() error {
	if !s.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", autherrors.ErrInvalidSession, s.Status)
	}
	if s.Status == StatusSuccess {
		if s.Email == "" {
			return fmt.Errorf("%w: missing email", autherrors.ErrInvalidSession)
		}
		if s.SessionToken == "" {
			return fmt.Errorf("%w: missing session token", autherrors.ErrInvalidSession)
		}
	}
	return nil
}

// IsActiveIdentity reports whether s is the one form that may be persisted or
// exposed as the current user.
func (s Session) IsActiveIdentity() bool {
	return s.Status == StatusSuccess &&
		s.Purpose == PurposeAuthenticated &&
		s.Email != "" &&
		s.SessionToken != ""
}

// Fingerprint returns a short, non-reversible identifier for the session
// token, suitable for logs. Empty tokens produce an empty fingerprint.
func (s Session) Fingerprint() string {
	if s.SessionToken == "" {
		return ""
	}
	sum := blake3.Sum256([]byte(s.SessionToken))
	return hex.EncodeToString(sum[:6])
}

// LogValue implements slog.LogValuer so sessions can be logged without
// leaking the bearer token.
func (s Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("status", string(s.Status)),
		slog.String("email", s.Email),
		slog.String("purpose", s.Purpose),
		slog.String("token", s.Fingerprint()),
	)
}
