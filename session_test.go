package shellauth

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	autherrors "github.com/infodancer/shellauth/errors"
)

func TestDecodeSession(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Session
		wantErr bool
	}{
		{
			name:  "full record",
			input: `{"status":"success","email":"e@x.com","name":"Eve","sessionToken":"T","purpose":"Authenticated"}`,
			want:  Session{Status: StatusSuccess, Email: "e@x.com", Name: "Eve", SessionToken: "T", Purpose: "Authenticated"},
		},
		{
			name:  "legacy token field",
			input: `{"status":"success","email":"e@x.com","session":"L","purpose":"Authenticated"}`,
			want:  Session{Status: StatusSuccess, Email: "e@x.com", SessionToken: "L", Purpose: "Authenticated"},
		},
		{
			name:  "sessionToken wins over legacy field",
			input: `{"status":"success","email":"e@x.com","sessionToken":"T","session":"L","purpose":"Authenticated"}`,
			want:  Session{Status: StatusSuccess, Email: "e@x.com", SessionToken: "T", Purpose: "Authenticated"},
		},
		{
			name:  "boolean name",
			input: `{"status":"success","email":"e@x.com","name":false,"sessionToken":"T","purpose":"Authenticated"}`,
			want:  Session{Status: StatusSuccess, Email: "e@x.com", SessionToken: "T", Purpose: "Authenticated"},
		},
		{
			name:  "fail with purpose only",
			input: `{"status":"fail","purpose":"Verification code invalid"}`,
			want:  Session{Status: StatusFail, Purpose: "Verification code invalid"},
		},
		{
			name:  "unknown fields ignored",
			input: `{"status":"fail","extra":1}`,
			want:  Session{Status: StatusFail},
		},
		{name: "missing status", input: `{"email":"e@x.com"}`, wantErr: true},
		{name: "numeric status", input: `{"status":1}`, wantErr: true},
		{name: "numeric name", input: `{"status":"fail","name":3}`, wantErr: true},
		{name: "array", input: `[{"status":"fail"}]`, wantErr: true},
		{name: "string", input: `"status"`, wantErr: true},
		{name: "truncated", input: `{"status":"succ`, wantErr: true},
		{name: "empty", input: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSession([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeSession(%q) = %+v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeSession(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("DecodeSession(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestSessionEncodesPersistedFields(t *testing.T) {
	s := Session{Status: StatusSuccess, Email: "e@x.com", SessionToken: "T", Purpose: PurposeAuthenticated}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"status", "email", "sessionToken", "purpose"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("encoded session missing %q: %s", key, data)
		}
	}
	if _, ok := fields["name"]; ok {
		t.Errorf("empty name should be omitted: %s", data)
	}
}

func TestSessionValidate(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		wantErr bool
	}{
		{"success complete", Session{Status: StatusSuccess, Email: "e", SessionToken: "T"}, false},
		{"success missing email", Session{Status: StatusSuccess, SessionToken: "T"}, true},
		{"success missing token", Session{Status: StatusSuccess, Email: "e"}, true},
		{"fail bare", Session{Status: StatusFail}, false},
		{"unknown status", Session{Status: "pending"}, true},
	}
	for _, tt := range tests {
		err := tt.session.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, autherrors.ErrInvalidSession) {
			t.Errorf("%s: expected ErrInvalidSession, got %v", tt.name, err)
		}
	}
}

func TestIsActiveIdentity(t *testing.T) {
	active := Session{Status: StatusSuccess, Email: "e@x.com", SessionToken: "T", Purpose: PurposeAuthenticated}
	if !active.IsActiveIdentity() {
		t.Error("expected active identity")
	}

	inactive := []Session{
		{Status: StatusSuccess, Email: "e@x.com", SessionToken: "T", Purpose: PurposeCodeSent},
		{Status: StatusSuccess, Email: "e@x.com", SessionToken: "T", Purpose: "authenticated"},
		{Status: StatusSuccess, SessionToken: "T", Purpose: PurposeAuthenticated},
		{Status: StatusSuccess, Email: "e@x.com", Purpose: PurposeAuthenticated},
		{Status: StatusFail, Email: "e@x.com", SessionToken: "T", Purpose: PurposeAuthenticated},
	}
	for _, s := range inactive {
		if s.IsActiveIdentity() {
			t.Errorf("%+v should not be an active identity", s)
		}
	}
}

func TestFingerprintHidesToken(t *testing.T) {
	s := Session{Status: StatusSuccess, Email: "e@x.com", SessionToken: "secret-token", Purpose: PurposeAuthenticated}

	fp := s.Fingerprint()
	if len(fp) != 12 {
		t.Fatalf("Fingerprint() = %q, want 12 hex characters", fp)
	}
	if fp != s.Fingerprint() {
		t.Error("Fingerprint should be stable")
	}
	if (Session{}).Fingerprint() != "" {
		t.Error("empty token should have empty fingerprint")
	}

	if strings.Contains(s.LogValue().String(), "secret-token") {
		t.Error("LogValue leaks the session token")
	}
}
