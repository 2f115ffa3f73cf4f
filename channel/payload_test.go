package channel

import (
	"testing"

	"github.com/infodancer/shellauth"
)

func TestPayloadFromFrame(t *testing.T) {
	tests := []struct {
		frame string
		want  Payload
	}{
		{`{"status":"fail"}`, ObjectPayload{"status": "fail"}},
		{` {"status":"fail"} `, ObjectPayload{"status": "fail"}},
		{`"{\"status\":\"fail\"}"`, StringPayload(`{"status":"fail"}`)},
		{`hello`, StringPayload(`hello`)},
		{`{broken`, StringPayload(`{broken`)},
		{``, StringPayload(``)},
	}

	for _, tt := range tests {
		got := PayloadFromFrame([]byte(tt.frame))
		switch want := tt.want.(type) {
		case ObjectPayload:
			obj, ok := got.(ObjectPayload)
			if !ok {
				t.Errorf("PayloadFromFrame(%q) = %#v, want object", tt.frame, got)
				continue
			}
			if len(obj) != len(want) || obj["status"] != want["status"] {
				t.Errorf("PayloadFromFrame(%q) = %#v, want %#v", tt.frame, obj, want)
			}
		case StringPayload:
			if got != want {
				t.Errorf("PayloadFromFrame(%q) = %#v, want %#v", tt.frame, got, want)
			}
		}
	}
}

func TestParsePayloadFrameEncodings(t *testing.T) {
	want := shellauth.Session{Status: shellauth.StatusFail, Purpose: "Verification code invalid"}

	frames := []string{
		`{"status":"fail","purpose":"Verification code invalid"}`,
		`"{\"status\":\"fail\",\"purpose\":\"Verification code invalid\"}"`,
	}
	for _, f := range frames {
		ev, err := ParsePayload(PayloadFromFrame([]byte(f)))
		if err != nil {
			t.Errorf("ParsePayload(%q): %v", f, err)
			continue
		}
		if ev != want {
			t.Errorf("ParsePayload(%q) = %+v, want %+v", f, ev, want)
		}
	}
}

func TestParsePayloadLegacyFields(t *testing.T) {
	ev, err := ParsePayload(ObjectPayload{
		"status":  "success",
		"email":   "e@x.com",
		"name":    false,
		"session": "L",
		"purpose": "Authenticated",
	})
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if ev.SessionToken != "L" || ev.Name != "" {
		t.Errorf("ParsePayload = %+v", ev)
	}
}
