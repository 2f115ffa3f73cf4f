package shellauth

import (
	"net/url"
	"testing"
)

func TestParseNavigation(t *testing.T) {
	tests := []struct {
		query      string
		wantVerify bool
		wantEmail  string
		wantResult *Session
	}{
		{query: "", wantVerify: false},
		{query: "verification=true&email=e%40x.com", wantVerify: true, wantEmail: "e@x.com"},
		{query: "verification", wantVerify: true},
		{query: "verification=1", wantVerify: true},
		{query: "verification=false&email=e%40x.com", wantVerify: false, wantEmail: "e@x.com"},
		{query: "verification=0", wantVerify: false},
		{
			query:      "status=success&email=e%40x.com&session=T&name=Eve&purpose=Authenticated",
			wantEmail:  "e@x.com",
			wantResult: &Session{Status: StatusSuccess, Email: "e@x.com", Name: "Eve", SessionToken: "T", Purpose: "Authenticated"},
		},
		{
			query:      "status=fail&purpose=Verification+code+invalid",
			wantResult: &Session{Status: StatusFail, Purpose: "Verification code invalid"},
		},
	}

	for _, tt := range tests {
		q, err := url.ParseQuery(tt.query)
		if err != nil {
			t.Fatalf("ParseQuery(%q): %v", tt.query, err)
		}
		nav := ParseNavigation(q)

		if nav.Verification != tt.wantVerify {
			t.Errorf("%q: Verification = %v, want %v", tt.query, nav.Verification, tt.wantVerify)
		}
		if nav.Email != tt.wantEmail {
			t.Errorf("%q: Email = %q, want %q", tt.query, nav.Email, tt.wantEmail)
		}
		switch {
		case tt.wantResult == nil && nav.Result != nil:
			t.Errorf("%q: unexpected Result %+v", tt.query, *nav.Result)
		case tt.wantResult != nil && nav.Result == nil:
			t.Errorf("%q: missing Result", tt.query)
		case tt.wantResult != nil && *nav.Result != *tt.wantResult:
			t.Errorf("%q: Result = %+v, want %+v", tt.query, *nav.Result, *tt.wantResult)
		}
	}
}
