package shellhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/infodancer/shellauth"
	"github.com/infodancer/shellauth/channel"
	"github.com/infodancer/shellauth/frame"
	"github.com/infodancer/shellauth/kv/memkv"
	"github.com/infodancer/shellauth/notify"
	"github.com/infodancer/shellauth/sessionstore"
	"github.com/infodancer/shellauth/shell"
)

const (
	baseURL = "https://mystaffpro.com/v6/m_mobile"
	origin  = "https://mystaffpro.com"
)

type testServer struct {
	handler       http.Handler
	channel       *channel.Channel
	frames        *frame.Recorder
	notifications *notify.Queue
}

func newTestServer(t *testing.T, mockPasskey bool) *testServer {
	t.Helper()
	h, err := shellauth.NewHandshake(baseURL)
	if err != nil {
		t.Fatalf("NewHandshake: %v", err)
	}
	ch, err := channel.New(origin, nil)
	if err != nil {
		t.Fatalf("channel.New: %v", err)
	}
	frames := frame.NewRecorder()
	notifications := notify.NewQueue(0, nil)

	sh, err := shell.New(shell.Options{
		Handshake:   h,
		Store:       sessionstore.New(memkv.New(), sessionstore.Options{}),
		Channel:     ch,
		Renderer:    frames,
		Notifier:    notifications,
		MockPasskey: mockPasskey,
	})
	if err != nil {
		t.Fatalf("shell.New: %v", err)
	}
	t.Cleanup(sh.Close)

	srv := NewServer(Options{
		Shell:         sh,
		Frames:        frames,
		Notifications: notifications,
		Messages:      channel.NewTransport(ch, nil, nil),
		MockPasskey:   mockPasskey,
	})
	return &testServer{
		handler:       srv.Handler(),
		channel:       ch,
		frames:        frames,
		notifications: notifications,
	}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestEntryRedirectsToLogin(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/", "")
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("GET / = %d %q, want 303 /login", rec.Code, rec.Header().Get("Location"))
	}

	rec = ts.do(t, http.MethodGet, "/?verification=true", "")
	if loc := rec.Header().Get("Location"); loc != "/login?reason=missing_verification_context" {
		t.Errorf("Location = %q", loc)
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodGet, "/login?reason=missing_verification_context", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /login = %d", rec.Code)
	}
	resp := decode[loginResponse](t, rec)
	if resp.Screen != "login" || resp.Reason != "missing_verification_context" || !resp.Passkey {
		t.Errorf("response = %+v", resp)
	}
}

func TestEntryVerification(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodGet, "/?verification=true&email=e%40x.com", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / = %d", rec.Code)
	}
	resp := decode[screenResponse](t, rec)
	if resp.Screen != "verification" || resp.Email != "e@x.com" {
		t.Errorf("response = %+v", resp)
	}

	rec = ts.do(t, http.MethodGet, "/api/frame", "")
	fr := decode[frameResponse](t, rec)
	if fr.URL != baseURL+"?verification=true&email=e%40x.com" || fr.Loaded {
		t.Errorf("frame = %+v", fr)
	}
}

func TestVerificationEndpoints(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodGet, "/", "")

	rec := ts.do(t, http.MethodPost, "/api/verification", `{"email":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty email = %d, want 400", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/verification/code", `{"code":"123456"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("code without flow = %d, want 409", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/verification", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body = %d, want 400", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/verification", `{"email":"e@x.com"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("begin = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/verification/code", `{"code":" "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank code = %d, want 400", rec.Code)
	}
	rec = ts.do(t, http.MethodPost, "/api/verification/code", `{"code":"123456"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit = %d", rec.Code)
	}

	state := decode[stateResponse](t, ts.do(t, http.MethodGet, "/api/state", ""))
	if state.State != "awaiting_verification" || state.VerificationEmail != "e@x.com" || !state.CodeSubmitted {
		t.Errorf("state = %+v", state)
	}

	rec = ts.do(t, http.MethodPost, "/api/verification/cancel", "")
	if resp := decode[screenResponse](t, rec); resp.Screen != "login" {
		t.Errorf("cancel response = %+v", resp)
	}
}

func TestChannelEventAuthenticates(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodGet, "/?verification=true&email=e%40x.com", "")

	err := ts.channel.Deliver(context.Background(), channel.Message{
		Origin: origin,
		Data: channel.ObjectPayload{
			"status":       "success",
			"email":        "e@x.com",
			"sessionToken": "T",
			"purpose":      "Authenticated",
		},
	})
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	state := decode[stateResponse](t, ts.do(t, http.MethodGet, "/api/state", ""))
	if !state.Authenticated || state.Email != "e@x.com" || state.Screen != "frame" {
		t.Errorf("state = %+v", state)
	}
	if state.TokenFingerprint == "" || state.TokenFingerprint == "T" {
		t.Errorf("fingerprint = %q", state.TokenFingerprint)
	}

	rec := ts.do(t, http.MethodPost, "/api/logout", "")
	if resp := decode[screenResponse](t, rec); resp.Screen != "login" {
		t.Errorf("logout response = %+v", resp)
	}
}

func TestPasskeyLogin(t *testing.T) {
	disabled := newTestServer(t, false)
	disabled.do(t, http.MethodGet, "/", "")
	if rec := disabled.do(t, http.MethodPost, "/api/login/passkey", ""); rec.Code != http.StatusNotFound {
		t.Errorf("disabled passkey = %d, want 404", rec.Code)
	}

	ts := newTestServer(t, true)
	ts.do(t, http.MethodGet, "/", "")
	rec := ts.do(t, http.MethodPost, "/api/login/passkey", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("passkey = %d", rec.Code)
	}
	resp := decode[screenResponse](t, rec)
	if resp.Screen != "frame" || !strings.Contains(resp.FrameURL, "session=mock-session-id-passkey") {
		t.Errorf("response = %+v", resp)
	}
}

func TestFailureNotifications(t *testing.T) {
	ts := newTestServer(t, false)
	ts.do(t, http.MethodGet, "/?status=fail&purpose=Account+locked", "")

	items := decode[[]notify.Item](t, ts.do(t, http.MethodGet, "/api/notifications", ""))
	if len(items) != 1 || items[0].Title != "Authentication Failed" || items[0].Message != "Account locked" {
		t.Fatalf("notifications = %+v", items)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/notifications/"+items[0].ID, ""); rec.Code != http.StatusNoContent {
		t.Errorf("dismiss = %d, want 204", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/notifications/"+items[0].ID, ""); rec.Code != http.StatusNotFound {
		t.Errorf("second dismiss = %d, want 404", rec.Code)
	}
}

func TestFrameEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	if rec := ts.do(t, http.MethodGet, "/api/frame", ""); rec.Code != http.StatusNotFound {
		t.Errorf("frame before render = %d, want 404", rec.Code)
	}

	ts.do(t, http.MethodGet, "/?verification=true&email=e%40x.com", "")
	fr := decode[frameResponse](t, ts.do(t, http.MethodGet, "/api/frame", ""))

	if rec := ts.do(t, http.MethodPost, "/api/frame/stale/loaded", ""); rec.Code != http.StatusConflict {
		t.Errorf("stale load = %d, want 409", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/api/frame/"+fr.ID+"/loaded", ""); rec.Code != http.StatusNoContent {
		t.Errorf("load = %d, want 204", rec.Code)
	}

	fr = decode[frameResponse](t, ts.do(t, http.MethodGet, "/api/frame", ""))
	if !fr.Loaded {
		t.Error("frame not marked loaded")
	}
}
