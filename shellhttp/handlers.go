package shellhttp

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/infodancer/shellauth"
	"github.com/infodancer/shellauth/authstate"
	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/frame"
	"github.com/infodancer/shellauth/router"
)

type screenResponse struct {
	Screen   string `json:"screen"`
	FrameURL string `json:"frameUrl,omitempty"`
	Email    string `json:"email,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type loginResponse struct {
	Screen  string `json:"screen"`
	Reason  string `json:"reason,omitempty"`
	Passkey bool   `json:"passkey"`
}

type stateResponse struct {
	State             string `json:"state"`
	Authenticated     bool   `json:"authenticated"`
	Loading           bool   `json:"loading"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
	Purpose           string `json:"purpose,omitempty"`
	TokenFingerprint  string `json:"tokenFingerprint,omitempty"`
	VerificationEmail string `json:"verificationEmail,omitempty"`
	CodeSubmitted     bool   `json:"codeSubmitted,omitempty"`
	Screen            string `json:"screen"`
}

type frameResponse struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	RenderedAt string `json:"renderedAt"`
	Loaded     bool   `json:"loaded"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Code string `json:"code"`
}

func toScreenResponse(sc router.Screen) screenResponse {
	return screenResponse{
		Screen:   sc.Kind.String(),
		FrameURL: sc.FrameURL,
		Email:    sc.Email,
		Reason:   sc.Reason,
	}
}

// handleEntry applies the navigation parameters and reports the resulting
// screen, redirecting to /login when no session is active.
func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	nav := shellauth.ParseNavigation(r.URL.Query())
	screen, err := s.shell.Open(r.Context(), nav)
	if err != nil {
		s.logger.Warn("open shell", slog.String("error", err.Error()))
		s.respondError(w, http.StatusInternalServerError, "could not open shell")
		return
	}

	if screen.Kind == router.ScreenLogin {
		target := "/login"
		if screen.Reason != "" {
			target += "?" + url.Values{"reason": {screen.Reason}}.Encode()
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	s.respondJSON(w, http.StatusOK, toScreenResponse(screen))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, loginResponse{
		Screen:  router.ScreenLogin.String(),
		Reason:  r.URL.Query().Get("reason"),
		Passkey: s.mockPasskey,
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	state := s.shell.State()
	resp := stateResponse{
		State:         state.Kind.String(),
		Authenticated: state.IsAuthenticated(),
		Loading:       state.IsLoading(),
		Screen:        s.shell.Screen().Kind.String(),
	}
	if state.Kind == authstate.Authenticated && state.Session != nil {
		resp.Email = state.Session.Email
		resp.Name = state.Session.Name
		resp.Purpose = state.Session.Purpose
		resp.TokenFingerprint = state.Session.Fingerprint()
	}
	if state.Verification != nil {
		resp.VerificationEmail = state.Verification.Email
		resp.CodeSubmitted = state.Verification.SubmittedCode != ""
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.shell.Logout(r.Context()); err != nil {
		s.logger.Warn("logout", slog.String("error", err.Error()))
	}
	s.respondJSON(w, http.StatusOK, toScreenResponse(s.shell.Screen()))
}

func (s *Server) handlePasskeyLogin(w http.ResponseWriter, r *http.Request) {
	err := s.shell.PasskeyLogin(r.Context())
	switch {
	case errors.Is(err, autherrors.ErrPasskeyDisabled):
		s.respondError(w, http.StatusNotFound, "passkey sign-in is not available")
		return
	case err != nil && !errors.Is(err, autherrors.ErrStorageUnavailable):
		s.respondError(w, http.StatusInternalServerError, "passkey sign-in failed")
		return
	}
	s.respondJSON(w, http.StatusOK, toScreenResponse(s.shell.Screen()))
}

func (s *Server) handleBeginVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.shell.BeginVerification(r.Context(), req.Email); err != nil {
		s.respondFlowError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, toScreenResponse(s.shell.Screen()))
}

func (s *Server) handleSubmitCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.shell.SubmitCode(r.Context(), req.Code); err != nil {
		s.respondFlowError(w, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, toScreenResponse(s.shell.Screen()))
}

func (s *Server) handleCancelVerification(w http.ResponseWriter, r *http.Request) {
	if err := s.shell.CancelVerification(r.Context()); err != nil {
		s.logger.Warn("cancel verification", slog.String("error", err.Error()))
	}
	s.respondJSON(w, http.StatusOK, toScreenResponse(s.shell.Screen()))
}

func (s *Server) handleListNotifications(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, s.notifications.Pending())
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	if !s.notifications.Dismiss(chi.URLParam(r, "id")) {
		s.respondError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	h, loaded, ok := s.frames.Current()
	if !ok {
		s.respondError(w, http.StatusNotFound, "nothing rendered")
		return
	}
	s.respondJSON(w, http.StatusOK, frameResponse{
		ID:         h.ID,
		URL:        h.URL,
		RenderedAt: h.RenderedAt.UTC().Format(time.RFC3339Nano),
		Loaded:     loaded,
	})
}

func (s *Server) handleFrameLoaded(w http.ResponseWriter, r *http.Request) {
	if err := s.frames.Loaded(chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, frame.ErrStaleFrame) {
			s.respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.respondError(w, http.StatusInternalServerError, "could not record load")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondFlowError maps verification flow errors to statuses.
func (s *Server) respondFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, autherrors.ErrMissingVerificationContext),
		errors.Is(err, autherrors.ErrEmptyCode):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, autherrors.ErrNotAwaitingVerification),
		errors.Is(err, autherrors.ErrAlreadyAuthenticated),
		errors.Is(err, autherrors.ErrNotStarted):
		s.respondError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Warn("verification flow", slog.String("error", err.Error()))
		s.respondError(w, http.StatusInternalServerError, "verification failed")
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
