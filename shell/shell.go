// Package shell wires the authentication core together for one process.
//
// A Shell subscribes to the message channel exactly once, before the frame
// is ever rendered, through a channel.HandlerRef. Reloading replaces the
// state machine and repoints the reference; the subscription itself never
// changes.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/infodancer/shellauth"
	"github.com/infodancer/shellauth/authstate"
	"github.com/infodancer/shellauth/channel"
	autherrors "github.com/infodancer/shellauth/errors"
	"github.com/infodancer/shellauth/router"
	"github.com/infodancer/shellauth/verification"
)

// Mock passkey identity.
const (
	passkeyEmail = "passkey-user@example.com"
	passkeyName  = "Passkey User"
	passkeyToken = "mock-session-id-passkey"
)

// Options configures a Shell. Handshake, Store, Channel and Renderer are
// required.
type Options struct {
	Handshake shellauth.Handshake
	Store     shellauth.SessionStore
	Channel   *channel.Channel
	Renderer  shellauth.Renderer
	Notifier  shellauth.Notifier
	Logger    *slog.Logger

	// MockPasskey enables PasskeyLogin.
	MockPasskey bool
}

// Shell is the composition root. It is safe for concurrent use.
type Shell struct {
	handshake   shellauth.Handshake
	store       shellauth.SessionStore
	renderer    shellauth.Renderer
	notifier    shellauth.Notifier
	logger      *slog.Logger
	router      *router.Router
	ref         *channel.HandlerRef
	unsubscribe func()
	mockPasskey bool

	mu             sync.Mutex
	machine        *authstate.Machine
	verifier       *verification.Controller
	removeListener func()
	screen         router.Screen
}

// New creates a shell and subscribes it to opts.Channel. The machine starts
// in Initializing; call Open to read the persisted session.
func New(opts Options) (*Shell, error) {
	if opts.Store == nil || opts.Channel == nil || opts.Renderer == nil {
		return nil, errors.New("shell: store, channel and renderer are required")
	}
	if opts.Handshake.BaseURL() == "" {
		return nil, errors.New("shell: handshake is required")
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = shellauth.NotifierFunc(func(shellauth.Notification) {})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Shell{
		handshake:   opts.Handshake,
		store:       opts.Store,
		renderer:    opts.Renderer,
		notifier:    notifier,
		logger:      logger,
		router:      router.New(opts.Handshake),
		ref:         channel.NewHandlerRef(nil),
		mockPasskey: opts.MockPasskey,
		screen:      router.Screen{Kind: router.ScreenLoading},
	}
	s.unsubscribe = opts.Channel.OnServerEvent(s.ref.Handle)

	s.mu.Lock()
	s.installLocked()
	s.mu.Unlock()
	return s, nil
}

// installLocked replaces the machine and points the channel reference at it.
func (s *Shell) installLocked() {
	if s.removeListener != nil {
		s.removeListener()
	}

	m := authstate.New(s.store, authstate.Options{
		Notifier: s.notifier,
		Logger:   s.logger,
	})
	s.machine = m
	s.verifier = verification.NewController(m, s.renderer, s.handshake, s.logger)
	s.removeListener = m.OnChange(s.onTransition)
	s.screen = router.Screen{Kind: router.ScreenLoading}
	s.ref.Set(m.HandleServerEvent)
}

// Open reads the persisted session, applies nav and shows the resulting
// screen. Storage and authentication failures have already been shown to the
// user as notifications and are not returned.
func (s *Shell) Open(ctx context.Context, nav shellauth.Navigation) (router.Screen, error) {
	s.mu.Lock()
	m, verifier := s.machine, s.verifier
	s.mu.Unlock()

	if err := m.Start(ctx); err != nil {
		s.logger.Warn("starting without persisted session", slog.String("error", err.Error()))
	}

	err := m.ApplyNavigation(ctx, nav)
	switch {
	case err == nil:
	case errors.Is(err, autherrors.ErrMissingVerificationContext):
		s.logger.Info("verification requested without email, returning to login")
	case errors.Is(err, autherrors.ErrAuthenticationFailed),
		errors.Is(err, autherrors.ErrStorageUnavailable):
		s.logger.Debug("navigation applied with failure", slog.String("error", err.Error()))
	default:
		return s.Screen(), fmt.Errorf("apply navigation: %w", err)
	}

	state := m.State()
	if state.Kind == authstate.AwaitingVerification && state.Verification != nil {
		if _, err := verifier.Begin(ctx, state.Verification.Email); err != nil {
			return s.Screen(), err
		}
	}
	return s.route(state, nav), nil
}

// Reload discards in-memory state and opens the shell again with no
// navigation parameters, as a full page reload to the entry point would.
func (s *Shell) Reload(ctx context.Context) (router.Screen, error) {
	s.mu.Lock()
	s.installLocked()
	s.mu.Unlock()

	s.logger.Debug("shell reloaded")
	return s.Open(ctx, shellauth.Navigation{})
}

// Close removes the shell's channel subscription.
func (s *Shell) Close() {
	s.unsubscribe()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeListener != nil {
		s.removeListener()
		s.removeListener = nil
	}
	s.ref.Set(nil)
}

// State returns the current machine state.
func (s *Shell) State() authstate.State {
	return s.current().State()
}

// Screen returns the last routing decision.
func (s *Shell) Screen() router.Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.screen
}

// Handshake returns the handshake the shell builds frame addresses with.
func (s *Shell) Handshake() shellauth.Handshake {
	return s.handshake
}

// Logout ends the session.
func (s *Shell) Logout(ctx context.Context) error {
	return s.current().Logout(ctx)
}

// PasskeyLogin signs in with a fixed mock identity. It is only available when
// enabled in Options.
func (s *Shell) PasskeyLogin(ctx context.Context) error {
	if !s.mockPasskey {
		return autherrors.ErrPasskeyDisabled
	}
	return s.current().Login(ctx, shellauth.Session{
		Status:       shellauth.StatusSuccess,
		Email:        passkeyEmail,
		Name:         passkeyName,
		SessionToken: passkeyToken,
		Purpose:      shellauth.PurposeAuthenticated,
	})
}

// BeginVerification starts the email-code flow for email.
func (s *Shell) BeginVerification(ctx context.Context, email string) (shellauth.FrameHandle, error) {
	return s.controller().Begin(ctx, email)
}

// SubmitCode re-issues the verification handshake carrying code.
func (s *Shell) SubmitCode(ctx context.Context, code string) (shellauth.FrameHandle, error) {
	return s.controller().SubmitCode(ctx, code)
}

// CancelVerification abandons the email-code flow.
func (s *Shell) CancelVerification(ctx context.Context) error {
	return s.controller().Cancel(ctx)
}

func (s *Shell) current() *authstate.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine
}

func (s *Shell) controller() *verification.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifier
}

func (s *Shell) route(state authstate.State, nav shellauth.Navigation) router.Screen {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen = s.router.Route(state, nav)
	return s.screen
}

// onTransition re-routes after every transition and loads the frame when a
// session becomes active or changes. Verification pages are loaded by the
// controller.
func (s *Shell) onTransition(t authstate.Transition) {
	screen := s.route(t.To, shellauth.Navigation{})

	s.logger.Debug("screen",
		slog.String("screen", screen.Kind.String()),
		slog.Uint64("seq", t.Seq))

	if screen.Kind != router.ScreenFrame {
		return
	}
	if t.From.Kind == authstate.Authenticated && t.From.Session != nil && *t.From.Session == *t.To.Session {
		return
	}
	if _, err := s.renderer.Render(context.Background(), screen.FrameURL); err != nil {
		s.logger.Warn("failed to render frame", slog.String("error", err.Error()))
	}
}
