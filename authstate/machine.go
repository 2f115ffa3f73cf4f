package authstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/infodancer/shellauth"
	autherrors "github.com/infodancer/shellauth/errors"
)

// Notification texts shown to the user.
const (
	failureTitle          = "Authentication Failed"
	failureDefaultMessage = "An unknown error occurred on the server."
	saveFailedTitle       = "Login Error"
	saveFailedMessage     = "Could not save session to device."
	loadFailedTitle       = "Session Unavailable"
	loadFailedMessage     = "Could not read the saved session from this device."
)

// Listener observes transitions. Listeners run after the machine lock has
// been released, in subscription order.
type Listener func(Transition)

// Options configures a Machine.
type Options struct {
	// Notifier shows failures to the user. Defaults to dropping them.
	Notifier shellauth.Notifier

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Machine is the session state machine. It is safe for concurrent use.
//
// Storage failures never block a transition: the state changes first and the
// storage error is returned afterwards, wrapping
// errors.ErrStorageUnavailable, for callers that want to report it.
type Machine struct {
	store    shellauth.SessionStore
	notifier shellauth.Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	state State
	seq   uint64

	listenersMu  sync.RWMutex
	listeners    []registeredListener
	nextListener uint64
}

type registeredListener struct {
	id uint64
	fn Listener
}

// effects collects what must happen once the lock is released.
type effects struct {
	transition    *Transition
	notifications []shellauth.Notification
}

// New creates a machine in the Initializing state.
func New(store shellauth.SessionStore, opts Options) *Machine {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = shellauth.NotifierFunc(func(shellauth.Notification) {})
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		store:    store,
		notifier: notifier,
		logger:   logger,
		state:    State{Kind: Initializing},
	}
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// IsAuthenticated reports whether a session is active.
func (m *Machine) IsAuthenticated() bool {
	return m.State().IsAuthenticated()
}

// IsLoading reports whether the persisted session has not been read yet.
func (m *Machine) IsLoading() bool {
	return m.State().IsLoading()
}

// OnChange registers l for future transitions and returns a function that
// removes it.
func (m *Machine) OnChange(l Listener) (remove func()) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	m.nextListener++
	id := m.nextListener
	m.listeners = append(m.listeners, registeredListener{id: id, fn: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenersMu.Lock()
			defer m.listenersMu.Unlock()
			for i, rl := range m.listeners {
				if rl.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Start reads the persisted session and leaves Initializing. A record that
// is an active identity yields Authenticated; anything else yields
// Unauthenticated, and a stored record that is not an active identity is
// cleared. Start does nothing if the machine has already left Initializing.
//
// If storage cannot be read the machine still becomes Unauthenticated and a
// warning is shown; the returned error wraps errors.ErrStorageUnavailable.
func (m *Machine) Start(ctx context.Context) error {
	var eff effects

	m.mu.Lock()
	if m.state.Kind != Initializing {
		m.mu.Unlock()
		return nil
	}

	loaded, err := m.store.Load(ctx)
	switch {
	case err != nil:
		m.logger.Warn("session storage unavailable at startup", slog.String("error", err.Error()))
		eff.notifications = append(eff.notifications, shellauth.Notification{
			Severity: shellauth.SeverityWarning,
			Title:    loadFailedTitle,
			Message:  loadFailedMessage,
		})
		eff.transition = m.setLocked(State{Kind: Unauthenticated})
	case loaded == nil:
		eff.transition = m.setLocked(State{Kind: Unauthenticated})
	case !loaded.IsActiveIdentity():
		m.logger.Info("clearing persisted session that is not an active identity",
			slog.Any("session", *loaded))
		if clearErr := m.store.Clear(ctx); clearErr != nil {
			m.logger.Warn("failed to clear persisted session", slog.String("error", clearErr.Error()))
		}
		eff.transition = m.setLocked(State{Kind: Unauthenticated})
	default:
		m.logger.Debug("restored persisted session", slog.Any("session", *loaded))
		eff.transition = m.setLocked(State{Kind: Authenticated, Session: loaded})
	}
	m.mu.Unlock()

	m.flush(eff)
	return err
}

// Login establishes s as the current user, exactly as a successful
// handshake would: the session is persisted and the state becomes
// Authenticated. s must be an active identity.
func (m *Machine) Login(ctx context.Context, s shellauth.Session) error {
	if !s.IsActiveIdentity() {
		return fmt.Errorf("login: %w: not an active identity", autherrors.ErrInvalidSession)
	}

	var eff effects
	m.mu.Lock()
	err := m.enterAuthenticatedLocked(ctx, s, &eff)
	m.mu.Unlock()

	m.flush(eff)
	return err
}

// Logout clears the persisted session and returns to Unauthenticated.
// Calling it while unauthenticated is a no-op apart from clearing storage.
func (m *Machine) Logout(ctx context.Context) error {
	var eff effects
	m.mu.Lock()
	err := m.enterUnauthenticatedLocked(ctx, &eff)
	m.mu.Unlock()

	m.flush(eff)
	return err
}

// RequestVerification starts the email-code flow for email.
// Requesting the same email again keeps the current request.
func (m *Machine) RequestVerification(_ context.Context, email string) error {
	var eff effects
	m.mu.Lock()
	err := m.requestVerificationLocked(email, &eff)
	m.mu.Unlock()

	m.flush(eff)
	return err
}

func (m *Machine) requestVerificationLocked(email string, eff *effects) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return autherrors.ErrMissingVerificationContext
	}

	switch m.state.Kind {
	case Initializing:
		return autherrors.ErrNotStarted
	case Authenticated:
		return autherrors.ErrAlreadyAuthenticated
	case AwaitingVerification:
		if m.state.Verification != nil && m.state.Verification.Email == email {
			return nil
		}
	}

	eff.transition = m.setLocked(State{
		Kind:         AwaitingVerification,
		Verification: &VerificationRequest{Email: email},
	})
	return nil
}

// RecordSubmittedCode stores code on the verification in progress and
// returns the updated request. It fails with
// errors.ErrNotAwaitingVerification once the flow has resolved, so a code
// cannot outlive the request it was entered for.
func (m *Machine) RecordSubmittedCode(code string) (VerificationRequest, error) {
	var eff effects
	m.mu.Lock()
	if m.state.Kind != AwaitingVerification || m.state.Verification == nil {
		m.mu.Unlock()
		return VerificationRequest{}, autherrors.ErrNotAwaitingVerification
	}
	req := VerificationRequest{Email: m.state.Verification.Email, SubmittedCode: code}
	eff.transition = m.setLocked(State{Kind: AwaitingVerification, Verification: &req})
	m.mu.Unlock()

	m.flush(eff)
	return req, nil
}

// CancelVerification abandons the verification in progress and returns to
// Unauthenticated. It does nothing in any other state.
func (m *Machine) CancelVerification(ctx context.Context) error {
	var eff effects
	m.mu.Lock()
	if m.state.Kind != AwaitingVerification {
		m.mu.Unlock()
		return nil
	}
	err := m.enterUnauthenticatedLocked(ctx, &eff)
	m.mu.Unlock()

	m.flush(eff)
	return err
}

// HandleServerEvent applies an event from the message channel. It has the
// signature of a channel handler.
//
// Only an Authenticated event promotes, and only while a verification is in
// progress (or to refresh an already-active session). The same event in
// Initializing or Unauthenticated, such as a late reply to an abandoned
// flow, is logged and ignored. Failures move any state to Unauthenticated.
func (m *Machine) HandleServerEvent(ctx context.Context, ev shellauth.Session) {
	outcome := shellauth.Classify(ev)

	var eff effects
	m.mu.Lock()
	switch outcome {
	case shellauth.OutcomeAuthenticated:
		switch m.state.Kind {
		case AwaitingVerification, Authenticated:
			if err := m.enterAuthenticatedLocked(ctx, ev, &eff); err != nil && !errors.Is(err, autherrors.ErrStorageUnavailable) {
				m.logger.Warn("failed to apply server event", slog.String("error", err.Error()))
			}
		default:
			m.logger.Info("ignoring authenticated event",
				slog.String("state", m.state.Kind.String()),
				slog.Any("event", ev))
		}
	case shellauth.OutcomeCodeSent:
		m.logger.Info("verification code sent", slog.String("email", ev.Email))
	case shellauth.OutcomeVerificationFailed, shellauth.OutcomeFailed:
		m.failLocked(ctx, ev, outcome, &eff)
	case shellauth.OutcomeAcknowledged:
		m.logger.Debug("server event acknowledged", slog.Any("event", ev))
	default:
		m.logger.Debug("ignoring invalid server event", slog.Any("event", ev))
	}
	m.mu.Unlock()

	m.flush(eff)
}

// ApplyNavigation applies the parameters the shell was entered with. A
// redirect result is an explicit navigation and is applied from any started
// state. A failed result has already been applied and shown when
// errors.ErrAuthenticationFailed is returned. A verification request without
// an email returns errors.ErrMissingVerificationContext and changes nothing.
//
// Returns errors.ErrNotStarted while Initializing.
func (m *Machine) ApplyNavigation(ctx context.Context, nav shellauth.Navigation) error {
	var (
		eff effects
		err error
	)

	m.mu.Lock()
	err = m.applyNavigationLocked(ctx, nav, &eff)
	m.mu.Unlock()

	m.flush(eff)
	return err
}

func (m *Machine) applyNavigationLocked(ctx context.Context, nav shellauth.Navigation, eff *effects) error {
	if m.state.Kind == Initializing {
		return autherrors.ErrNotStarted
	}

	if nav.Result != nil {
		outcome := shellauth.Classify(*nav.Result)
		switch {
		case outcome == shellauth.OutcomeAuthenticated:
			return m.enterAuthenticatedLocked(ctx, *nav.Result, eff)
		case outcome.IsFailure():
			m.failLocked(ctx, *nav.Result, outcome, eff)
			return fmt.Errorf("%w: %s", autherrors.ErrAuthenticationFailed, nav.Result.Purpose)
		}
	}

	if !nav.Verification || m.state.Kind == Authenticated {
		return nil
	}
	return m.requestVerificationLocked(nav.Email, eff)
}

// enterAuthenticatedLocked persists s and moves to Authenticated. The state
// changes even if persisting fails.
func (m *Machine) enterAuthenticatedLocked(ctx context.Context, s shellauth.Session, eff *effects) error {
	if m.state.Kind == Authenticated && m.state.Session != nil && *m.state.Session == s {
		return nil
	}

	saveErr := m.store.Save(ctx, s)
	sess := s
	eff.transition = m.setLocked(State{Kind: Authenticated, Session: &sess})

	if saveErr != nil {
		m.logger.Warn("could not persist session", slog.String("error", saveErr.Error()))
		eff.notifications = append(eff.notifications, shellauth.Notification{
			Severity: shellauth.SeverityWarning,
			Title:    saveFailedTitle,
			Message:  saveFailedMessage,
		})
		return saveErr
	}
	m.logger.Info("session established", slog.Any("session", s))
	return nil
}

// enterUnauthenticatedLocked clears storage and moves to Unauthenticated,
// discarding any verification request.
func (m *Machine) enterUnauthenticatedLocked(ctx context.Context, eff *effects) error {
	clearErr := m.store.Clear(ctx)
	if clearErr != nil {
		m.logger.Warn("could not clear persisted session", slog.String("error", clearErr.Error()))
	}
	eff.transition = m.setLocked(State{Kind: Unauthenticated})
	return clearErr
}

// failLocked handles a status=fail outcome from any state.
func (m *Machine) failLocked(ctx context.Context, ev shellauth.Session, outcome shellauth.Outcome, eff *effects) {
	m.logger.Info("authentication failed",
		slog.String("outcome", outcome.String()),
		slog.String("state", m.state.Kind.String()),
		slog.String("purpose", ev.Purpose))

	_ = m.enterUnauthenticatedLocked(ctx, eff)

	message := ev.Purpose
	if message == "" {
		message = failureDefaultMessage
	}
	eff.notifications = append(eff.notifications, shellauth.Notification{
		Severity: shellauth.SeverityError,
		Title:    failureTitle,
		Message:  message,
	})
}

// setLocked replaces the state and returns the transition, or nil if
// nothing changed.
func (m *Machine) setLocked(next State) *Transition {
	if m.state.equal(next) {
		return nil
	}
	m.seq++
	t := &Transition{
		Seq:  m.seq,
		From: m.state.clone(),
		To:   next.clone(),
	}
	m.state = next.clone()
	m.logger.Debug("state transition",
		slog.String("from", t.From.Kind.String()),
		slog.String("to", t.To.Kind.String()))
	return t
}

// flush runs listeners and shows notifications. Called without m.mu held.
func (m *Machine) flush(eff effects) {
	if eff.transition != nil {
		m.listenersMu.RLock()
		listeners := make([]registeredListener, len(m.listeners))
		copy(listeners, m.listeners)
		m.listenersMu.RUnlock()

		for _, rl := range listeners {
			rl.fn(*eff.transition)
		}
	}
	for _, n := range eff.notifications {
		m.notifier.Notify(n)
	}
}
