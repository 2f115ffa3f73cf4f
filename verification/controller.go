// Package verification drives the email-code sub-flow.
//
// The controller never decides whether a code is correct. Submitting a code
// re-issues the handshake with the code attached and the outcome arrives
// later through the message channel.
package verification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/infodancer/shellauth"
	"github.com/infodancer/shellauth/authstate"
	autherrors "github.com/infodancer/shellauth/errors"
)

// Flow is the part of the state machine the controller drives.
type Flow interface {
	RequestVerification(ctx context.Context, email string) error
	RecordSubmittedCode(code string) (authstate.VerificationRequest, error)
	CancelVerification(ctx context.Context) error
}

var _ Flow = (*authstate.Machine)(nil)

// Controller manages code submission for one shell.
type Controller struct {
	flow      Flow
	renderer  shellauth.Renderer
	handshake shellauth.Handshake
	logger    *slog.Logger
}

// NewController creates a controller. logger may be nil.
func NewController(flow Flow, renderer shellauth.Renderer, handshake shellauth.Handshake, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		flow:      flow,
		renderer:  renderer,
		handshake: handshake,
		logger:    logger,
	}
}

// Begin enters the verification flow for email and loads the verification
// page into the frame. An empty email returns
// errors.ErrMissingVerificationContext without touching the frame; the
// caller sends the user back to the login entry point.
func (c *Controller) Begin(ctx context.Context, email string) (shellauth.FrameHandle, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return shellauth.FrameHandle{}, autherrors.ErrMissingVerificationContext
	}
	if err := c.flow.RequestVerification(ctx, email); err != nil {
		return shellauth.FrameHandle{}, fmt.Errorf("begin verification: %w", err)
	}

	h, err := c.renderer.Render(ctx, c.handshake.VerificationURL(email, ""))
	if err != nil {
		return shellauth.FrameHandle{}, fmt.Errorf("render verification: %w", err)
	}
	c.logger.Debug("verification started", slog.String("email", email), slog.String("frame", h.ID))
	return h, nil
}

// SubmitCode sends code to the remote peer by loading a fresh verification
// request carrying it. The state does not change until the peer answers.
func (c *Controller) SubmitCode(ctx context.Context, code string) (shellauth.FrameHandle, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return shellauth.FrameHandle{}, autherrors.ErrEmptyCode
	}

	req, err := c.flow.RecordSubmittedCode(code)
	if err != nil {
		return shellauth.FrameHandle{}, fmt.Errorf("submit code: %w", err)
	}

	h, err := c.renderer.Render(ctx, c.handshake.VerificationURL(req.Email, req.SubmittedCode))
	if err != nil {
		return shellauth.FrameHandle{}, fmt.Errorf("render verification: %w", err)
	}
	c.logger.Debug("verification code submitted", slog.String("email", req.Email), slog.String("frame", h.ID))
	return h, nil
}

// Cancel abandons the flow and returns to the unauthenticated state. A
// reply that arrives afterwards is ignored by the state machine.
func (c *Controller) Cancel(ctx context.Context) error {
	if err := c.flow.CancelVerification(ctx); err != nil {
		return fmt.Errorf("cancel verification: %w", err)
	}
	return nil
}
