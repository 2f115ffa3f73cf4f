// Package shellhttp exposes a Shell to the native host over HTTP. The host
// drives the web view from these routes and relays frame messages over the
// websocket at /frame/messages.
package shellhttp

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/infodancer/shellauth/frame"
	"github.com/infodancer/shellauth/notify"
	"github.com/infodancer/shellauth/shell"
)

// Server holds the collaborators behind the routes.
type Server struct {
	shell         *shell.Shell
	frames        *frame.Recorder
	notifications *notify.Queue
	messages      http.Handler
	mockPasskey   bool
	logger        *slog.Logger
}

// Options configures NewServer. Messages is the frame message transport,
// usually a *channel.Transport.
type Options struct {
	Shell         *shell.Shell
	Frames        *frame.Recorder
	Notifications *notify.Queue
	Messages      http.Handler
	MockPasskey   bool
	Logger        *slog.Logger
}

// NewServer creates a server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		shell:         opts.Shell,
		frames:        opts.Frames,
		notifications: opts.Notifications,
		messages:      opts.Messages,
		mockPasskey:   opts.MockPasskey,
		logger:        logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleEntry)
	r.Get("/login", s.handleLogin)
	if s.messages != nil {
		r.Get("/frame/messages", s.messages.ServeHTTP)
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/state", s.handleState)
		api.Post("/logout", s.handleLogout)
		api.Post("/login/passkey", s.handlePasskeyLogin)

		api.Post("/verification", s.handleBeginVerification)
		api.Post("/verification/code", s.handleSubmitCode)
		api.Post("/verification/cancel", s.handleCancelVerification)

		api.Get("/notifications", s.handleListNotifications)
		api.Delete("/notifications/{id}", s.handleDismissNotification)

		api.Get("/frame", s.handleFrame)
		api.Post("/frame/{id}/loaded", s.handleFrameLoaded)
	})

	return r
}

// accessLog writes one slog record per request.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("elapsed", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
