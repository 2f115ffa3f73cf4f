package shellauth

import (
	"fmt"
	"net/url"
	"strings"

	autherrors "github.com/infodancer/shellauth/errors"
)

// Handshake builds the URLs the shell loads into the embedded frame.
type Handshake struct {
	base *url.URL
}

// NewHandshake parses the remote application's base URL. The URL must be
// absolute with an http or https scheme.
func NewHandshake(baseURL string) (Handshake, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return Handshake{}, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Handshake{}, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return Handshake{}, fmt.Errorf("base url %q: missing host", baseURL)
	}
	u.Fragment = ""
	return Handshake{base: u}, nil
}

// BaseURL returns the remote application's base URL.
func (h Handshake) BaseURL() string {
	if h.base == nil {
		return ""
	}
	return h.base.String()
}

// Origin returns the scheme://host origin of the remote application. This is
// the default trusted origin for the message channel.
func (h Handshake) Origin() string {
	if h.base == nil {
		return ""
	}
	return h.base.Scheme + "://" + h.base.Host
}

// AuthenticatedURL returns <base>?session=<token>&email=<email>.
func (h Handshake) AuthenticatedURL(s Session) string {
	return h.build([][2]string{
		{"session", s.SessionToken},
		{"email", s.Email},
	})
}

// VerificationURL returns <base>?verification=true&email=<email>, with
// &code=<code> appended when a code has been submitted.
func (h Handshake) VerificationURL(email, code string) string {
	params := [][2]string{
		{"verification", "true"},
		{"email", email},
	}
	if code != "" {
		params = append(params, [2]string{"code", code})
	}
	return h.build(params)
}

// build appends params in order, after any query already on the base URL.
func (h Handshake) build(params [][2]string) string {
	if h.base == nil {
		return ""
	}
	u := *h.base

	var b strings.Builder
	b.WriteString(u.RawQuery)
	for _, p := range params {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}
	u.RawQuery = b.String()
	return u.String()
}

// ValidateOrigin checks that origin is a single exact scheme://host[:port]
// origin. Wildcards, paths, queries and credentials are rejected.
func ValidateOrigin(origin string) error {
	if origin == "" || strings.Contains(origin, "*") {
		return fmt.Errorf("%w: %q", autherrors.ErrInvalidOrigin, origin)
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("%w: %v", autherrors.ErrInvalidOrigin, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("%w: %q: scheme must be http or https", autherrors.ErrInvalidOrigin, origin)
	}
	if u.Host == "" || u.User != nil || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("%w: %q: expected scheme://host", autherrors.ErrInvalidOrigin, origin)
	}
	if u.Scheme+"://"+u.Host != origin {
		return fmt.Errorf("%w: %q: expected scheme://host", autherrors.ErrInvalidOrigin, origin)
	}
	return nil
}
