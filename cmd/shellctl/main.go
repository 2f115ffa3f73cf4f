// Command shellctl inspects and manages the persisted shell session.
//
// Usage:
//
//	shellctl [--config <path>] show   [--reveal]       show the stored session
//	shellctl [--config <path>] login  <email> [--name] store a session (prompts for token)
//	shellctl [--config <path>] logout                  clear the stored session
//	shellctl [--config <path>] url    <email> [code]   print a verification handshake URL
//	shellctl backends                                  list storage backends
//
// The configuration path can also be set via SHELLAUTH_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/infodancer/shellauth"
	"github.com/infodancer/shellauth/authstate"
	"github.com/infodancer/shellauth/config"
	"github.com/infodancer/shellauth/kv"
	_ "github.com/infodancer/shellauth/kv/all"
	"github.com/infodancer/shellauth/sessionstore"
)

func main() {
	fs := pflag.NewFlagSet("shellctl", pflag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("SHELLAUTH_CONFIG"), "path to TOML configuration file")
	reveal := fs.Bool("reveal", false, "show: print the session token instead of its fingerprint")
	name := fs.String("name", "", "login: display name")
	fs.Usage = usage

	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(1)
	}

	args := fs.Args()
	if len(args) < 1 {
		usage()
		os.Exit(1)
	}

	subcmd := args[0]
	if subcmd == "backends" {
		cmdBackends()
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()

	switch subcmd {
	case "show":
		err = withStore(cfg, func(store *sessionstore.Store) error {
			return cmdShow(ctx, store, *reveal)
		})

	case "login":
		if len(args) < 2 {
			err = fmt.Errorf("login: email required")
			break
		}
		err = withStore(cfg, func(store *sessionstore.Store) error {
			return cmdLogin(ctx, store, args[1], *name)
		})

	case "logout":
		err = withStore(cfg, func(store *sessionstore.Store) error {
			return cmdLogout(ctx, store)
		})

	case "url":
		if len(args) < 2 {
			err = fmt.Errorf("url: email required")
			break
		}
		code := ""
		if len(args) > 2 {
			code = args[2]
		}
		err = cmdURL(cfg, args[1], code)

	default:
		fmt.Fprintf(os.Stderr, "unknown subcommand: %s\n", subcmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func withStore(cfg config.Config, fn func(*sessionstore.Store) error) error {
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	store, err := cfg.OpenStore(logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

func cmdShow(ctx context.Context, store *sessionstore.Store, reveal bool) error {
	sess, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		color.New(color.FgYellow).Println("no session")
		return nil
	}

	state := color.New(color.FgGreen).Sprint("active")
	if !sess.IsActiveIdentity() {
		state = color.New(color.FgRed).Sprint("inactive")
	}

	token := sess.Fingerprint()
	if reveal {
		token = sess.SessionToken
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"STATE", state},
		{"STATUS", string(sess.Status)},
		{"EMAIL", sess.Email},
		{"NAME", sess.Name},
		{"PURPOSE", sess.Purpose},
		{"TOKEN", token},
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	return w.Flush()
}

func cmdLogin(ctx context.Context, store *sessionstore.Store, email, name string) error {
	token, err := promptSecret("Session token: ")
	if err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("session token required")
	}

	m := authstate.New(store, authstate.Options{})
	if err := m.Start(ctx); err != nil {
		return err
	}
	err = m.Login(ctx, shellauth.Session{
		Status:       shellauth.StatusSuccess,
		Email:        email,
		Name:         name,
		SessionToken: token,
		Purpose:      shellauth.PurposeAuthenticated,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Stored session for %q\n", email)
	return nil
}

func cmdLogout(ctx context.Context, store *sessionstore.Store) error {
	m := authstate.New(store, authstate.Options{})
	if err := m.Start(ctx); err != nil {
		return err
	}
	if err := m.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Session cleared")
	return nil
}

func cmdURL(cfg config.Config, email, code string) error {
	h, err := cfg.Handshake()
	if err != nil {
		return err
	}
	fmt.Println(h.VerificationURL(email, code))
	return nil
}

func cmdBackends() {
	for _, typ := range kv.Types() {
		fmt.Println(typ)
	}
}

func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(raw), nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  shellctl [--config <path>] show   [--reveal]       show the stored session
  shellctl [--config <path>] login  <email> [--name] store a session (prompts for token)
  shellctl [--config <path>] logout                  clear the stored session
  shellctl [--config <path>] url    <email> [code]   print a verification handshake URL
  shellctl backends                                  list storage backends

The configuration path can also be set via SHELLAUTH_CONFIG.
`)
}
