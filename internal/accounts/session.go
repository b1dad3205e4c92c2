package accounts

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/matheus3301/matrixtui/internal/backend"
)

// Session is the outcome of a successful login or restore.
type Session struct {
	Client      backend.Client
	Credentials backend.Credentials
}

// Login authenticates with password credentials. It runs outside the
// coordinator loop.
func Login(ctx context.Context, be backend.ChatBackend, homeserver, user, password string) (Session, error) {
	homeserver = NormalizeHomeserver(homeserver)
	switch {
	case homeserver == "":
		return Session{}, &backend.ValidationError{Field: "homeserver", Message: "Homeserver is required"}
	case strings.TrimSpace(user) == "":
		return Session{}, &backend.ValidationError{Field: "username", Message: "Username is required"}
	case password == "":
		return Session{}, &backend.ValidationError{Field: "password", Message: "Password is required"}
	}
	client, creds, err := be.Login(ctx, homeserver, strings.TrimSpace(user), password)
	if err != nil {
		var auth *backend.AuthError
		if errors.As(err, &auth) {
			return Session{}, err
		}
		return Session{}, backend.Wrap("login", err)
	}
	return Session{Client: client, Credentials: creds}, nil
}

// Restore reopens a saved session.
func Restore(ctx context.Context, be backend.ChatBackend, creds backend.Credentials) (Session, error) {
	client, err := be.Restore(ctx, creds)
	if err != nil {
		return Session{}, backend.Wrap("restore "+creds.UserID, err)
	}
	return Session{Client: client, Credentials: creds}, nil
}

// RestoreResult is the outcome of RestoreAll.
type RestoreResult struct {
	Sessions []Session
	Failures map[string]error
}

// RestoreAll restores every saved session in parallel. A failing account
// is recorded and does not stop the others.
func RestoreAll(ctx context.Context, be backend.ChatBackend, saved []backend.Credentials) RestoreResult {
	sessions := make([]Session, len(saved))
	errs := make([]error, len(saved))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, creds := range saved {
		eg.Go(func() error {
			sessions[i], errs[i] = Restore(egCtx, be, creds)
			return nil
		})
	}
	_ = eg.Wait()

	res := RestoreResult{Failures: make(map[string]error)}
	for i, creds := range saved {
		if errs[i] != nil {
			res.Failures[creds.UserID] = errs[i]
			continue
		}
		res.Sessions = append(res.Sessions, sessions[i])
	}
	return res
}
