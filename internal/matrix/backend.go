// Package matrix implements the chat backend on top of mautrix.
package matrix

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/id"

	"github.com/matheus3301/matrixtui/internal/backend"
)

// DefaultDeviceName is shown in the device list of other sessions.
const DefaultDeviceName = "matrixtui"

// Options configure the backend.
type Options struct {
	// CryptoDir returns the directory holding the crypto store of an
	// account. Nil disables end-to-end encryption.
	CryptoDir  func(userID string) string
	DeviceName string
	Logger     *zap.Logger
}

// Backend creates mautrix clients. It is safe for concurrent use.
type Backend struct {
	opts   Options
	logger *zap.Logger
}

// New creates a backend.
func New(opts Options) *Backend {
	if opts.DeviceName == "" {
		opts.DeviceName = DefaultDeviceName
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Backend{opts: opts, logger: opts.Logger}
}

// Login authenticates with a password and returns the new session.
func (b *Backend) Login(ctx context.Context, homeserver, user, password string) (backend.Client, backend.Credentials, error) {
	hs := b.resolve(ctx, homeserver)
	cli, err := mautrix.NewClient(hs, "", "")
	if err != nil {
		return nil, backend.Credentials{}, &backend.BackendError{Op: "login", Err: err}
	}
	resp, err := cli.Login(ctx, &mautrix.ReqLogin{
		Type:                     mautrix.AuthTypePassword,
		Identifier:               mautrix.UserIdentifier{Type: mautrix.IdentifierTypeUser, User: user},
		Password:                 password,
		InitialDeviceDisplayName: b.opts.DeviceName,
		StoreCredentials:         true,
	})
	if err != nil {
		return nil, backend.Credentials{}, authError("login", err)
	}
	creds := backend.Credentials{
		Homeserver:  hs,
		UserID:      resp.UserID.String(),
		AccessToken: resp.AccessToken,
		DeviceID:    resp.DeviceID.String(),
	}
	b.logger.Info("logged in", zap.String("account", creds.UserID), zap.String("device", creds.DeviceID))
	c, err := b.open(ctx, cli)
	if err != nil {
		return nil, backend.Credentials{}, err
	}
	return c, creds, nil
}

// Restore reopens a saved session after checking the token is still valid.
func (b *Backend) Restore(ctx context.Context, creds backend.Credentials) (backend.Client, error) {
	cli, err := mautrix.NewClient(creds.Homeserver, id.UserID(creds.UserID), creds.AccessToken)
	if err != nil {
		return nil, &backend.BackendError{Op: "restore", Err: err}
	}
	cli.DeviceID = id.DeviceID(creds.DeviceID)
	if _, err := cli.Whoami(ctx); err != nil {
		return nil, authError("restore", err)
	}
	return b.open(ctx, cli)
}

func (b *Backend) open(ctx context.Context, cli *mautrix.Client) (*Client, error) {
	logger := b.logger.With(zap.String("account", cli.UserID.String()))
	c := newClient(cli, logger)
	if b.opts.CryptoDir != nil {
		if err := c.initCrypto(ctx, b.opts.CryptoDir(cli.UserID.String())); err != nil {
			logger.Warn("end-to-end encryption unavailable", zap.Error(err))
		}
	}
	return c, nil
}

// resolve finds the client API base URL of a homeserver through
// .well-known discovery on its host, keeping the given URL when discovery
// has nothing to say.
func (b *Backend) resolve(ctx context.Context, homeserver string) string {
	homeserver = strings.TrimRight(strings.TrimSpace(homeserver), "/")
	if !strings.Contains(homeserver, "://") {
		homeserver = "https://" + homeserver
	}
	u, err := url.Parse(homeserver)
	if err != nil || u.Host == "" || u.Path != "" {
		return homeserver
	}
	wk, err := mautrix.DiscoverClientAPI(ctx, u.Host)
	if err != nil {
		b.logger.Debug("well-known discovery failed", zap.String("server", u.Host), zap.Error(err))
		return homeserver
	}
	if wk != nil && wk.Homeserver.BaseURL != "" {
		return strings.TrimRight(wk.Homeserver.BaseURL, "/")
	}
	return homeserver
}

// authError classifies a login or whoami failure.
func authError(op string, err error) error {
	switch {
	case errors.Is(err, mautrix.MForbidden):
		return &backend.AuthError{Op: op, Reason: "invalid username or password", Err: err}
	case errors.Is(err, mautrix.MUnknownToken):
		return &backend.AuthError{Op: op, Reason: "session expired, log in again", Err: err}
	case errors.Is(err, mautrix.MUserDeactivated):
		return &backend.AuthError{Op: op, Reason: "account deactivated", Err: err}
	}
	return &backend.BackendError{Op: op, Err: err}
}
