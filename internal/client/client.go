// Package client wires the vault, the Drive SDK, the state store and the
// sync core into one runnable unit.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vaultsync/vaultsync/internal/client/config"
	"github.com/vaultsync/vaultsync/internal/client/state"
	"github.com/vaultsync/vaultsync/internal/client/sync"
	"github.com/vaultsync/vaultsync/internal/client/vault"
	"github.com/vaultsync/vaultsync/internal/gdrive"
)

// Client owns the collaborators for one vault.
type Client struct {
	cfg     *config.Config
	vault   *vault.Vault
	state   *state.Store
	session *sync.Session
}

// New builds a Client from an explicit config value. Credentials come from
// the system keyring for the configured account.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v, err := vault.New(cfg.VaultDir)
	if err != nil {
		return nil, err
	}

	st := state.New(v.InternalPath("state.db"))
	if err := st.Open(); err != nil {
		return nil, err
	}

	refreshToken, err := gdrive.LoadRefreshToken(cfg.Account)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("%w: %v", sync.ErrAuth, err)
	}

	oauthCfg := gdrive.OAuthConfig(cfg.ClientID, cfg.ClientSecret)
	sdk := gdrive.New(gdrive.TokenSource(ctx, oauthCfg, refreshToken))

	filter := sync.NewFilter(cfg.ExcludedFolders, cfg.ExcludedExtensions, cfg.IncludeHidden)
	filter.LoadIgnoreFile(v.Root())

	policy, err := sync.ParsePolicy(cfg.Policy)
	if err != nil {
		st.Close()
		return nil, err
	}

	session, err := sync.NewSession(sync.SessionConfig{
		Local:      v,
		Remote:     &driveStore{sdk: sdk},
		State:      st,
		Filter:     filter,
		Policy:     policy,
		Sink:       sync.SlogSink{},
		RootFolder: cfg.RemoteFolder,
		LockPath:   v.InternalPath("vault.lock"),
		Transfers:  cfg.Transfers,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &Client{
		cfg:     cfg,
		vault:   v,
		state:   st,
		session: session,
	}, nil
}

// RunOnce performs one reconciliation run.
func (c *Client) RunOnce(ctx context.Context) (*sync.RunResult, error) {
	return c.session.Run(ctx)
}

// Plan computes the current plan without executing it.
func (c *Client) Plan(ctx context.Context) (*sync.SyncPlan, error) {
	return c.session.Plan(ctx)
}

// Watermark exposes the persisted watermark for status output.
func (c *Client) Watermark() (int64, error) {
	return c.state.Watermark()
}

// Start runs periodic reconciliation until the context is done. A timer, not
// a ticker: a run that overshoots the interval must not queue extra runs.
func (c *Client) Start(ctx context.Context, interval time.Duration) error {
	slog.Info("client start", "vault", c.vault.Root(), "interval", interval)

	if _, err := c.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("initial sync failed", "error", err)
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if _, err := c.RunOnce(ctx); err != nil {
				switch {
				case errors.Is(err, context.Canceled):
					return nil
				case errors.Is(err, sync.ErrSyncBusy):
					slog.Warn("sync still running, skipping tick")
				default:
					slog.Error("sync failed", "error", err)
				}
			}
			timer.Reset(interval)
		}
	}
}

// Close releases the client's resources.
func (c *Client) Close() error {
	return c.state.Close()
}
