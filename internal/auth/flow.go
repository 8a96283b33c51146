package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/pkce"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// VerifierTTL is how long a pending login may wait for its callback.
const VerifierTTL = 10 * time.Minute

// VerifierStore keeps PKCE verifiers keyed by OAuth state. Take must return a verifier at most
// once, and never one stored longer than maxAge ago.
type VerifierStore interface {
	Put(ctx context.Context, state, verifier string) error
	Take(ctx context.Context, state string, maxAge time.Duration) (string, error)
}

// verifierPurger is implemented by verifier stores that can drop abandoned logins.
type verifierPurger interface {
	Purge(ctx context.Context, maxAge time.Duration) (int64, error)
}

// CodeExchanger builds the authorize URL and redeems the code it produces.
type CodeExchanger interface {
	AuthCodeURL(state, challenge string) string
	ExchangeCode(ctx context.Context, code, verifier string) (*models.TokenResult, error)
}

// SessionWriter is the part of the session store the login flow writes.
type SessionWriter interface {
	Set(s models.AuthSession)
	Clear()
}

// FlowOpts configures a [Flow].
type FlowOpts struct {
	VerifierLength int
	Logger         *log.Logger
}

// Flow runs the Authorization Code with PKCE login.
type Flow struct {
	exchanger      CodeExchanger
	verifiers      VerifierStore
	store          SessionWriter
	verifierLength int
	logger         *log.Logger
}

// NewFlow creates a [Flow].
func NewFlow(exchanger CodeExchanger, verifiers VerifierStore, store SessionWriter, opts FlowOpts) *Flow {
	if opts.VerifierLength == 0 {
		opts.VerifierLength = pkce.DefaultLength
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	return &Flow{
		exchanger:      exchanger,
		verifiers:      verifiers,
		store:          store,
		verifierLength: opts.VerifierLength,
		logger:         opts.Logger.With("component", "login"),
	}
}

// Begin creates a verifier, stores it under a new state and returns the authorize URL.
func (f *Flow) Begin(ctx context.Context) (authURL, state string, err error) {
	if p, ok := f.verifiers.(verifierPurger); ok {
		if n, err := p.Purge(ctx, VerifierTTL); err != nil {
			f.logger.Warn("failed to purge stale verifiers", "error", err)
		} else if n > 0 {
			f.logger.Debug("purged stale verifiers", "count", n)
		}
	}

	challenge, err := pkce.New(f.verifierLength)
	if err != nil {
		return "", "", err
	}

	state = shared.GenerateState()
	if err := f.verifiers.Put(ctx, state, challenge.Verifier); err != nil {
		return "", "", fmt.Errorf("failed to store verifier: %w", err)
	}

	f.logger.Debug("login started", "state", state)
	return f.exchanger.AuthCodeURL(state, challenge.Challenge), state, nil
}

// Complete redeems code for the login identified by state and stores the resulting session.
//
// The verifier is consumed before the exchange, so a replayed callback fails with
// [shared.ErrVerifierNotFound] whether or not the first exchange succeeded.
func (f *Flow) Complete(ctx context.Context, state, code string) error {
	if code == "" {
		return fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	verifier, err := f.verifiers.Take(ctx, state, VerifierTTL)
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	if !pkce.ValidVerifier(verifier) {
		return fmt.Errorf("%w: stored verifier is malformed", shared.ErrAuthFailed)
	}

	result, err := f.exchanger.ExchangeCode(ctx, code, verifier)
	if err != nil {
		return err
	}

	f.store.Set(models.AuthSession{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt,
	})
	f.logger.Info("login complete", "expires_at", result.ExpiresAt)
	return nil
}

// Logout clears the session.
func (f *Flow) Logout() {
	f.store.Clear()
	f.logger.Info("logged out")
}
