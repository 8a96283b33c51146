package auth

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/sync/singleflight"
)

// SessionState is the part of the session store the coordinator reads and conditionally writes.
type SessionState interface {
	Snapshot() (models.AuthSession, uint64)
	SetIf(rev uint64, s models.AuthSession) bool
	ClearIf(rev uint64) bool
}

// Refresher exchanges a refresh token for new tokens.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.TokenResult, error)
}

// CoordinatorOpts configures a [Coordinator].
type CoordinatorOpts struct {
	Margin  time.Duration // refresh this long before the real expiry
	Timeout time.Duration // bound on a single refresh
	Logger  *log.Logger
	Now     func() time.Time
}

// Coordinator hands out fresh access tokens, running at most one refresh at a time.
//
// Every caller that arrives while a refresh is in flight waits for that refresh and
// observes its outcome. A failed refresh clears the session and is not retried.
type Coordinator struct {
	store     SessionState
	refresher Refresher
	margin    time.Duration
	timeout   time.Duration
	logger    *log.Logger
	now       func() time.Time
	group     singleflight.Group
}

const refreshKey = "refresh"

// NewCoordinator creates a [Coordinator].
func NewCoordinator(store SessionState, refresher Refresher, opts CoordinatorOpts) *Coordinator {
	if opts.Margin < 0 {
		opts.Margin = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Coordinator{
		store:     store,
		refresher: refresher,
		margin:    opts.Margin,
		timeout:   opts.Timeout,
		logger:    opts.Logger.With("component", "refresh"),
		now:       opts.Now,
	}
}

// Token returns an access token that is valid for at least the configured margin.
//
// It fails with [shared.ErrNoSession] when there is no session, or with a [*RefreshError]
// when the refresh failed. ctx only bounds how long this caller waits; the shared refresh
// keeps running for the other waiters.
func (c *Coordinator) Token(ctx context.Context) (string, error) {
	sess, _ := c.store.Snapshot()
	if !sess.HasAccessToken() {
		return "", shared.ErrNoSession
	}
	if sess.FreshAt(c.now(), c.margin) {
		return sess.AccessToken, nil
	}

	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.refresh(ctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) refresh(ctx context.Context) (string, error) {
	// A previous flight may have finished between the caller's read and this one.
	sess, rev := c.store.Snapshot()
	if !sess.HasAccessToken() {
		return "", shared.ErrNoSession
	}
	if sess.FreshAt(c.now(), c.margin) {
		return sess.AccessToken, nil
	}

	if sess.RefreshToken == "" {
		c.store.ClearIf(rev)
		c.logger.Warn("session expired without a refresh token, cleared")
		return "", &RefreshError{Reason: ReasonInvalidGrant, Err: shared.ErrNoRefreshToken}
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	c.logger.Debug("refreshing access token", "expires_at", sess.ExpiresAt)
	result, err := c.refresher.Refresh(rctx, sess.RefreshToken)
	if err != nil {
		if c.store.ClearIf(rev) {
			c.logger.Warn("refresh failed, session cleared", "error", err)
		}
		return "", err
	}

	next := models.AuthSession{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = sess.RefreshToken
	}

	if !c.store.SetIf(rev, next) {
		// logout or a new login landed while the request was in flight
		c.logger.Info("session changed during refresh, discarding result")
		cur, _ := c.store.Snapshot()
		if cur.FreshAt(c.now(), c.margin) {
			return cur.AccessToken, nil
		}
		return "", shared.ErrNoSession
	}

	c.logger.Info("access token refreshed", "expires_at", next.ExpiresAt)
	return next.AccessToken, nil
}
