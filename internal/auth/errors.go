package auth

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/oauth2"
)

// Reason classifies a token endpoint failure.
type Reason string

const (
	ReasonInvalidGrant Reason = "invalid_grant" // 4xx from the token endpoint
	ReasonServer       Reason = "server"        // 5xx or a response we could not use
	ReasonNetwork      Reason = "network"       // the request never got a response
)

// ExchangeError is returned when an authorization code cannot be exchanged for tokens.
type ExchangeError struct {
	Reason Reason
	Status int    // HTTP status, 0 for network failures
	Code   string // OAuth error code from the response body, if any
	Err    error
}

func (e *ExchangeError) Error() string {
	return describe("code exchange", e.Reason, e.Status, e.Code, e.Err)
}

func (e *ExchangeError) Is(target error) bool { return target == shared.ErrExchangeFailed }
func (e *ExchangeError) Unwrap() error        { return e.Err }

// RefreshError is returned when a refresh token cannot be exchanged for a new access token.
type RefreshError struct {
	Reason Reason
	Status int
	Code   string
	Err    error
}

func (e *RefreshError) Error() string {
	return describe("token refresh", e.Reason, e.Status, e.Code, e.Err)
}

func (e *RefreshError) Is(target error) bool { return target == shared.ErrRefreshFailed }
func (e *RefreshError) Unwrap() error        { return e.Err }

func describe(op string, reason Reason, status int, code string, err error) string {
	msg := fmt.Sprintf("%s failed (%s", op, reason)
	if status != 0 {
		msg += fmt.Sprintf(", status %d", status)
	}
	if code != "" {
		msg += ", " + code
	}
	msg += ")"
	if err != nil {
		msg += ": " + err.Error()
	}
	return msg
}

// classify maps an error from the oauth2 package to a [Reason], HTTP status and OAuth error code.
func classify(err error) (Reason, int, string) {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		status := 0
		if rErr.Response != nil {
			status = rErr.Response.StatusCode
		}
		if status >= 400 && status < 500 {
			return ReasonInvalidGrant, status, rErr.ErrorCode
		}
		return ReasonServer, status, rErr.ErrorCode
	}

	var (
		uErr   *url.Error
		netErr net.Error
	)
	if errors.As(err, &uErr) || errors.As(err, &netErr) {
		return ReasonNetwork, 0, ""
	}
	return ReasonServer, 0, ""
}
