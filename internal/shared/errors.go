package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrNoSession        = fmt.Errorf("no session: login required")
	ErrExchangeFailed   = fmt.Errorf("authorization code exchange failed")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrVerifierNotFound = fmt.Errorf("no pending login for state")
	ErrAuthFailed       = fmt.Errorf("authorization failed")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Resource API errors
	ErrUnauthorized   = fmt.Errorf("unauthorized: token rejected by API")
	ErrRateLimited    = fmt.Errorf("rate limited")
	ErrUpstream       = fmt.Errorf("upstream API error")
	ErrNetwork        = fmt.Errorf("network error")
	ErrNoActiveDevice = fmt.Errorf("no active device")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
