// Package auth implements the OAuth2 Authorization Code with PKCE login against Spotify's
// accounts service, and keeps the access token fresh afterwards.
//
//   - [TokenClient] posts to the token endpoint (code exchange and refresh) via golang.org/x/oauth2
//   - [Coordinator] hands out access tokens and runs at most one refresh at a time
//   - [Flow] ties PKCE, the verifier store and the session store into a login
//
// Token endpoint failures are reported as [*ExchangeError] and [*RefreshError], which match
// shared.ErrExchangeFailed and shared.ErrRefreshFailed with errors.Is.
package auth
