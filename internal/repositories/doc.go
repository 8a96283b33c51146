// Package repositories implements SQLite persistence for the auth layer.
//
// Key Implementations:
//   - [SessionRepository] : the namespaced session record, usable as a session.Persister
//   - [VerifierRepository] : PKCE verifiers keyed by OAuth state, consumed exactly once
//
// Timestamps are stored as unix milliseconds so they compare as integers.
package repositories
