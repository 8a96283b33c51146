// Package session holds the authentication session of the client.
//
// # Store
//
// [Store] owns the token triple (access token, refresh token, expiry) and the explicit
// [models.Decision]. It is constructed once at startup with a [Persister], hydrates from it
// before it is handed to anyone, and writes every Set/Clear back through it.
//
// Writers:
//   - the login and logout flows call Set and Clear
//   - the refresh coordinator uses the revision-checked SetIf/ClearIf so a refresh that
//     lands after a logout cannot bring the old session back
//   - the request executor uses ClearToken on a 401, which is a no-op if the rejected token
//     has already been replaced
//
// Subscribers receive an [Event] after each change; pollers and route guards use it to start
// and stop work.
//
// # Persisters
//
// [KeyringPersister] stores the record in the OS keychain. The SQLite persister lives in the
// repositories package next to the other tables.
package session
