// Package services talks to the Spotify Web API.
//
// # Client
//
// [Client] is the authenticated request executor. Each [Client.Call] asks its [TokenSource]
// (the refresh coordinator) for a fresh token, waits on the optional rate limiter, and sends
// the request with a bearer token. Responses are classified:
//   - 2xx: a [Response]; 204 or an empty body is reported through [Response.Empty]
//   - 401: the session is cleared through [SessionRevoker] and the call fails as unauthorized
//   - 429: fails as rate limited with the server's Retry-After; nothing is retried here
//   - other statuses fail as upstream errors, transport faults as network errors
//
// All failures are [*APIError], which matches shared.ErrUnauthorized, shared.ErrRateLimited,
// shared.ErrUpstream or shared.ErrNetwork with errors.Is.
//
// # Spotify
//
// [SpotifyService] maps the profile, currently-playing, device and player control endpoints
// onto models.PlaybackSnapshot and models.DeviceState.
package services
