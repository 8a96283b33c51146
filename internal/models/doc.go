// Package models defines the value types shared by the auth core, the Spotify client and its consumers.
//
// The package contains two categories of types:
//
// 1. Session state, owned by the session store:
//   - [AuthSession] : the access token, refresh token and absolute expiry triple
//   - [Decision] : explicit unknown/authenticated/unauthenticated tri-state
//   - [PersistedSession] : the single namespaced record written to durable storage
//   - [PKCEChallenge] and [TokenResult] : values passed through the login and refresh flows
//
// 2. Playback state, replaced wholesale by the pollers:
//   - [PlaybackSnapshot] : what is playing, at which position, fetched when
//   - [DeviceState] : the active device used to target playback control calls
//
// None of the types carry behavior beyond small derived accessors; mutation rules live with their owners.
package models
