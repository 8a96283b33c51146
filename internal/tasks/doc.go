// Package tasks runs the background pollers that keep playback and device state current.
//
// # Pollers
//
// [Poller] is a restartable, cancellable periodic fetch. Start runs one fetch right away and
// then one per interval on a fixed ticker:
//   - every tick publishes a new [State] wholesale; a failed tick publishes its error and the
//     loop carries on
//   - an error carrying a retry delay (a 429 from the API) skips ticks until the delay has passed
//   - Stop cancels and waits for the loop, and a fetch that was in flight is discarded
//   - Start on a running poller stops the old loop first
//
// [NewPlaybackPoller] and [NewDevicePoller] wrap the Spotify currently-playing and device calls.
//
// # Supervision
//
// [Supervise] binds runners to the session: they run while the decision is authenticated and
// stop on logout, including a logout caused by a rejected token or failed refresh.
package tasks
