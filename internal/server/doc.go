// Package server provides the routing and the OAuth callback endpoint for the login command.
//
// # Router
//
// [BasicRouter] implements [Router] on [http.ServeMux] method patterns. [Middleware] wraps
// handlers; the first middleware added is the outermost. [Logging] writes one line per request.
//
// # Callback
//
// [CallbackHandler] serves the redirect URI. It hands state and code to a [Completer]
// (the login flow), which checks the state by consuming the verifier stored for it, and
// reports the outcome on [CallbackHandler.Result]. Only the first callback is processed.
//
// [Start] binds the listener before returning so the browser can be opened right after.
package server
