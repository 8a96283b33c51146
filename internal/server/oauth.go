package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"github.com/desertthunder/nowplaying/internal/shared"
)

// Completer finishes a login given the state and code from the authorize redirect.
type Completer interface {
	Complete(ctx context.Context, state, code string) error
}

// CallbackResult is the outcome of the single callback a [CallbackHandler] accepts.
type CallbackResult struct {
	Err error
}

// CallbackHandler serves the OAuth redirect URI.
//
// It accepts exactly one callback; later requests get a 400 and do not touch the session.
type CallbackHandler struct {
	completer Completer
	results   chan CallbackResult
	once      sync.Once
	mu        sync.Mutex
	hit       bool
}

// NewCallbackHandler creates a handler that hands the callback to completer.
func NewCallbackHandler(completer Completer) *CallbackHandler {
	return &CallbackHandler{
		completer: completer,
		results:   make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"GET /callback"}
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #121212; }
        .card { text-align: center; background: #181818; padding: 2rem; border-radius: 8px; }
        h1 { color: {{.Color}}; margin: 0 0 1rem 0; }
        p { color: #b3b3b3; margin: 0; }
    </style>
</head>
<body>
    <div class="card">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

type page struct {
	Title   string
	Message string
	Color   string
}

func render(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pageTmpl.Execute(w, p)
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		err := fmt.Errorf("%w: %s", shared.ErrAuthFailed, errParam)
		h.send(CallbackResult{Err: err})
		render(w, http.StatusBadRequest, page{Title: "Login cancelled", Message: errParam, Color: "#e22134"})
		return
	}

	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		err := fmt.Errorf("%w: callback is missing state or code", shared.ErrAuthFailed)
		h.send(CallbackResult{Err: err})
		render(w, http.StatusBadRequest, page{Title: "Login failed", Message: "The redirect was missing its state or code.", Color: "#e22134"})
		return
	}

	// the browser may drop the connection; the exchange still has to finish
	ctx := context.WithoutCancel(r.Context())
	if err := h.completer.Complete(ctx, state, code); err != nil {
		h.send(CallbackResult{Err: err})
		render(w, http.StatusInternalServerError, page{Title: "Login failed", Message: "Return to the terminal for details.", Color: "#e22134"})
		return
	}

	h.send(CallbackResult{})
	render(w, http.StatusOK, page{Title: "Logged in", Message: "You can close this window and return to the terminal.", Color: "#1DB954"})
}

func (h *CallbackHandler) send(result CallbackResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result receives exactly one [CallbackResult] and is then closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.results
}
