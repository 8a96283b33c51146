package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/services"
	"github.com/desertthunder/nowplaying/internal/shared"
	tu "github.com/desertthunder/nowplaying/internal/testing"
	"github.com/zalando/go-keyring"
)

// fakeSpotify serves the accounts token endpoint and the Web API paths the commands use.
type fakeSpotify struct {
	*httptest.Server

	mu       sync.Mutex
	verifier string
	controls []string
}

func newFakeSpotify(t *testing.T) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad token form: %v", err)
		}
		if r.Form.Get("grant_type") != "authorization_code" || r.Form.Get("code") != "abc123" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		f.mu.Lock()
		f.verifier = r.Form.Get("code_verifier")
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access-1","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-1"}`)
	})

	api := http.NewServeMux()
	api.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"user-1","display_name":"Test User","product":"premium"}`)
	})
	api.HandleFunc("GET /v1/me/player/currently-playing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"is_playing":true,"progress_ms":83000,"item":{"id":"t1","name":"Windowlicker","duration_ms":366000,"artists":[{"name":"Aphex Twin"}],"album":{"name":"Windowlicker"}}}`)
	})
	api.HandleFunc("GET /v1/me/player/devices", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"devices":[{"id":"dev-1","name":"Laptop","type":"Computer","is_active":false,"volume_percent":40},{"id":"dev-2","name":"Kitchen","type":"Speaker","is_active":true,"volume_percent":70}]}`)
	})
	control := func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.controls = append(f.controls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
	api.HandleFunc("PUT /v1/me/player/pause", control)
	api.HandleFunc("POST /v1/me/player/next", control)

	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"status":401,"message":"Invalid access token"}}`)
			return
		}
		api.ServeHTTP(w, r)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeSpotify) Controls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.controls...)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func testConfig(t *testing.T, spotify *fakeSpotify) *shared.Config {
	t.Helper()
	port := freePort(t)

	config := shared.DefaultConfig()
	config.Spotify.ClientID = "test-client"
	config.Spotify.AuthURL = spotify.URL + "/authorize"
	config.Spotify.TokenURL = spotify.URL + "/api/token"
	config.Spotify.APIURL = spotify.URL + "/v1"
	config.Spotify.RedirectURI = fmt.Sprintf("http://127.0.0.1:%d/callback", port)
	config.Server.Host = "127.0.0.1"
	config.Server.Port = port
	config.Database.Path = ":memory:"
	config.HTTP.RequestsPerSecond = 0
	return config
}

// browserFollowing returns an OpenBrowser hook that plays the user approving the login.
func browserFollowing(t *testing.T, params func(state string) url.Values) func(string) error {
	return func(authURL string) error {
		u, err := url.Parse(authURL)
		if err != nil {
			return err
		}
		q := u.Query()
		callback := q.Get("redirect_uri") + "?" + params(q.Get("state")).Encode()

		go func() {
			resp, err := http.Get(callback)
			if err != nil {
				t.Errorf("callback request failed: %v", err)
				return
			}
			resp.Body.Close()
		}()
		return nil
	}
}

func approve(state string) url.Values {
	return url.Values{"code": {"abc123"}, "state": {state}}
}

type testRunner struct {
	*Runner
	out *bytes.Buffer
}

func newTestRunner(t *testing.T, config *shared.Config, browser func(string) error) *testRunner {
	t.Helper()
	out := &bytes.Buffer{}
	r := NewRunner(RunnerOpts{
		Config:      config,
		Logger:      shared.DiscardLogger(),
		Output:      out,
		OpenBrowser: browser,
	})
	t.Cleanup(func() { r.Close() })
	return &testRunner{Runner: r, out: out}
}

// run executes args against a fresh root command and returns what was written.
func (tr *testRunner) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	tr.out.Reset()
	err := tr.command().Run(context.Background(), append([]string{"nowplaying"}, args...))
	return tr.out.String(), err
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			app := &App{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				App:        app,
				Logger:     logger,
				Output:     output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.app != app {
				t.Error("expected app to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.openBrowser == nil {
				t.Error("expected a default browser opener")
			}
			if err := runner.Close(); err != nil {
				t.Errorf("closing an unwired runner should not fail: %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "auth", "player", "me", "api", "watch"} {
			if !names[want] {
				t.Errorf("missing command %q", want)
			}
		}
	})

	t.Run("parseQuery", func(t *testing.T) {
		values, err := parseQuery([]string{"limit=5", "market=US", "empty="})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if values.Get("limit") != "5" || values.Get("market") != "US" || !values.Has("empty") {
			t.Errorf("unexpected values %v", values)
		}

		if values, err := parseQuery(nil); err != nil || values != nil {
			t.Errorf("expected nil values, got %v, %v", values, err)
		}

		for _, bad := range []string{"novalue", "=x"} {
			if _, err := parseQuery([]string{bad}); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("parseQuery(%q) = %v, want ErrInvalidArgument", bad, err)
			}
		}
	})
}

func TestWire(t *testing.T) {
	t.Run("sqlite backend", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = ":memory:"

		app, err := Wire(config, shared.DiscardLogger())
		if err != nil {
			t.Fatalf("Wire failed: %v", err)
		}
		defer app.Close()

		if app.Backend != "sqlite" {
			t.Errorf("expected sqlite backend, got %q", app.Backend)
		}
		if app.Store.Decision() != models.DecisionUnknown {
			t.Errorf("fresh database should start undecided, got %v", app.Store.Decision())
		}
		if v, err := shared.CurrentVersion(app.DB); err != nil || v == 0 {
			t.Errorf("expected migrations to be applied, got %d, %v", v, err)
		}
	})

	t.Run("keyring backend survives a restart", func(t *testing.T) {
		keyring.MockInit()

		config := shared.DefaultConfig()
		config.Database.Path = ":memory:"
		config.Session.Backend = "keyring"
		config.Session.Namespace = "wire-test"

		first, err := Wire(config, shared.DiscardLogger())
		if err != nil {
			t.Fatalf("Wire failed: %v", err)
		}
		first.Store.Set(models.AuthSession{AccessToken: "a", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)})
		first.Close()

		second, err := Wire(config, shared.DiscardLogger())
		if err != nil {
			t.Fatalf("Wire failed: %v", err)
		}
		defer second.Close()

		if second.Backend != "keyring" {
			t.Errorf("expected keyring backend, got %q", second.Backend)
		}
		if second.Store.Decision() != models.DecisionAuthenticated || second.Store.Get().AccessToken != "a" {
			t.Errorf("expected session to be restored, got %v %+v", second.Store.Decision(), second.Store.Get())
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = ":memory:"
		config.Session.Backend = "floppy"

		if _, err := Wire(config, shared.DiscardLogger()); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestSession(t *testing.T) {
	spotify := newFakeSpotify(t)
	tr := newTestRunner(t, testConfig(t, spotify), browserFollowing(t, approve))

	out, err := tr.run(t, "auth", "status", "--json")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, `"decision": "unknown"`) {
		t.Errorf("expected unknown decision before login, got %s", out)
	}

	if _, err := tr.run(t, "player", "now"); !services.IsAuthError(err) {
		t.Errorf("expected auth error before login, got %v", err)
	}

	t.Run("login", func(t *testing.T) {
		out, err := tr.run(t, "auth", "login", "--timeout", "5s")
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(out, "/authorize?") || !strings.Contains(out, "code_challenge_method=S256") {
			t.Errorf("expected authorize URL in output, got %s", out)
		}
		if !strings.Contains(out, "✓ Logged in as Test User") {
			t.Errorf("unexpected output %s", out)
		}

		spotify.mu.Lock()
		verifier := spotify.verifier
		spotify.mu.Unlock()
		if len(verifier) != 128 {
			t.Errorf("expected a 128 character verifier, got %d", len(verifier))
		}
	})

	t.Run("login while authenticated keeps the session", func(t *testing.T) {
		out, err := tr.run(t, "auth", "login", "--timeout", "5s")
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if strings.Contains(out, "/authorize?") {
			t.Errorf("expected no new authorization round trip, got %s", out)
		}
		if !strings.Contains(out, "✓ Already logged in as Test User") {
			t.Errorf("unexpected output %s", out)
		}
	})

	t.Run("login --force starts a new round trip", func(t *testing.T) {
		out, err := tr.run(t, "auth", "login", "--force", "--timeout", "5s")
		if err != nil {
			t.Fatalf("forced login failed: %v", err)
		}
		if !strings.Contains(out, "/authorize?") || !strings.Contains(out, "✓ Logged in as Test User") {
			t.Errorf("unexpected output %s", out)
		}
	})

	t.Run("status", func(t *testing.T) {
		out, err := tr.run(t, "auth", "status")
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(out, "authenticated") || strings.Contains(out, "access-1") {
			t.Errorf("unexpected status output %s", out)
		}
	})

	t.Run("token", func(t *testing.T) {
		out, err := tr.run(t, "auth", "token")
		if err != nil || out != "access-1\n" {
			t.Errorf("unexpected token output %q, %v", out, err)
		}
	})

	t.Run("player now", func(t *testing.T) {
		out, err := tr.run(t, "player", "now")
		if err != nil {
			t.Fatalf("player now failed: %v", err)
		}
		if !strings.Contains(out, "Playing: Windowlicker") || !strings.Contains(out, "1:23 / 6:06") {
			t.Errorf("unexpected output %s", out)
		}
	})

	t.Run("player devices", func(t *testing.T) {
		out, err := tr.run(t, "player", "devices", "--csv")
		if err != nil {
			t.Fatalf("player devices failed: %v", err)
		}
		if !strings.Contains(out, "dev-2,Kitchen,Speaker,true,70") {
			t.Errorf("unexpected output %s", out)
		}
	})

	t.Run("player controls target the active device", func(t *testing.T) {
		if _, err := tr.run(t, "player", "pause"); err != nil {
			t.Fatalf("pause failed: %v", err)
		}
		if _, err := tr.run(t, "player", "next", "--device", "dev-1"); err != nil {
			t.Fatalf("next failed: %v", err)
		}

		got := spotify.Controls()
		want := []string{"PUT /v1/me/player/pause?device_id=dev-2", "POST /v1/me/player/next?device_id=dev-1"}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("controls = %v, want %v", got, want)
		}
	})

	t.Run("me", func(t *testing.T) {
		out, err := tr.run(t, "me", "--json")
		if err != nil || !strings.Contains(out, `"display_name": "Test User"`) {
			t.Errorf("unexpected output %s, %v", out, err)
		}
	})

	t.Run("api", func(t *testing.T) {
		out, err := tr.run(t, "api", "get", "--pretty=false", "/me")
		if err != nil {
			t.Fatalf("api get failed: %v", err)
		}
		if strings.TrimSpace(out) != `{"id":"user-1","display_name":"Test User","product":"premium"}` {
			t.Errorf("unexpected output %q", out)
		}

		out, err = tr.run(t, "api", "put", "/me/player/pause")
		if err != nil || !strings.Contains(out, "204") {
			t.Errorf("expected 204 summary, got %q, %v", out, err)
		}

		if _, err := tr.run(t, "api", "post", "--data", "{oops", "/me/player/next"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := tr.run(t, "api", "get"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("logout", func(t *testing.T) {
		if _, err := tr.run(t, "auth", "logout"); err != nil {
			t.Fatalf("logout failed: %v", err)
		}

		out, err := tr.run(t, "auth", "status", "--json")
		if err != nil || !strings.Contains(out, `"decision": "unauthenticated"`) {
			t.Errorf("expected unauthenticated after logout, got %s, %v", out, err)
		}

		if _, err := tr.run(t, "player", "now"); !errors.Is(err, shared.ErrNoSession) {
			t.Errorf("expected ErrNoSession after logout, got %v", err)
		}
	})

	t.Run("reset", func(t *testing.T) {
		out, err := tr.run(t, "auth", "reset")
		if err != nil || !strings.Contains(out, "✓ Session reset") {
			t.Fatalf("unexpected reset output %q, %v", out, err)
		}

		out, err = tr.run(t, "auth", "status", "--json")
		if err != nil || !strings.Contains(out, `"decision": "unknown"`) {
			t.Errorf("expected unknown decision after reset, got %s, %v", out, err)
		}

		var rows int
		if err := tr.app.DB.QueryRow(`SELECT COUNT(*) FROM auth_sessions`).Scan(&rows); err != nil || rows != 0 {
			t.Errorf("expected the session row to be deleted, got %d rows (%v)", rows, err)
		}
	})
}

func TestLoginFailures(t *testing.T) {
	t.Run("denied in the browser", func(t *testing.T) {
		spotify := newFakeSpotify(t)
		deny := func(state string) url.Values {
			return url.Values{"error": {"access_denied"}, "state": {state}}
		}
		tr := newTestRunner(t, testConfig(t, spotify), browserFollowing(t, deny))

		_, err := tr.run(t, "auth", "login", "--timeout", "5s")
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
		if tr.app.Store.IsAuthenticated() {
			t.Error("denied login must not create a session")
		}
	})

	t.Run("rejected code", func(t *testing.T) {
		spotify := newFakeSpotify(t)
		badCode := func(state string) url.Values {
			return url.Values{"code": {"wrong"}, "state": {state}}
		}
		tr := newTestRunner(t, testConfig(t, spotify), browserFollowing(t, badCode))

		_, err := tr.run(t, "auth", "login", "--timeout", "5s")
		if !errors.Is(err, shared.ErrExchangeFailed) {
			t.Fatalf("expected ErrExchangeFailed, got %v", err)
		}
	})

	t.Run("no callback", func(t *testing.T) {
		spotify := newFakeSpotify(t)
		tr := newTestRunner(t, testConfig(t, spotify), func(string) error { return nil })

		_, err := tr.run(t, "auth", "login", "--timeout", "50ms")
		if !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
	})

	t.Run("missing client id", func(t *testing.T) {
		spotify := newFakeSpotify(t)
		config := testConfig(t, spotify)
		config.Spotify.ClientID = ""
		tr := newTestRunner(t, config, nil)

		if _, err := tr.run(t, "auth", "login"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		out := &bytes.Buffer{}
		r := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), ConfigPath: path, Output: out, Logger: shared.DiscardLogger()})

		if err := r.command().Run(context.Background(), []string{"nowplaying", "setup", "config"}); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(tu.MustReadFile(t, path), "[spotify]") {
			t.Error("expected the example config to be written")
		}

		if err := r.command().Run(context.Background(), []string{"nowplaying", "setup", "config"}); err == nil {
			t.Error("expected an error when the file already exists")
		}
	})

	t.Run("database and rollback", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(t.TempDir(), "test.db")
		out := &bytes.Buffer{}
		r := NewRunner(RunnerOpts{Config: config, Output: out, Logger: shared.DiscardLogger()})

		if err := r.command().Run(context.Background(), []string{"nowplaying", "setup", "database"}); err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		if !strings.Contains(out.String(), "schema version 2") {
			t.Errorf("unexpected output %s", out.String())
		}

		out.Reset()
		if err := r.command().Run(context.Background(), []string{"nowplaying", "setup", "rollback"}); err != nil {
			t.Fatalf("rollback failed: %v", err)
		}
		if !strings.Contains(out.String(), "schema version 1") {
			t.Errorf("unexpected output %s", out.String())
		}
	})
}
