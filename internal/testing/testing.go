// package testing contains shared test doubles and helpers
package testing

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"testing"
)

// StaticTokens is a token source returning a fixed token or error and counting calls.
type StaticTokens struct {
	mu    sync.Mutex
	token string
	err   error
	calls int
}

func NewStaticTokens(token string, err error) *StaticTokens {
	return &StaticTokens{token: token, err: err}
}

func (s *StaticTokens) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.token, s.err
}

// Set swaps the token handed out by later calls.
func (s *StaticTokens) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *StaticTokens) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// RecordingRevoker records which tokens were revoked. Only Current is actually cleared.
type RecordingRevoker struct {
	mu      sync.Mutex
	Current string
	revoked []string
}

func (r *RecordingRevoker) ClearToken(accessToken string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked = append(r.revoked, accessToken)
	if accessToken == "" || accessToken != r.Current {
		return false
	}
	r.Current = ""
	return true
}

func (r *RecordingRevoker) Revoked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.revoked...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
