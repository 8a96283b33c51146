package session

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
)

// DefaultNamespace is the key the session record is stored under.
const DefaultNamespace = "auth-storage"

// Persister loads and saves the single namespaced session record.
//
// Load returns (nil, nil) when nothing has been stored yet.
type Persister interface {
	Load() (*models.PersistedSession, error)
	Save(record models.PersistedSession) error
}

// recordDeleter is implemented by persisters that can drop the record entirely.
type recordDeleter interface {
	Delete() error
}

// Event is delivered to subscribers after every Set, Clear or Reset.
type Event struct {
	Decision      models.Decision
	Authenticated bool
	At            time.Time
}

// StoreOpts configures a [Store].
type StoreOpts struct {
	Namespace string
	Logger    *log.Logger
	Now       func() time.Time
}

// Store owns the [models.AuthSession]. It is safe for concurrent use and never returns errors:
// persistence failures are logged and the in-memory state stays authoritative.
type Store struct {
	mu        sync.RWMutex
	session   models.AuthSession
	decision  models.Decision
	revision  uint64
	namespace string
	persister Persister
	logger    *log.Logger
	now       func() time.Time

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan Event
}

// NewStore creates a store and hydrates it from p before returning.
func NewStore(p Persister, opts StoreOpts) *Store {
	if opts.Namespace == "" {
		opts.Namespace = DefaultNamespace
	}
	if opts.Logger == nil {
		opts.Logger = shared.DiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		namespace: opts.Namespace,
		persister: p,
		logger:    opts.Logger.With("component", "session", "namespace", opts.Namespace),
		now:       opts.Now,
		subs:      make(map[int]chan Event),
	}
	s.hydrate()
	return s
}

func (s *Store) hydrate() {
	if s.persister == nil {
		return
	}

	record, err := s.persister.Load()
	if err != nil {
		s.logger.Warn("failed to load persisted session, starting empty", "error", err)
		return
	}
	if record == nil {
		return
	}

	sess := record.Session()
	if !sess.Valid() {
		s.logger.Warn("discarding persisted session with mismatched token and expiry")
		sess = models.AuthSession{}
	}
	s.session = sess

	switch {
	case !record.HasDecided:
		s.decision = models.DecisionUnknown
	case sess.HasAccessToken():
		s.decision = models.DecisionAuthenticated
	default:
		s.decision = models.DecisionUnauthenticated
	}

	s.logger.Debug("session hydrated", "decision", s.decision, "expires_at", sess.ExpiresAt)
}

// Get returns a copy of the current session.
func (s *Store) Get() models.AuthSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Snapshot returns the current session with its revision, for use with [Store.SetIf] and [Store.ClearIf].
func (s *Store) Snapshot() (models.AuthSession, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session, s.revision
}

// Decision returns the current authentication decision.
func (s *Store) Decision() models.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decision
}

// HasDecided reports whether a login or logout has ever been recorded.
func (s *Store) HasDecided() bool {
	return s.Decision() != models.DecisionUnknown
}

// IsAuthenticated reports whether an access token is present and not yet expired.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authenticatedLocked()
}

func (s *Store) authenticatedLocked() bool {
	return s.session.HasAccessToken() && s.session.ExpiresAt.After(s.now())
}

// Set replaces the session and marks the decision as authenticated.
func (s *Store) Set(sess models.AuthSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(sess)
}

// SetIf replaces the session only if nothing has changed since revision rev was read.
func (s *Store) SetIf(rev uint64, sess models.AuthSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revision != rev {
		return false
	}
	s.setLocked(sess)
	return true
}

// Clear drops the tokens and marks the decision as unauthenticated.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// ClearIf clears the session only if nothing has changed since revision rev was read.
func (s *Store) ClearIf(rev uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.revision != rev {
		return false
	}
	s.clearLocked()
	return true
}

// ClearToken clears the session only if accessToken is still the current access token.
func (s *Store) ClearToken(accessToken string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accessToken == "" || s.session.AccessToken != accessToken {
		return false
	}
	s.clearLocked()
	return true
}

// Reset drops the session and the record of any past decision, returning the store to
// [models.DecisionUnknown]. The persisted record is deleted when the persister supports it;
// otherwise an undecided record is saved in its place.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = models.AuthSession{}
	s.decision = models.DecisionUnknown
	s.revision++
	now := s.now()

	switch p := s.persister.(type) {
	case nil:
	case recordDeleter:
		if err := p.Delete(); err != nil {
			s.logger.Error("failed to delete persisted session", "error", err)
		}
	default:
		if err := p.Save(models.PersistedSession{Namespace: s.namespace, UpdatedAt: now}); err != nil {
			s.logger.Error("failed to persist session", "error", err)
		}
	}

	s.notify(Event{Decision: s.decision, At: now})
}

func (s *Store) setLocked(sess models.AuthSession) {
	if !sess.HasAccessToken() || !sess.Valid() {
		s.logger.Error("refusing to store session without both access token and expiry")
		return
	}
	s.session = sess
	s.decision = models.DecisionAuthenticated
	s.commitLocked()
}

func (s *Store) clearLocked() {
	s.session = models.AuthSession{}
	s.decision = models.DecisionUnauthenticated
	s.commitLocked()
}

// commitLocked bumps the revision, persists and notifies. Callers hold s.mu.
func (s *Store) commitLocked() {
	s.revision++
	now := s.now()

	if s.persister != nil {
		record := models.PersistedSession{
			Namespace:    s.namespace,
			AccessToken:  s.session.AccessToken,
			RefreshToken: s.session.RefreshToken,
			ExpiresAt:    s.session.ExpiresAt,
			HasDecided:   true,
			UpdatedAt:    now,
		}
		if err := s.persister.Save(record); err != nil {
			s.logger.Error("failed to persist session", "error", err)
		}
	}

	s.notify(Event{Decision: s.decision, Authenticated: s.authenticatedLocked(), At: now})
}

// Subscribe returns a channel receiving change events and a function that cancels the subscription.
//
// Each channel holds one event; a slow reader only sees the latest one.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan Event, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subs, id)
		})
	}
}

func (s *Store) notify(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// drop the stale event
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
