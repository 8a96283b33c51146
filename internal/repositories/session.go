package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/nowplaying/internal/models"
)

// SessionRepository persists the [models.PersistedSession] for one namespace.
type SessionRepository struct {
	db        *sql.DB
	namespace string
}

// NewSessionRepository creates a new [SessionRepository] bound to namespace.
func NewSessionRepository(db *sql.DB, namespace string) *SessionRepository {
	return &SessionRepository{db: db, namespace: namespace}
}

// Load returns the stored record, or (nil, nil) if the namespace has never been written.
func (r *SessionRepository) Load() (*models.PersistedSession, error) {
	query := `
		SELECT namespace, access_token, refresh_token, expires_at, has_decided, updated_at
		FROM auth_sessions
		WHERE namespace = ?
	`

	var (
		record    models.PersistedSession
		expiresAt int64
		updatedAt int64
	)

	err := r.db.QueryRow(query, r.namespace).Scan(
		&record.Namespace, &record.AccessToken, &record.RefreshToken, &expiresAt, &record.HasDecided, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	record.ExpiresAt = fromMillis(expiresAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return &record, nil
}

// Save upserts the record under the repository's namespace.
func (r *SessionRepository) Save(record models.PersistedSession) error {
	query := `
		INSERT INTO auth_sessions (namespace, access_token, refresh_token, expires_at, has_decided, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			has_decided = excluded.has_decided,
			updated_at = excluded.updated_at
	`

	_, err := r.db.Exec(query,
		r.namespace, record.AccessToken, record.RefreshToken,
		toMillis(record.ExpiresAt), record.HasDecided, toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes the record, resetting the namespace to "never decided".
func (r *SessionRepository) Delete() error {
	if _, err := r.db.Exec(`DELETE FROM auth_sessions WHERE namespace = ?`, r.namespace); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
