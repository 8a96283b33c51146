package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/nowplaying/internal/shared"
)

// VerifierRepository keeps PKCE verifiers between the authorize redirect and the code exchange.
type VerifierRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewVerifierRepository creates a new [VerifierRepository].
func NewVerifierRepository(db *sql.DB) *VerifierRepository {
	return &VerifierRepository{db: db, now: time.Now}
}

// Put stores verifier under state, replacing any previous value for the same state.
func (r *VerifierRepository) Put(ctx context.Context, state, verifier string) error {
	if state == "" || verifier == "" {
		return fmt.Errorf("%w: state and verifier are required", shared.ErrMissingArgument)
	}

	query := `
		INSERT INTO pkce_verifiers (state, verifier, created_at) VALUES (?, ?, ?)
		ON CONFLICT(state) DO UPDATE SET verifier = excluded.verifier, created_at = excluded.created_at
	`
	if _, err := r.db.ExecContext(ctx, query, state, verifier, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to store verifier: %w", err)
	}
	return nil
}

// Take returns the verifier for state and deletes it in the same transaction.
//
// A second Take for the same state returns [shared.ErrVerifierNotFound], as does a verifier
// stored more than maxAge ago. A non-positive maxAge disables the age check.
func (r *VerifierRepository) Take(ctx context.Context, state string, maxAge time.Duration) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		verifier  string
		createdAt int64
	)
	err = tx.QueryRowContext(ctx, `SELECT verifier, created_at FROM pkce_verifiers WHERE state = ?`, state).
		Scan(&verifier, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", shared.ErrVerifierNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to query verifier: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pkce_verifiers WHERE state = ?`, state); err != nil {
		return "", fmt.Errorf("failed to delete verifier: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit verifier removal: %w", err)
	}

	if maxAge > 0 && r.now().Sub(fromMillis(createdAt)) > maxAge {
		return "", fmt.Errorf("%w: login expired", shared.ErrVerifierNotFound)
	}
	return verifier, nil
}

// Purge deletes verifiers created more than maxAge ago and returns how many were removed.
func (r *VerifierRepository) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := r.now().Add(-maxAge).UnixMilli()

	result, err := r.db.ExecContext(ctx, `DELETE FROM pkce_verifiers WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge verifiers: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
