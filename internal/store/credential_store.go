package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a keyed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnreadable is returned when a stored credential exists but cannot be
// unsealed, for example after the sealing secret changed.
var ErrUnreadable = errors.New("credential cannot be unsealed")

// sealer is the subset of seal.Sealer the credential store requires.
type sealer interface {
	Seal(label string, plaintext []byte) ([]byte, error)
	Open(label string, sealed []byte) ([]byte, error)
}

// CredentialStore keeps opaque secrets under fixed keys. Values are sealed
// before they reach the database.
type CredentialStore struct {
	db     *sql.DB
	sealer sealer
}

func NewCredentialStore(db *sql.DB, s sealer) *CredentialStore {
	return &CredentialStore{db: db, sealer: s}
}

// Get returns ErrNotFound when key has never been set or was deleted.
func (s *CredentialStore) Get(ctx context.Context, key string) (string, error) {
	var sealed []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM credentials WHERE key = ?
	`, key).Scan(&sealed)

	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credential: %w", err)
	}

	plain, err := s.sealer.Open(key, sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return string(plain), nil
}

func (s *CredentialStore) Set(ctx context.Context, key, value string) error {
	sealed, err := s.sealer.Seal(key, []byte(value))
	if err != nil {
		return fmt.Errorf("failed to seal credential: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, sealed)
	if err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}
	return nil
}

// Delete is a no-op for missing keys.
func (s *CredentialStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM credentials WHERE key = ?
	`, key); err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}
