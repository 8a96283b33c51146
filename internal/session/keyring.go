package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/zalando/go-keyring"
)

// KeyringService is the keychain service name session records are stored under.
const KeyringService = "nowplaying"

// KeyringPersister stores the session record as JSON in the OS keychain, keyed by namespace.
type KeyringPersister struct {
	service   string
	namespace string
}

// NewKeyringPersister creates a [KeyringPersister] for namespace.
func NewKeyringPersister(namespace string) *KeyringPersister {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &KeyringPersister{service: KeyringService, namespace: namespace}
}

// Load reads the record, returning (nil, nil) when the keychain has no entry.
func (k *KeyringPersister) Load() (*models.PersistedSession, error) {
	payload, err := keyring.Get(k.service, k.namespace)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keychain: %w", err)
	}

	var record models.PersistedSession
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		return nil, fmt.Errorf("failed to decode keychain record: %w", err)
	}
	return &record, nil
}

// Save writes the record, replacing any previous entry.
func (k *KeyringPersister) Save(record models.PersistedSession) error {
	record.Namespace = k.namespace
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}
	if err := keyring.Set(k.service, k.namespace, string(payload)); err != nil {
		return fmt.Errorf("failed to write keychain: %w", err)
	}
	return nil
}

// Delete removes the entry entirely.
func (k *KeyringPersister) Delete() error {
	if err := keyring.Delete(k.service, k.namespace); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keychain entry: %w", err)
	}
	return nil
}
