package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/dshills/svcprobe/pkg/validation"
	"github.com/zalando/go-keyring"
)

const (
	// ServiceName identifies svcprobe secrets in the system keyring.
	ServiceName = "svcprobe"

	indexKey = "__svcprobe_index__"
)

// ErrCredentialNotFound is returned when a reference has no stored secret.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore holds secrets injected into the server environment.
type CredentialStore interface {
	Set(ref string, value string) error
	Get(ref string) (string, error)
	Delete(ref string) error
	// List returns stored references, never values.
	List() ([]string, error)
}

// KeyringCredentialStore implements CredentialStore using the system keyring
// (Keychain on macOS, Credential Manager on Windows, Secret Service on Linux).
type KeyringCredentialStore struct {
	service string
}

// NewKeyringCredentialStore creates a store under ServiceName.
func NewKeyringCredentialStore() *KeyringCredentialStore {
	return &KeyringCredentialStore{service: ServiceName}
}

// Set stores a secret under ref.
func (s *KeyringCredentialStore) Set(ref string, value string) error {
	if err := validateRef(ref); err != nil {
		return err
	}

	if err := keyring.Set(s.service, ref, value); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	// The secret is stored; a stale index only affects List.
	if err := s.updateIndex(ref, true); err != nil {
		log.Printf("warning: credential index not updated: %v", err)
	}
	return nil
}

// Get retrieves the secret stored under ref.
func (s *KeyringCredentialStore) Get(ref string) (string, error) {
	if err := validateRef(ref); err != nil {
		return "", err
	}

	value, err := keyring.Get(s.service, ref)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrCredentialNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve credential: %w", err)
	}
	return value, nil
}

// Delete removes the secret stored under ref.
func (s *KeyringCredentialStore) Delete(ref string) error {
	if err := validateRef(ref); err != nil {
		return err
	}

	err := keyring.Delete(s.service, ref)
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, ref)
	}
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}

	if err := s.updateIndex(ref, false); err != nil {
		log.Printf("warning: credential index not updated: %v", err)
	}
	return nil
}

// List returns the stored references in sorted order. The keyring cannot be
// enumerated, so references are tracked in an index entry.
func (s *KeyringCredentialStore) List() ([]string, error) {
	raw, err := keyring.Get(s.service, indexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve credential index: %w", err)
	}

	var refs []string
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return nil, fmt.Errorf("failed to parse credential index: %w", err)
	}
	sort.Strings(refs)
	return refs, nil
}

func (s *KeyringCredentialStore) updateIndex(ref string, present bool) error {
	refs, err := s.List()
	if err != nil {
		return err
	}

	next := make([]string, 0, len(refs)+1)
	for _, r := range refs {
		if r != ref {
			next = append(next, r)
		}
	}
	if present {
		next = append(next, ref)
	}

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to marshal credential index: %w", err)
	}
	if err := keyring.Set(s.service, indexKey, string(data)); err != nil {
		return fmt.Errorf("failed to save credential index: %w", err)
	}
	return nil
}

func validateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("credential reference cannot be empty")
	}
	if !validation.IsValidIdentifier(ref) {
		return fmt.Errorf("invalid credential reference %q: use letters, digits, '-' or '_', starting with a letter", ref)
	}
	return nil
}
