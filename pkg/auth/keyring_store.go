package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync"

	"github.com/zalando/go-keyring"

	"xscraper/pkg/record"
)

const (
	keyringService = "xscraper"
	keyringPrefix  = "x_"
	// keychains cannot enumerate entries, so the handles are indexed here
	keyringIndex = "x__accounts"
)

// KeyringStore keeps one keychain entry per account, keyed by the
// normalized handle, plus an index entry listing the handles
type KeyringStore struct {
	mu sync.Mutex
}

// NewKeyringStore fails when the keychain cannot be written
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "x__probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

func entryName(username string) (string, error) {
	key := record.Key(username)
	if key == "" {
		return "", ErrInvalidCredentials
	}
	return keyringPrefix + key, nil
}

func (k *KeyringStore) Store(account *Account) error {
	if account == nil {
		return ErrInvalidCredentials
	}
	name, err := entryName(account.Username)
	if err != nil {
		return err
	}
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to encode account: %w", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if err := keyring.Set(keyringService, name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return k.reindex(func(keys []string) []string {
		return append(keys, record.Key(account.Username))
	})
}

func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	name, err := entryName(username)
	if err != nil {
		return nil, err
	}
	data, err := keyring.Get(keyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	return &account, nil
}

// List returns the indexed accounts in handle order; entries removed
// outside xscraper are skipped
func (k *KeyringStore) List() ([]*Account, error) {
	k.mu.Lock()
	keys, err := k.index()
	k.mu.Unlock()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(keys))
	for _, key := range keys {
		if account, err := k.Retrieve(key); err == nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (k *KeyringStore) Delete(username string) error {
	name, err := entryName(username)
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	err = keyring.Delete(keyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return k.reindex(func(keys []string) []string {
		return slices.DeleteFunc(keys, func(key string) bool { return key == record.Key(username) })
	})
}

func (k *KeyringStore) Exists(username string) bool {
	_, err := k.Retrieve(username)
	return err == nil
}

// index reads the handle list; the caller holds mu
func (k *KeyringStore) index() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	var keys []string
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	return keys, nil
}

// reindex rewrites the handle list sorted and without duplicates; the caller holds mu
func (k *KeyringStore) reindex(change func([]string) []string) error {
	keys, err := k.index()
	if err != nil {
		return err
	}
	keys = change(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, keyringIndex, string(data)); err != nil {
		return fmt.Errorf("failed to update keyring index: %w", err)
	}
	return nil
}

// IsKeyringAvailable reports whether a system keychain is likely reachable.
// On Linux the Secret Service needs a session bus.
func IsKeyringAvailable() bool {
	switch runtime.GOOS {
	case "darwin", "windows":
		return true
	case "linux", "freebsd", "openbsd":
		return os.Getenv("DBUS_SESSION_BUS_ADDRESS") != ""
	}
	return false
}
