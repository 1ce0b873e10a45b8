package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"xscraper/pkg/record"
)

// EnvConfigDir overrides where the encrypted credentials file is kept
const EnvConfigDir = "XSCRAPER_CONFIG_DIR"

// Manager chains credential stores. Writes go to the first store that
// accepts them; reads take the first hit; List merges every store.
type Manager struct {
	stores []CredentialStore
}

// NewManager chains the OS keychain (when reachable), the encrypted file in
// the user config directory and the XSCRAPER_* environment
func NewManager() (*Manager, error) {
	dir, err := credentialsDir()
	if err != nil {
		return nil, err
	}
	vault, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted store: %w", err)
	}

	var stores []CredentialStore
	if keychain, err := NewKeyringStore(); err == nil {
		stores = append(stores, keychain)
	}
	return NewManagerWithStores(append(stores, vault, NewEnvironmentStore())...), nil
}

func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store stamps the account and saves it
func (m *Manager) Store(account *Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	account.LastModified = time.Now()

	var failures []error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			return nil
		}
		failures = append(failures, err)
	}
	if len(failures) == 0 {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("failed to store credentials: %w", errors.Join(failures...))
}

func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, store := range m.stores {
		if account, err := store.Retrieve(username); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
}

// RetrieveDefault prefers cookies exported in the environment, then the
// most recently stored account
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if account, err := env.Retrieve(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, _ := m.List()
	if len(accounts) == 0 {
		return nil, ErrCredentialsNotFound
	}
	return accounts[0], nil
}

// List merges all stores by handle, keeping the newest copy, sorted newest
// first. Stores that fail to list are skipped.
func (m *Manager) List() ([]*Account, error) {
	newest := make(map[string]*Account)
	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			key := record.Key(account.Username)
			if cur, ok := newest[key]; !ok || account.LastModified.After(cur.LastModified) {
				newest[key] = account
			}
		}
	}

	out := make([]*Account, 0, len(newest))
	for _, account := range newest {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.LastModified.Equal(b.LastModified) {
			return a.Username < b.Username
		}
		return a.LastModified.After(b.LastModified)
	})
	return out, nil
}

// Delete removes username from every writable store. It fails with
// ErrCredentialsNotFound when no store held it.
func (m *Manager) Delete(username string) error {
	var deleted bool
	var failures []error
	for _, store := range m.stores {
		switch err := store.Delete(username); {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrCredentialsNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			failures = append(failures, err)
		}
	}

	switch {
	case deleted:
		return nil
	case len(failures) > 0:
		return fmt.Errorf("failed to delete credentials: %w", errors.Join(failures...))
	default:
		return fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
	}
}

// DeleteAll removes every listed account, stopping at the first failure
func (m *Manager) DeleteAll() error {
	accounts, err := m.List()
	if err != nil {
		return err
	}
	for _, account := range accounts {
		if err := m.Delete(account.Username); err != nil && !errors.Is(err, ErrCredentialsNotFound) {
			return err
		}
	}
	return nil
}

// credentialsDir is $XSCRAPER_CONFIG_DIR or <user config dir>/xscraper
func credentialsDir() (string, error) {
	dir := os.Getenv(EnvConfigDir)
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate config directory: %w", err)
		}
		dir = filepath.Join(base, "xscraper")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}
