package auth

import (
	"os"
	"strings"
	"time"

	"xscraper/pkg/record"
)

// Environment variables read by EnvironmentStore
const (
	EnvAuthToken = "XSCRAPER_AUTH_TOKEN"
	EnvCSRFToken = "XSCRAPER_CSRF_TOKEN"
	EnvUserAgent = "XSCRAPER_USER_AGENT"
	EnvUsername  = "XSCRAPER_USERNAME"
)

// envAccountName is used when XSCRAPER_USERNAME is unset
const envAccountName = "default"

// EnvironmentStore exposes at most one read-only account built from the
// XSCRAPER_* cookie variables. It sits last in the manager's store chain.
type EnvironmentStore struct {
	lookup func(string) (string, bool)
}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{lookup: os.LookupEnv}
}

func (e *EnvironmentStore) env(name string) string {
	v, _ := e.lookup(name)
	return strings.TrimSpace(v)
}

// account returns nil when no auth_token cookie is exported
func (e *EnvironmentStore) account() *Account {
	token := e.env(EnvAuthToken)
	if token == "" {
		return nil
	}
	name := e.env(EnvUsername)
	if name == "" {
		name = envAccountName
	}
	return &Account{
		Username:     name,
		AuthToken:    token,
		CSRFToken:    e.env(EnvCSRFToken),
		UserAgent:    e.env(EnvUserAgent),
		LastModified: time.Now(),
	}
}

// Retrieve matches username loosely; an empty username takes whatever is set
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	account := e.account()
	if account == nil {
		return nil, ErrCredentialsNotFound
	}
	if username != "" && record.Key(username) != record.Key(account.Username) {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	if account := e.account(); account != nil {
		return []*Account{account}, nil
	}
	return []*Account{}, nil
}

func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}

func (e *EnvironmentStore) Store(*Account) error { return ErrStoreUnavailable }

func (e *EnvironmentStore) Delete(string) error { return ErrStoreUnavailable }
