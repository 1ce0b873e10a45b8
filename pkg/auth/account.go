package auth

import (
	"errors"
	"fmt"
	"time"

	"xscraper/pkg/record"
)

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// Account holds the session cookies of an X account
type Account struct {
	Username     string    `json:"username"`
	AuthToken    string    `json:"auth_token"`
	CSRFToken    string    `json:"csrf_token"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Validate requires a handle and the auth_token cookie; ct0 is refreshed by
// the site and may be missing
func (a *Account) Validate() error {
	switch {
	case a == nil:
		return fmt.Errorf("%w: no account", ErrInvalidCredentials)
	case record.Key(a.Username) == "":
		return fmt.Errorf("%w: username is required", ErrInvalidCredentials)
	case a.AuthToken == "":
		return fmt.Errorf("%w: auth_token is required", ErrInvalidCredentials)
	}
	return nil
}

// CredentialStore is one place accounts can live. Stores that cannot write
// return ErrStoreUnavailable from Store and Delete.
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(username string) (*Account, error)
	List() ([]*Account, error)
	Delete(username string) error
	Exists(username string) bool
}

// SanitizeAccount returns a copy with both cookies masked
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}
	masked := *account
	masked.AuthToken = maskString(account.AuthToken)
	masked.CSRFToken = maskString(account.CSRFToken)
	return &masked
}

// maskString keeps the first and last four characters
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
