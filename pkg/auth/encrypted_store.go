package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"xscraper/internal/fsutil"
	"xscraper/pkg/record"
)

// EnvPassphrase overrides the generated passphrase of the encrypted store
const EnvPassphrase = "XSCRAPER_PASSPHRASE"

const (
	vaultVersion     = 2
	saltSize         = 32
	keySize          = 32
	defaultKDFRounds = 210000
)

// vaultAAD binds the ciphertext to this file format
var vaultAAD = []byte("xscraper/credentials/v2")

// ErrVaultLocked is returned when the file cannot be opened with the current passphrase
var ErrVaultLocked = errors.New("credentials file cannot be decrypted with this passphrase")

// vaultFile is the on-disk form: a fresh salt and nonce on every write
type vaultFile struct {
	Version  int       `json:"version"`
	Rounds   int       `json:"rounds"`
	Salt     string    `json:"salt"`
	Sealed   string    `json:"sealed"`
	Modified time.Time `json:"modified"`
}

// EncryptedFileStore keeps accounts in one AES-GCM sealed file keyed by a
// PBKDF2-derived key. Usernames are matched case-insensitively.
type EncryptedFileStore struct {
	path       string
	passphrase string
	rounds     int
	mu         sync.Mutex
}

// NewEncryptedFileStore opens (or prepares) the vault at path
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create credentials directory: %w", err)
		}
	}

	passphrase, err := loadPassphrase(filepath.Join(filepath.Dir(path), ".passphrase"))
	if err != nil {
		return nil, err
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase, rounds: defaultKDFRounds}, nil
}

// Store adds or replaces the account
func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || record.Key(account.Username) == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(accounts map[string]Account) error {
		stored := *account
		if stored.LastModified.IsZero() {
			stored.LastModified = time.Now()
		}
		accounts[record.Key(account.Username)] = stored
		return nil
	})
}

// Retrieve returns the account stored under username
func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	key := record.Key(username)
	if key == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.Lock()
	accounts, err := e.read()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	account, ok := accounts[key]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

// List returns every account, most recently modified first
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.Lock()
	accounts, err := e.read()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]*Account, 0, len(accounts))
	for _, a := range accounts {
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastModified.After(out[j].LastModified)
	})
	return out, nil
}

// Delete removes the account; the file goes away with the last one
func (e *EncryptedFileStore) Delete(username string) error {
	key := record.Key(username)
	if key == "" {
		return ErrInvalidCredentials
	}
	return e.update(func(accounts map[string]Account) error {
		if _, ok := accounts[key]; !ok {
			return ErrCredentialsNotFound
		}
		delete(accounts, key)
		return nil
	})
}

// Exists reports whether username is stored
func (e *EncryptedFileStore) Exists(username string) bool {
	account, err := e.Retrieve(username)
	return err == nil && account != nil
}

func (e *EncryptedFileStore) update(change func(map[string]Account) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, err := e.read()
	if err != nil {
		return err
	}
	if err := change(accounts); err != nil {
		return err
	}
	if len(accounts) == 0 {
		if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove credentials file: %w", err)
		}
		return nil
	}
	return e.write(accounts)
}

// read returns an empty map when the file does not exist yet; the caller holds mu
func (e *EncryptedFileStore) read() (map[string]Account, error) {
	content, err := os.ReadFile(e.path)
	if os.IsNotExist(err) {
		return map[string]Account{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var vf vaultFile
	if err := json.Unmarshal(content, &vf); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return openVault(e.passphrase, vf)
}

func (e *EncryptedFileStore) write(accounts map[string]Account) error {
	vf, err := sealVault(e.passphrase, e.rounds, accounts)
	if err != nil {
		return err
	}
	content, err := json.MarshalIndent(vf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials file: %w", err)
	}
	return fsutil.WriteFileAtomic(e.path, 0600, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
}

func sealVault(passphrase string, rounds int, accounts map[string]Account) (vaultFile, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return vaultFile{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	plaintext, err := json.Marshal(accounts)
	if err != nil {
		return vaultFile{}, fmt.Errorf("failed to encode accounts: %w", err)
	}

	gcm, err := newGCM(deriveKey(passphrase, salt, rounds))
	if err != nil {
		return vaultFile{}, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return vaultFile{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return vaultFile{
		Version:  vaultVersion,
		Rounds:   rounds,
		Salt:     base64.StdEncoding.EncodeToString(salt),
		Sealed:   base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, vaultAAD)),
		Modified: time.Now().UTC(),
	}, nil
}

func openVault(passphrase string, vf vaultFile) (map[string]Account, error) {
	if vf.Version != vaultVersion {
		return nil, fmt.Errorf("unsupported credentials file version %d", vf.Version)
	}
	salt, err := base64.StdEncoding.DecodeString(vf.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(vf.Sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}

	gcm, err := newGCM(deriveKey(passphrase, salt, vf.Rounds))
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrVaultLocked
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, vaultAAD)
	if err != nil {
		return nil, ErrVaultLocked
	}

	accounts := map[string]Account{}
	if err := json.Unmarshal(plaintext, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

func deriveKey(passphrase string, salt []byte, rounds int) []byte {
	if rounds <= 0 {
		rounds = defaultKDFRounds
	}
	return pbkdf2.Key([]byte(passphrase), salt, rounds, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// loadPassphrase returns XSCRAPER_PASSPHRASE, else the generated passphrase
// kept next to the vault, creating it on first use
func loadPassphrase(path string) (string, error) {
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		return pass, nil
	}
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}
