// Package auth stores the e621 login and API key used for authenticated
// requests. Accounts are kept in the system keyring when one is available,
// otherwise in an encrypted file, and can always be supplied through the
// environment.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Account is one e621 login and its API key
type Account struct {
	Login        string    `json:"login"`
	APIKey       string    `json:"api_key"`
	LastModified time.Time `json:"last_modified"`
}

// Store is a place accounts can be kept
type Store interface {
	Save(account *Account) error
	Load(login string) (*Account, error)
	List() ([]*Account, error)
	Delete(login string) error
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// Manager reads from every store and writes to the first that accepts
type Manager struct {
	stores []Store
}

// NewManager creates a manager over the keyring (when usable), an encrypted
// file in dir, and the environment, in that order.
func NewManager(dir string) (*Manager, error) {
	var stores []Store

	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}

	fs, err := NewEncryptedFileStore(filepath.Join(dir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, fs, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Save validates the account and writes it to the first store that accepts it
func (m *Manager) Save(account *Account) error {
	if account == nil || account.Login == "" {
		return fmt.Errorf("%w: login is required", ErrInvalidCredentials)
	}
	if account.APIKey == "" {
		return fmt.Errorf("%w: api key is required", ErrInvalidCredentials)
	}
	account.LastModified = time.Now()

	var errs []error
	for _, s := range m.stores {
		err := s.Save(account)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return ErrStoreUnavailable
	}
	return fmt.Errorf("failed to store credentials: %w", errors.Join(errs...))
}

// Load returns the account for login from the first store that has it
func (m *Manager) Load(login string) (*Account, error) {
	for _, s := range m.stores {
		if account, err := s.Load(login); err == nil && account != nil {
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for %s", ErrCredentialsNotFound, login)
}

// Default returns the account to use when none is named: environment
// credentials first, then the most recently saved account.
func (m *Manager) Default() (*Account, error) {
	for _, s := range m.stores {
		if env, ok := s.(*EnvironmentStore); ok {
			if account, err := env.Load(""); err == nil {
				return account, nil
			}
		}
	}

	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrCredentialsNotFound
	}
	return accounts[0], nil
}

// List returns every known account, newest first. A login kept in more
// than one store is listed once, with its newest copy.
func (m *Manager) List() ([]*Account, error) {
	byLogin := make(map[string]*Account)
	for _, s := range m.stores {
		accounts, err := s.List()
		if err != nil {
			continue
		}
		for _, a := range accounts {
			if existing, ok := byLogin[a.Login]; !ok || a.LastModified.After(existing.LastModified) {
				byLogin[a.Login] = a
			}
		}
	}

	result := make([]*Account, 0, len(byLogin))
	for _, a := range byLogin {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].LastModified.After(result[j].LastModified)
		}
		return result[i].Login < result[j].Login
	})
	return result, nil
}

// Delete removes login from every store holding it
func (m *Manager) Delete(login string) error {
	deleted := false
	var lastErr error
	for _, s := range m.stores {
		err := s.Delete(login)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrCredentialsNotFound), errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w for %s", ErrCredentialsNotFound, login)
}

// ConfigDir returns the per-user directory for e621dl state, creating it
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "e621dl")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Masked returns a copy of the account with the API key hidden
func Masked(account *Account) *Account {
	if account == nil {
		return nil
	}
	masked := *account
	masked.APIKey = maskString(account.APIKey)
	return &masked
}

// maskString keeps the first and last 4 characters of s
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
