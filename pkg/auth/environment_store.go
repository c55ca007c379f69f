package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvLogin  = "E621DL_LOGIN"
	EnvAPIKey = "E621DL_API_KEY"
)

// EnvironmentStore reads a single account from E621DL_LOGIN and
// E621DL_API_KEY. It cannot be written.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Save always fails with ErrStoreUnavailable
func (e *EnvironmentStore) Save(*Account) error {
	return ErrStoreUnavailable
}

// Load returns the environment account. An empty login matches it, as does
// the login it names.
func (e *EnvironmentStore) Load(login string) (*Account, error) {
	envLogin := os.Getenv(EnvLogin)
	apiKey := os.Getenv(EnvAPIKey)
	if envLogin == "" || apiKey == "" {
		return nil, ErrCredentialsNotFound
	}
	if login != "" && login != envLogin {
		return nil, ErrCredentialsNotFound
	}

	return &Account{Login: envLogin, APIKey: apiKey, LastModified: time.Now()}, nil
}

// List returns the environment account if one is set
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Load("")
	if err != nil {
		return nil, nil
	}
	return []*Account{account}, nil
}

// Delete always fails with ErrStoreUnavailable
func (e *EnvironmentStore) Delete(string) error {
	return ErrStoreUnavailable
}
