package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "e621dl"
	keyringPrefix  = "account:"
	// the keyring cannot enumerate entries, so logins are indexed here
	keyringIndex = "accounts"
)

// KeyringStore keeps accounts in the system keychain
type KeyringStore struct{}

// NewKeyringStore returns a keyring store if the system keyring works
func NewKeyringStore() (*KeyringStore, error) {
	const check = "availability"
	if err := keyring.Set(keyringService, check, "ok"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	_ = keyring.Delete(keyringService, check)
	return &KeyringStore{}, nil
}

// Save writes the account and adds it to the index
func (k *KeyringStore) Save(account *Account) error {
	if account == nil || account.Login == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+account.Login, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	logins, err := k.logins()
	if err != nil {
		return err
	}
	for _, l := range logins {
		if l == account.Login {
			return nil
		}
	}
	return k.setLogins(append(logins, account.Login))
}

// Load reads the account for login
func (k *KeyringStore) Load(login string) (*Account, error) {
	if login == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+login)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}
	return &account, nil
}

// List returns the indexed accounts that can still be read
func (k *KeyringStore) List() ([]*Account, error) {
	logins, err := k.logins()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(logins))
	for _, l := range logins {
		if a, err := k.Load(l); err == nil {
			accounts = append(accounts, a)
		}
	}
	return accounts, nil
}

// Delete removes the account and its index entry
func (k *KeyringStore) Delete(login string) error {
	if login == "" {
		return ErrInvalidCredentials
	}

	err := keyring.Delete(keyringService, keyringPrefix+login)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	logins, err := k.logins()
	if err != nil {
		return err
	}
	kept := logins[:0]
	for _, l := range logins {
		if l != login {
			kept = append(kept, l)
		}
	}
	return k.setLogins(kept)
}

func (k *KeyringStore) logins() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndex)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}

	var logins []string
	if err := json.Unmarshal([]byte(data), &logins); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	return logins, nil
}

func (k *KeyringStore) setLogins(logins []string) error {
	if len(logins) == 0 {
		err := keyring.Delete(keyringService, keyringIndex)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring index: %w", err)
		}
		return nil
	}

	sort.Strings(logins)
	data, err := json.Marshal(logins)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, keyringIndex, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring index: %w", err)
	}
	return nil
}
