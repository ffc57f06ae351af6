package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "keystone"

// Keyring persists the session in the operating system keychain.
type Keyring struct {
	account string
}

// NewKeyring stores the session under the given account name.
func NewKeyring(account string) *Keyring {
	if account == "" {
		account = "session"
	}
	return &Keyring{account: account}
}

func (k *Keyring) Load(ctx context.Context) (Record, error) {
	raw, err := keyring.Get(keyringService, k.account)
	if errors.Is(err, keyring.ErrNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, fmt.Errorf("decode keyring session: %w", err)
	}
	return rec, nil
}

func (k *Keyring) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, k.account, string(data))
}

func (k *Keyring) Clear(ctx context.Context) error {
	err := keyring.Delete(keyringService, k.account)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
