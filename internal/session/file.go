package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/munaimtahir/keystone/pkg/crypto"
)

// fileRecord is the on-disk layout. When a sealing key is configured the
// token is stored in SealedToken instead of Token.
type fileRecord struct {
	APIBaseURL  string `json:"api_base_url,omitempty"`
	Username    string `json:"username,omitempty"`
	Token       string `json:"access_token,omitempty"`
	SealedToken string `json:"sealed_token,omitempty"`
}

// File persists the session as JSON under the user's config directory.
type File struct {
	path string
	key  string
}

// NewFile returns a file backend at path. A non-empty key seals the token at rest.
func NewFile(path, key string) *File {
	return &File{path: path, key: strings.TrimSpace(key)}
}

// DefaultPath returns <dir>/session.json.
func DefaultPath(dir string) string {
	return filepath.Join(dir, "session.json")
}

func (f *File) Load(ctx context.Context) (Record, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	var stored fileRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return Record{}, fmt.Errorf("decode session file: %w", err)
	}
	rec := Record{APIBaseURL: stored.APIBaseURL, Username: stored.Username, Token: stored.Token}
	if stored.SealedToken != "" {
		if f.key == "" {
			return Record{}, errors.New("session token is sealed but KEYSTONE_SESSION_KEY is not set")
		}
		plain, err := crypto.OpenString(f.key, stored.SealedToken)
		if err != nil {
			return Record{}, fmt.Errorf("open sealed token: %w", err)
		}
		rec.Token = plain
	}
	return rec, nil
}

func (f *File) Save(ctx context.Context, rec Record) error {
	stored := fileRecord{APIBaseURL: rec.APIBaseURL, Username: rec.Username}
	if rec.Token != "" {
		if f.key != "" {
			sealed, err := crypto.SealString(f.key, rec.Token)
			if err != nil {
				return fmt.Errorf("seal token: %w", err)
			}
			stored.SealedToken = sealed
		} else {
			stored.Token = rec.Token
		}
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *File) Clear(ctx context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
