package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// CredentialsStore persists password hashes by username.
type CredentialsStore interface {
	// ReadHashedPassword returns the hash of username and whether it exists.
	ReadHashedPassword(username string) (string, bool, error)
	Write(username, hashed string) error
	// Remove deletes username, or returns ErrUnknownUser.
	Remove(username string) error
}

// JSONFileStore keeps credentials in a JSON object mapping each username to
// the base64 of its hash. A missing file is an empty store.
type JSONFileStore struct {
	path string
	mu   sync.Mutex
}

func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path}
}

func (s *JSONFileStore) ReadHashedPassword(username string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.read()
	if err != nil {
		return "", false, err
	}
	hashed, ok := creds[username]
	return hashed, ok, nil
}

func (s *JSONFileStore) Write(username, hashed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.read()
	if err != nil {
		return err
	}
	creds[username] = hashed
	return s.write(creds)
}

func (s *JSONFileStore) Remove(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := creds[username]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}
	delete(creds, username)
	return s.write(creds)
}

func (s *JSONFileStore) read() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var encoded map[string]string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("decode credentials %s: %w", s.path, err)
	}
	creds := make(map[string]string, len(encoded))
	for username, value := range encoded {
		hashed, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("decode hash of %s: %w", username, err)
		}
		creds[username] = string(hashed)
	}
	return creds, nil
}

// write replaces the file atomically.
func (s *JSONFileStore) write(creds map[string]string) error {
	encoded := make(map[string]string, len(creds))
	for username, hashed := range creds {
		encoded[username] = base64.StdEncoding.EncodeToString([]byte(hashed))
	}
	raw, err := json.MarshalIndent(encoded, "", "    ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".creds-*")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}
