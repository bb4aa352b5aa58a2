package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// TokenKey is the storage key the login flow writes the bearer token under.
const TokenKey = "authToken"

var ErrKeyNotFound = errors.New("key not found")

// Store is persistent client-side key-value storage.
type Store interface {
	Get(key string) (string, error)
}

// FileStore keeps string values in a single JSON object on disk.
// Every Get reads the file, so a token written by another process is picked up on the next request.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return value, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	values[key] = value
	return s.save(values)
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	values, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return s.save(values)
}

func (s *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage %s: %w", s.path, err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode storage %s: %w", s.path, err)
	}
	return values, nil
}

func (s *FileStore) save(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write storage %s: %w", s.path, err)
	}
	return os.Rename(tmp, s.path)
}

// MemoryStore is an in-process Store, used when nothing should touch the disk.
type MemoryStore struct {
	values sync.Map
}

func NewMemoryStore(values map[string]string) *MemoryStore {
	s := &MemoryStore{}
	for k, v := range values {
		s.values.Store(k, v)
	}
	return s
}

func (s *MemoryStore) Get(key string) (string, error) {
	v, ok := s.values.Load(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	return v.(string), nil
}

func (s *MemoryStore) Set(key, value string) {
	s.values.Store(key, value)
}

func (s *MemoryStore) Delete(key string) {
	s.values.Delete(key)
}
