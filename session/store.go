package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// StorageKey is the durable key mirroring session state across restarts.
const StorageKey = "ii_authenticated"

// CredentialKey is the durable key holding the serialized delegated
// identity, stored next to the flag so sessions survive process restarts.
const CredentialKey = "ii_delegation"

// FlagTrue is the only value treated as "was authenticated". Absence or
// any other value means logged out until confirmed otherwise.
const FlagTrue = "true"

// StateStore persists the authenticated flag and the credential record that
// backs it. Load and LoadCredential return their zero value when the key is
// absent; implementations must treat clearing a missing key as a no-op.
type StateStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, value string) error
	Clear(ctx context.Context) error

	LoadCredential(ctx context.Context) ([]byte, error)
	SaveCredential(ctx context.Context, record []byte) error
	ClearCredential(ctx context.Context) error
}

// RedisStore keeps the flag and credential in Redis under
// prefix + ":" + key.
type RedisStore struct {
	client  redis.UniversalClient
	key     string
	credKey string
}

// NewRedisStore creates a Redis-backed state store. An empty prefix
// defaults to "om".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "om"
	}
	return &RedisStore{
		client:  client,
		key:     prefix + ":" + StorageKey,
		credKey: prefix + ":" + CredentialKey,
	}
}

// Load implements [StateStore].
func (s *RedisStore) Load(ctx context.Context) (string, error) {
	value, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session flag: %w", err)
	}
	return value, nil
}

// Save implements [StateStore].
func (s *RedisStore) Save(ctx context.Context, value string) error {
	if err := s.client.Set(ctx, s.key, value, 0).Err(); err != nil {
		return fmt.Errorf("save session flag: %w", err)
	}
	return nil
}

// Clear implements [StateStore].
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session flag: %w", err)
	}
	return nil
}

// LoadCredential implements [StateStore].
func (s *RedisStore) LoadCredential(ctx context.Context) ([]byte, error) {
	record, err := s.client.Get(ctx, s.credKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session credential: %w", err)
	}
	return record, nil
}

// SaveCredential implements [StateStore].
func (s *RedisStore) SaveCredential(ctx context.Context, record []byte) error {
	if err := s.client.Set(ctx, s.credKey, record, 0).Err(); err != nil {
		return fmt.Errorf("save session credential: %w", err)
	}
	return nil
}

// ClearCredential implements [StateStore].
func (s *RedisStore) ClearCredential(ctx context.Context) error {
	if err := s.client.Del(ctx, s.credKey).Err(); err != nil {
		return fmt.Errorf("clear session credential: %w", err)
	}
	return nil
}

// FileStore keeps the flag in a single file, the CLI analogue of browser
// local storage. The credential record lives beside it with a .credential
// suffix.
type FileStore struct {
	path     string
	credPath string
	mu       sync.Mutex
}

// NewFileStore creates a file-backed state store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, credPath: path + ".credential"}
}

// Load implements [StateStore].
func (s *FileStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session flag: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save implements [StateStore].
func (s *FileStore) Save(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("save session flag: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(value+"\n"), 0o600); err != nil {
		return fmt.Errorf("save session flag: %w", err)
	}
	return nil
}

// Clear implements [StateStore].
func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session flag: %w", err)
	}
	return nil
}

// LoadCredential implements [StateStore].
func (s *FileStore) LoadCredential(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := os.ReadFile(s.credPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session credential: %w", err)
	}
	return record, nil
}

// SaveCredential implements [StateStore]. The record contains key material,
// so the file is owner-only.
func (s *FileStore) SaveCredential(_ context.Context, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.credPath), 0o700); err != nil {
		return fmt.Errorf("save session credential: %w", err)
	}
	if err := os.WriteFile(s.credPath, record, 0o600); err != nil {
		return fmt.Errorf("save session credential: %w", err)
	}
	return nil
}

// ClearCredential implements [StateStore].
func (s *FileStore) ClearCredential(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.credPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear session credential: %w", err)
	}
	return nil
}

// MemStore is an in-process state store for tests and callers that do not
// want durability.
type MemStore struct {
	mu      sync.Mutex
	value   string
	present bool
	cred    []byte
}

// NewMemStore creates an empty in-memory state store.
func NewMemStore() *MemStore { return &MemStore{} }

// Load implements [StateStore].
func (s *MemStore) Load(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.present {
		return "", nil
	}
	return s.value, nil
}

// Save implements [StateStore].
func (s *MemStore) Save(_ context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	s.present = true
	return nil
}

// Clear implements [StateStore].
func (s *MemStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	s.present = false
	return nil
}

// LoadCredential implements [StateStore].
func (s *MemStore) LoadCredential(context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == nil {
		return nil, nil
	}
	return append([]byte(nil), s.cred...), nil
}

// SaveCredential implements [StateStore].
func (s *MemStore) SaveCredential(_ context.Context, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = append([]byte(nil), record...)
	return nil
}

// ClearCredential implements [StateStore].
func (s *MemStore) ClearCredential(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cred = nil
	return nil
}
