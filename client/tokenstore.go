package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/lborres/tether/core"
)

// TokenStore persists the single session token under core.TokenCookieName.
// Get returns "" without error when nothing is stored.
type TokenStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, token string) error
	Remove(ctx context.Context) error
}

var (
	_ TokenStore = (*MemoryStore)(nil)
	_ TokenStore = (*FileStore)(nil)
	_ TokenStore = (*EncryptedFileStore)(nil)
)

var ErrInvalidKey = fmt.Errorf("encryption key must be %d bytes", chacha20poly1305.KeySize)

// MemoryStore keeps the token for the life of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *MemoryStore) Set(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Remove(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// FileStore keeps the token in a 0600 file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Get(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := readFile(f.path)
	return string(data), err
}

func (f *FileStore) Set(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeFile(f.path, []byte(token))
}

func (f *FileStore) Remove(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return removeFile(f.path)
}

// EncryptedFileStore seals the token with XChaCha20-Poly1305 before writing.
// The file holds nonce || ciphertext.
type EncryptedFileStore struct {
	mu   sync.Mutex
	path string
	key  []byte
}

func NewEncryptedFileStore(path string, key []byte) (*EncryptedFileStore, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return &EncryptedFileStore{path: path, key: append([]byte(nil), key...)}, nil
}

func (e *EncryptedFileStore) Get(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := readFile(e.path)
	if err != nil || len(data) == 0 {
		return "", err
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", err
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return "", errors.New("token file is truncated")
	}
	nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(core.TokenCookieName))
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	return string(plain), nil
}

func (e *EncryptedFileStore) Set(_ context.Context, token string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(token)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	return writeFile(e.path, aead.Seal(nonce, nonce, []byte(token), []byte(core.TokenCookieName)))
}

func (e *EncryptedFileStore) Remove(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return removeFile(e.path)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// writeFile replaces path atomically via a temp file in the same directory.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
