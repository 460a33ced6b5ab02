package client

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTokenStores_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	key := bytes.Repeat([]byte{7}, 32)
	enc, err := NewEncryptedFileStore(filepath.Join(dir, "enc", "token"), key)
	if err != nil {
		t.Fatalf("NewEncryptedFileStore() error = %v", err)
	}

	stores := map[string]TokenStore{
		"memory":    NewMemoryStore(),
		"file":      NewFileStore(filepath.Join(dir, "plain", "token")),
		"encrypted": enc,
	}

	for name, store := range stores {
		store := store
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Requirement: empty store yields "" without error
			if got, err := store.Get(ctx); err != nil || got != "" {
				t.Fatalf("Get() on empty store = %q, %v", got, err)
			}

			if err := store.Set(ctx, "tok-1"); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if err := store.Set(ctx, "tok-2"); err != nil {
				t.Fatalf("Set() overwrite error = %v", err)
			}
			if got, err := store.Get(ctx); err != nil || got != "tok-2" {
				t.Fatalf("Get() = %q, %v, want tok-2", got, err)
			}

			if err := store.Remove(ctx); err != nil {
				t.Fatalf("Remove() error = %v", err)
			}
			if err := store.Remove(ctx); err != nil {
				t.Fatalf("second Remove() error = %v", err)
			}
			if got, _ := store.Get(ctx); got != "" {
				t.Errorf("Get() after Remove = %q", got)
			}
		})
	}
}

func TestFileStore_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := NewFileStore(path).Set(context.Background(), "tok"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("mode = %o, want 600", perm)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	t.Run("bad key length", func(t *testing.T) {
		if _, err := NewEncryptedFileStore("x", []byte("short")); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("error = %v, want ErrInvalidKey", err)
		}
	})

	t.Run("ciphertext hides the token", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token")
		store, _ := NewEncryptedFileStore(path, bytes.Repeat([]byte{1}, 32))
		if err := store.Set(context.Background(), "super-secret-token"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		raw, _ := os.ReadFile(path)
		if bytes.Contains(raw, []byte("super-secret-token")) {
			t.Error("file contains the plaintext token")
		}
	})

	t.Run("wrong key fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token")
		writer, _ := NewEncryptedFileStore(path, bytes.Repeat([]byte{1}, 32))
		reader, _ := NewEncryptedFileStore(path, bytes.Repeat([]byte{2}, 32))
		if err := writer.Set(context.Background(), "tok"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if _, err := reader.Get(context.Background()); err == nil {
			t.Error("Get() with the wrong key should fail")
		}
	})

	t.Run("truncated file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "token")
		if err := os.WriteFile(path, []byte("abc"), 0o600); err != nil {
			t.Fatal(err)
		}
		store, _ := NewEncryptedFileStore(path, bytes.Repeat([]byte{1}, 32))
		if _, err := store.Get(context.Background()); err == nil {
			t.Error("Get() on a truncated file should fail")
		}
	})
}
