package securestore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundtrip(t *testing.T) {
	data, err := Encrypt("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	plain, err := Decrypt("pass", data)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(plain) != "secret" {
		t.Fatalf("unexpected plaintext: %q", string(plain))
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	data, err := Encrypt("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt("other", data); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptTamperedFailsDeterministically(t *testing.T) {
	data, err := Encrypt("pass", []byte("secret"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if len(data) < 10 {
		t.Fatalf("unexpected encrypted payload size: %d", len(data))
	}
	data[len(data)-2] ^= 0xFF
	_, err = Decrypt("pass", data)
	if !errors.Is(err, ErrAuthFailed) && !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestDecryptPlaintextRejected(t *testing.T) {
	if _, err := Decrypt("pass", []byte("not sealed at all")); !errors.Is(err, ErrPlaintext) {
		t.Fatalf("expected ErrPlaintext, got %v", err)
	}
}

func TestWriteReadProtected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys", "signing.key")
	secret := []byte("station private key bytes")

	if err := WriteProtected(path, "pw", secret); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected file perm 0600, got %04o", perm)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw failed: %v", err)
	}
	if !IsSealed(raw) {
		t.Fatal("expected sealed artifact on disk")
	}
	if bytes.Contains(raw, secret) {
		t.Fatal("plaintext secret leaked to disk")
	}

	got, err := ReadProtected(path, "pw")
	if err != nil {
		t.Fatalf("read protected failed: %v", err)
	}
	if !bytes.Equal(got, secret) {
		t.Fatal("roundtrip mismatch")
	}
}

func TestWriteReadProtectedNoPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "encrypt.pub")

	if err := WriteProtected(path, "", []byte("public bytes")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got, err := ReadProtected(path, "")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "public bytes" {
		t.Fatalf("unexpected content: %q", string(got))
	}
}
