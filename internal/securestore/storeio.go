package securestore

import (
	"os"
	"path/filepath"
)

// WriteProtected writes data to path with owner-only permissions, sealing it
// under passphrase when one is set. The write is atomic: a temp file in the
// same directory is renamed over the target.
func WriteProtected(path, passphrase string, data []byte) error {
	out := data
	if passphrase != "" {
		sealed, err := Encrypt(passphrase, data)
		if err != nil {
			return err
		}
		out = sealed
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// ReadProtected reads path and unseals it when it carries the securestore
// prefix. Plaintext artifacts pass through unchanged; sealed artifacts with
// an empty passphrase fail with ErrAuthFailed.
func ReadProtected(path, passphrase string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !IsSealed(raw) {
		return raw, nil
	}
	return Decrypt(passphrase, raw)
}
