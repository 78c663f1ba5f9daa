// Package securestore seals small secrets, station private key material
// above all, under an operator passphrase. The sealed form is a
// self-describing JSON envelope behind a magic prefix so readers can tell
// protected artifacts from plaintext ones.
package securestore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	sealedVersion = 1
	saltSize      = 16
	filePrefix    = "MRSTSEC1\n"

	argonTime    = uint32(2)
	argonMemKB   = uint32(64 * 1024)
	argonThreads = uint8(1)
)

var (
	ErrAuthFailed = errors.New("securestore authentication failed")
	ErrInvalid    = errors.New("securestore sealed data is invalid")
	ErrPlaintext  = errors.New("securestore data is not sealed")
)

type Sealed struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

func Encrypt(passphrase string, plaintext []byte) ([]byte, error) {
	sealed, err := Seal(passphrase, plaintext)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(sealed)
	if err != nil {
		return nil, err
	}
	return append([]byte(filePrefix), raw...), nil
}

func Seal(passphrase string, plaintext []byte) (*Sealed, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return &Sealed{
		Version:     sealedVersion,
		KDF:         "argon2id",
		KDFTime:     argonTime,
		KDFMemoryKB: argonMemKB,
		KDFThreads:  argonThreads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  ciphertext,
	}, nil
}

// IsSealed reports whether data carries the securestore prefix.
func IsSealed(data []byte) bool {
	return strings.HasPrefix(string(data), filePrefix)
}

func Decrypt(passphrase string, data []byte) ([]byte, error) {
	if !IsSealed(data) {
		return nil, ErrPlaintext
	}
	data = data[len(filePrefix):]
	var sealed Sealed
	if err := json.Unmarshal(data, &sealed); err != nil {
		return nil, ErrInvalid
	}
	return Open(passphrase, &sealed)
}

func Open(passphrase string, sealed *Sealed) ([]byte, error) {
	if sealed == nil || sealed.Version != sealedVersion || sealed.KDF != "argon2id" {
		return nil, ErrInvalid
	}
	key := argon2.IDKey([]byte(passphrase), sealed.Salt, sealed.KDFTime, sealed.KDFMemoryKB, sealed.KDFThreads, chacha20poly1305.KeySize)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, sealed.Nonce, sealed.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemKB, argonThreads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
