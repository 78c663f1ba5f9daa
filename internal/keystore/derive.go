package keystore

import (
	"crypto/ed25519"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	hkdfInfoSigning    = "medirelay/station/signing/v1"
	hkdfInfoEncryption = "medirelay/station/encryption/v1"
)

// StationKeys is the full key material of one station. Private parts never
// leave the key store except through the sealed on-disk artifacts.
type StationKeys struct {
	SigningPrivate ed25519.PrivateKey
	SigningPublic  ed25519.PublicKey
	EncryptPrivate [32]byte
	EncryptPublic  [32]byte
}

// DeriveStationKeys expands a master seed into both keypairs. Distinct HKDF
// info strings keep the signing and encryption domains separated; the same
// seed always yields the same keys, which is what makes mnemonic recovery
// work.
func DeriveStationKeys(seed []byte) (*StationKeys, error) {
	signingSeed, err := hkdfExpand(seed, hkdfInfoSigning, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	encryptSeed, err := hkdfExpand(seed, hkdfInfoEncryption, 32)
	if err != nil {
		return nil, err
	}

	keys := &StationKeys{}
	keys.SigningPrivate = ed25519.NewKeyFromSeed(signingSeed)
	keys.SigningPublic = keys.SigningPrivate.Public().(ed25519.PublicKey)
	copy(keys.EncryptPrivate[:], encryptSeed)

	pub, err := curve25519.X25519(keys.EncryptPrivate[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(keys.EncryptPublic[:], pub)
	return keys, nil
}

func hkdfExpand(seed []byte, info string, outLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, outLen)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}
