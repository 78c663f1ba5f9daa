// Package keystore owns a station's asymmetric key material and its registry
// of trusted remote stations. All state lives under one data directory with
// owner-only permissions; private keys can additionally be sealed under an
// operator passphrase.
package keystore

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tyler-smith/go-bip39"

	"medirelay/go-station/internal/securestore"
	"medirelay/go-station/pkg/models"
)

var (
	ErrAlreadyInitialized = errors.New("station keys already exist")
	ErrNotInitialized     = errors.New("station keys have not been generated")
	ErrUnknownStation     = errors.New("station is not in the trust registry")
	ErrStationExists      = errors.New("station is already trusted with different keys")
	ErrInvalidStationID   = errors.New("invalid station id")
	ErrInvalidMnemonic    = errors.New("invalid recovery mnemonic")
	ErrSeedUnavailable    = errors.New("recovery seed is not stored on this station")
)

const (
	stationFile  = "station.json"
	registryFile = "trust_registry.json"
	keysDir      = "keys"

	signingPrivFile = "signing.key"
	signingPubFile  = "signing.pub"
	encryptPrivFile = "encrypt.key"
	encryptPubFile  = "encrypt.pub"
	seedFile        = "seed.bin"
)

// Store is the file-backed key store. Reads serve from an in-memory snapshot
// under RLock; the rare operator-triggered writes take the exclusive lock
// and persist before mutating the snapshot.
type Store struct {
	mu         sync.RWMutex
	dir        string
	passphrase string

	initialized bool
	info        models.StationInfo
	signingPriv ed25519.PrivateKey
	encryptPriv [32]byte
	registry    map[string]models.TrustedStation
}

// Open loads (or prepares) a key store rooted at dir. A missing directory is
// created; missing key material leaves the store uninitialized until
// GenerateKeys runs.
func Open(dir, passphrase string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	s := &Store{
		dir:        dir,
		passphrase: passphrase,
		registry:   make(map[string]models.TrustedStation),
	}
	if err := s.loadStation(); err != nil {
		return nil, err
	}
	if err := s.loadRegistry(); err != nil {
		return nil, err
	}
	return s, nil
}

// GenerateKeys creates both keypairs from a fresh BIP-39 seed and persists
// every artifact. It refuses to overwrite existing keys unless force is set;
// force is destructive and the caller is expected to audit-log it. The
// returned mnemonic is shown to the operator exactly once.
func (s *Store) GenerateKeys(stationID, stationName string, force bool) (models.StationInfo, string, error) {
	if !models.ValidStationID(stationID) {
		return models.StationInfo{}, "", fmt.Errorf("%w: %q", ErrInvalidStationID, stationID)
	}
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return models.StationInfo{}, "", err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return models.StationInfo{}, "", err
	}
	info, err := s.installKeys(mnemonic, stationID, stationName, force)
	if err != nil {
		return models.StationInfo{}, "", err
	}
	return info, mnemonic, nil
}

// Restore rebuilds the station's keys from a recovery mnemonic. The derived
// keypairs are identical to the originals, so previously exchanged trust
// registries stay valid.
func (s *Store) Restore(mnemonic, stationID, stationName string, force bool) (models.StationInfo, error) {
	if !models.ValidStationID(stationID) {
		return models.StationInfo{}, fmt.Errorf("%w: %q", ErrInvalidStationID, stationID)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return models.StationInfo{}, ErrInvalidMnemonic
	}
	return s.installKeys(mnemonic, stationID, stationName, force)
}

func (s *Store) installKeys(mnemonic, stationID, stationName string, force bool) (models.StationInfo, error) {
	seed := bip39.NewSeed(mnemonic, "")
	keys, err := DeriveStationKeys(seed)
	if err != nil {
		return models.StationInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized && !force {
		return models.StationInfo{}, fmt.Errorf("%w: station %q", ErrAlreadyInitialized, s.info.StationID)
	}

	info := models.StationInfo{
		StationID:   stationID,
		StationName: stationName,
		SigningKey:  append([]byte(nil), keys.SigningPublic...),
		EncryptKey:  append([]byte(nil), keys.EncryptPublic[:]...),
		Fingerprint: Fingerprint(keys.SigningPublic, keys.EncryptPublic[:]),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.persistKeysLocked(info, keys, mnemonic); err != nil {
		return models.StationInfo{}, err
	}

	s.info = info
	s.signingPriv = append(ed25519.PrivateKey(nil), keys.SigningPrivate...)
	s.encryptPriv = keys.EncryptPrivate
	s.initialized = true
	return cloneInfo(info), nil
}

func (s *Store) persistKeysLocked(info models.StationInfo, keys *StationKeys, mnemonic string) error {
	kd := filepath.Join(s.dir, keysDir)
	writes := []struct {
		path       string
		passphrase string
		data       []byte
	}{
		{filepath.Join(kd, signingPrivFile), s.passphrase, keys.SigningPrivate},
		{filepath.Join(kd, signingPubFile), "", keys.SigningPublic},
		{filepath.Join(kd, encryptPrivFile), s.passphrase, keys.EncryptPrivate[:]},
		{filepath.Join(kd, encryptPubFile), "", keys.EncryptPublic[:]},
	}
	for _, w := range writes {
		if err := securestore.WriteProtected(w.path, w.passphrase, w.data); err != nil {
			return err
		}
	}
	// The recovery seed is only retained when it can be sealed.
	if s.passphrase != "" {
		if err := securestore.WriteProtected(filepath.Join(kd, seedFile), s.passphrase, []byte(mnemonic)); err != nil {
			return err
		}
	}
	raw, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return securestore.WriteProtected(filepath.Join(s.dir, stationFile), "", raw)
}

func (s *Store) loadStation() error {
	raw, err := os.ReadFile(filepath.Join(s.dir, stationFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var info models.StationInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return fmt.Errorf("station file is corrupt: %w", err)
	}

	kd := filepath.Join(s.dir, keysDir)
	signingPriv, err := securestore.ReadProtected(filepath.Join(kd, signingPrivFile), s.passphrase)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}
	if len(signingPriv) != ed25519.PrivateKeySize {
		return fmt.Errorf("signing key file has %d bytes, want %d", len(signingPriv), ed25519.PrivateKeySize)
	}
	encryptPriv, err := securestore.ReadProtected(filepath.Join(kd, encryptPrivFile), s.passphrase)
	if err != nil {
		return fmt.Errorf("load encryption key: %w", err)
	}
	if len(encryptPriv) != 32 {
		return fmt.Errorf("encryption key file has %d bytes, want 32", len(encryptPriv))
	}

	s.info = info
	s.signingPriv = ed25519.PrivateKey(signingPriv)
	copy(s.encryptPriv[:], encryptPriv)
	s.initialized = true
	return nil
}

// Initialized reports whether key material exists.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// StationID returns the local station id, empty before initialization.
func (s *Store) StationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.StationID
}

// Info returns the local public identity. Private keys are never part of it.
func (s *Store) Info() (models.StationInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return models.StationInfo{}, ErrNotInitialized
	}
	return cloneInfo(s.info), nil
}

func (s *Store) SigningPrivateKey() (ed25519.PrivateKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	return append(ed25519.PrivateKey(nil), s.signingPriv...), nil
}

func (s *Store) EncryptionPrivateKey() (*[32]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}
	priv := s.encryptPriv
	return &priv, nil
}

// ExportMnemonic returns the stored recovery mnemonic. It exists only when a
// passphrase was configured at generation time.
func (s *Store) ExportMnemonic() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return "", ErrNotInitialized
	}
	if s.passphrase == "" {
		return "", ErrSeedUnavailable
	}
	raw, err := securestore.ReadProtected(filepath.Join(s.dir, keysDir, seedFile), s.passphrase)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrSeedUnavailable
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func cloneInfo(info models.StationInfo) models.StationInfo {
	info.SigningKey = append([]byte(nil), info.SigningKey...)
	info.EncryptKey = append([]byte(nil), info.EncryptKey...)
	return info
}
