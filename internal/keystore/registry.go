package keystore

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"medirelay/go-station/internal/securestore"
	"medirelay/go-station/pkg/models"
)

// registryEntry is the on-disk shape of one trusted station, keyed by
// station id in trust_registry.json.
type registryEntry struct {
	PublicKey   []byte    `json:"public_key"`
	SigningKey  []byte    `json:"signing_key"`
	Fingerprint string    `json:"fingerprint"`
	AddedAt     time.Time `json:"added_at"`
	StationName string    `json:"station_name"`
}

// AddTrustedStation inserts a remote station into the trust registry.
// Re-adding the same station with identical keys refreshes the name and is
// idempotent. Different keys are refused unless replace is set, so a key
// substitution can never slip in as a silent overwrite; callers audit-log
// every replace. The returned bool reports whether an existing entry was
// replaced.
func (s *Store) AddTrustedStation(stationID, stationName string, signingKey, encryptKey []byte, replace bool) (models.TrustedStation, bool, error) {
	if !models.ValidStationID(stationID) {
		return models.TrustedStation{}, false, fmt.Errorf("%w: %q", ErrInvalidStationID, stationID)
	}
	if len(signingKey) != ed25519.PublicKeySize {
		return models.TrustedStation{}, false, fmt.Errorf("signing key has %d bytes, want %d", len(signingKey), ed25519.PublicKeySize)
	}
	if len(encryptKey) != 32 {
		return models.TrustedStation{}, false, fmt.Errorf("encryption key has %d bytes, want 32", len(encryptKey))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := false
	if existing, ok := s.registry[stationID]; ok {
		sameKeys := bytes.Equal(existing.SigningKey, signingKey) && bytes.Equal(existing.PublicKey, encryptKey)
		if !sameKeys && !replace {
			return models.TrustedStation{}, false, fmt.Errorf("%w: %q", ErrStationExists, stationID)
		}
		replaced = !sameKeys
	}

	entry := models.TrustedStation{
		StationID:   stationID,
		StationName: stationName,
		SigningKey:  append([]byte(nil), signingKey...),
		PublicKey:   append([]byte(nil), encryptKey...),
		Fingerprint: Fingerprint(signingKey, encryptKey),
		AddedAt:     time.Now().UTC(),
	}
	next := s.cloneRegistryLocked()
	next[stationID] = entry
	if err := s.persistRegistryLocked(next); err != nil {
		return models.TrustedStation{}, false, err
	}
	s.registry = next
	return cloneTrusted(entry), replaced, nil
}

// LookupTrusted returns the trusted entry for stationID.
func (s *Store) LookupTrusted(stationID string) (models.TrustedStation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.registry[stationID]
	if !ok {
		return models.TrustedStation{}, fmt.Errorf("%w: %q", ErrUnknownStation, stationID)
	}
	return cloneTrusted(entry), nil
}

// RemoveTrustedStation revokes trust in stationID. Envelopes from it fail
// verification from then on.
func (s *Store) RemoveTrustedStation(stationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.registry[stationID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStation, stationID)
	}
	next := s.cloneRegistryLocked()
	delete(next, stationID)
	if err := s.persistRegistryLocked(next); err != nil {
		return err
	}
	s.registry = next
	return nil
}

// TrustedStations lists the registry sorted by station id.
func (s *Store) TrustedStations() []models.TrustedStation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TrustedStation, 0, len(s.registry))
	for _, entry := range s.registry {
		out = append(out, cloneTrusted(entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out
}

func (s *Store) cloneRegistryLocked() map[string]models.TrustedStation {
	next := make(map[string]models.TrustedStation, len(s.registry))
	for id, entry := range s.registry {
		next[id] = entry
	}
	return next
}

func (s *Store) persistRegistryLocked(registry map[string]models.TrustedStation) error {
	onDisk := make(map[string]registryEntry, len(registry))
	for id, entry := range registry {
		onDisk[id] = registryEntry{
			PublicKey:   entry.PublicKey,
			SigningKey:  entry.SigningKey,
			Fingerprint: entry.Fingerprint,
			AddedAt:     entry.AddedAt,
			StationName: entry.StationName,
		}
	}
	raw, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return err
	}
	return securestore.WriteProtected(filepath.Join(s.dir, registryFile), "", raw)
}

func (s *Store) loadRegistry() error {
	raw, err := os.ReadFile(filepath.Join(s.dir, registryFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var onDisk map[string]registryEntry
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return fmt.Errorf("trust registry is corrupt: %w", err)
	}
	for id, entry := range onDisk {
		s.registry[id] = models.TrustedStation{
			StationID:   id,
			StationName: entry.StationName,
			SigningKey:  entry.SigningKey,
			PublicKey:   entry.PublicKey,
			Fingerprint: entry.Fingerprint,
			AddedAt:     entry.AddedAt,
		}
	}
	return nil
}

func cloneTrusted(entry models.TrustedStation) models.TrustedStation {
	entry.SigningKey = append([]byte(nil), entry.SigningKey...)
	entry.PublicKey = append([]byte(nil), entry.PublicKey...)
	return entry
}
