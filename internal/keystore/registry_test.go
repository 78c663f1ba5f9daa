package keystore

import (
	"bytes"
	"errors"
	"testing"
)

func newInitializedStore(t *testing.T, stationID string) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), "")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, _, err := s.GenerateKeys(stationID, "Station "+stationID, false); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	return s
}

func TestAddLookupRemoveTrustedStation(t *testing.T) {
	a := newInitializedStore(t, "station-a")
	b := newInitializedStore(t, "station-b")
	bInfo, _ := b.Info()

	entry, replaced, err := a.AddTrustedStation(bInfo.StationID, bInfo.StationName, bInfo.SigningKey, bInfo.EncryptKey, false)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if replaced {
		t.Fatal("first add should not report replaced")
	}
	if entry.Fingerprint != bInfo.Fingerprint {
		t.Fatalf("fingerprint mismatch: %s vs %s", entry.Fingerprint, bInfo.Fingerprint)
	}

	got, err := a.LookupTrusted("station-b")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !bytes.Equal(got.SigningKey, bInfo.SigningKey) || !bytes.Equal(got.PublicKey, bInfo.EncryptKey) {
		t.Fatal("stored keys differ")
	}

	if err := a.RemoveTrustedStation("station-b"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := a.LookupTrusted("station-b"); !errors.Is(err, ErrUnknownStation) {
		t.Fatalf("expected ErrUnknownStation after removal, got %v", err)
	}
	if err := a.RemoveTrustedStation("station-b"); !errors.Is(err, ErrUnknownStation) {
		t.Fatalf("expected ErrUnknownStation for double remove, got %v", err)
	}
}

func TestReAddWithDifferentKeysNeedsReplace(t *testing.T) {
	a := newInitializedStore(t, "station-a")
	b := newInitializedStore(t, "station-b")
	impostor := newInitializedStore(t, "station-b2")
	bInfo, _ := b.Info()
	impInfo, _ := impostor.Info()

	if _, _, err := a.AddTrustedStation("station-b", "B", bInfo.SigningKey, bInfo.EncryptKey, false); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Same keys again is idempotent.
	_, replaced, err := a.AddTrustedStation("station-b", "B renamed", bInfo.SigningKey, bInfo.EncryptKey, false)
	if err != nil {
		t.Fatalf("idempotent re-add failed: %v", err)
	}
	if replaced {
		t.Fatal("same-key re-add should not report replaced")
	}

	// Different keys must be an explicit replace.
	if _, _, err := a.AddTrustedStation("station-b", "B", impInfo.SigningKey, impInfo.EncryptKey, false); !errors.Is(err, ErrStationExists) {
		t.Fatalf("expected ErrStationExists, got %v", err)
	}
	_, replaced, err = a.AddTrustedStation("station-b", "B", impInfo.SigningKey, impInfo.EncryptKey, true)
	if err != nil {
		t.Fatalf("explicit replace failed: %v", err)
	}
	if !replaced {
		t.Fatal("explicit replace should report replaced")
	}
}

func TestRegistrySurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(dir, "")
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, _, err := a.GenerateKeys("station-a", "A", false); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	b := newInitializedStore(t, "station-b")
	bInfo, _ := b.Info()
	if _, _, err := a.AddTrustedStation("station-b", "B", bInfo.SigningKey, bInfo.EncryptKey, false); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	reopened, err := Open(dir, "")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := reopened.LookupTrusted("station-b")
	if err != nil {
		t.Fatalf("lookup after reopen failed: %v", err)
	}
	if got.Fingerprint != bInfo.Fingerprint {
		t.Fatal("registry entry corrupted across reopen")
	}
	stations := reopened.TrustedStations()
	if len(stations) != 1 || stations[0].StationID != "station-b" {
		t.Fatalf("unexpected registry listing: %+v", stations)
	}
}
