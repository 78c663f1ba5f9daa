// Package station is the management surface over the exchange core: key
// store, envelope builder/verifier and replay ledger behind one API that the
// CLI and embedding applications call.
package station

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"medirelay/go-station/internal/envelope"
	"medirelay/go-station/internal/keystore"
	"medirelay/go-station/pkg/models"
)

// Ledger is what the service needs from a replay ledger implementation.
type Ledger interface {
	envelope.ReplayLedger
	Prune(cutoff time.Time) (int, error)
	Records() ([]models.ReplayRecord, error)
	Close() error
}

type Options struct {
	Window     envelope.Window
	Retention  time.Duration
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

type Service struct {
	keys      *keystore.Store
	ledger    Ledger
	builder   *envelope.Builder
	verifier  *envelope.Verifier
	logger    *slog.Logger
	metrics   *Metrics
	failures  *failureMonitor
	retention time.Duration
}

func New(keys *keystore.Store, led Ledger, opts Options) *Service {
	if opts.Window.Past <= 0 {
		opts.Window = envelope.DefaultWindow()
	}
	if opts.Retention <= 0 {
		opts.Retention = 4 * opts.Window.Past
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		keys:      keys,
		ledger:    led,
		builder:   envelope.NewBuilder(keys),
		verifier:  envelope.NewVerifier(keys, led, opts.Window),
		logger:    logger,
		metrics:   NewMetrics(opts.Registerer),
		failures:  newFailureMonitor(),
		retention: opts.Retention,
	}
}

func (s *Service) Close() error {
	return s.ledger.Close()
}

// InitStation generates the station's keypairs. force wipes existing keys
// and is logged as a destructive action.
func (s *Service) InitStation(stationID, stationName string, force bool) (models.StationInfo, string, error) {
	if force && s.keys.Initialized() {
		s.logger.Warn("regenerating station keys over existing material",
			"station_id", stationID, "security", true)
	}
	info, mnemonic, err := s.keys.GenerateKeys(stationID, stationName, force)
	if err != nil {
		return models.StationInfo{}, "", err
	}
	s.logger.Info("station keys generated",
		"station_id", info.StationID, "fingerprint", info.Fingerprint)
	return info, mnemonic, nil
}

// RestoreStation rebuilds keys from a recovery mnemonic.
func (s *Service) RestoreStation(mnemonic, stationID, stationName string, force bool) (models.StationInfo, error) {
	info, err := s.keys.Restore(mnemonic, stationID, stationName, force)
	if err != nil {
		return models.StationInfo{}, err
	}
	s.logger.Info("station keys restored from mnemonic",
		"station_id", info.StationID, "fingerprint", info.Fingerprint)
	return info, nil
}

func (s *Service) Info() (models.StationInfo, error) {
	return s.keys.Info()
}

func (s *Service) Card() (models.StationCard, error) {
	return s.keys.Card()
}

func (s *Service) ExportMnemonic() (string, error) {
	return s.keys.ExportMnemonic()
}

// TrustCard verifies and registers a peer's station card. Replacing keys for
// a known station is the audited path for re-provisioned peers.
func (s *Service) TrustCard(card models.StationCard, expectedFingerprint string, replace bool) (models.TrustedStation, error) {
	entry, replaced, err := s.keys.TrustCard(card, expectedFingerprint, replace)
	if err != nil {
		return models.TrustedStation{}, err
	}
	if replaced {
		s.logger.Warn("trusted station keys replaced",
			"station_id", entry.StationID, "fingerprint", entry.Fingerprint, "security", true)
	} else {
		s.logger.Info("station trusted",
			"station_id", entry.StationID, "fingerprint", entry.Fingerprint)
	}
	return entry, nil
}

func (s *Service) RemoveTrust(stationID string) error {
	if err := s.keys.RemoveTrustedStation(stationID); err != nil {
		return err
	}
	s.logger.Info("station trust revoked", "station_id", stationID, "security", true)
	return nil
}

func (s *Service) TrustedStations() []models.TrustedStation {
	return s.keys.TrustedStations()
}

// BuildEnvelope seals data for recipientID and returns the envelope.
func (s *Service) BuildEnvelope(recipientID, dataType string, data []byte) (models.Envelope, error) {
	env, err := s.builder.Build(recipientID, dataType, models.RawData(data))
	if err != nil {
		return models.Envelope{}, err
	}
	s.metrics.built()
	s.logger.Info("envelope built",
		"envelope_id", env.EnvelopeID, "recipient_id", recipientID, "data_type", dataType)
	return env, nil
}

// ExportEnvelope builds an envelope and writes it to outPath atomically, so
// a yanked USB stick can hold a complete file or none at all, never half.
func (s *Service) ExportEnvelope(recipientID, dataType string, data []byte, outPath string) (models.Envelope, error) {
	env, err := s.BuildEnvelope(recipientID, dataType, data)
	if err != nil {
		return models.Envelope{}, err
	}
	raw, err := envelope.Marshal(env)
	if err != nil {
		return models.Envelope{}, err
	}
	if err := writeFileAtomic(outPath, raw); err != nil {
		return models.Envelope{}, err
	}
	return env, nil
}

// ImportEnvelope verifies raw envelope bytes. On success the payload and its
// provenance come back; every failure is classified for metrics and audit.
func (s *Service) ImportEnvelope(data []byte) (models.Payload, models.Provenance, error) {
	payload, prov, err := s.verifier.Verify(data)
	if err != nil {
		s.auditFailure(data, err)
		return models.Payload{}, models.Provenance{}, err
	}
	s.metrics.imported("accepted")
	s.logger.Info("envelope accepted",
		"sender_id", prov.SenderID, "data_type", payload.DataType)
	return payload, prov, nil
}

// ImportEnvelopeFile reads path and verifies its contents.
func (s *Service) ImportEnvelopeFile(path string) (models.Payload, models.Provenance, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Payload{}, models.Provenance{}, err
	}
	return s.ImportEnvelope(raw)
}

// PruneLedger drops replay records older than the retention period.
func (s *Service) PruneLedger(now time.Time) (int, error) {
	removed, err := s.ledger.Prune(now.Add(-s.retention))
	if err != nil {
		return 0, err
	}
	s.metrics.pruned(removed)
	if removed > 0 {
		s.logger.Info("replay ledger pruned", "removed", removed)
	}
	return removed, nil
}

// ReplayRecords lists retained ledger entries for operator inspection.
func (s *Service) ReplayRecords() ([]models.ReplayRecord, error) {
	return s.ledger.Records()
}

func (s *Service) auditFailure(data []byte, verifyErr error) {
	outcome := classify(verifyErr)
	s.metrics.imported(outcome)

	// Best-effort header peek for the audit trail. The envelope already
	// failed verification, so these fields are claims, not facts.
	var claimed models.Envelope
	_ = json.Unmarshal(data, &claimed)

	attrs := []any{
		"outcome", outcome,
		"envelope_id", claimed.EnvelopeID,
		"sender_id", claimed.Header.SenderID,
		"error", verifyErr.Error(),
	}
	switch {
	case errors.Is(verifyErr, envelope.ErrSignature):
		// Tampering, not staleness. Always a security event.
		s.logger.Error("envelope signature verification failed", append(attrs, "security", true)...)
	case errors.Is(verifyErr, envelope.ErrTrust):
		if s.failures.record(claimed.Header.SenderID, time.Now()) {
			s.logger.Warn("envelope rejected", attrs...)
		} else {
			s.logger.Error("repeated trust failures from sender", append(attrs, "security", true)...)
		}
	default:
		s.logger.Warn("envelope rejected", attrs...)
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, envelope.ErrMalformedEnvelope):
		return "malformed"
	case errors.Is(err, envelope.ErrTrust):
		return "trust"
	case errors.Is(err, envelope.ErrReplay):
		return "replay"
	case errors.Is(err, envelope.ErrSignature):
		return "signature"
	case errors.Is(err, envelope.ErrDecryption):
		return "decryption"
	default:
		return "error"
	}
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("finalize envelope file: %w", err)
	}
	return nil
}
