package keystore

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58/base58"

	"medirelay/go-station/pkg/models"
)

var (
	ErrInvalidCard         = errors.New("invalid station card")
	ErrFingerprintMismatch = errors.New("fingerprint does not match")
)

const cardSigningContext = "medirelay/station-card/v1"

// Card produces the signed public identity document for this station.
// Operators carry it to the peer station and compare fingerprints over a
// second channel before trusting it.
func (s *Store) Card() (models.StationCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return models.StationCard{}, ErrNotInitialized
	}
	card := models.StationCard{
		StationID:   s.info.StationID,
		StationName: s.info.StationName,
		SigningKey:  base58.Encode(s.info.SigningKey),
		EncryptKey:  base58.Encode(s.info.EncryptKey),
		Fingerprint: s.info.Fingerprint,
	}
	card.Signature = ed25519.Sign(s.signingPriv, cardSigningBytes(card))
	return card, nil
}

// VerifyCard checks a card's internal consistency: keys decode, the
// fingerprint matches the keys, and the self-signature verifies. It proves
// the card author holds the signing key; it does NOT prove who the author
// is. Only the out-of-band fingerprint comparison does that.
func VerifyCard(card models.StationCard) (signingKey, encryptKey []byte, err error) {
	if !models.ValidStationID(card.StationID) {
		return nil, nil, fmt.Errorf("%w: bad station id", ErrInvalidCard)
	}
	signingKey, err = base58.Decode(card.SigningKey)
	if err != nil || len(signingKey) != ed25519.PublicKeySize {
		return nil, nil, fmt.Errorf("%w: signing key does not decode", ErrInvalidCard)
	}
	encryptKey, err = base58.Decode(card.EncryptKey)
	if err != nil || len(encryptKey) != 32 {
		return nil, nil, fmt.Errorf("%w: encryption key does not decode", ErrInvalidCard)
	}
	if Fingerprint(signingKey, encryptKey) != card.Fingerprint {
		return nil, nil, fmt.Errorf("%w: fingerprint does not match keys", ErrInvalidCard)
	}
	if len(card.Signature) != ed25519.SignatureSize ||
		!ed25519.Verify(ed25519.PublicKey(signingKey), cardSigningBytes(card), card.Signature) {
		return nil, nil, fmt.Errorf("%w: self-signature does not verify", ErrInvalidCard)
	}
	return signingKey, encryptKey, nil
}

// TrustCard verifies card and adds it to the registry. When
// expectedFingerprint is non-empty it must match the card, letting the
// operator assert the value they compared out of band.
func (s *Store) TrustCard(card models.StationCard, expectedFingerprint string, replace bool) (models.TrustedStation, bool, error) {
	signingKey, encryptKey, err := VerifyCard(card)
	if err != nil {
		return models.TrustedStation{}, false, err
	}
	if expectedFingerprint != "" && !strings.EqualFold(strings.TrimSpace(expectedFingerprint), card.Fingerprint) {
		return models.TrustedStation{}, false, fmt.Errorf("%w: expected %s, card has %s",
			ErrFingerprintMismatch, expectedFingerprint, card.Fingerprint)
	}
	if card.StationID == s.StationID() {
		return models.TrustedStation{}, false, fmt.Errorf("%w: refusing to trust own station id", ErrInvalidCard)
	}
	return s.AddTrustedStation(card.StationID, card.StationName, signingKey, encryptKey, replace)
}

func cardSigningBytes(card models.StationCard) []byte {
	fields := []string{
		cardSigningContext,
		card.StationID,
		card.StationName,
		card.SigningKey,
		card.EncryptKey,
		card.Fingerprint,
	}
	b := make([]byte, 0, 128)
	for _, f := range fields {
		b = append(b, []byte(f)...)
		b = append(b, 0)
	}
	return b
}
