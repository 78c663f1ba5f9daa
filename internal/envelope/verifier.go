package envelope

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/nacl/box"

	"medirelay/go-station/pkg/models"
)

// ReplayLedger is the durable set of already-accepted envelope ids.
// InsertIfAbsent must be atomic; the verifier relies on it to collapse
// concurrent imports of the same file into exactly one success.
type ReplayLedger interface {
	Contains(envelopeID string) (bool, error)
	InsertIfAbsent(envelopeID string, processedAt time.Time) (bool, error)
}

// Window bounds acceptable envelope timestamps. Past guards against
// resurrected old envelopes, Future against clock-skew abuse.
type Window struct {
	Past   time.Duration
	Future time.Duration
}

func DefaultWindow() Window {
	return Window{Past: 7 * 24 * time.Hour, Future: time.Hour}
}

// Verifier is the security gate for inbound envelopes. Checks run in a fixed
// order: structure, trust, replay, signature, decryption, commit. Reordering
// them weakens the model, so each step lives in its own method and Verify is
// nothing but the chain.
type Verifier struct {
	keys   KeySource
	ledger ReplayLedger
	window Window
	now    func() time.Time
}

func NewVerifier(keys KeySource, ledger ReplayLedger, window Window) *Verifier {
	if window.Past <= 0 {
		window = DefaultWindow()
	}
	return &Verifier{keys: keys, ledger: ledger, window: window, now: time.Now}
}

// Verify checks an envelope file and, on success, records its id in the
// ledger and returns the sealed payload with provenance. Any failure leaves
// the ledger untouched.
func (v *Verifier) Verify(data []byte) (models.Payload, models.Provenance, error) {
	env, dec, err := Unmarshal(data)
	if err != nil {
		return models.Payload{}, models.Provenance{}, err
	}
	sender, err := v.checkTrust(env)
	if err != nil {
		return models.Payload{}, models.Provenance{}, err
	}
	if err := v.checkReplay(env); err != nil {
		return models.Payload{}, models.Provenance{}, err
	}
	if err := v.checkSignature(env, dec, sender); err != nil {
		return models.Payload{}, models.Provenance{}, err
	}
	payload, err := v.decrypt(env, dec, sender)
	if err != nil {
		return models.Payload{}, models.Provenance{}, err
	}
	if err := v.commit(env); err != nil {
		return models.Payload{}, models.Provenance{}, err
	}
	return payload, models.Provenance{
		SenderID:  env.Header.SenderID,
		Timestamp: time.Unix(env.Header.Timestamp, 0).UTC(),
	}, nil
}

func (v *Verifier) checkTrust(env models.Envelope) (models.TrustedStation, error) {
	if env.Header.RecipientID != v.keys.StationID() {
		return models.TrustedStation{}, fmt.Errorf("%w: envelope is addressed to %q, not this station",
			ErrTrust, env.Header.RecipientID)
	}
	sender, err := v.keys.LookupTrusted(env.Header.SenderID)
	if err != nil {
		return models.TrustedStation{}, fmt.Errorf("%w: sender %q is not trusted", ErrTrust, env.Header.SenderID)
	}
	if len(sender.SigningKey) != ed25519.PublicKeySize || len(sender.PublicKey) != 32 {
		return models.TrustedStation{}, fmt.Errorf("%w: sender %q has unusable keys", ErrTrust, env.Header.SenderID)
	}
	return sender, nil
}

func (v *Verifier) checkReplay(env models.Envelope) error {
	now := v.now()
	ts := time.Unix(env.Header.Timestamp, 0)
	if now.Sub(ts) > v.window.Past {
		return fmt.Errorf("%w: envelope %s is older than the replay window", ErrReplay, env.EnvelopeID)
	}
	if ts.Sub(now) > v.window.Future {
		return fmt.Errorf("%w: envelope %s timestamp is in the future", ErrReplay, env.EnvelopeID)
	}
	seen, err := v.ledger.Contains(env.EnvelopeID)
	if err != nil {
		return fmt.Errorf("replay ledger lookup: %w", err)
	}
	if seen {
		return fmt.Errorf("%w: envelope %s was already processed", ErrReplay, env.EnvelopeID)
	}
	return nil
}

func (v *Verifier) checkSignature(env models.Envelope, dec *decoded, sender models.TrustedStation) error {
	tbs, err := signingString(env.Header.SenderID, env.Header.RecipientID, env.EnvelopeID,
		env.Header.Timestamp, dec.ciphertext)
	if err != nil {
		return err
	}
	if !ed25519.Verify(ed25519.PublicKey(sender.SigningKey), []byte(tbs), dec.signature) {
		return fmt.Errorf("%w: envelope %s from %q", ErrSignature, env.EnvelopeID, env.Header.SenderID)
	}
	return nil
}

func (v *Verifier) decrypt(env models.Envelope, dec *decoded, sender models.TrustedStation) (models.Payload, error) {
	encPriv, err := v.keys.EncryptionPrivateKey()
	if err != nil {
		return models.Payload{}, err
	}
	var senderPub [32]byte
	copy(senderPub[:], sender.PublicKey)

	plaintext, ok := box.Open(nil, dec.ciphertext, &dec.nonce, &senderPub, encPriv)
	if !ok {
		return models.Payload{}, fmt.Errorf("%w: envelope %s", ErrDecryption, env.EnvelopeID)
	}
	var payload models.Payload
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return models.Payload{}, fmt.Errorf("%w: decrypted payload is not a payload document", ErrMalformedEnvelope)
	}
	return payload, nil
}

func (v *Verifier) commit(env models.Envelope) error {
	inserted, err := v.ledger.InsertIfAbsent(env.EnvelopeID, v.now().UTC())
	if err != nil {
		return fmt.Errorf("replay ledger insert: %w", err)
	}
	if !inserted {
		return fmt.Errorf("%w: envelope %s was already processed", ErrReplay, env.EnvelopeID)
	}
	return nil
}
