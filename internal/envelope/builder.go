package envelope

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/box"

	"medirelay/go-station/pkg/models"
)

// PayloadSchemaVersion is the version stamped into every payload this
// builder seals.
const PayloadSchemaVersion = 1

// KeySource is where builder and verifier get key material. The key store
// implements it; tests substitute fakes.
type KeySource interface {
	StationID() string
	SigningPrivateKey() (ed25519.PrivateKey, error)
	EncryptionPrivateKey() (*[32]byte, error)
	LookupTrusted(stationID string) (models.TrustedStation, error)
}

// Builder produces transport-ready envelopes. Safe for concurrent use.
type Builder struct {
	keys  KeySource
	now   func() time.Time
	newID func() string

	mu         sync.Mutex
	usedNonces map[[nonceSize]byte]struct{}
}

func NewBuilder(keys KeySource) *Builder {
	return &Builder{
		keys:       keys,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
		usedNonces: make(map[[nonceSize]byte]struct{}),
	}
}

// Build encrypts data to recipientID and signs the result. The payload is
// serialized with fixed field order before encryption; data passes through
// as-is.
func (b *Builder) Build(recipientID, dataType string, data models.RawData) (models.Envelope, error) {
	if !models.ValidStationID(recipientID) {
		return models.Envelope{}, fmt.Errorf("%w: invalid recipient id %q", ErrUnknownStation, recipientID)
	}
	recipient, err := b.keys.LookupTrusted(recipientID)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("%w: recipient %q", ErrUnknownStation, recipientID)
	}
	if len(recipient.PublicKey) != 32 {
		return models.Envelope{}, fmt.Errorf("%w: recipient %q has no usable encryption key", ErrUnknownStation, recipientID)
	}

	payload := models.Payload{
		SchemaVersion: PayloadSchemaVersion,
		DataType:      dataType,
		Data:          data,
		CreatedAt:     b.now().UTC(),
	}
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("serialize payload: %w", err)
	}

	encPriv, err := b.keys.EncryptionPrivateKey()
	if err != nil {
		return models.Envelope{}, err
	}
	var recipientPub [32]byte
	copy(recipientPub[:], recipient.PublicKey)

	nonce, err := b.freshNonce()
	if err != nil {
		return models.Envelope{}, err
	}
	ciphertext := box.Seal(nil, plaintext, &nonce, &recipientPub, encPriv)

	envelopeID := b.newID()
	timestamp := b.now().Unix()
	tbs, err := signingString(b.keys.StationID(), recipientID, envelopeID, timestamp, ciphertext)
	if err != nil {
		return models.Envelope{}, err
	}
	signPriv, err := b.keys.SigningPrivateKey()
	if err != nil {
		return models.Envelope{}, err
	}
	signature := ed25519.Sign(signPriv, []byte(tbs))

	return models.Envelope{
		EnvelopeID: envelopeID,
		Header: models.EnvelopeHeader{
			Version:     models.EnvelopeVersion,
			SenderID:    b.keys.StationID(),
			RecipientID: recipientID,
			Timestamp:   timestamp,
			DataType:    dataType,
		},
		PayloadEncrypted: wireEncoding.EncodeToString(ciphertext),
		Nonce:            wireEncoding.EncodeToString(nonce[:]),
		Signature:        wireEncoding.EncodeToString(signature),
	}, nil
}

// freshNonce draws a random nonce and refuses to hand out one this process
// has used before. A collision of 24 random bytes means a broken entropy
// source, which must stop the transfer rather than weaken it.
func (b *Builder) freshNonce() ([nonceSize]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nonce, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.usedNonces[nonce]; dup {
		return nonce, ErrNonceReuse
	}
	if len(b.usedNonces) >= 1<<16 {
		b.usedNonces = make(map[[nonceSize]byte]struct{})
	}
	b.usedNonces[nonce] = struct{}{}
	return nonce, nil
}
