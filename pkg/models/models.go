package models

import (
	"strings"
	"time"
)

// EnvelopeVersion is the wire version every envelope this code builds or
// accepts must carry.
const EnvelopeVersion = "2.0"

type EnvelopeHeader struct {
	Version     string `json:"version"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Timestamp   int64  `json:"timestamp"`
	DataType    string `json:"data_type"`
}

// Envelope is the self-contained unit carried between stations on removable
// media. All binary fields are base64url (unpadded) in the file form.
type Envelope struct {
	EnvelopeID       string         `json:"envelope_id"`
	Header           EnvelopeHeader `json:"header"`
	PayloadEncrypted string         `json:"payload_encrypted"`
	Nonce            string         `json:"nonce"`
	Signature        string         `json:"signature"`
}

// Payload is what the sender sealed inside the envelope. Data stays opaque
// to the exchange core.
type Payload struct {
	SchemaVersion int       `json:"schema_version"`
	DataType      string    `json:"data_type"`
	Data          RawData   `json:"data"`
	CreatedAt     time.Time `json:"created_at"`
}

// RawData carries the business record bytes through untouched.
type RawData []byte

func (d RawData) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

func (d *RawData) UnmarshalJSON(data []byte) error {
	*d = append((*d)[0:0], data...)
	return nil
}

// Provenance identifies where a verified payload came from.
type Provenance struct {
	SenderID  string    `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
}

// TrustedStation is one remote station known to the local key store.
// SigningKey is the Ed25519 verification key, PublicKey the X25519
// encryption key.
type TrustedStation struct {
	StationID   string    `json:"station_id"`
	StationName string    `json:"station_name"`
	SigningKey  []byte    `json:"signing_key"`
	PublicKey   []byte    `json:"public_key"`
	Fingerprint string    `json:"fingerprint"`
	AddedAt     time.Time `json:"added_at"`
}

// StationCard is the signed public identity document operators hand to each
// other out of band. Keys are base58 encoded for manual exchange.
type StationCard struct {
	StationID   string `json:"station_id"`
	StationName string `json:"station_name"`
	SigningKey  string `json:"signing_key"`
	EncryptKey  string `json:"encrypt_key"`
	Fingerprint string `json:"fingerprint"`
	Signature   []byte `json:"signature"`
}

// StationInfo is the local station's public identity.
type StationInfo struct {
	StationID   string    `json:"station_id"`
	StationName string    `json:"station_name"`
	SigningKey  []byte    `json:"signing_key"`
	EncryptKey  []byte    `json:"encrypt_key"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// ReplayRecord is one accepted envelope id in the replay ledger.
type ReplayRecord struct {
	EnvelopeID  string    `json:"envelope_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ValidStationID reports whether id is usable as a station identifier.
// The pipe character delimits the signing string and must never appear
// inside an id.
func ValidStationID(id string) bool {
	trimmed := strings.TrimSpace(id)
	return trimmed != "" && trimmed == id && !strings.Contains(id, "|")
}
