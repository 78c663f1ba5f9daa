package envelope

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"medirelay/go-station/pkg/models"
)

// Binary fields travel as unpadded URL-safe base64. The variant is part of
// the wire contract: a different alphabet or padding silently breaks
// signature verification against other implementations.
var wireEncoding = base64.RawURLEncoding

const (
	nonceSize     = 24 // NaCl box nonce
	signatureSize = 64 // Ed25519
)

// Marshal renders an envelope into the bytes written to removable media.
func Marshal(env models.Envelope) ([]byte, error) {
	return json.MarshalIndent(env, "", "  ")
}

// Unmarshal parses and structurally validates an envelope file. It decodes
// the base64 fields once and hands the raw bytes to the verifier so no later
// step re-parses attacker-controlled input.
func Unmarshal(data []byte) (models.Envelope, *decoded, error) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return models.Envelope{}, nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	dec, err := validate(env)
	if err != nil {
		return models.Envelope{}, nil, err
	}
	return env, dec, nil
}

// decoded holds the binary fields of a structurally valid envelope.
type decoded struct {
	ciphertext []byte
	nonce      [nonceSize]byte
	signature  []byte
}

func validate(env models.Envelope) (*decoded, error) {
	if env.EnvelopeID == "" {
		return nil, fmt.Errorf("%w: missing envelope_id", ErrMalformedEnvelope)
	}
	if env.Header.Version != models.EnvelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedEnvelope, env.Header.Version)
	}
	if !models.ValidStationID(env.Header.SenderID) {
		return nil, fmt.Errorf("%w: invalid sender_id", ErrMalformedEnvelope)
	}
	if !models.ValidStationID(env.Header.RecipientID) {
		return nil, fmt.Errorf("%w: invalid recipient_id", ErrMalformedEnvelope)
	}
	if env.Header.Timestamp <= 0 {
		return nil, fmt.Errorf("%w: invalid timestamp", ErrMalformedEnvelope)
	}
	ciphertext, err := wireEncoding.DecodeString(env.PayloadEncrypted)
	if err != nil || len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: payload_encrypted does not decode", ErrMalformedEnvelope)
	}
	nonce, err := wireEncoding.DecodeString(env.Nonce)
	if err != nil || len(nonce) != nonceSize {
		return nil, fmt.Errorf("%w: nonce does not decode to %d bytes", ErrMalformedEnvelope, nonceSize)
	}
	signature, err := wireEncoding.DecodeString(env.Signature)
	if err != nil || len(signature) != signatureSize {
		return nil, fmt.Errorf("%w: signature does not decode to %d bytes", ErrMalformedEnvelope, signatureSize)
	}
	dec := &decoded{ciphertext: ciphertext, signature: signature}
	copy(dec.nonce[:], nonce)
	return dec, nil
}
