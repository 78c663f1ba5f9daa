package envelope

import (
	"encoding/json"
	"errors"
	"testing"

	"medirelay/go-station/internal/ledger"
	"medirelay/go-station/pkg/models"
)

// Flipping any single bit of a signed field must surface as ErrSignature, or
// as ErrMalformedEnvelope when the field stops decoding. Never silence.
func TestSingleBitTamperDetected(t *testing.T) {
	a, b := pairedStations(t)
	file := buildFile(t, a, "station-b")

	var original models.Envelope
	if err := json.Unmarshal(file, &original); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(env *models.Envelope)
	}{
		{"ciphertext", func(env *models.Envelope) {
			raw, _ := wireEncoding.DecodeString(env.PayloadEncrypted)
			raw[len(raw)/2] ^= 0x01
			env.PayloadEncrypted = wireEncoding.EncodeToString(raw)
		}},
		{"signature", func(env *models.Envelope) {
			raw, _ := wireEncoding.DecodeString(env.Signature)
			raw[10] ^= 0x80
			env.Signature = wireEncoding.EncodeToString(raw)
		}},
		{"sender_id", func(env *models.Envelope) {
			env.Header.SenderID = "station-x"
		}},
		{"timestamp", func(env *models.Envelope) {
			env.Header.Timestamp ^= 1
		}},
		{"envelope_id", func(env *models.Envelope) {
			replacement := "0"
			if env.EnvelopeID[len(env.EnvelopeID)-1] == '0' {
				replacement = "1"
			}
			env.EnvelopeID = env.EnvelopeID[:len(env.EnvelopeID)-1] + replacement
		}},
		{"nonce", func(env *models.Envelope) {
			raw, _ := wireEncoding.DecodeString(env.Nonce)
			raw[0] ^= 0x01
			env.Nonce = wireEncoding.EncodeToString(raw)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := original
			tc.mutate(&env)
			data, err := Marshal(env)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			// Sender substitution lands in the trust check when the substitute
			// is unknown; use a verifier that trusts both ids so tampering is
			// caught by the signature, not by trust.
			x := newFakeKeys(t, "station-x")
			b.trusted["station-x"] = models.TrustedStation{
				StationID:  "station-x",
				SigningKey: append([]byte(nil), x.signingPub...),
				PublicKey:  append([]byte(nil), x.encryptPub[:]...),
			}
			verifier := NewVerifier(b, ledger.NewMemory(), DefaultWindow())
			_, _, err = verifier.Verify(data)
			if err == nil {
				t.Fatal("tampered envelope verified")
			}
			switch tc.name {
			case "nonce":
				// The nonce is not under the signature; corruption surfaces in
				// authenticated decryption instead.
				if !errors.Is(err, ErrDecryption) {
					t.Fatalf("expected ErrDecryption, got %v", err)
				}
			default:
				if !errors.Is(err, ErrSignature) && !errors.Is(err, ErrMalformedEnvelope) {
					t.Fatalf("expected ErrSignature or ErrMalformedEnvelope, got %v", err)
				}
			}
		})
	}
}

func TestMalformedEnvelopes(t *testing.T) {
	_, b := pairedStations(t)
	verifier := NewVerifier(b, ledger.NewMemory(), DefaultWindow())

	sender := newFakeKeys(t, "station-a")
	sender.trust(b)
	b.trust(sender)
	valid := buildFile(t, sender, "station-b")

	var env models.Envelope
	if err := json.Unmarshal(valid, &env); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	cases := []struct {
		name string
		data func() []byte
	}{
		{"not json", func() []byte { return []byte("not an envelope") }},
		{"empty object", func() []byte { return []byte(`{}`) }},
		{"bad version", func() []byte {
			e := env
			e.Header.Version = "1.0"
			d, _ := Marshal(e)
			return d
		}},
		{"pipe in sender", func() []byte {
			e := env
			e.Header.SenderID = "sta|tion"
			d, _ := Marshal(e)
			return d
		}},
		{"undecodable signature", func() []byte {
			e := env
			e.Signature = "!!!not-base64!!!"
			d, _ := Marshal(e)
			return d
		}},
		{"short nonce", func() []byte {
			e := env
			e.Nonce = wireEncoding.EncodeToString([]byte("short"))
			d, _ := Marshal(e)
			return d
		}},
		{"zero timestamp", func() []byte {
			e := env
			e.Header.Timestamp = 0
			d, _ := Marshal(e)
			return d
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := verifier.Verify(tc.data()); !errors.Is(err, ErrMalformedEnvelope) {
				t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
			}
		})
	}
}
