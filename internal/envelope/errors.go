package envelope

import "errors"

// Every verification failure maps onto exactly one of these. The verifier
// never retries and never records rejected envelopes in the ledger.
//
// ErrMalformedEnvelope covers structural and encoding failures of the
// envelope file itself, and additionally a sealed payload that decrypts
// cleanly but does not decode as a payload document: the bytes were
// authentic, the document inside was not well-formed.
var (
	ErrUnknownStation    = errors.New("station is not in the trust registry")
	ErrTrust             = errors.New("envelope failed the trust check")
	ErrReplay            = errors.New("envelope rejected by replay protection")
	ErrSignature         = errors.New("envelope signature verification failed")
	ErrDecryption        = errors.New("envelope decryption failed")
	ErrMalformedEnvelope = errors.New("envelope is malformed")
	ErrNonceReuse        = errors.New("nonce reuse detected")
)
