package keystore

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const fingerprintBytes = 12

// Fingerprint digests both public keys into a short colon-grouped hex string
// two operators can compare over a phone call. This comparison is the only
// defense against key substitution during trust exchange.
func Fingerprint(signingPublic, encryptPublic []byte) string {
	joined := make([]byte, 0, len(signingPublic)+len(encryptPublic))
	joined = append(joined, signingPublic...)
	joined = append(joined, encryptPublic...)
	sum := blake2b.Sum256(joined)

	parts := make([]string, 0, fingerprintBytes)
	for _, b := range sum[:fingerprintBytes] {
		parts = append(parts, hex.EncodeToString([]byte{b}))
	}
	return strings.Join(parts, ":")
}
