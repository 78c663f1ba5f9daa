package envelope

import (
	"fmt"
	"strings"
)

// signingString builds the deterministic pipe-delimited string the Ed25519
// signature covers. It is never derived from a JSON serialization; key order
// and whitespace must not be able to change what was signed.
func signingString(senderID, recipientID, envelopeID string, timestamp int64, ciphertext []byte) (string, error) {
	for _, id := range []string{senderID, recipientID, envelopeID} {
		if strings.Contains(id, "|") {
			return "", fmt.Errorf("%w: identifier contains delimiter", ErrMalformedEnvelope)
		}
	}
	return fmt.Sprintf("%s|%s|%s|%d|%s",
		senderID,
		recipientID,
		envelopeID,
		timestamp,
		wireEncoding.EncodeToString(ciphertext),
	), nil
}
