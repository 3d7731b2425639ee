package common

import (
	"crypto/sha1"
	"encoding/hex"
)

// Fingerprint generates a SHA-1 hash of an image body, recorded in batch
// processing reports so front-ends can correlate entries with uploads.
func Fingerprint(body []byte) string {

	h := sha1.New()
	h.Write(body)

	hash := h.Sum(nil)
	return hex.EncodeToString(hash[:])
}
