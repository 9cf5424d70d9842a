package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytesHex returns the hex SHA-256 of the given bytes, used as the
// content hash recorded on swing submissions.
func HashBytesHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
