package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashSize is the byte length of a content hash (SHA-256).
const HashSize = sha256.Size

// ShortHashLen is the number of hex characters shown in CLI output.
const ShortHashLen = 8

// ContentHash is the SHA-256 digest of a chunk's normalized content.
// It is the primary identity of a chunk throughout the system.
type ContentHash [HashSize]byte

// HashContent normalizes line endings to LF and returns the SHA-256
// digest of the result. Identical logical content always hashes
// identically regardless of platform line endings.
func HashContent(content []byte) ContentHash {
	return sha256.Sum256([]byte(NormalizeContent(string(content))))
}

// NormalizeContent converts CRLF and lone CR line endings to LF.
func NormalizeContent(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

// ParseContentHash decodes a 64-character hex string into a ContentHash.
func ParseContentHash(s string) (ContentHash, error) {
	var h ContentHash
	if len(s) != HashSize*2 {
		return h, fmt.Errorf("%w: want %d hex chars, got %d", ErrInvalidHash, HashSize*2, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	copy(h[:], raw)
	return h, nil
}

// IsHexHash reports whether s looks like a full content hash.
func IsHexHash(s string) bool {
	if len(s) != HashSize*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// Hex returns the full lowercase hex encoding.
func (h ContentHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first ShortHashLen hex characters for display.
func (h ContentHash) Short() string {
	return h.Hex()[:ShortHashLen]
}

// String implements fmt.Stringer.
func (h ContentHash) String() string {
	return h.Hex()
}

// Compare orders hashes bytewise. Used as the deterministic tie-break
// for equal search scores.
func (h ContentHash) Compare(other ContentHash) int {
	return bytes.Compare(h[:], other[:])
}

// IsZero reports whether the hash is the zero value.
func (h ContentHash) IsZero() bool {
	return h == ContentHash{}
}
