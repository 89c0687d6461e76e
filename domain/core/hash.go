package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Short is the first 12 hex digits, enough to tell datasets apart in logs
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// DataHash fingerprints the table an analysis ran on. Two reports with the
// same DataHash saw identical cells.
type DataHash Hash

// NewDataHash hashes a canonical encoding of a table
func NewDataHash(canonical []byte) DataHash { return DataHash(NewHash(canonical)) }

func (h DataHash) String() string { return Hash(h).String() }
func (h DataHash) Short() string  { return Hash(h).Short() }
