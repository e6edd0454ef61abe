package engine

import (
	"encoding/hex"

	"github.com/genricoloni/tilesync/internal/domain"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint is the BLAKE2b-256 digest of a rendered tile
type Fingerprint [blake2b.Size256]byte

// FingerprintOf hashes the full markup string
func FingerprintOf(content domain.RenderedContent) Fingerprint {
	return blake2b.Sum256([]byte(content))
}

// String returns a short hex prefix, enough to tell renders apart in logs
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:6])
}
