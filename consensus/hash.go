package consensus

import "golang.org/x/crypto/blake2b"

// headerHash is BLAKE2b-256, the hash MWC uses for block headers.
func headerHash(b []byte) [32]byte {
	return blake2b.Sum256(b)
}
