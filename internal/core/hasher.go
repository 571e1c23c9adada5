package core

import (
	"crypto/sha256"
	"encoding/binary"
)

// genesisSeed anchors the hash chain before any command is applied. It is
// versioned because changing it invalidates every stored chain: bump the
// suffix only together with a migration that rehashes command_log.commands.
const genesisSeed = "eurodollar:genesis:v1"

// StateHasher maintains the SHA-256 chain over applied commands:
//
//	hash[n] = SHA-256(hash[n-1] || sequence || digest)
//
// The digest is the canonical post-apply view built by computeStateDigest:
// total supply, then the balance and frozen amount of every address the
// command's entries touched, in address order. Two ledgers that applied the
// same command log therefore converge on the same tip, and the integrity
// report detects divergence by walking prev_hash links in the stored log.
//
// Entry and batch UUIDs are deliberately not hashed: they are regenerated on
// replay, and including them would make a replayed chain diverge from the
// original.
type StateHasher struct {
	tip [32]byte
}

func NewStateHasher() *StateHasher {
	return &StateHasher{tip: sha256.Sum256([]byte(genesisSeed))}
}

// ComputeHash extends the chain by one applied command and returns the new
// tip. Sequence is encoded as 8 bytes little-endian between the previous tip
// and the digest.
func (h *StateHasher) ComputeHash(sequence int64, stateDigest []byte) [32]byte {
	buf := make([]byte, 0, 40+len(stateDigest))
	buf = append(buf, h.tip[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(sequence))
	buf = append(buf, stateDigest...)

	h.tip = sha256.Sum256(buf)
	return h.tip
}

// GetPrevHash returns the current chain tip.
func (h *StateHasher) GetPrevHash() [32]byte {
	return h.tip
}

// SetPrevHash restores the tip when recovery resumes a chain from a
// snapshot.
func (h *StateHasher) SetPrevHash(hash [32]byte) {
	h.tip = hash
}
