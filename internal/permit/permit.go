// Package permit implements the delegated-approval path: a signed, off-line
// authorization that sets an allowance without an interactive call from the
// owner. The signature primitive itself is an injected SignerRecoverer; this
// package owns the canonical structured-data digest, the domain separator,
// and the deadline/nonce rules.
package permit

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// SignerRecoverer verifies a signature over a 32-byte digest and returns the
// signing address, or fails. Treated as a trusted black box by the core.
type SignerRecoverer interface {
	Recover(digest [32]byte, sig []byte) (token.Address, error)
}

// permitTypeHash fixes the shape of the signed struct, EIP-712 style:
// the digest commits to the field layout, not just the values.
var permitTypeHash = sha256.Sum256([]byte(
	"Permit(address owner,address spender,uint256 value,uint256 nonce,uint256 deadline)",
))

// Permitter validates permits for one ledger instance.
type Permitter struct {
	domainSeparator [32]byte
	recoverer       SignerRecoverer
}

// NewPermitter derives the domain separator from the token name and the
// ledger identity so a permit signed for one deployment never validates on
// another.
func NewPermitter(tokenName string, ledgerID token.Address, recoverer SignerRecoverer) *Permitter {
	h := sha256.New()
	h.Write([]byte("EIP712Domain(string name,string version,address verifyingContract)"))
	nameHash := sha256.Sum256([]byte(tokenName))
	h.Write(nameHash[:])
	versionHash := sha256.Sum256([]byte("1"))
	h.Write(versionHash[:])
	h.Write(ledgerID[:])

	p := &Permitter{recoverer: recoverer}
	copy(p.domainSeparator[:], h.Sum(nil))
	return p
}

// DomainSeparator returns the value mixed into every permit digest.
func (p *Permitter) DomainSeparator() [32]byte {
	return p.domainSeparator
}

// Digest computes the canonical signing digest over (owner, spender, value,
// nonce, deadline) bound to this domain.
func (p *Permitter) Digest(owner, spender token.Address, value *uint256.Int, nonce uint64, deadline int64) [32]byte {
	structHasher := sha256.New()
	structHasher.Write(permitTypeHash[:])
	structHasher.Write(owner[:])
	structHasher.Write(spender[:])
	valueBytes := value.Bytes32()
	structHasher.Write(valueBytes[:])

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], nonce)
	structHasher.Write(buf[:])
	binary.BigEndian.PutUint64(buf[:], uint64(deadline))
	structHasher.Write(buf[:])

	outer := sha256.New()
	outer.Write([]byte{0x19, 0x01})
	outer.Write(p.domainSeparator[:])
	outer.Write(structHasher.Sum(nil))

	var digest [32]byte
	copy(digest[:], outer.Sum(nil))
	return digest
}

// Verify checks deadline and signature for a permit at the owner's current
// nonce. now is the command's timestamp in unix seconds; the core never
// reads the wall clock. The deadline instant itself is still valid;
// only now > deadline fails.
func (p *Permitter) Verify(
	owner, spender token.Address,
	value *uint256.Int,
	nonce uint64,
	deadline, now int64,
	sig []byte,
) error {
	if now > deadline {
		return fmt.Errorf("deadline %d, now %d: %w", deadline, now, token.ErrExpiredSignature)
	}

	digest := p.Digest(owner, spender, value, nonce, deadline)
	signer, err := p.recoverer.Recover(digest, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", token.ErrInvalidSignature, err)
	}
	if signer != owner {
		return fmt.Errorf("%w: recovered %s, want %s", token.ErrInvalidSignature, signer, owner)
	}
	return nil
}
