package permit

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// Ed25519 signature envelope: 32-byte public key followed by the 64-byte
// signature. The signer's address is the trailing 20 bytes of the
// SHA-256 of the public key.
const (
	ed25519SigLen = ed25519.PublicKeySize + ed25519.SignatureSize
)

var errMalformedSignature = errors.New("malformed signature envelope")

// Ed25519Recoverer verifies ed25519 permit signatures.
type Ed25519Recoverer struct{}

func (Ed25519Recoverer) Recover(digest [32]byte, sig []byte) (token.Address, error) {
	if len(sig) != ed25519SigLen {
		return token.ZeroAddress, errMalformedSignature
	}
	pub := ed25519.PublicKey(sig[:ed25519.PublicKeySize])
	if !ed25519.Verify(pub, digest[:], sig[ed25519.PublicKeySize:]) {
		return token.ZeroAddress, errors.New("signature does not verify")
	}
	return AddressFromPublicKey(pub), nil
}

// AddressFromPublicKey maps an ed25519 public key to its ledger address.
func AddressFromPublicKey(pub ed25519.PublicKey) token.Address {
	h := sha256.Sum256(pub)
	var addr token.Address
	copy(addr[:], h[12:32])
	return addr
}

// SignPermit produces the wire signature for a digest. Used by clients and
// tests; the core only ever verifies.
func SignPermit(priv ed25519.PrivateKey, digest [32]byte) []byte {
	sig := make([]byte, 0, ed25519SigLen)
	sig = append(sig, priv.Public().(ed25519.PublicKey)...)
	sig = append(sig, ed25519.Sign(priv, digest[:])...)
	return sig
}
