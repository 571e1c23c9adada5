package permit

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

func newKeyPair(t *testing.T) (ed25519.PrivateKey, token.Address) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv, AddressFromPublicKey(pub)
}

func testPermitter() *Permitter {
	return NewPermitter("EuroDollar", token.MustParseAddress("0x00000000000000000000000000000000000000ee"), Ed25519Recoverer{})
}

func TestVerifyAcceptsOwnerSignature(t *testing.T) {
	p := testPermitter()
	priv, owner := newKeyPair(t)
	spender := token.MustParseAddress("0x0000000000000000000000000000000000000002")
	value := uint256.NewInt(500)

	digest := p.Digest(owner, spender, value, 0, 1000)
	sig := SignPermit(priv, digest)

	if err := p.Verify(owner, spender, value, 0, 1000, 900, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerifyDeadlineInclusive(t *testing.T) {
	p := testPermitter()
	priv, owner := newKeyPair(t)
	spender := token.MustParseAddress("0x0000000000000000000000000000000000000002")
	value := uint256.NewInt(1)

	digest := p.Digest(owner, spender, value, 0, 1000)
	sig := SignPermit(priv, digest)

	if err := p.Verify(owner, spender, value, 0, 1000, 1000, sig); err != nil {
		t.Fatalf("verify at exact deadline: %v", err)
	}
	if err := p.Verify(owner, spender, value, 0, 1000, 1001, sig); !errors.Is(err, token.ErrExpiredSignature) {
		t.Fatalf("want ErrExpiredSignature one past deadline, got %v", err)
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	p := testPermitter()
	privOther, _ := newKeyPair(t)
	_, owner := newKeyPair(t)
	spender := token.MustParseAddress("0x0000000000000000000000000000000000000002")
	value := uint256.NewInt(1)

	digest := p.Digest(owner, spender, value, 0, 1000)
	sig := SignPermit(privOther, digest)

	if err := p.Verify(owner, spender, value, 0, 1000, 500, sig); !errors.Is(err, token.ErrInvalidSignature) {
		t.Fatalf("want ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsTamperedFields(t *testing.T) {
	p := testPermitter()
	priv, owner := newKeyPair(t)
	spender := token.MustParseAddress("0x0000000000000000000000000000000000000002")

	digest := p.Digest(owner, spender, uint256.NewInt(100), 3, 1000)
	sig := SignPermit(priv, digest)

	// Bumped value.
	if err := p.Verify(owner, spender, uint256.NewInt(101), 3, 1000, 500, sig); !errors.Is(err, token.ErrInvalidSignature) {
		t.Fatalf("tampered value: want ErrInvalidSignature, got %v", err)
	}
	// Replay at a different nonce.
	if err := p.Verify(owner, spender, uint256.NewInt(100), 4, 1000, 500, sig); !errors.Is(err, token.ErrInvalidSignature) {
		t.Fatalf("wrong nonce: want ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsMalformedSignature(t *testing.T) {
	p := testPermitter()
	_, owner := newKeyPair(t)
	spender := token.MustParseAddress("0x0000000000000000000000000000000000000002")

	err := p.Verify(owner, spender, uint256.NewInt(1), 0, 1000, 500, []byte{0x01, 0x02})
	if !errors.Is(err, token.ErrInvalidSignature) {
		t.Fatalf("want ErrInvalidSignature, got %v", err)
	}
}

func TestDomainSeparatorBindsDeployment(t *testing.T) {
	a := NewPermitter("EuroDollar", token.MustParseAddress("0x00000000000000000000000000000000000000ee"), Ed25519Recoverer{})
	b := NewPermitter("EuroDollar", token.MustParseAddress("0x00000000000000000000000000000000000000ef"), Ed25519Recoverer{})
	if a.DomainSeparator() == b.DomainSeparator() {
		t.Fatal("different ledger identities must yield different domain separators")
	}

	priv, owner := newKeyPair(t)
	spender := token.MustParseAddress("0x0000000000000000000000000000000000000002")
	value := uint256.NewInt(9)
	sig := SignPermit(priv, a.Digest(owner, spender, value, 0, 1000))

	if err := b.Verify(owner, spender, value, 0, 1000, 500, sig); !errors.Is(err, token.ErrInvalidSignature) {
		t.Fatalf("cross-deployment permit must fail, got %v", err)
	}
}
