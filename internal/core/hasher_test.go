package core_test

import (
	"bytes"
	"testing"

	"github.com/edwardmadi/eurodollar-protocol/internal/core"
)

func TestStateHasherGenesisTipIsDeterministic(t *testing.T) {
	a := core.NewStateHasher()
	b := core.NewStateHasher()

	var zero [32]byte
	if a.GetPrevHash() == zero {
		t.Fatal("genesis tip must not be all zeroes")
	}
	if a.GetPrevHash() != b.GetPrevHash() {
		t.Fatal("two fresh hashers disagree on the genesis tip")
	}
}

func TestStateHasherConvergesOnSameInputs(t *testing.T) {
	a := core.NewStateHasher()
	b := core.NewStateHasher()

	digests := [][]byte{
		[]byte("supply=1000;balance[a]=1000"),
		[]byte("supply=1000;balance[a]=400;balance[b]=600"),
		[]byte("supply=900;balance[a]=400;balance[b]=500"),
	}
	for i, d := range digests {
		ha := a.ComputeHash(int64(i), d)
		hb := b.ComputeHash(int64(i), d)
		if ha != hb {
			t.Fatalf("tips diverge at sequence %d", i)
		}
	}
}

func TestStateHasherSequenceChangesHash(t *testing.T) {
	digest := []byte("supply=1000;balance[a]=1000")

	a := core.NewStateHasher()
	b := core.NewStateHasher()

	if a.ComputeHash(0, digest) == b.ComputeHash(1, digest) {
		t.Fatal("same digest at different sequences must hash differently")
	}
}

func TestStateHasherChainsOnPreviousTip(t *testing.T) {
	h := core.NewStateHasher()
	digest := []byte("supply=0")

	first := h.ComputeHash(0, digest)
	if h.GetPrevHash() != first {
		t.Fatal("tip not advanced after ComputeHash")
	}

	second := h.ComputeHash(1, digest)
	if bytes.Equal(first[:], second[:]) {
		t.Fatal("identical digest must still produce a new tip via chaining")
	}
}

// A hasher seeded with a stored tip must continue the chain exactly where
// the original left off. This is what snapshot restore relies on.
func TestStateHasherSetPrevHashResumesChain(t *testing.T) {
	original := core.NewStateHasher()
	original.ComputeHash(0, []byte("d0"))
	original.ComputeHash(1, []byte("d1"))
	savedTip := original.GetPrevHash()
	want := original.ComputeHash(2, []byte("d2"))

	resumed := core.NewStateHasher()
	resumed.SetPrevHash(savedTip)
	got := resumed.ComputeHash(2, []byte("d2"))

	if got != want {
		t.Fatal("resumed chain diverged from the original")
	}
}
