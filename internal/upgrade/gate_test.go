package upgrade

import (
	"errors"
	"testing"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

func impl(hex, version string) Implementation {
	return Implementation{Address: token.MustParseAddress(hex), Version: version}
}

func TestUpgradeSwapsAndRecordsHistory(t *testing.T) {
	g := NewGate(impl("0x0000000000000000000000000000000000000001", "v1"), nil)
	next := impl("0x0000000000000000000000000000000000000002", "v2")

	if err := g.Upgrade(next); err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if g.Current() != next {
		t.Fatalf("current = %+v, want %+v", g.Current(), next)
	}
	h := g.History()
	if len(h) != 2 || h[1] != next {
		t.Fatalf("history = %+v", h)
	}
}

func TestUpgradeRejectsZeroAndSameTarget(t *testing.T) {
	cur := impl("0x0000000000000000000000000000000000000001", "v1")
	g := NewGate(cur, nil)

	if err := g.Upgrade(Implementation{Version: "v2"}); !errors.Is(err, ErrNoImplementation) {
		t.Fatalf("zero target: got %v", err)
	}
	if err := g.Upgrade(impl("0x0000000000000000000000000000000000000001", "v1.1")); !errors.Is(err, ErrSameImplementation) {
		t.Fatalf("same target: got %v", err)
	}
	if g.Current() != cur {
		t.Fatalf("current changed on rejected upgrade: %+v", g.Current())
	}
}

type failingLoader struct{ err error }

func (l failingLoader) Load(Implementation) error { return l.err }

func TestUpgradeKeepsCurrentOnLoaderFailure(t *testing.T) {
	cur := impl("0x0000000000000000000000000000000000000001", "v1")
	boom := errors.New("boom")
	g := NewGate(cur, failingLoader{err: boom})

	err := g.Upgrade(impl("0x0000000000000000000000000000000000000002", "v2"))
	if !errors.Is(err, boom) {
		t.Fatalf("want loader error, got %v", err)
	}
	if g.Current() != cur {
		t.Fatalf("current changed on failed load: %+v", g.Current())
	}
	if len(g.History()) != 1 {
		t.Fatalf("history grew on failed load: %+v", g.History())
	}
}

func TestRestore(t *testing.T) {
	g := NewGate(impl("0x0000000000000000000000000000000000000001", "v1"), nil)
	cur := impl("0x0000000000000000000000000000000000000003", "v3")
	hist := []Implementation{
		impl("0x0000000000000000000000000000000000000001", "v1"),
		impl("0x0000000000000000000000000000000000000003", "v3"),
	}
	g.Restore(cur, hist)

	if g.Current() != cur {
		t.Fatalf("current = %+v", g.Current())
	}
	if len(g.History()) != 2 {
		t.Fatalf("history = %+v", g.History())
	}
}
