package guard_test

import (
	"testing"

	"github.com/edwardmadi/eurodollar-protocol/internal/guard"
	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

func addr(last byte) token.Address {
	var a token.Address
	a[19] = last
	return a
}

func TestBlocklist_AddReportsOnlyNewEntries(t *testing.T) {
	b := guard.NewBlocklist()
	a1, a2, a3 := addr(1), addr(2), addr(3)

	changed := b.Add([]token.Address{a1, a2, a1})
	if len(changed) != 2 {
		t.Fatalf("changed = %v, want [a1 a2]", changed)
	}
	if !b.IsBlocked(a1) || !b.IsBlocked(a2) || b.IsBlocked(a3) {
		t.Error("membership wrong after add")
	}

	// Re-adding an existing member reports nothing
	if changed := b.Add([]token.Address{a2, a3}); len(changed) != 1 || changed[0] != a3 {
		t.Errorf("changed = %v, want [a3]", changed)
	}
}

func TestBlocklist_RemoveReportsOnlyMembers(t *testing.T) {
	b := guard.NewBlocklist()
	a1, a2 := addr(1), addr(2)
	b.Add([]token.Address{a1})

	changed := b.Remove([]token.Address{a1, a2})
	if len(changed) != 1 || changed[0] != a1 {
		t.Fatalf("changed = %v, want [a1]", changed)
	}
	if b.IsBlocked(a1) {
		t.Error("a1 still blocked after remove")
	}
}

func TestBlocklist_SnapshotRoundTrip(t *testing.T) {
	b := guard.NewBlocklist()
	a1, a2 := addr(1), addr(2)
	b.Add([]token.Address{a1, a2})

	restored, err := guard.RestoreBlocklist(b.Snapshot())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !restored.IsBlocked(a1) || !restored.IsBlocked(a2) {
		t.Error("membership lost in round trip")
	}
	if restored.IsBlocked(addr(3)) {
		t.Error("restored blocklist has an address that was never blocked")
	}
}

func TestRestoreBlocklist_RejectsBadAddress(t *testing.T) {
	if _, err := guard.RestoreBlocklist([]string{"not-an-address"}); err == nil {
		t.Fatal("invalid address in snapshot should be rejected")
	}
}

func TestPauseSwitch_ReportsTransitions(t *testing.T) {
	p := guard.NewPauseSwitch()

	if p.Paused() {
		t.Fatal("new switch should start unpaused")
	}
	if !p.Pause() {
		t.Error("first pause should report a change")
	}
	if p.Pause() {
		t.Error("second pause should report no change")
	}
	if !p.Paused() {
		t.Error("switch should be paused")
	}
	if !p.Unpause() {
		t.Error("unpause should report a change")
	}
	if p.Unpause() {
		t.Error("second unpause should report no change")
	}
}

func TestPauseSwitch_Restore(t *testing.T) {
	p := guard.NewPauseSwitch()
	p.Restore(true)
	if !p.Paused() {
		t.Error("restore(true) should leave the switch paused")
	}
	p.Restore(false)
	if p.Paused() {
		t.Error("restore(false) should leave the switch unpaused")
	}
}
