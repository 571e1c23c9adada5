package ingestion_test

import (
	"testing"

	"github.com/edwardmadi/eurodollar-protocol/internal/ingestion"
)

func TestNoticeMsgIDIsStablePerNotice(t *testing.T) {
	first := ingestion.PublishableNotice{
		Sequence:       7,
		NoticeType:     "blocklist_changed",
		IdempotencyKey: "cmd-123",
		NoticeIndex:    0,
	}
	second := ingestion.PublishableNotice{
		Sequence:       7,
		NoticeType:     "blocklist_changed",
		IdempotencyKey: "cmd-123",
		NoticeIndex:    1,
	}

	if got := first.MsgID(); got != "cmd-123:blocklist_changed:0" {
		t.Errorf("MsgID = %q, want cmd-123:blocklist_changed:0", got)
	}

	// A batch command emits several notices under one idempotency key; each
	// must carry its own dedup identity.
	if first.MsgID() == second.MsgID() {
		t.Error("notices at different indexes must not share a msg ID")
	}

	// Re-publishing the same notice after a restart must reuse the ID so the
	// broker's duplicate window can drop it.
	replayed := first
	if first.MsgID() != replayed.MsgID() {
		t.Error("msg ID must be deterministic across publishes")
	}
}
