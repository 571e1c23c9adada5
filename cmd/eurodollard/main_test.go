package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/edwardmadi/eurodollar-protocol/internal/command"
	"github.com/edwardmadi/eurodollar-protocol/internal/core"
	"github.com/edwardmadi/eurodollar-protocol/internal/ingestion"
	"github.com/edwardmadi/eurodollar-protocol/internal/persistence"
	"github.com/edwardmadi/eurodollar-protocol/internal/projection"
)

func pauseOutput(seq int64, notices ...command.Notice) core.CoreOutput {
	return core.CoreOutput{
		Envelope: &command.Envelope{
			Sequence:       seq,
			IdempotencyKey: fmt.Sprintf("key-%d", seq),
			CommandType:    command.CommandTypePause,
			Timestamp:      time.UnixMicro(1_000_000 + seq),
			Payload:        []byte(`{}`),
		},
		Notices: notices,
	}
}

// Replayed commands flow back through the bridge on warm restart; their
// notices were already published the first time around and must not go out
// again. Only sequences past the log head observed at startup are published.
func TestBridgeSuppressesNoticesAtOrBelowLogHead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persistIn := make(chan core.CoreOutput, 4)
	projectionIn := make(chan core.CoreOutput)
	persistOut := make(chan persistence.CoreOutput, 4)
	projectionOut := make(chan projection.Output, 4)
	publishOut := make(chan ingestion.PublishableNotice, 4)

	const logHead = 5

	// Sequence 5 is a replay of the log head; 6 is new work.
	persistIn <- pauseOutput(5, command.PauseChangedNotice{Paused: true})
	persistIn <- pauseOutput(6,
		command.PauseChangedNotice{Paused: false},
		command.RoleChangedNotice{Granted: true},
	)
	close(persistIn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		bridgeCoreOutputs(ctx, persistIn, projectionIn, persistOut, projectionOut, publishOut, logHead)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not drain its input")
	}

	// Both outputs still persist; suppression only gates publishing.
	if got := len(persistOut); got != 2 {
		t.Fatalf("persisted %d outputs, want 2", got)
	}
	for want := int64(5); want <= 6; want++ {
		row := <-persistOut
		if row.CommandRow.Sequence != want {
			t.Errorf("persisted sequence %d, want %d", row.CommandRow.Sequence, want)
		}
	}

	if got := len(publishOut); got != 2 {
		t.Fatalf("published %d notices, want only the 2 from sequence 6", got)
	}
	first := <-publishOut
	second := <-publishOut
	if first.Sequence != 6 || second.Sequence != 6 {
		t.Errorf("published sequences %d and %d, want both 6", first.Sequence, second.Sequence)
	}
	if first.NoticeIndex != 0 || second.NoticeIndex != 1 {
		t.Errorf("notice indexes %d and %d, want 0 and 1", first.NoticeIndex, second.NoticeIndex)
	}
	if first.MsgID() != "key-6:pause_changed:0" {
		t.Errorf("first msg ID = %q, want key-6:pause_changed:0", first.MsgID())
	}
	if second.MsgID() != "key-6:role_changed:1" {
		t.Errorf("second msg ID = %q, want key-6:role_changed:1", second.MsgID())
	}
}

// A cold start has an empty command log; the head sentinel is -1 and nothing
// is suppressed, including sequence 0.
func TestBridgePublishesEverythingOnColdStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persistIn := make(chan core.CoreOutput, 2)
	projectionIn := make(chan core.CoreOutput)
	persistOut := make(chan persistence.CoreOutput, 2)
	projectionOut := make(chan projection.Output, 2)
	publishOut := make(chan ingestion.PublishableNotice, 2)

	persistIn <- pauseOutput(0, command.PauseChangedNotice{Paused: true})
	close(persistIn)

	done := make(chan struct{})
	go func() {
		defer close(done)
		bridgeCoreOutputs(ctx, persistIn, projectionIn, persistOut, projectionOut, publishOut, -1)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not drain its input")
	}

	if got := len(publishOut); got != 1 {
		t.Fatalf("published %d notices, want 1 (sequence 0 is not historical on a fresh log)", got)
	}
	notice := <-publishOut
	if notice.Sequence != 0 {
		t.Errorf("published sequence %d, want 0", notice.Sequence)
	}
}
