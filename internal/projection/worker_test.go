package projection_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/edwardmadi/eurodollar-protocol/internal/projection"
	"github.com/edwardmadi/eurodollar-protocol/internal/testutil"
)

const (
	zeroAddr  = "0x0000000000000000000000000000000000000000"
	aliceAddr = "0x0000000000000000000000000000000000000001"
	bobAddr   = "0x0000000000000000000000000000000000000002"
)

func TestRebuildBalancesFromEntryLog(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	insert := `
		INSERT INTO command_log.entries
			(entry_id, batch_id, command_ref, sequence, kind, from_addr, to_addr, amount, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	batch := uuid.New().String()
	entries := []struct {
		seq            int64
		kind, from, to string
		amount         string
	}{
		{0, "mint", zeroAddr, aliceAddr, "1000"},
		{1, "transfer", aliceAddr, bobAddr, "400"},
		{2, "burn", bobAddr, zeroAddr, "100"},
	}
	for _, e := range entries {
		if _, err := db.ExecContext(ctx, insert,
			uuid.New().String(), batch, "cmd", e.seq, e.kind, e.from, e.to, e.amount, e.seq); err != nil {
			t.Fatalf("seed entry seq %d: %v", e.seq, err)
		}
	}

	// Plant a stale balance row that the rebuild must discard.
	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (address, balance, last_sequence)
		VALUES ($1, 999999, 99)
	`, aliceAddr); err != nil {
		t.Fatalf("seed stale balance: %v", err)
	}

	if err := projection.RebuildBalances(ctx, db); err != nil {
		t.Fatalf("RebuildBalances: %v", err)
	}

	assertBalance := func(addr, want string) {
		t.Helper()
		var got string
		err := db.QueryRowContext(ctx,
			`SELECT balance::text FROM projections.balances WHERE address = $1`, addr).Scan(&got)
		if err != nil {
			t.Fatalf("read balance of %s: %v", addr, err)
		}
		if got != want {
			t.Errorf("balance of %s = %s, want %s", addr, got, want)
		}
	}

	assertBalance(aliceAddr, "600")
	assertBalance(bobAddr, "300")
}
