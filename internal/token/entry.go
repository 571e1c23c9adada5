package token

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// EntryKind classifies a balance movement in the entry log.
type EntryKind int32

const (
	EntryTransfer EntryKind = iota
	EntryMint
	EntryBurn
	EntryCustodyMove // freeze/release raw moves, bypassing transfer gates
)

func (k EntryKind) String() string {
	switch k {
	case EntryTransfer:
		return "transfer"
	case EntryMint:
		return "mint"
	case EntryBurn:
		return "burn"
	case EntryCustodyMove:
		return "custody_move"
	default:
		return "unknown"
	}
}

// Entry records a single balance movement. Mint entries carry the zero
// address as From; burn entries carry it as To. The entry log is the audit
// trail persisted alongside every applied command.
type Entry struct {
	EntryID    uuid.UUID
	BatchID    uuid.UUID
	CommandRef string
	Sequence   int64
	Kind       EntryKind
	From       Address
	To         Address
	Amount     uint256.Int
	Timestamp  int64
}

// Batch groups the entries produced by one command. A command either applies
// all of its entries or none.
type Batch struct {
	BatchID    uuid.UUID
	CommandRef string
	Sequence   int64
	Timestamp  int64
	Entries    []Entry
}

// NewBatch stamps a set of movements with batch identity, sequence, and
// timestamp. Movements come from Ledger operations with only Kind, From, To,
// and Amount set.
func NewBatch(commandRef string, sequence, timestamp int64, movements []Entry) *Batch {
	batchID := uuid.New()
	b := &Batch{
		BatchID:    batchID,
		CommandRef: commandRef,
		Sequence:   sequence,
		Timestamp:  timestamp,
		Entries:    make([]Entry, 0, len(movements)),
	}
	for _, m := range movements {
		m.EntryID = uuid.New()
		m.BatchID = batchID
		m.CommandRef = commandRef
		m.Sequence = sequence
		m.Timestamp = timestamp
		b.Entries = append(b.Entries, m)
	}
	return b
}

// Validate ensures the batch is well-formed. Zero-amount entries are legal
// (a zero-value transfer succeeds and is logged); malformed endpoints are not.
func (b *Batch) Validate() error {
	for _, e := range b.Entries {
		if e.BatchID != b.BatchID {
			return fmt.Errorf("entry %s has mismatched batch_id", e.EntryID)
		}
		switch e.Kind {
		case EntryMint:
			if !e.From.IsZero() {
				return fmt.Errorf("entry %s: mint must originate from the zero address", e.EntryID)
			}
		case EntryBurn:
			if !e.To.IsZero() {
				return fmt.Errorf("entry %s: burn must terminate at the zero address", e.EntryID)
			}
		case EntryTransfer, EntryCustodyMove:
			// Self-transfers are legal; nothing endpoint-specific to check.
		default:
			return fmt.Errorf("entry %s: unknown kind %d", e.EntryID, e.Kind)
		}
	}
	return nil
}
