package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CommandLogWriter writes commands and ledger entries to Postgres using
// multi-row INSERT batches. Amounts travel as decimal strings into NUMERIC
// columns so 256-bit values round-trip exactly.
type CommandLogWriter struct {
	db           *sql.DB
	batchSize    int
	flushTimeout time.Duration
}

// CommandRow represents a row in command_log.commands
type CommandRow struct {
	Sequence       int64
	CommandType    string
	IdempotencyKey string
	Caller         string
	Payload        []byte // JSON-encoded command payload
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

// EntryRow represents a row in command_log.entries
type EntryRow struct {
	EntryID    string
	BatchID    string
	CommandRef string
	Sequence   int64
	Kind       string
	FromAddr   string
	ToAddr     string
	Amount     string // decimal string, NUMERIC(78,0) in Postgres
	Timestamp  int64
}

func NewCommandLogWriter(db *sql.DB, batchSize int, flushTimeout time.Duration) *CommandLogWriter {
	return &CommandLogWriter{
		db:           db,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
	}
}

// WriteCommandBatch writes a batch of commands inside tx using multi-row INSERT.
func (w *CommandLogWriter) WriteCommandBatch(ctx context.Context, tx *sql.Tx, commands []CommandRow) error {
	if len(commands) == 0 {
		return nil
	}

	query := `INSERT INTO command_log.commands
		(sequence, command_type, idempotency_key, caller, payload, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `

	values := make([]string, 0, len(commands))
	args := make([]interface{}, 0, len(commands)*9)

	for i, c := range commands {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			c.Sequence, c.CommandType, c.IdempotencyKey, c.Caller,
			c.Payload, c.StateHash, c.PrevHash, c.Timestamp, c.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING" // Idempotent writes

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteEntryBatch writes a batch of ledger entries inside tx.
func (w *CommandLogWriter) WriteEntryBatch(ctx context.Context, tx *sql.Tx, entries []EntryRow) error {
	if len(entries) == 0 {
		return nil
	}

	query := `INSERT INTO command_log.entries
		(entry_id, batch_id, command_ref, sequence, kind, from_addr, to_addr, amount, timestamp)
		VALUES `

	values := make([]string, 0, len(entries))
	args := make([]interface{}, 0, len(entries)*9)

	for i, e := range entries {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			e.EntryID, e.BatchID, e.CommandRef, e.Sequence,
			e.Kind, e.FromAddr, e.ToAddr, e.Amount, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	// Conflict on the natural key: entry UUIDs are regenerated during replay
	query += " ON CONFLICT (sequence, kind, from_addr, to_addr) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
