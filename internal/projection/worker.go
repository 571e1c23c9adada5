package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

// maxAllowance is the unlimited-approval sentinel. Spends against it leave
// the stored allowance untouched.
const maxAllowance = "115792089237316195423570985008687907853269984665640564039457584007913129639935"

// Output mirrors the data needed by the projection worker. The orchestrator
// bridges between core.CoreOutput and this.
type Output struct {
	Sequence    int64
	CommandType string
	Caller      string
	Payload     json.RawMessage
	Entries     []Entry
	Notices     []Notice
	Timestamp   int64
}

// Entry is a balance movement flattened for projection consumption. Amount is
// a decimal string so the database can do NUMERIC arithmetic on it.
type Entry struct {
	Kind   string
	From   string
	To     string
	Amount string
}

// Notice carries one observable side effect with its JSON payload.
type Notice struct {
	Type    string
	Payload json.RawMessage
}

// Worker updates projection tables from processed commands. The projection
// channel is non-blocking with drop; if projections fall behind they can be
// rebuilt from the command log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan Output
	logger    zerolog.Logger
	lastSeq   int64
}

func NewWorker(db *sql.DB, inputChan <-chan Output, logger zerolog.Logger) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		logger:    logger.With().Str("component", "projection_worker").Logger(),
		lastSeq:   -1,
	}
}

// Run starts the projection worker loop. Outputs at or below the stored
// watermark are skipped, so command-log replay after a restart does not
// double-apply balance arithmetic.
func (pw *Worker) Run(ctx context.Context) error {
	if err := pw.loadWatermark(ctx); err != nil {
		pw.logger.Warn().Err(err).Msg("load watermark failed, starting from scratch")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if output.Sequence <= pw.lastSeq {
				continue
			}

			if err := pw.processOutput(ctx, output); err != nil {
				pw.logger.Warn().
					Int64("sequence", output.Sequence).
					Err(err).
					Msg("projection update failed")
				// Continue; projections are eventually consistent
				// and can be rebuilt from the command log.
			}

			pw.lastSeq = output.Sequence
		}
	}
}

func (pw *Worker) loadWatermark(ctx context.Context) error {
	var seq int64
	err := pw.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	pw.lastSeq = seq
	return nil
}

func (pw *Worker) processOutput(ctx context.Context, output Output) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, entry := range output.Entries {
		if err := pw.applyEntry(ctx, tx, output, entry); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	if err := pw.applyCommand(ctx, tx, output); err != nil {
		return err
	}

	for _, notice := range output.Notices {
		if err := pw.applyNotice(ctx, tx, output, notice); err != nil {
			return fmt.Errorf("notice projection (%s): %w", notice.Type, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

// applyEntry mirrors one movement into projections.balances. Mint entries
// carry the zero address as From and burn entries as To; the zero address row
// is never materialized.
func (pw *Worker) applyEntry(ctx context.Context, tx *sql.Tx, output Output, entry Entry) error {
	if entry.Kind != "mint" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (address, balance, last_sequence)
			VALUES ($1, -($2::numeric), $3)
			ON CONFLICT (address)
			DO UPDATE SET balance = projections.balances.balance - $2::numeric, last_sequence = $3
		`, entry.From, entry.Amount, output.Sequence); err != nil {
			return err
		}
	}

	if entry.Kind != "burn" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.balances (address, balance, last_sequence)
			VALUES ($1, $2::numeric, $3)
			ON CONFLICT (address)
			DO UPDATE SET balance = projections.balances.balance + $2::numeric, last_sequence = $3
		`, entry.To, entry.Amount, output.Sequence); err != nil {
			return err
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.transfer_history (sequence, kind, from_addr, to_addr, amount, ts)
		VALUES ($1, $2, $3, $4, $5::numeric, to_timestamp($6 / 1000000.0))
		ON CONFLICT DO NOTHING
	`, output.Sequence, entry.Kind, entry.From, entry.To, entry.Amount, output.Timestamp)
	return err
}

// applyCommand handles projections keyed off the command itself rather than
// its entries or notices: frozen counters, allowance spends, nonce bumps,
// and token metadata.
func (pw *Worker) applyCommand(ctx context.Context, tx *sql.Tx, output Output) error {
	switch output.CommandType {
	case "Initialize":
		var payload struct {
			Name     string `json:"name"`
			Symbol   string `json:"symbol"`
			Decimals uint8  `json:"decimals"`
		}
		if err := json.Unmarshal(output.Payload, &payload); err != nil {
			return fmt.Errorf("initialize payload: %w", err)
		}
		if payload.Decimals == 0 {
			payload.Decimals = 18
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.token_metadata (id, name, symbol, decimals, generation, last_sequence)
			VALUES (1, $1, $2, $3, 1, $4)
			ON CONFLICT (id) DO NOTHING
		`, payload.Name, payload.Symbol, payload.Decimals, output.Sequence)
		return err

	case "Reinitialize":
		var payload struct {
			Generation uint64 `json:"generation"`
		}
		if err := json.Unmarshal(output.Payload, &payload); err != nil {
			return fmt.Errorf("reinitialize payload: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE projections.token_metadata SET generation = $1, last_sequence = $2 WHERE id = 1
		`, payload.Generation, output.Sequence)
		return err

	case "Freeze":
		// Custody holds are counted against the source account.
		for _, entry := range output.Entries {
			if err := pw.adjustFrozen(ctx, tx, entry.From, "+", entry.Amount, output.Sequence); err != nil {
				return err
			}
		}
		return nil

	case "Release":
		// Releases draw the hold down on the receiving account's counter.
		for _, entry := range output.Entries {
			if err := pw.adjustFrozen(ctx, tx, entry.To, "-", entry.Amount, output.Sequence); err != nil {
				return err
			}
		}
		return nil

	case "TransferFrom":
		for _, entry := range output.Entries {
			if _, err := tx.ExecContext(ctx, `
				UPDATE projections.allowances
				SET amount = amount - $3::numeric, last_sequence = $4
				WHERE owner = $1 AND spender = $2 AND amount < $5::numeric
			`, entry.From, output.Caller, entry.Amount, output.Sequence, maxAllowance); err != nil {
				return err
			}
		}
		return nil

	case "Permit":
		var payload struct {
			Owner string `json:"owner"`
		}
		if err := json.Unmarshal(output.Payload, &payload); err != nil {
			return fmt.Errorf("permit payload: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.nonces (owner, nonce, last_sequence)
			VALUES ($1, 1, $2)
			ON CONFLICT (owner) DO UPDATE SET nonce = projections.nonces.nonce + 1, last_sequence = $2
		`, payload.Owner, output.Sequence)
		return err
	}

	return nil
}

func (pw *Worker) adjustFrozen(ctx context.Context, tx *sql.Tx, address, sign, amount string, seq int64) error {
	query := `
		INSERT INTO projections.frozen (address, amount, last_sequence)
		VALUES ($1, $2::numeric, $3)
		ON CONFLICT (address)
		DO UPDATE SET amount = projections.frozen.amount + $2::numeric, last_sequence = $3
	`
	if sign == "-" {
		query = `
			INSERT INTO projections.frozen (address, amount, last_sequence)
			VALUES ($1, -($2::numeric), $3)
			ON CONFLICT (address)
			DO UPDATE SET amount = projections.frozen.amount - $2::numeric, last_sequence = $3
		`
	}
	_, err := tx.ExecContext(ctx, query, address, amount, seq)
	return err
}

func (pw *Worker) applyNotice(ctx context.Context, tx *sql.Tx, output Output, notice Notice) error {
	switch notice.Type {
	case "approval":
		var payload struct {
			Owner   string `json:"owner"`
			Spender string `json:"spender"`
			Amount  string `json:"amount"`
		}
		if err := json.Unmarshal(notice.Payload, &payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.allowances (owner, spender, amount, last_sequence)
			VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (owner, spender)
			DO UPDATE SET amount = $3::numeric, last_sequence = $4
		`, payload.Owner, payload.Spender, payload.Amount, output.Sequence)
		return err

	case "role_changed":
		var payload struct {
			Role    string `json:"role"`
			Grantee string `json:"grantee"`
			Granted bool   `json:"granted"`
		}
		if err := json.Unmarshal(notice.Payload, &payload); err != nil {
			return err
		}
		if payload.Granted {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO projections.roles (role, address, last_sequence)
				VALUES ($1, $2, $3)
				ON CONFLICT (role, address) DO UPDATE SET last_sequence = $3
			`, payload.Role, payload.Grantee, output.Sequence)
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM projections.roles WHERE role = $1 AND address = $2
		`, payload.Role, payload.Grantee)
		return err

	case "blocklist_changed":
		var payload struct {
			Address string `json:"address"`
			Blocked bool   `json:"blocked"`
		}
		if err := json.Unmarshal(notice.Payload, &payload); err != nil {
			return err
		}
		if payload.Blocked {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO projections.blocklist (address, last_sequence)
				VALUES ($1, $2)
				ON CONFLICT (address) DO UPDATE SET last_sequence = $2
			`, payload.Address, output.Sequence)
			return err
		}
		_, err := tx.ExecContext(ctx, `
			DELETE FROM projections.blocklist WHERE address = $1
		`, payload.Address)
		return err

	case "pause_changed":
		var payload struct {
			Paused bool `json:"paused"`
		}
		if err := json.Unmarshal(notice.Payload, &payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.status (id, paused, last_sequence)
			VALUES (1, $1, $2)
			ON CONFLICT (id) DO UPDATE SET paused = $1, last_sequence = $2
		`, payload.Paused, output.Sequence)
		return err

	case "upgraded":
		var payload struct {
			Implementation string `json:"implementation"`
			Version        string `json:"version"`
		}
		if err := json.Unmarshal(notice.Payload, &payload); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.status (id, implementation, impl_version, last_sequence)
			VALUES (1, $1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET implementation = $1, impl_version = $2, last_sequence = $3
		`, payload.Implementation, payload.Version, output.Sequence)
		return err
	}

	return nil
}

// RebuildBalances rebuilds the balance projection from the entry log. The
// other tables follow the watermark and catch up on replay.
func RebuildBalances(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.transfer_history`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (address, balance, last_sequence)
		SELECT to_addr, SUM(amount), MAX(sequence)
		FROM command_log.entries
		WHERE kind <> 'burn'
		GROUP BY to_addr
		ON CONFLICT (address) DO UPDATE
			SET balance = EXCLUDED.balance, last_sequence = EXCLUDED.last_sequence
	`)
	if err != nil {
		return fmt.Errorf("rebuild credits: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (address, balance, last_sequence)
		SELECT from_addr, -SUM(amount), MAX(sequence)
		FROM command_log.entries
		WHERE kind <> 'mint'
		GROUP BY from_addr
		ON CONFLICT (address) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild debits: %w", err)
	}

	return nil
}
