package query

import (
	"context"
	"database/sql"
	"fmt"
)

// QueryService provides read-only access to the projection tables. Every
// response carries as_of_sequence so callers can reason about freshness
// against the sequence their command was applied at.
type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// GetBalance returns an account's spendable balance and its reclaimable
// custody counter.
func (qs *QueryService) GetBalance(ctx context.Context, address string) (*BalanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	balance, err := qs.scanAmount(ctx, `
		SELECT balance::text FROM projections.balances WHERE address = $1
	`, address)
	if err != nil {
		return nil, err
	}

	frozen, err := qs.scanAmount(ctx, `
		SELECT amount::text FROM projections.frozen WHERE address = $1
	`, address)
	if err != nil {
		return nil, err
	}

	return &BalanceResponse{
		Address:      address,
		Balance:      balance,
		Frozen:       frozen,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetAllowance returns the remaining allowance for (owner, spender).
func (qs *QueryService) GetAllowance(ctx context.Context, owner, spender string) (*AllowanceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var amount string
	err = qs.db.QueryRowContext(ctx, `
		SELECT amount::text FROM projections.allowances WHERE owner = $1 AND spender = $2
	`, owner, spender).Scan(&amount)
	if err == sql.ErrNoRows {
		amount = "0"
	} else if err != nil {
		return nil, err
	}

	return &AllowanceResponse{
		Owner:        owner,
		Spender:      spender,
		Amount:       amount,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetNonce returns the next permit nonce for an owner.
func (qs *QueryService) GetNonce(ctx context.Context, owner string) (*NonceResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var nonce uint64
	err = qs.db.QueryRowContext(ctx, `
		SELECT nonce FROM projections.nonces WHERE owner = $1
	`, owner).Scan(&nonce)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return &NonceResponse{Owner: owner, Nonce: nonce, AsOfSequence: asOfSeq}, nil
}

// GetStatus returns token metadata, supply, and the operational switches.
// Supply is derived from the balance projection; by conservation it equals
// the core's totalSupply at the watermark.
func (qs *QueryService) GetStatus(ctx context.Context) (*TokenStatusResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	resp := &TokenStatusResponse{AsOfSequence: asOfSeq, TotalSupply: "0"}

	err = qs.db.QueryRowContext(ctx, `
		SELECT name, symbol, decimals, generation FROM projections.token_metadata WHERE id = 1
	`).Scan(&resp.Name, &resp.Symbol, &resp.Decimals, &resp.Generation)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	var impl, implVersion sql.NullString
	err = qs.db.QueryRowContext(ctx, `
		SELECT paused, implementation, impl_version FROM projections.status WHERE id = 1
	`).Scan(&resp.Paused, &impl, &implVersion)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	resp.Implementation = impl.String
	resp.ImplVersion = implVersion.String

	var supply sql.NullString
	err = qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(balance), 0)::text FROM projections.balances
	`).Scan(&supply)
	if err != nil {
		return nil, err
	}
	if supply.Valid {
		resp.TotalSupply = supply.String
	}

	return resp, nil
}

// GetBlocked reports whether one address is on the blocklist.
func (qs *QueryService) GetBlocked(ctx context.Context, address string) (*BlocklistResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	var one int
	err = qs.db.QueryRowContext(ctx, `
		SELECT 1 FROM projections.blocklist WHERE address = $1
	`, address).Scan(&one)
	blocked := err == nil
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return &BlocklistResponse{Address: address, Blocked: blocked, AsOfSequence: asOfSeq}, nil
}

// GetBlocklist returns every blocked address.
func (qs *QueryService) GetBlocklist(ctx context.Context) (*BlocklistResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT address FROM projections.blocklist ORDER BY address
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &BlocklistResponse{AsOfSequence: asOfSeq}
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		resp.Addresses = append(resp.Addresses, addr)
	}
	resp.Blocked = len(resp.Addresses) > 0

	return resp, rows.Err()
}

// GetRoleHolders returns the addresses holding a role.
func (qs *QueryService) GetRoleHolders(ctx context.Context, role string) (*RolesResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT address FROM projections.roles WHERE role = $1 ORDER BY address
	`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &RolesResponse{Role: role, AsOfSequence: asOfSeq}
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, err
		}
		resp.Holders = append(resp.Holders, addr)
	}

	return resp, rows.Err()
}

// GetRolesOf returns the roles held by one address.
func (qs *QueryService) GetRolesOf(ctx context.Context, address string) (*RolesResponse, error) {
	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT role FROM projections.roles WHERE address = $1 ORDER BY role
	`, address)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resp := &RolesResponse{Address: address, AsOfSequence: asOfSeq}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		resp.Roles = append(resp.Roles, role)
	}

	return resp, rows.Err()
}

// GetTransferHistory returns movements touching an address, newest first,
// with cursor-based pagination on sequence.
func (qs *QueryService) GetTransferHistory(
	ctx context.Context,
	address string,
	limit int,
	beforeSequence *int64,
) ([]TransferHistoryEntry, error) {
	query := `
		SELECT sequence, kind, from_addr, to_addr, amount::text,
		       (EXTRACT(EPOCH FROM ts) * 1000000)::bigint
		FROM projections.transfer_history
		WHERE (from_addr = $1 OR to_addr = $1)
	`
	args := []interface{}{address}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []TransferHistoryEntry
	for rows.Next() {
		var e TransferHistoryEntry
		if err := rows.Scan(&e.Sequence, &e.Kind, &e.From, &e.To, &e.Amount, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash chain continuity in the command log and sanity
// of the balance projection.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT c1.sequence
		FROM command_log.commands c1
		JOIN command_log.commands c2 ON c2.sequence = c1.sequence - 1
		WHERE c1.prev_hash != c2.state_hash
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	negRows, err := qs.db.QueryContext(ctx, `
		SELECT address FROM projections.balances WHERE balance < 0 LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer negRows.Close()

	for negRows.Next() {
		var addr string
		if err := negRows.Scan(&addr); err != nil {
			return nil, err
		}
		report.NegativeBalances = append(report.NegativeBalances, addr)
	}
	if err := negRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.NegativeBalances) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *QueryService) scanAmount(ctx context.Context, query, key string) (string, error) {
	var amount string
	err := qs.db.QueryRowContext(ctx, query, key).Scan(&amount)
	if err == sql.ErrNoRows {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return amount, nil
}
