package query

// BalanceResponse reports one account's holdings. Amounts are decimal
// strings because balances exceed int64 range.
type BalanceResponse struct {
	Address string `json:"address"`

	Balance string `json:"balance"`
	Frozen  string `json:"frozen"` // reclaimable from custody, not spendable

	AsOfSequence int64 `json:"as_of_sequence"` // last applied command sequence
}

// AllowanceResponse reports the remaining allowance for (owner, spender).
type AllowanceResponse struct {
	Owner        string `json:"owner"`
	Spender      string `json:"spender"`
	Amount       string `json:"amount"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// NonceResponse reports the next permit nonce for an owner.
type NonceResponse struct {
	Owner        string `json:"owner"`
	Nonce        uint64 `json:"nonce"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// TokenStatusResponse reports metadata plus the operational switches.
type TokenStatusResponse struct {
	Name           string `json:"name"`
	Symbol         string `json:"symbol"`
	Decimals       uint8  `json:"decimals"`
	Generation     uint64 `json:"generation"`
	TotalSupply    string `json:"total_supply"`
	Paused         bool   `json:"paused"`
	Implementation string `json:"implementation,omitempty"`
	ImplVersion    string `json:"impl_version,omitempty"`
	AsOfSequence   int64  `json:"as_of_sequence"`
}

// BlocklistResponse reports whether one address is blocked, or lists the
// whole blocklist when queried without an address.
type BlocklistResponse struct {
	Address      string   `json:"address,omitempty"`
	Blocked      bool     `json:"blocked"`
	Addresses    []string `json:"addresses,omitempty"`
	AsOfSequence int64    `json:"as_of_sequence"`
}

// RolesResponse lists role holders, either for one role or per address.
type RolesResponse struct {
	Role         string   `json:"role,omitempty"`
	Holders      []string `json:"holders,omitempty"`
	Address      string   `json:"address,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	AsOfSequence int64    `json:"as_of_sequence"`
}

// TransferHistoryEntry is one movement from the entry log.
type TransferHistoryEntry struct {
	Sequence  int64  `json:"sequence"`
	Kind      string `json:"kind"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool     `json:"is_healthy"`
	HashChainBreaks  []int64  `json:"hash_chain_breaks,omitempty"`
	NegativeBalances []string `json:"negative_balances,omitempty"`
	SupplyImbalance  string   `json:"supply_imbalance,omitempty"`
}
