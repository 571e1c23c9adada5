package token

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MaxAllowance is the unlimited-allowance sentinel. An allowance equal to it
// is never decremented by TransferFrom.
var MaxAllowance = new(uint256.Int).Not(uint256.NewInt(0))

// PauseGate reports whether balance-mutating transfer paths are suspended.
type PauseGate interface {
	Paused() bool
}

// BlockGate reports blocklist membership.
type BlockGate interface {
	IsBlocked(Address) bool
}

// Ledger applies token operations to a State, running the pause and blocklist
// gates in a fixed order before any write. Role checks happen one layer up
// (the core engine knows the caller); the Ledger only sees already-authorized
// operations.
//
// Every operation validates all preconditions before its first mutation, so a
// returned error always means zero state change.
type Ledger struct {
	state   *State
	pause   PauseGate
	blocked BlockGate
}

func NewLedger(state *State, pause PauseGate, blocked BlockGate) *Ledger {
	return &Ledger{state: state, pause: pause, blocked: blocked}
}

// State exposes the read views.
func (l *Ledger) State() *State { return l.state }

// transferGate is the single choke point for the transfer family:
// pause first, then blocklist on both endpoints.
func (l *Ledger) transferGate(from, to Address) error {
	if l.pause.Paused() {
		return ErrPaused
	}
	if l.blocked.IsBlocked(from) {
		return BlockedError(from)
	}
	if l.blocked.IsBlocked(to) {
		return BlockedError(to)
	}
	return nil
}

// approvalGate guards the allowance family: blocklist on owner and spender,
// no pause check (approvals stay live while transfers are suspended).
func (l *Ledger) approvalGate(owner, spender Address) error {
	if l.blocked.IsBlocked(owner) {
		return BlockedError(owner)
	}
	if l.blocked.IsBlocked(spender) {
		return BlockedError(spender)
	}
	return nil
}

// Mint creates amount tokens for to. Rejected if to is blocked or the supply
// would overflow. Not pause-gated.
func (l *Ledger) Mint(to Address, amount *uint256.Int) ([]Entry, error) {
	if l.blocked.IsBlocked(to) {
		return nil, BlockedError(to)
	}
	var newSupply uint256.Int
	if _, overflow := newSupply.AddOverflow(&l.state.totalSupply, amount); overflow {
		return nil, fmt.Errorf("mint %s to %s: %w", amount.Dec(), to, ErrOverflow)
	}
	l.state.totalSupply = newSupply
	l.state.credit(to, amount)
	return []Entry{{Kind: EntryMint, From: ZeroAddress, To: to, Amount: *amount.Clone()}}, nil
}

// Burn destroys amount tokens held by from. Deliberately not blocklist-gated:
// a blocked account's tokens can still be burned.
func (l *Ledger) Burn(from Address, amount *uint256.Int) ([]Entry, error) {
	if l.state.BalanceOf(from).Lt(amount) {
		return nil, fmt.Errorf("burn %s from %s: %w", amount.Dec(), from, ErrInsufficientBalance)
	}
	l.state.debit(from, amount)
	l.state.totalSupply.Sub(&l.state.totalSupply, amount)
	return []Entry{{Kind: EntryBurn, From: from, To: ZeroAddress, Amount: *amount.Clone()}}, nil
}

// Transfer moves amount from from to to through the full gate pipeline.
func (l *Ledger) Transfer(from, to Address, amount *uint256.Int) ([]Entry, error) {
	if err := l.transferGate(from, to); err != nil {
		return nil, err
	}
	if l.state.BalanceOf(from).Lt(amount) {
		return nil, fmt.Errorf("transfer %s from %s: %w", amount.Dec(), from, ErrInsufficientBalance)
	}
	l.move(from, to, amount)
	return []Entry{{Kind: EntryTransfer, From: from, To: to, Amount: *amount.Clone()}}, nil
}

// TransferFrom spends spender's allowance to move amount from from to to.
// The caller (spender) is not blocklist-checked, only the endpoints are.
// A MaxAllowance sentinel is never decremented.
func (l *Ledger) TransferFrom(spender, from, to Address, amount *uint256.Int) ([]Entry, error) {
	if err := l.transferGate(from, to); err != nil {
		return nil, err
	}
	current := l.state.Allowance(from, spender)
	unlimited := current.Eq(MaxAllowance)
	if !unlimited && current.Lt(amount) {
		return nil, fmt.Errorf("transferFrom by %s: %w (have=%s, need=%s)",
			spender, ErrInsufficientAllowance, current.Dec(), amount.Dec())
	}
	if l.state.BalanceOf(from).Lt(amount) {
		return nil, fmt.Errorf("transferFrom %s from %s: %w", amount.Dec(), from, ErrInsufficientBalance)
	}

	if !unlimited {
		current.Sub(current, amount)
		l.state.setAllowance(from, spender, current)
	}
	l.move(from, to, amount)
	return []Entry{{Kind: EntryTransfer, From: from, To: to, Amount: *amount.Clone()}}, nil
}

// Approve sets the allowance (owner, spender) to value.
func (l *Ledger) Approve(owner, spender Address, value *uint256.Int) error {
	if err := l.approvalGate(owner, spender); err != nil {
		return err
	}
	l.state.setAllowance(owner, spender, value)
	return nil
}

// IncreaseAllowance adds to the current allowance, saturating never: an
// overflowing increase is rejected.
func (l *Ledger) IncreaseAllowance(owner, spender Address, added *uint256.Int) (*uint256.Int, error) {
	if err := l.approvalGate(owner, spender); err != nil {
		return nil, err
	}
	current := l.state.Allowance(owner, spender)
	var next uint256.Int
	if _, overflow := next.AddOverflow(current, added); overflow {
		return nil, fmt.Errorf("increaseAllowance for %s: %w", spender, ErrOverflow)
	}
	l.state.setAllowance(owner, spender, &next)
	return next.Clone(), nil
}

// DecreaseAllowance subtracts from the current allowance. An over-decrease is
// rejected, never clamped to zero.
func (l *Ledger) DecreaseAllowance(owner, spender Address, removed *uint256.Int) (*uint256.Int, error) {
	if err := l.approvalGate(owner, spender); err != nil {
		return nil, err
	}
	current := l.state.Allowance(owner, spender)
	if current.Lt(removed) {
		return nil, fmt.Errorf("decreaseAllowance for %s: %w (have=%s, remove=%s)",
			spender, ErrInsufficientAllowance, current.Dec(), removed.Dec())
	}
	current.Sub(current, removed)
	l.state.setAllowance(owner, spender, current)
	return current.Clone(), nil
}

// PermitApprove applies a signature-authorized approval: same gates as
// Approve, plus the owner's nonce is consumed. Signature and deadline checks
// happen in the permit package before this is called.
func (l *Ledger) PermitApprove(owner, spender Address, value *uint256.Int) error {
	if err := l.approvalGate(owner, spender); err != nil {
		return err
	}
	l.state.setAllowance(owner, spender, value)
	l.state.bumpNonce(owner)
	return nil
}

// Freeze moves amount from from's spendable balance into to's (the custodian)
// through the raw move, bypassing pause and blocklist, and records the amount
// owed back under from. Compliance actors must be able to drain blocked or
// paused accounts.
func (l *Ledger) Freeze(from, to Address, amount *uint256.Int) ([]Entry, error) {
	if l.state.BalanceOf(from).Lt(amount) {
		return nil, fmt.Errorf("freeze %s from %s: %w", amount.Dec(), from, ErrInsufficientBalance)
	}
	l.move(from, to, amount)
	l.state.addFrozen(from, amount)
	return []Entry{{Kind: EntryCustodyMove, From: from, To: to, Amount: *amount.Clone()}}, nil
}

// Release reverses a freeze: moves amount from from (the custodian) back to
// to, decrementing the frozen counter keyed by to. The counter key follows the
// freeze bookkeeping: freeze(a,b,x) records frozen[a], and the matching
// release(b,a,x) checks frozen[a], i.e. release's to parameter. Round-tripping
// freeze then release on the same triple restores balances and zeroes the
// counter; the keying is preserved exactly even though it reads inverted.
func (l *Ledger) Release(from, to Address, amount *uint256.Int) ([]Entry, error) {
	if l.state.FrozenOf(to).Lt(amount) {
		return nil, fmt.Errorf("release %s to %s: %w", amount.Dec(), to, ErrInsufficientFrozen)
	}
	if l.state.BalanceOf(from).Lt(amount) {
		return nil, fmt.Errorf("release %s from %s: %w", amount.Dec(), from, ErrInsufficientBalance)
	}
	l.state.subFrozen(to, amount)
	l.move(from, to, amount)
	return []Entry{{Kind: EntryCustodyMove, From: from, To: to, Amount: *amount.Clone()}}, nil
}

// move is the raw balance primitive. Callers must have verified sufficiency.
func (l *Ledger) move(from, to Address, amount *uint256.Int) {
	l.state.debit(from, amount)
	l.state.credit(to, amount)
}
