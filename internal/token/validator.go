package token

import (
	"fmt"

	"github.com/holiman/uint256"
)

// InvariantValidator checks the ledger's global invariants after apply.
type InvariantValidator struct {
	state *State
}

func NewInvariantValidator(state *State) *InvariantValidator {
	return &InvariantValidator{state: state}
}

// CheckConservation verifies sum(balances) == totalSupply. Every reachable
// state must satisfy this; a violation is a ledger bug, and the engine treats
// it as fatal.
func (v *InvariantValidator) CheckConservation() error {
	var sum uint256.Int
	for addr, b := range v.state.balances {
		if _, overflow := sum.AddOverflow(&sum, &b); overflow {
			return fmt.Errorf("balance sum overflows at %s", addr)
		}
	}
	if !sum.Eq(&v.state.totalSupply) {
		return fmt.Errorf("conservation violated: sum(balances)=%s, totalSupply=%s",
			sum.Dec(), v.state.totalSupply.Dec())
	}
	return nil
}

// CheckFrozenCovered verifies that every frozen counter is matched by at
// least as much total supply. A frozen amount larger than the whole supply
// means the freeze/release bookkeeping desynchronized.
func (v *InvariantValidator) CheckFrozenCovered() error {
	for addr, f := range v.state.frozen {
		if f.Gt(&v.state.totalSupply) {
			return fmt.Errorf("frozen[%s]=%s exceeds total supply %s",
				addr, f.Dec(), v.state.totalSupply.Dec())
		}
	}
	return nil
}
