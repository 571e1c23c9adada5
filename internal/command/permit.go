package command

import (
	"github.com/holiman/uint256"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// Permit sets an allowance on behalf of the owner from an off-line
// signature. Any caller may relay it; authorization comes from the
// signature, not the caller.
type Permit struct {
	Meta
	Owner    token.Address `json:"owner"`
	Spender  token.Address `json:"spender"`
	Amount   *uint256.Int  `json:"amount"`
	Deadline int64         `json:"deadline"` // unix seconds, inclusive
	Sig      []byte        `json:"sig"`
}

func (*Permit) CommandType() CommandType { return CommandTypePermit }
