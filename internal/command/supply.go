package command

import (
	"github.com/holiman/uint256"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// Mint credits newly issued supply to an account. MINT-role gated.
type Mint struct {
	Meta
	To     token.Address `json:"to"`
	Amount *uint256.Int  `json:"amount"`
}

func (*Mint) CommandType() CommandType { return CommandTypeMint }

// Burn destroys supply held by an account. BURN-role gated.
type Burn struct {
	Meta
	From   token.Address `json:"from"`
	Amount *uint256.Int  `json:"amount"`
}

func (*Burn) CommandType() CommandType { return CommandTypeBurn }
