package command

import (
	"github.com/holiman/uint256"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// Transfer moves funds from the caller to another account.
type Transfer struct {
	Meta
	To     token.Address `json:"to"`
	Amount *uint256.Int  `json:"amount"`
}

func (*Transfer) CommandType() CommandType { return CommandTypeTransfer }

// Approve sets the caller's allowance toward a spender to an exact value.
type Approve struct {
	Meta
	Spender token.Address `json:"spender"`
	Amount  *uint256.Int  `json:"amount"`
}

func (*Approve) CommandType() CommandType { return CommandTypeApprove }

// TransferFrom moves funds out of another account against the caller's
// allowance from that account.
type TransferFrom struct {
	Meta
	From   token.Address `json:"from"`
	To     token.Address `json:"to"`
	Amount *uint256.Int  `json:"amount"`
}

func (*TransferFrom) CommandType() CommandType { return CommandTypeTransferFrom }

// IncreaseAllowance raises the caller's allowance toward a spender.
type IncreaseAllowance struct {
	Meta
	Spender token.Address `json:"spender"`
	Amount  *uint256.Int  `json:"amount"`
}

func (*IncreaseAllowance) CommandType() CommandType { return CommandTypeIncreaseAllowance }

// DecreaseAllowance lowers the caller's allowance toward a spender.
// Decreasing below the current allowance is rejected, not clamped.
type DecreaseAllowance struct {
	Meta
	Spender token.Address `json:"spender"`
	Amount  *uint256.Int  `json:"amount"`
}

func (*DecreaseAllowance) CommandType() CommandType { return CommandTypeDecreaseAllowance }
