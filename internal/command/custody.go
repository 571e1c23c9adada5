package command

import (
	"github.com/holiman/uint256"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// Freeze moves funds from a suspect account into a custody account and
// records the amount reclaimable from custody against the source account.
// FREEZE-role gated; bypasses pause and blocklist.
type Freeze struct {
	Meta
	From   token.Address `json:"from"`
	To     token.Address `json:"to"` // custody account
	Amount *uint256.Int  `json:"amount"`
}

func (*Freeze) CommandType() CommandType { return CommandTypeFreeze }

// Release returns custodied funds. The reclaimable counter consumed is the
// one recorded against To, matching the keying used by Freeze.
type Release struct {
	Meta
	From   token.Address `json:"from"` // custody account
	To     token.Address `json:"to"`
	Amount *uint256.Int  `json:"amount"`
}

func (*Release) CommandType() CommandType { return CommandTypeRelease }
