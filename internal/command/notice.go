package command

import (
	"github.com/holiman/uint256"

	"github.com/edwardmadi/eurodollar-protocol/internal/access"
	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// Notice is an observable side effect published for downstream consumers
// after the command that produced it is persisted.
type Notice interface {
	NoticeType() string
}

// TransferNotice reports any balance movement, including mints (zero From)
// and burns (zero To).
type TransferNotice struct {
	From   token.Address `json:"from"`
	To     token.Address `json:"to"`
	Amount *uint256.Int  `json:"amount"`
}

func (TransferNotice) NoticeType() string { return "transfer" }

// ApprovalNotice reports a new allowance value for (owner, spender).
type ApprovalNotice struct {
	Owner   token.Address `json:"owner"`
	Spender token.Address `json:"spender"`
	Amount  *uint256.Int  `json:"amount"`
}

func (ApprovalNotice) NoticeType() string { return "approval" }

// RoleChangedNotice reports a grant or revoke.
type RoleChangedNotice struct {
	Role    access.Role   `json:"role"`
	Grantee token.Address `json:"grantee"`
	Granted bool          `json:"granted"`
}

func (RoleChangedNotice) NoticeType() string { return "role_changed" }

// BlocklistChangedNotice reports one address entering or leaving the
// blocklist. Batch commands emit one notice per changed address.
type BlocklistChangedNotice struct {
	Address token.Address `json:"address"`
	Blocked bool          `json:"blocked"`
}

func (BlocklistChangedNotice) NoticeType() string { return "blocklist_changed" }

// PauseChangedNotice reports the pause flag flipping.
type PauseChangedNotice struct {
	Paused bool `json:"paused"`
}

func (PauseChangedNotice) NoticeType() string { return "pause_changed" }

// UpgradedNotice reports an implementation swap.
type UpgradedNotice struct {
	Implementation token.Address `json:"implementation"`
	Version        string        `json:"version"`
}

func (UpgradedNotice) NoticeType() string { return "upgraded" }
