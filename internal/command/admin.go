package command

import (
	"github.com/edwardmadi/eurodollar-protocol/internal/access"
	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// Pause halts the transfer family. PAUSE-role gated. Pausing an already
// paused ledger is accepted and changes nothing.
type Pause struct {
	Meta
}

func (*Pause) CommandType() CommandType { return CommandTypePause }

// Unpause lifts the pause. PAUSE-role gated, idempotent like Pause.
type Unpause struct {
	Meta
}

func (*Unpause) CommandType() CommandType { return CommandTypeUnpause }

// GrantRole grants a role to an address. ADMIN-role gated.
type GrantRole struct {
	Meta
	Role    access.Role   `json:"role"`
	Grantee token.Address `json:"grantee"`
}

func (*GrantRole) CommandType() CommandType { return CommandTypeGrantRole }

// RevokeRole revokes a role from an address. ADMIN-role gated.
type RevokeRole struct {
	Meta
	Role    access.Role   `json:"role"`
	Grantee token.Address `json:"grantee"`
}

func (*RevokeRole) CommandType() CommandType { return CommandTypeRevokeRole }

// BlocklistAdd adds one or more addresses to the blocklist. BLOCK-role
// gated. A single-address call is a one-element batch.
type BlocklistAdd struct {
	Meta
	Addresses []token.Address `json:"addresses"`
}

func (*BlocklistAdd) CommandType() CommandType { return CommandTypeBlocklistAdd }

// BlocklistRemove removes one or more addresses from the blocklist.
// BLOCK-role gated.
type BlocklistRemove struct {
	Meta
	Addresses []token.Address `json:"addresses"`
}

func (*BlocklistRemove) CommandType() CommandType { return CommandTypeBlocklistRemove }
