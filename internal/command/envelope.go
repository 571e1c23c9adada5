package command

import (
	"time"

	"github.com/google/uuid"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// CommandType discriminator for command payloads
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeInitialize
	CommandTypeReinitialize
	CommandTypeMint
	CommandTypeBurn
	CommandTypeTransfer
	CommandTypeApprove
	CommandTypeTransferFrom
	CommandTypeIncreaseAllowance
	CommandTypeDecreaseAllowance
	CommandTypePermit
	CommandTypeFreeze
	CommandTypeRelease
	CommandTypePause
	CommandTypeUnpause
	CommandTypeGrantRole
	CommandTypeRevokeRole
	CommandTypeBlocklistAdd
	CommandTypeBlocklistRemove
	CommandTypeUpgrade
)

// Envelope wraps every command in the log
type Envelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Command type discriminator
	CommandType CommandType

	// Address the command executes as
	Caller token.Address

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded command-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}

// Command is the interface all command payloads must implement
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CommandType returns the discriminator
	CommandType() CommandType

	// Caller returns the address the command executes as
	Caller() token.Address

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

// Meta carries the fields shared by every command. Embedding it satisfies
// everything in Command except the type discriminator.
type Meta struct {
	CommandID uuid.UUID     `json:"command_id"` // Idempotency key
	Actor     token.Address `json:"actor"`
	Seq       int64         `json:"source_sequence"`
	Timestamp time.Time     `json:"timestamp"` // Versioned input timestamp (NOT wall-clock)
}

func (m Meta) IdempotencyKey() string { return m.CommandID.String() }

func (m Meta) Caller() token.Address { return m.Actor }

func (m Meta) SourceSequence() int64 { return m.Seq }

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeInitialize:
		return "Initialize"
	case CommandTypeReinitialize:
		return "Reinitialize"
	case CommandTypeMint:
		return "Mint"
	case CommandTypeBurn:
		return "Burn"
	case CommandTypeTransfer:
		return "Transfer"
	case CommandTypeApprove:
		return "Approve"
	case CommandTypeTransferFrom:
		return "TransferFrom"
	case CommandTypeIncreaseAllowance:
		return "IncreaseAllowance"
	case CommandTypeDecreaseAllowance:
		return "DecreaseAllowance"
	case CommandTypePermit:
		return "Permit"
	case CommandTypeFreeze:
		return "Freeze"
	case CommandTypeRelease:
		return "Release"
	case CommandTypePause:
		return "Pause"
	case CommandTypeUnpause:
		return "Unpause"
	case CommandTypeGrantRole:
		return "GrantRole"
	case CommandTypeRevokeRole:
		return "RevokeRole"
	case CommandTypeBlocklistAdd:
		return "BlocklistAdd"
	case CommandTypeBlocklistRemove:
		return "BlocklistRemove"
	case CommandTypeUpgrade:
		return "Upgrade"
	default:
		return "Unknown"
	}
}
