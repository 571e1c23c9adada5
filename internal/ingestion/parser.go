package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/edwardmadi/eurodollar-protocol/internal/command"
)

// ParseCommand converts raw JSON bytes plus a command type string into a
// typed command.Command. The shell validates and converts here before
// anything reaches the deterministic core. The wire format is the same JSON
// the core writes into the command log, so replay goes through this exact
// path.
func ParseCommand(commandType string, data []byte) (command.Command, error) {
	cmd, err := newCommand(commandType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("parse %s: %w", commandType, err)
	}
	if err := validate(commandType, cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func newCommand(commandType string) (command.Command, error) {
	switch commandType {
	case "Initialize":
		return &command.Initialize{}, nil
	case "Reinitialize":
		return &command.Reinitialize{}, nil
	case "Mint":
		return &command.Mint{}, nil
	case "Burn":
		return &command.Burn{}, nil
	case "Transfer":
		return &command.Transfer{}, nil
	case "Approve":
		return &command.Approve{}, nil
	case "TransferFrom":
		return &command.TransferFrom{}, nil
	case "IncreaseAllowance":
		return &command.IncreaseAllowance{}, nil
	case "DecreaseAllowance":
		return &command.DecreaseAllowance{}, nil
	case "Permit":
		return &command.Permit{}, nil
	case "Freeze":
		return &command.Freeze{}, nil
	case "Release":
		return &command.Release{}, nil
	case "Pause":
		return &command.Pause{}, nil
	case "Unpause":
		return &command.Unpause{}, nil
	case "GrantRole":
		return &command.GrantRole{}, nil
	case "RevokeRole":
		return &command.RevokeRole{}, nil
	case "BlocklistAdd":
		return &command.BlocklistAdd{}, nil
	case "BlocklistRemove":
		return &command.BlocklistRemove{}, nil
	case "Upgrade":
		return &command.Upgrade{}, nil
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// validate rejects payloads that unmarshal cleanly but are structurally
// unusable: missing idempotency key or a missing amount. Semantic checks
// (balances, roles, gates) belong to the core.
func validate(commandType string, cmd command.Command) error {
	if cmd.IdempotencyKey() == uuid.Nil.String() {
		return fmt.Errorf("%s: missing command_id", commandType)
	}

	switch c := cmd.(type) {
	case *command.Mint:
		if c.Amount == nil {
			return fmt.Errorf("%s: missing amount", commandType)
		}
	case *command.Burn:
		if c.Amount == nil {
			return fmt.Errorf("%s: missing amount", commandType)
		}
	case *command.Transfer:
		if c.Amount == nil {
			return fmt.Errorf("%s: missing amount", commandType)
		}
	case *command.Approve:
		if c.Amount == nil {
			return fmt.Errorf("%s: missing amount", commandType)
		}
	case *command.TransferFrom:
		if c.Amount == nil {
			return fmt.Errorf("%s: missing amount", commandType)
		}
	case *command.IncreaseAllowance:
		if c.Amount == nil {
			return fmt.Errorf("%s: missing amount", commandType)
		}
	case *command.DecreaseAllowance:
		if c.Amount == nil {
			return fmt.Errorf("%s: missing amount", commandType)
		}
	case *command.Permit:
		if c.Amount == nil {
			return fmt.Errorf("%s: missing amount", commandType)
		}
		if len(c.Sig) == 0 {
			return fmt.Errorf("%s: missing sig", commandType)
		}
	case *command.Freeze:
		if c.Amount == nil {
			return fmt.Errorf("%s: missing amount", commandType)
		}
	case *command.Release:
		if c.Amount == nil {
			return fmt.Errorf("%s: missing amount", commandType)
		}
	case *command.GrantRole:
		if !c.Role.Valid() {
			return fmt.Errorf("%s: unknown role %q", commandType, c.Role)
		}
	case *command.RevokeRole:
		if !c.Role.Valid() {
			return fmt.Errorf("%s: unknown role %q", commandType, c.Role)
		}
	case *command.BlocklistAdd:
		if len(c.Addresses) == 0 {
			return fmt.Errorf("%s: empty address list", commandType)
		}
	case *command.BlocklistRemove:
		if len(c.Addresses) == 0 {
			return fmt.Errorf("%s: empty address list", commandType)
		}
	case *command.Upgrade:
		if c.NewImplementation.IsZero() {
			return fmt.Errorf("%s: missing new_implementation", commandType)
		}
	}
	return nil
}
