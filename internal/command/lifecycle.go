package command

import (
	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// Initialize performs one-time setup: token metadata, decimals fixed at 18,
// and the deployer as initial admin. Runs at most once per deployment.
type Initialize struct {
	Meta
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

func (*Initialize) CommandType() CommandType { return CommandTypeInitialize }

// Reinitialize is the one-time entry point a newly adopted implementation
// may expose after an upgrade. Gated by the initialization generation
// counter so it runs at most once per generation.
type Reinitialize struct {
	Meta
	Generation uint64 `json:"generation"`
}

func (*Reinitialize) CommandType() CommandType { return CommandTypeReinitialize }

// Upgrade swaps the active logic implementation. UPGRADER-role gated.
// All persisted state survives the swap unchanged.
type Upgrade struct {
	Meta
	NewImplementation token.Address `json:"new_implementation"`
	Version           string        `json:"version"`
}

func (*Upgrade) CommandType() CommandType { return CommandTypeUpgrade }
