package ingestion_test

import (
	"encoding/json"
	"testing"

	"github.com/edwardmadi/eurodollar-protocol/internal/command"
	"github.com/edwardmadi/eurodollar-protocol/internal/ingestion"
)

func payloadJSON(t *testing.T, v map[string]interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestParseMint(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":      "550e8400-e29b-41d4-a716-446655440000",
		"actor":           "0x00000000000000000000000000000000000000a0",
		"source_sequence": int64(42),
		"timestamp":       "2026-01-02T03:04:05Z",
		"to":              "0x0000000000000000000000000000000000000001",
		"amount":          "0x2710",
	})

	cmd, err := ingestion.ParseCommand("Mint", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	mint, ok := cmd.(*command.Mint)
	if !ok {
		t.Fatalf("expected *command.Mint, got %T", cmd)
	}

	if mint.To.String() != "0x0000000000000000000000000000000000000001" {
		t.Errorf("to: got %s", mint.To)
	}
	if mint.Amount.Uint64() != 10_000 {
		t.Errorf("amount: got %s, want 10000", mint.Amount.Dec())
	}
	if mint.SourceSequence() != 42 {
		t.Errorf("source_sequence: got %d, want 42", mint.SourceSequence())
	}
	if mint.IdempotencyKey() != "550e8400-e29b-41d4-a716-446655440000" {
		t.Errorf("idempotency key: got %s", mint.IdempotencyKey())
	}
}

func TestParseTransferFrom(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":      "660e8400-e29b-41d4-a716-446655440001",
		"actor":           "0x00000000000000000000000000000000000000b0",
		"source_sequence": int64(7),
		"timestamp":       "2026-01-02T03:04:05Z",
		"from":            "0x0000000000000000000000000000000000000001",
		"to":              "0x0000000000000000000000000000000000000002",
		"amount":          "0x64",
	})

	cmd, err := ingestion.ParseCommand("TransferFrom", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	tf, ok := cmd.(*command.TransferFrom)
	if !ok {
		t.Fatalf("expected *command.TransferFrom, got %T", cmd)
	}

	if tf.From == tf.To {
		t.Error("from and to should differ")
	}
	if tf.Amount.Uint64() != 100 {
		t.Errorf("amount: got %s, want 100", tf.Amount.Dec())
	}
	if tf.Caller().String() != "0x00000000000000000000000000000000000000b0" {
		t.Errorf("caller: got %s", tf.Caller())
	}
}

func TestParseGrantRole(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":      "770e8400-e29b-41d4-a716-446655440002",
		"actor":           "0x00000000000000000000000000000000000000a0",
		"source_sequence": int64(1),
		"timestamp":       "2026-01-02T03:04:05Z",
		"role":            "MINT",
		"grantee":         "0x0000000000000000000000000000000000000003",
	})

	cmd, err := ingestion.ParseCommand("GrantRole", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	grant, ok := cmd.(*command.GrantRole)
	if !ok {
		t.Fatalf("expected *command.GrantRole, got %T", cmd)
	}
	if string(grant.Role) != "MINT" {
		t.Errorf("role: got %s, want MINT", grant.Role)
	}
}

func TestParseGrantRole_UnknownRoleFails(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":      "770e8400-e29b-41d4-a716-446655440002",
		"actor":           "0x00000000000000000000000000000000000000a0",
		"source_sequence": int64(1),
		"timestamp":       "2026-01-02T03:04:05Z",
		"role":            "SUPERUSER",
		"grantee":         "0x0000000000000000000000000000000000000003",
	})

	if _, err := ingestion.ParseCommand("GrantRole", data); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestParseBlocklistAdd(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":      "880e8400-e29b-41d4-a716-446655440003",
		"actor":           "0x00000000000000000000000000000000000000a0",
		"source_sequence": int64(3),
		"timestamp":       "2026-01-02T03:04:05Z",
		"addresses": []string{
			"0x0000000000000000000000000000000000000004",
			"0x0000000000000000000000000000000000000005",
		},
	})

	cmd, err := ingestion.ParseCommand("BlocklistAdd", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	add, ok := cmd.(*command.BlocklistAdd)
	if !ok {
		t.Fatalf("expected *command.BlocklistAdd, got %T", cmd)
	}
	if len(add.Addresses) != 2 {
		t.Fatalf("addresses: got %d, want 2", len(add.Addresses))
	}
}

func TestParseBlocklistAdd_EmptyFails(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":      "880e8400-e29b-41d4-a716-446655440003",
		"actor":           "0x00000000000000000000000000000000000000a0",
		"source_sequence": int64(3),
		"timestamp":       "2026-01-02T03:04:05Z",
		"addresses":       []string{},
	})

	if _, err := ingestion.ParseCommand("BlocklistAdd", data); err == nil {
		t.Fatal("expected error for empty address list")
	}
}

func TestParsePermit(t *testing.T) {
	sig := make([]byte, 96)
	data := payloadJSON(t, map[string]interface{}{
		"command_id":      "990e8400-e29b-41d4-a716-446655440004",
		"actor":           "0x00000000000000000000000000000000000000c0",
		"source_sequence": int64(9),
		"timestamp":       "2026-01-02T03:04:05Z",
		"owner":           "0x0000000000000000000000000000000000000006",
		"spender":         "0x0000000000000000000000000000000000000007",
		"amount":          "0x3e8",
		"deadline":        int64(1_700_000_000),
		"sig":             sig,
	})

	cmd, err := ingestion.ParseCommand("Permit", data)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	permit, ok := cmd.(*command.Permit)
	if !ok {
		t.Fatalf("expected *command.Permit, got %T", cmd)
	}
	if permit.Deadline != 1_700_000_000 {
		t.Errorf("deadline: got %d", permit.Deadline)
	}
	if len(permit.Sig) != 96 {
		t.Errorf("sig length: got %d, want 96", len(permit.Sig))
	}
}

func TestParseMint_MissingAmountFails(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":      "550e8400-e29b-41d4-a716-446655440000",
		"actor":           "0x00000000000000000000000000000000000000a0",
		"source_sequence": int64(1),
		"timestamp":       "2026-01-02T03:04:05Z",
		"to":              "0x0000000000000000000000000000000000000001",
	})

	if _, err := ingestion.ParseCommand("Mint", data); err == nil {
		t.Fatal("expected error for missing amount")
	}
}

func TestParseMint_MissingCommandIDFails(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"actor":           "0x00000000000000000000000000000000000000a0",
		"source_sequence": int64(1),
		"timestamp":       "2026-01-02T03:04:05Z",
		"to":              "0x0000000000000000000000000000000000000001",
		"amount":          "0x1",
	})

	if _, err := ingestion.ParseCommand("Mint", data); err == nil {
		t.Fatal("expected error for missing command_id")
	}
}

func TestParseUnknownCommandType_Fails(t *testing.T) {
	if _, err := ingestion.ParseCommand("NonExistentType", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown command type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	if _, err := ingestion.ParseCommand("Mint", []byte(`{invalid json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidAddress_Fails(t *testing.T) {
	data := payloadJSON(t, map[string]interface{}{
		"command_id":      "550e8400-e29b-41d4-a716-446655440000",
		"actor":           "not-an-address",
		"source_sequence": int64(1),
		"timestamp":       "2026-01-02T03:04:05Z",
		"to":              "0x0000000000000000000000000000000000000001",
		"amount":          "0x1",
	})

	if _, err := ingestion.ParseCommand("Mint", data); err == nil {
		t.Fatal("expected error for invalid address")
	}
}

func TestCommandTypeFromSubject(t *testing.T) {
	commandType, err := ingestion.CommandTypeFromSubject("eud.commands.Mint")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if commandType != "Mint" {
		t.Errorf("got %s, want Mint", commandType)
	}

	commandType, err = ingestion.CommandTypeFromSubject("eud.commands.Transfer.treasury")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if commandType != "Transfer" {
		t.Errorf("got %s, want Transfer", commandType)
	}

	if _, err := ingestion.CommandTypeFromSubject("eud.other.Mint"); err == nil {
		t.Fatal("expected error for foreign subject")
	}
}
