// Package guard holds the two boolean control planes gating the ledger: the
// address blocklist and the global pause switch. Role authorization for
// mutating either lives in the core engine; these types only track state.
package guard

import (
	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// Blocklist is the authoritative set of blocked addresses. Membership bars an
// address from transfer, approval, and permit paths, but deliberately not
// from mint-as-bystander, burn, freeze, or release.
type Blocklist struct {
	blocked map[token.Address]bool
}

func NewBlocklist() *Blocklist {
	return &Blocklist{blocked: make(map[token.Address]bool)}
}

// IsBlocked is a pure read.
func (b *Blocklist) IsBlocked(addr token.Address) bool {
	return b.blocked[addr]
}

// Add blocks every address in addrs. Entries are plain addresses, so there is
// no per-element failure mode and the batch is atomic by construction.
// Duplicates are harmless.
func (b *Blocklist) Add(addrs []token.Address) []token.Address {
	changed := make([]token.Address, 0, len(addrs))
	for _, a := range addrs {
		if !b.blocked[a] {
			b.blocked[a] = true
			changed = append(changed, a)
		}
	}
	return changed
}

// Remove unblocks every address in addrs.
func (b *Blocklist) Remove(addrs []token.Address) []token.Address {
	changed := make([]token.Address, 0, len(addrs))
	for _, a := range addrs {
		if b.blocked[a] {
			delete(b.blocked, a)
			changed = append(changed, a)
		}
	}
	return changed
}

// Snapshot returns the blocked set for persistence.
func (b *Blocklist) Snapshot() []string {
	out := make([]string, 0, len(b.blocked))
	for addr := range b.blocked {
		out = append(out, addr.String())
	}
	return out
}

// RestoreBlocklist rebuilds a Blocklist from its snapshot form.
func RestoreBlocklist(snap []string) (*Blocklist, error) {
	b := NewBlocklist()
	for _, s := range snap {
		addr, err := token.ParseAddress(s)
		if err != nil {
			return nil, err
		}
		b.blocked[addr] = true
	}
	return b, nil
}
