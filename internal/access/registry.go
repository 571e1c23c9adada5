// Package access is the role registry: the authoritative mapping from
// (role, address) to granted/revoked. One distinguished admin role can grant
// and revoke every role, including itself.
package access

import (
	"fmt"

	"github.com/edwardmadi/eurodollar-protocol/internal/token"
)

// Role is a named capability checked before privileged operations.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleMint     Role = "MINT"
	RoleBurn     Role = "BURN"
	RolePause    Role = "PAUSE"
	RoleFreeze   Role = "FREEZE"
	RoleBlock    Role = "BLOCK"
	RoleAllow    Role = "ALLOW" // reserved, unused
	RoleUpgrader Role = "UPGRADER"
)

// Roles lists every defined role, in a stable order for snapshots and views.
func Roles() []Role {
	return []Role{RoleAdmin, RoleMint, RoleBurn, RolePause, RoleFreeze, RoleBlock, RoleAllow, RoleUpgrader}
}

// Valid reports whether r is one of the defined role constants.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMint, RoleBurn, RolePause, RoleFreeze, RoleBlock, RoleAllow, RoleUpgrader:
		return true
	}
	return false
}

// Change describes a grant or revoke for the notification stream.
type Change struct {
	Role    Role          `json:"role"`
	Address token.Address `json:"address"`
	Granted bool          `json:"granted"`
}

// Registry holds role assignments. Admin authorization is enforced here, at
// the registry boundary, not re-implemented by callers.
type Registry struct {
	grants map[Role]map[token.Address]bool
}

func NewRegistry() *Registry {
	return &Registry{grants: make(map[Role]map[token.Address]bool)}
}

// Bootstrap grants ADMIN to the deployer without an authorization check.
// Valid only while the registry is empty; after that, Grant is the only path.
func (r *Registry) Bootstrap(deployer token.Address) error {
	if len(r.grants) != 0 {
		return token.ErrAlreadyInitialized
	}
	r.set(RoleAdmin, deployer, true)
	return nil
}

// Has reports whether addr holds role.
func (r *Registry) Has(role Role, addr token.Address) bool {
	return r.grants[role][addr]
}

// Grant assigns role to addr. The caller must hold ADMIN.
func (r *Registry) Grant(caller token.Address, role Role, addr token.Address) (*Change, error) {
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	r.set(role, addr, true)
	return &Change{Role: role, Address: addr, Granted: true}, nil
}

// Revoke removes role from addr. The caller must hold ADMIN. ADMIN can revoke
// itself; there is no separate owner concept backstopping the registry.
func (r *Registry) Revoke(caller token.Address, role Role, addr token.Address) (*Change, error) {
	if err := r.requireAdmin(caller); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	r.set(role, addr, false)
	return &Change{Role: role, Address: addr, Granted: false}, nil
}

func (r *Registry) requireAdmin(caller token.Address) error {
	if !r.Has(RoleAdmin, caller) {
		return fmt.Errorf("grant/revoke by %s: %w", caller, token.ErrUnauthorized)
	}
	return nil
}

func (r *Registry) set(role Role, addr token.Address, granted bool) {
	holders, ok := r.grants[role]
	if !ok {
		if !granted {
			return
		}
		holders = make(map[token.Address]bool)
		r.grants[role] = holders
	}
	if granted {
		holders[addr] = true
		return
	}
	delete(holders, addr)
	if len(holders) == 0 {
		delete(r.grants, role)
	}
}

// Snapshot returns role -> holder addresses for persistence.
func (r *Registry) Snapshot() map[string][]string {
	out := make(map[string][]string, len(r.grants))
	for role, holders := range r.grants {
		for addr := range holders {
			out[string(role)] = append(out[string(role)], addr.String())
		}
	}
	return out
}

// RestoreSnapshot rebuilds a Registry from its snapshot form.
func RestoreSnapshot(snap map[string][]string) (*Registry, error) {
	r := NewRegistry()
	for roleStr, holders := range snap {
		role := Role(roleStr)
		if !role.Valid() {
			return nil, fmt.Errorf("snapshot contains unknown role %q", roleStr)
		}
		for _, addrStr := range holders {
			addr, err := token.ParseAddress(addrStr)
			if err != nil {
				return nil, fmt.Errorf("snapshot role %s: %w", roleStr, err)
			}
			r.set(role, addr, true)
		}
	}
	return r, nil
}
