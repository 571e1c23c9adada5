package token

import (
	"github.com/holiman/uint256"
)

// Info holds the immutable token metadata set at initialization.
type Info struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// State is the full mutable token state. Absent map keys read as zero, so the
// state is logically defined for every address from the start. All maps store
// uint256.Int by value; accessors hand out copies so callers can never alias
// internal state.
//
// State is not safe for concurrent use. It is owned by the single-threaded
// core engine; everything else reads projections.
type State struct {
	info        Info
	initialized bool
	generation  uint64

	totalSupply uint256.Int
	balances    map[Address]uint256.Int
	allowances  map[Address]map[Address]uint256.Int
	frozen      map[Address]uint256.Int
	nonces      map[Address]uint64
}

func NewState() *State {
	return &State{
		balances:   make(map[Address]uint256.Int),
		allowances: make(map[Address]map[Address]uint256.Int),
		frozen:     make(map[Address]uint256.Int),
		nonces:     make(map[Address]uint64),
	}
}

// Initialize sets the token metadata exactly once.
func (s *State) Initialize(info Info) error {
	if s.initialized {
		return ErrAlreadyInitialized
	}
	s.info = info
	s.initialized = true
	s.generation = 1
	return nil
}

// Reinitialize advances the initialization generation. A new logic module may
// run its one-time migration hook only by presenting the next generation
// number, so each generation runs at most once.
func (s *State) Reinitialize(generation uint64) error {
	if !s.initialized {
		return ErrNotInitialized
	}
	if generation != s.generation+1 {
		return ErrAlreadyInitialized
	}
	s.generation = generation
	return nil
}

func (s *State) Initialized() bool { return s.initialized }
func (s *State) Generation() uint64 {
	return s.generation
}
func (s *State) Info() Info { return s.info }

// --- Read views ---

func (s *State) TotalSupply() *uint256.Int {
	return s.totalSupply.Clone()
}

func (s *State) BalanceOf(addr Address) *uint256.Int {
	b := s.balances[addr]
	return b.Clone()
}

func (s *State) Allowance(owner, spender Address) *uint256.Int {
	a := s.allowances[owner][spender]
	return a.Clone()
}

func (s *State) FrozenOf(addr Address) *uint256.Int {
	f := s.frozen[addr]
	return f.Clone()
}

func (s *State) Nonce(owner Address) uint64 {
	return s.nonces[owner]
}

// --- Mutators (package-private: only the Ledger writes state) ---

func (s *State) credit(addr Address, amount *uint256.Int) {
	b := s.balances[addr]
	b.Add(&b, amount)
	s.balances[addr] = b
}

// debit assumes the caller has already checked sufficiency; a short balance
// here is a broken precondition, not a user error.
func (s *State) debit(addr Address, amount *uint256.Int) {
	b := s.balances[addr]
	if b.Lt(amount) {
		panic("token: debit below zero, precondition not checked")
	}
	b.Sub(&b, amount)
	if b.IsZero() {
		delete(s.balances, addr)
	} else {
		s.balances[addr] = b
	}
}

func (s *State) setAllowance(owner, spender Address, value *uint256.Int) {
	inner, ok := s.allowances[owner]
	if !ok {
		inner = make(map[Address]uint256.Int)
		s.allowances[owner] = inner
	}
	if value.IsZero() {
		delete(inner, spender)
		if len(inner) == 0 {
			delete(s.allowances, owner)
		}
		return
	}
	inner[spender] = *value.Clone()
}

func (s *State) addFrozen(addr Address, amount *uint256.Int) {
	f := s.frozen[addr]
	f.Add(&f, amount)
	s.frozen[addr] = f
}

func (s *State) subFrozen(addr Address, amount *uint256.Int) {
	f := s.frozen[addr]
	if f.Lt(amount) {
		panic("token: frozen underflow, precondition not checked")
	}
	f.Sub(&f, amount)
	if f.IsZero() {
		delete(s.frozen, addr)
	} else {
		s.frozen[addr] = f
	}
}

func (s *State) bumpNonce(owner Address) {
	s.nonces[owner]++
}

// --- Snapshot / restore ---

// Snapshot is the serializable form of State for persistence. Amounts are
// decimal strings so Postgres NUMERIC and JSON both round-trip them exactly.
type Snapshot struct {
	Info        Info                         `json:"info"`
	Initialized bool                         `json:"initialized"`
	Generation  uint64                       `json:"generation"`
	TotalSupply string                       `json:"total_supply"`
	Balances    map[string]string            `json:"balances"`
	Allowances  map[string]map[string]string `json:"allowances"`
	Frozen      map[string]string            `json:"frozen"`
	Nonces      map[string]uint64            `json:"nonces"`
}

func (s *State) Snapshot() *Snapshot {
	snap := &Snapshot{
		Info:        s.info,
		Initialized: s.initialized,
		Generation:  s.generation,
		TotalSupply: s.totalSupply.Dec(),
		Balances:    make(map[string]string, len(s.balances)),
		Allowances:  make(map[string]map[string]string, len(s.allowances)),
		Frozen:      make(map[string]string, len(s.frozen)),
		Nonces:      make(map[string]uint64, len(s.nonces)),
	}
	for addr, b := range s.balances {
		snap.Balances[addr.String()] = b.Dec()
	}
	for owner, inner := range s.allowances {
		m := make(map[string]string, len(inner))
		for spender, a := range inner {
			m[spender.String()] = a.Dec()
		}
		snap.Allowances[owner.String()] = m
	}
	for addr, f := range s.frozen {
		snap.Frozen[addr.String()] = f.Dec()
	}
	for addr, n := range s.nonces {
		snap.Nonces[addr.String()] = n
	}
	return snap
}

// RestoreSnapshot rebuilds a State from a snapshot. Used on warm restart and
// after an implementation swap: the new logic module loads the old state.
func RestoreSnapshot(snap *Snapshot) (*State, error) {
	s := NewState()
	s.info = snap.Info
	s.initialized = snap.Initialized
	s.generation = snap.Generation

	supply, err := uint256.FromDecimal(snap.TotalSupply)
	if err != nil {
		return nil, err
	}
	s.totalSupply = *supply

	for addrStr, dec := range snap.Balances {
		addr, err := ParseAddress(addrStr)
		if err != nil {
			return nil, err
		}
		v, err := uint256.FromDecimal(dec)
		if err != nil {
			return nil, err
		}
		s.balances[addr] = *v
	}
	for ownerStr, inner := range snap.Allowances {
		owner, err := ParseAddress(ownerStr)
		if err != nil {
			return nil, err
		}
		for spenderStr, dec := range inner {
			spender, err := ParseAddress(spenderStr)
			if err != nil {
				return nil, err
			}
			v, err := uint256.FromDecimal(dec)
			if err != nil {
				return nil, err
			}
			s.setAllowance(owner, spender, v)
		}
	}
	for addrStr, dec := range snap.Frozen {
		addr, err := ParseAddress(addrStr)
		if err != nil {
			return nil, err
		}
		v, err := uint256.FromDecimal(dec)
		if err != nil {
			return nil, err
		}
		s.frozen[addr] = *v
	}
	for addrStr, n := range snap.Nonces {
		addr, err := ParseAddress(addrStr)
		if err != nil {
			return nil, err
		}
		s.nonces[addr] = n
	}
	return s, nil
}
