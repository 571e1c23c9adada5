package guard

// PauseSwitch is the single global flag gating all balance-mutating transfer
// paths. Setting it while already set is not an error at this layer; the
// transfer gate simply checks the flag.
type PauseSwitch struct {
	paused bool
}

func NewPauseSwitch() *PauseSwitch {
	return &PauseSwitch{}
}

func (p *PauseSwitch) Paused() bool {
	return p.paused
}

// Pause sets the flag. Returns true if the flag changed.
func (p *PauseSwitch) Pause() bool {
	changed := !p.paused
	p.paused = true
	return changed
}

// Unpause clears the flag. Returns true if the flag changed.
func (p *PauseSwitch) Unpause() bool {
	changed := p.paused
	p.paused = false
	return changed
}

// Restore sets the flag directly (snapshot load).
func (p *PauseSwitch) Restore(paused bool) {
	p.paused = paused
}
