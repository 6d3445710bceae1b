package service

import (
	"sync"

	"vapor_recovery/internal/metrics"
	"vapor_recovery/internal/models"
)

// ModeRegister is the shared record of the commanded mode.
// Every Set bumps the revision so readers can detect change without comparing modes.
type ModeRegister struct {
	mu       sync.RWMutex
	mode     models.Mode
	revision uint64
	subs     []chan struct{}
}

// NewModeRegister returns a register holding Rest at revision 0.
func NewModeRegister() *ModeRegister {
	return &ModeRegister{mode: models.ModeRest}
}

// Set commits m and wakes every subscriber. Returns the new revision.
func (r *ModeRegister) Set(m models.Mode) uint64 {
	r.mu.Lock()
	r.mode = m
	r.revision++
	rev := r.revision
	subs := r.subs
	r.mu.Unlock()

	metrics.ModeRevision.Set(float64(rev))
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return rev
}

// Get returns the last committed mode and its revision.
func (r *ModeRegister) Get() (models.Mode, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode, r.revision
}

// Mode returns only the current mode.
func (r *ModeRegister) Mode() models.Mode {
	m, _ := r.Get()
	return m
}

// Subscribe returns a channel that receives a signal after each Set.
// Signals coalesce: a reader always re-reads the register after waking.
func (r *ModeRegister) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}
