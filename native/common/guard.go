package common

import (
	"errors"
	"strings"
	"sync"
)

// ErrModulePaused is returned when a module-wide circuit breaker is engaged.
var ErrModulePaused = errors.New("module paused")

// PauseView exposes read access to module-level pause switches. The engine's
// own pause matrix is finer grained; this view is the host-level master
// switch in front of a whole module.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard rejects the call when the named module is paused.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// Pauses is a concurrency-safe PauseView backed by a set of module names.
type Pauses struct {
	mu     sync.RWMutex
	paused map[string]bool
}

// NewPauses returns an empty pause registry.
func NewPauses() *Pauses {
	return &Pauses{paused: make(map[string]bool)}
}

// SetPaused toggles the named module's master switch.
func (p *Pauses) SetPaused(module string, paused bool) {
	module = strings.TrimSpace(module)
	if p == nil || module == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused[module] = paused
}

// IsPaused implements the PauseView interface.
func (p *Pauses) IsPaused(module string) bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused[module]
}
