// Copyright 2025 Certen Protocol
//
// Registry - Central Registry for Chips and Programs
// Adapted from the strategy registry's RWMutex-guarded map-of-maps shape
// and sync.Once-guarded global singleton, generalized from attestation
// scheme/chain-execution strategy lookup to content-addressed Chip and
// Program lookup with a latest-wins name index on top.
package registry

import (
	"sync"

	"github.com/LogLine-Foundation/UBL/internal/chip"
	"github.com/LogLine-Foundation/UBL/internal/kernelerr"
	"github.com/LogLine-Foundation/UBL/internal/program"
)

// Registry manages the Chip and Program hash stores plus their name
// indexes. Registration is idempotent on hash; registering an existing
// name under a new hash is latest-wins, but the old hash stays retrievable.
type Registry struct {
	mu sync.RWMutex

	chipsByHash map[string]*chip.Chip
	chipNames   map[string]string // name -> chip_hash (latest)

	programsByHash map[string]*program.Program
	programNames   map[string]string // name -> program_hash (latest)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		chipsByHash:    make(map[string]*chip.Chip),
		chipNames:      make(map[string]string),
		programsByHash: make(map[string]*program.Program),
		programNames:   make(map[string]string),
	}
}

// RegisterChip adds a chip by hash (no-op if the hash already exists) and
// updates the name index to point at it.
func (r *Registry) RegisterChip(c *chip.Chip) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.chipsByHash[c.ChipHash]; !exists {
		r.chipsByHash[c.ChipHash] = c
	}
	if c.Name != "" {
		r.chipNames[c.Name] = c.ChipHash
	}
}

// RegisterProgram adds a program by hash and updates its name index.
func (r *Registry) RegisterProgram(p *program.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.programsByHash[p.ProgramHash]; !exists {
		r.programsByHash[p.ProgramHash] = p
	}
	if p.Name != "" {
		r.programNames[p.Name] = p.ProgramHash
	}
}

// GetChip resolves a hash or bare name to a Chip.
func (r *Registry) GetChip(ref string) (*chip.Chip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.chipsByHash[ref]; ok {
		return c, nil
	}
	if h, ok := r.chipNames[ref]; ok {
		if c, ok := r.chipsByHash[h]; ok {
			return c, nil
		}
	}
	return nil, kernelerr.New(kernelerr.UnknownRef, "unknown chip reference %q", ref)
}

// GetProgram resolves a hash or bare name to a Program.
func (r *Registry) GetProgram(ref string) (*program.Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.programsByHash[ref]; ok {
		return p, nil
	}
	if h, ok := r.programNames[ref]; ok {
		if p, ok := r.programsByHash[h]; ok {
			return p, nil
		}
	}
	return nil, kernelerr.New(kernelerr.UnknownRef, "unknown program reference %q", ref)
}

// ResolveChipName resolves "CHIP:<name>" against the *current* name index
// — per the design note, this lookup is re-done fresh on every execute, so
// a later re-registration of the same name is observed immediately.
func (r *Registry) ResolveChipName(name string) (*chip.Chip, error) {
	r.mu.RLock()
	h, ok := r.chipNames[name]
	r.mu.RUnlock()
	if !ok {
		return nil, kernelerr.New(kernelerr.UnknownRef, "no chip registered under name %q", name)
	}
	return r.GetChip(h)
}

// Entry is the {hash,name} pair returned by the list endpoints.
type Entry struct {
	Hash string
	Name string
}

// ListChips returns every registered chip hash, with its current name
// if any index still points at it as the latest.
func (r *Registry) ListChips() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	latestName := make(map[string]string, len(r.chipNames))
	for name, h := range r.chipNames {
		latestName[h] = name
	}
	out := make([]Entry, 0, len(r.chipsByHash))
	for h := range r.chipsByHash {
		out = append(out, Entry{Hash: h, Name: latestName[h]})
	}
	return out
}

// ListPrograms mirrors ListChips for programs.
func (r *Registry) ListPrograms() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	latestName := make(map[string]string, len(r.programNames))
	for name, h := range r.programNames {
		latestName[h] = name
	}
	out := make([]Entry, 0, len(r.programsByHash))
	for h := range r.programsByHash {
		out = append(out, Entry{Hash: h, Name: latestName[h]})
	}
	return out
}

var (
	global     *Registry
	globalOnce sync.Once
)

// Global returns the process-wide registry singleton, mirroring the
// strategy package's GetGlobalRegistry pattern.
func Global() *Registry {
	globalOnce.Do(func() { global = New() })
	return global
}
