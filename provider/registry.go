package provider

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Constructor builds an unininitialized provider instance. raw is the active
// provider configuration payload from the database, or nil when none exists;
// constructors fall back to their captured settings in that case.
type Constructor[T Base] func(ctx context.Context, raw json.RawMessage) (T, error)

// Registry maps provider names to constructors for one capability.
// Registration is last-write-wins so a test or a composition root can
// override an entry.
type Registry[T Base] struct {
	capability Capability

	mu    sync.RWMutex
	ctors map[string]Constructor[T]
}

// NewRegistry builds an empty registry for the capability.
func NewRegistry[T Base](capability Capability) *Registry[T] {
	return &Registry[T]{
		capability: capability,
		ctors:      make(map[string]Constructor[T]),
	}
}

// Register binds name to ctor, replacing any previous binding.
func (r *Registry[T]) Register(name string, ctor Constructor[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// Get returns the constructor bound to name.
func (r *Registry[T]) Get(name string) (Constructor[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.ctors[name]
	return ctor, ok
}

// Names lists the registered provider names, sorted.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registries groups one registry per capability.
type Registries struct {
	Trading    *Registry[TradingProvider]
	Price      *Registry[PriceProvider]
	Settlement *Registry[SettlementProvider]
	Swap       *Registry[SwapProvider]
	Auth       *Registry[AuthProvider]
	Wallet     *Registry[WalletProvider]
}

// NewRegistries builds an empty registry set.
func NewRegistries() *Registries {
	return &Registries{
		Trading:    NewRegistry[TradingProvider](CapabilityTrading),
		Price:      NewRegistry[PriceProvider](CapabilityPrice),
		Settlement: NewRegistry[SettlementProvider](CapabilitySettlement),
		Swap:       NewRegistry[SwapProvider](CapabilitySwap),
		Auth:       NewRegistry[AuthProvider](CapabilityAuth),
		Wallet:     NewRegistry[WalletProvider](CapabilityWallet),
	}
}
