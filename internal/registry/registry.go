// Package registry holds the set of monitored symbols and their rolling state.
//
// One RWMutex guards both the key set and every SymbolState. Callbacks passed
// to With and View run under that lock and must not block on I/O.
package registry

import (
	"sort"
	"sync"

	"MarketWatch/internal/domain/models"
)

type Registry struct {
	mu        sync.RWMutex
	symbols   map[string]*SymbolState
	candleCap int
	depthCap  int
}

type Option func(*Registry)

func WithCandleCapacity(n int) Option { return func(r *Registry) { r.candleCap = n } }
func WithDepthCapacity(n int) Option  { return func(r *Registry) { r.depthCap = n } }

func New(opts ...Option) *Registry {
	r := &Registry{
		symbols:   make(map[string]*SymbolState),
		candleCap: DefaultCandleCapacity,
		depthCap:  DefaultDepthCapacity,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Upsert adds symbol if absent. It reports whether the symbol was added.
func (r *Registry) Upsert(symbol string) bool {
	symbol = models.NormalizeSymbol(symbol)
	if symbol == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.symbols[symbol]; ok {
		return false
	}
	r.symbols[symbol] = newSymbolState(symbol, r.candleCap, r.depthCap)
	return true
}

// Remove drops symbol and all of its history. Absent symbols are ignored.
func (r *Registry) Remove(symbol string) {
	symbol = models.NormalizeSymbol(symbol)
	r.mu.Lock()
	delete(r.symbols, symbol)
	r.mu.Unlock()
}

// Contains reports whether symbol is monitored.
func (r *Registry) Contains(symbol string) bool {
	symbol = models.NormalizeSymbol(symbol)
	r.mu.RLock()
	_, ok := r.symbols[symbol]
	r.mu.RUnlock()
	return ok
}

// Symbols returns a sorted copy of the monitored key set.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.symbols))
	for s := range r.symbols {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.symbols)
}

// With runs fn with exclusive access to the symbol's state. It returns false
// without calling fn when the symbol is not monitored.
func (r *Registry) With(symbol string, fn func(*SymbolState)) bool {
	symbol = models.NormalizeSymbol(symbol)
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.symbols[symbol]
	if !ok {
		return false
	}
	fn(st)
	return true
}

// View is the read-only counterpart of With. fn must not mutate the state.
func (r *Registry) View(symbol string, fn func(*SymbolState)) bool {
	symbol = models.NormalizeSymbol(symbol)
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.symbols[symbol]
	if !ok {
		return false
	}
	fn(st)
	return true
}

// Snapshot returns a detached copy of the symbol's state.
func (r *Registry) Snapshot(symbol string) (StateSnapshot, bool) {
	var snap StateSnapshot
	ok := r.View(symbol, func(st *SymbolState) { snap = st.snapshot() })
	return snap, ok
}
