package statesync

import "sync"

// Effect is a reversible, read-time transformation applied to a State
// before it is sent to a viewer or consumed locally — e.g. a status buff
// that inflates a displayed stat without mutating the authoritative copy.
// Effects never mutate the State passed to Apply; they return a
// transformed clone. A is the activator type identifying who/what caused
// the effect (typically EntityId, but any comparable works).
type Effect[A any] interface {
	ID() string
	Apply(s State, activator A) State
	Activator() A
	SetActivator(activator A)
}

// Func builds a simple Effect from a plain transformation function.
func Func[A any](id string, fn func(State, A) State) *FuncEffect[A] {
	return &FuncEffect[A]{id: id, fn: fn}
}

// FuncEffect is a function-backed Effect. Activator()/SetActivator() are
// safe for concurrent use independent of Apply.
type FuncEffect[A any] struct {
	mu        sync.RWMutex
	id        string
	fn        func(State, A) State
	activator A
}

func (e *FuncEffect[A]) ID() string { return e.id }

func (e *FuncEffect[A]) Apply(s State, activator A) State {
	return e.fn(s, activator)
}

func (e *FuncEffect[A]) Activator() A {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activator
}

func (e *FuncEffect[A]) SetActivator(activator A) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activator = activator
}

// DuplicateEffectError reports an attempt to register an effect ID that is
// already present on an EffectChain.
type DuplicateEffectError struct {
	EffectId string
}

func (e *DuplicateEffectError) Error() string {
	return "statesync: duplicate effect id " + e.EffectId
}

// EffectChain holds the ordered, read-time effects active on one entity.
// Add/Remove/Apply are all safe for concurrent use; Apply takes a
// snapshot of the chain under lock then runs outside it, so a long-running
// effect function never blocks registration.
type EffectChain[A any] struct {
	mu      sync.RWMutex
	effects []Effect[A]
}

// NewEffectChain creates an empty chain.
func NewEffectChain[A any]() *EffectChain[A] {
	return &EffectChain[A]{}
}

// Add appends e to the chain, returning a *DuplicateEffectError if an
// effect with the same ID is already present.
func (c *EffectChain[A]) Add(e Effect[A]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.effects {
		if existing.ID() == e.ID() {
			return &DuplicateEffectError{EffectId: e.ID()}
		}
	}
	c.effects = append(c.effects, e)
	return nil
}

// Remove drops the effect with the given ID, reporting whether it existed.
func (c *EffectChain[A]) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.effects {
		if e.ID() == id {
			c.effects = append(c.effects[:i], c.effects[i+1:]...)
			return true
		}
	}
	return false
}

// Has reports whether id is registered.
func (c *EffectChain[A]) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.effects {
		if e.ID() == id {
			return true
		}
	}
	return false
}

// Clear removes every effect.
func (c *EffectChain[A]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.effects = nil
}

// Len returns the number of active effects.
func (c *EffectChain[A]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.effects)
}

// Apply runs every effect in registration order against s, returning the
// transformed result. s itself is never mutated.
func (c *EffectChain[A]) Apply(s State) State {
	c.mu.RLock()
	effects := make([]Effect[A], len(c.effects))
	copy(effects, c.effects)
	c.mu.RUnlock()

	result := s
	for _, e := range effects {
		result = e.Apply(result, e.Activator())
	}
	return result
}
