package model

// engine.go — cached unified models with explicit invalidation.

import (
	"errors"
	"fmt"
	"sort"

	"ck3weight/internal/traits"
)

// ErrUnknownModel is returned when a name has no character model.
var ErrUnknownModel = errors.New("unknown model")

// CacheInfo describes the engine's cache state.
type CacheInfo struct {
	Valid        bool
	Models       int
	Interactions int
	Builds       int
}

// Engine owns the character models, the trait registry and the interaction
// set, and hands out unified models from a cache. The cache is either nil
// (invalid) or a complete map built from the current inputs; it is replaced
// wholesale and never patched. An Engine is not safe for concurrent use.
type Engine struct {
	registry     *traits.Registry
	interactions []traits.Interaction
	models       map[string]CharacterModel
	cache        map[string]UnifiedModel
	builds       int
}

// NewEngine returns an engine over models. The interaction set starts as a
// copy of the registry's interactions.
func NewEngine(reg *traits.Registry, models []CharacterModel) *Engine {
	e := &Engine{
		registry:     reg,
		interactions: reg.Interactions(),
		models:       make(map[string]CharacterModel, len(models)),
	}
	for _, m := range models {
		e.models[m.Name] = m
	}
	return e
}

// Registry returns the trait registry.
func (e *Engine) Registry() *traits.Registry { return e.registry }

// Names returns every model name, sorted.
func (e *Engine) Names() []string {
	names := make([]string, 0, len(e.models))
	for n := range e.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Character returns the character model named name.
func (e *Engine) Character(name string) (CharacterModel, bool) {
	m, ok := e.models[name]
	return m, ok
}

// Characters returns every character model sorted by name.
func (e *Engine) Characters() []CharacterModel {
	out := make([]CharacterModel, 0, len(e.models))
	for _, n := range e.Names() {
		out = append(out, e.models[n])
	}
	return out
}

// Interactions returns a copy of the current interaction set.
func (e *Engine) Interactions() []traits.Interaction {
	return append([]traits.Interaction(nil), e.interactions...)
}

// AddInteraction appends i to the interaction set and invalidates the cache.
// The previous set is left untouched so earlier Interactions results stay
// valid.
func (e *Engine) AddInteraction(i traits.Interaction) {
	next := make([]traits.Interaction, len(e.interactions), len(e.interactions)+1)
	copy(next, e.interactions)
	e.interactions = append(next, i)
	e.Invalidate()
}

// Invalidate drops the cache; the next lookup rebuilds it.
func (e *Engine) Invalidate() { e.cache = nil }

// CacheValid reports whether a built cache is present.
func (e *Engine) CacheValid() bool { return e.cache != nil }

// CacheInfo reports cache state and build count.
func (e *Engine) CacheInfo() CacheInfo {
	return CacheInfo{
		Valid:        e.cache != nil,
		Models:       len(e.cache),
		Interactions: len(e.interactions),
		Builds:       e.builds,
	}
}

// Rebuild builds the cache if it is invalid, or unconditionally when force
// is set.
func (e *Engine) Rebuild(force bool) {
	if e.cache != nil && !force {
		return
	}
	next := make(map[string]UnifiedModel, len(e.models))
	for name, m := range e.models {
		next[name] = Unify(m, e.registry, e.interactions)
	}
	e.cache = next
	e.builds++
}

// Unified returns the unified model for name.
func (e *Engine) Unified(name string) (UnifiedModel, error) {
	e.Rebuild(false)
	u, ok := e.cache[name]
	if !ok {
		return UnifiedModel{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return u, nil
}

// Validate validates the model named name against the current registry and
// interaction set.
func (e *Engine) Validate(name string) (ValidationResult, error) {
	m, ok := e.models[name]
	if !ok {
		return ValidationResult{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return Validate(m, e.registry, e.interactions), nil
}

// ValidateAll validates every model, sorted by name.
func (e *Engine) ValidateAll() []ValidationResult {
	out := make([]ValidationResult, 0, len(e.models))
	for _, n := range e.Names() {
		out = append(out, Validate(e.models[n], e.registry, e.interactions))
	}
	return out
}
