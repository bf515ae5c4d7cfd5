// Package traits holds the trait registry: reusable weight contributors with
// their opposites and effect modifiers, plus the multi-trait interaction rules.
//
// A Registry is built once per run from loaded definitions and is read-only
// afterwards. Opposite declarations are not assumed to be symmetric in the
// source data; compatibility is always checked in both directions.
package traits

import (
	"fmt"
	"sort"
)

// InteractionKind classifies a trait interaction.
type InteractionKind string

const (
	Synergy     InteractionKind = "synergy"
	Antagonism  InteractionKind = "antagonism"
	Conditional InteractionKind = "conditional"
)

// ParseInteractionKind maps a data-file string onto an InteractionKind.
// An empty string defaults to Synergy.
func ParseInteractionKind(s string) (InteractionKind, error) {
	switch InteractionKind(s) {
	case "":
		return Synergy, nil
	case Synergy, Antagonism, Conditional:
		return InteractionKind(s), nil
	}
	return "", fmt.Errorf("unknown interaction type %q", s)
}

// EffectModifier is a condition text with a weight delta contributed by a
// trait when it is used as a positive trait.
type EffectModifier struct {
	Condition string
	Delta     int
}

// Definition is one named trait.
type Definition struct {
	Name        string
	Description string
	Weight      int
	Opposites   []string
	Effects     []EffectModifier
}

// Interaction fires when every trait in Traits is present in the set under
// consideration. Order of Traits is irrelevant for matching.
type Interaction struct {
	Traits      []string
	Kind        InteractionKind
	Delta       int
	Description string
	// Conditions are extra guard texts; only meaningful for Conditional.
	Conditions []string
}

// Matches reports whether every trait of the combination is in set.
// An empty combination never matches.
func (i Interaction) Matches(set map[string]bool) bool {
	if len(i.Traits) == 0 {
		return false
	}
	for _, t := range i.Traits {
		if !set[t] {
			return false
		}
	}
	return true
}

// Registry is an immutable trait lookup table plus interaction list.
type Registry struct {
	traits       map[string]Definition
	interactions []Interaction
}

// NewRegistry builds a registry. When two definitions share a name the later
// one wins, matching the loader's last-loaded-wins behaviour.
func NewRegistry(defs []Definition, interactions []Interaction) *Registry {
	r := &Registry{
		traits:       make(map[string]Definition, len(defs)),
		interactions: append([]Interaction(nil), interactions...),
	}
	for _, d := range defs {
		r.traits[d.Name] = d
	}
	return r
}

// Get returns the trait named name.
func (r *Registry) Get(name string) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	d, ok := r.traits[name]
	return d, ok
}

// Has reports whether name is a registered trait.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Len returns the number of registered traits.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.traits)
}

// Names returns all trait names sorted alphabetically.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.traits))
	for n := range r.traits {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Opposites returns the opposites declared by name itself.
func (r *Registry) Opposites(name string) []string {
	d, ok := r.Get(name)
	if !ok {
		return nil
	}
	return d.Opposites
}

// Compatible reports whether a and b may be held together. Unknown traits are
// compatible with everything. The check is made in both directions because
// data files may declare a→b without b→a.
func (r *Registry) Compatible(a, b string) bool {
	da, okA := r.Get(a)
	db, okB := r.Get(b)
	if !okA || !okB {
		return true
	}
	return !contains(da.Opposites, b) && !contains(db.Opposites, a)
}

// Interactions returns a copy of the registered interactions.
func (r *Registry) Interactions() []Interaction {
	if r == nil {
		return nil
	}
	return append([]Interaction(nil), r.interactions...)
}

// Detect returns the registered interactions whose combination is a subset
// of names, in registration order.
func (r *Registry) Detect(names []string) []Interaction {
	return Detect(r.Interactions(), names)
}

// Detect returns the interactions from set whose full combination is a subset
// of names, preserving the order of set.
func Detect(set []Interaction, names []string) []Interaction {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	var out []Interaction
	for _, i := range set {
		if i.Matches(present) {
			out = append(out, i)
		}
	}
	return out
}

// InteractionWeight sums the deltas of every interaction in set that matches names.
func InteractionWeight(set []Interaction, names []string) int {
	total := 0
	for _, i := range Detect(set, names) {
		total += i.Delta
	}
	return total
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
