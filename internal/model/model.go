package model

// model.go — character models and their unification into flat weight lists.
//
// A CharacterModel references traits by name. Unify folds a model together
// with the trait registry and the interaction set into a UnifiedModel: a base
// weight plus an ordered list of weighted conditions. Build order is fixed:
//
//   1. the model's own modifiers
//   2. positive traits in source order (HAS_TRAIT, then the trait's effects)
//   3. negative traits (NOT = { has_trait = X }, delta -weight)
//   4. opposite traits (same shape as negative)
//   5. detected interactions, in registration order
//
// Unknown trait names are skipped here; Validate reports them.

import (
	"strings"

	"ck3weight/internal/conditions"
	"ck3weight/internal/traits"
)

// HasTraitIdentifier is the condition identifier used for positive traits.
const HasTraitIdentifier = "HAS_TRAIT"

// ---------------------------------------------------------------------------
// Definitions
// ---------------------------------------------------------------------------

// Modifier is a raw weight modifier. Either Identifier (with Params) or
// Condition is set.
type Modifier struct {
	Identifier string
	Params     conditions.Params
	Condition  string
	Delta      int
}

// CharacterModel is a named weighting definition as loaded from data files.
type CharacterModel struct {
	Name        string
	Description string
	BaseWeight  int
	Positive    []string
	Negative    []string
	Opposite    []string
	Modifiers   []Modifier
}

// ReferencedTraits returns positive, negative and opposite names in that
// order, without removing duplicates.
func (m CharacterModel) ReferencedTraits() []string {
	out := make([]string, 0, len(m.Positive)+len(m.Negative)+len(m.Opposite))
	out = append(out, m.Positive...)
	out = append(out, m.Negative...)
	out = append(out, m.Opposite...)
	return out
}

// ---------------------------------------------------------------------------
// Unified output
// ---------------------------------------------------------------------------

// Source records where a unified entry came from.
type Source int

const (
	// SourceModel marks the model's own modifiers.
	SourceModel Source = iota
	// SourceTrait marks trait conditions and trait effect modifiers.
	SourceTrait
	// SourceInteraction marks entries produced by trait interactions.
	SourceInteraction
)

func (s Source) String() string {
	switch s {
	case SourceModel:
		return "model"
	case SourceTrait:
		return "trait"
	case SourceInteraction:
		return "interaction"
	}
	return "unknown"
}

// Entry is one weighted condition of a unified model.
type Entry struct {
	Modifier
	Source Source
	// Trait is set for SourceTrait entries.
	Trait string
	// Kind is set for SourceInteraction entries.
	Kind traits.InteractionKind
}

// UnifiedModel is the flattened composition of a model with its traits and
// applicable interactions. Values are never modified after Unify returns.
type UnifiedModel struct {
	Name        string
	Description string
	BaseWeight  int
	Entries     []Entry
}

// TotalWeight is the base weight plus every entry delta.
func (u UnifiedModel) TotalWeight() int {
	total := u.BaseWeight
	for _, e := range u.Entries {
		total += e.Delta
	}
	return total
}

// NegatedTrait returns the condition text that is true when a character
// lacks trait.
func NegatedTrait(trait string) string {
	return "NOT = { has_trait = " + trait + " }"
}

// InteractionCondition returns the condition text for an interaction entry.
// Conditional interactions with guard conditions join them with spaces;
// everything else becomes a script comment naming the interaction.
func InteractionCondition(i traits.Interaction) string {
	if i.Kind == traits.Conditional && len(i.Conditions) > 0 {
		return strings.Join(i.Conditions, " ")
	}
	return "# Trait interaction: " + i.Description
}

// Unify builds the unified model for m. It is pure: equal inputs give equal
// outputs, and nothing in the returned value aliases m.
func Unify(m CharacterModel, reg *traits.Registry, interactions []traits.Interaction) UnifiedModel {
	u := UnifiedModel{
		Name:        m.Name,
		Description: m.Description,
		BaseWeight:  m.BaseWeight,
	}

	for _, mod := range m.Modifiers {
		mod.Params = append(conditions.Params(nil), mod.Params...)
		u.Entries = append(u.Entries, Entry{Modifier: mod, Source: SourceModel})
	}

	for _, name := range m.Positive {
		def, ok := reg.Get(name)
		if !ok {
			continue
		}
		u.Entries = append(u.Entries, Entry{
			Modifier: Modifier{
				Identifier: HasTraitIdentifier,
				Params:     conditions.Params{{Key: "trait_name", Value: name}},
				Delta:      def.Weight,
			},
			Source: SourceTrait,
			Trait:  name,
		})
		for _, eff := range def.Effects {
			u.Entries = append(u.Entries, Entry{
				Modifier: Modifier{Condition: eff.Condition, Delta: eff.Delta},
				Source:   SourceTrait,
				Trait:    name,
			})
		}
	}

	for _, list := range [][]string{m.Negative, m.Opposite} {
		for _, name := range list {
			def, ok := reg.Get(name)
			if !ok {
				continue
			}
			u.Entries = append(u.Entries, Entry{
				Modifier: Modifier{Condition: NegatedTrait(name), Delta: -def.Weight},
				Source:   SourceTrait,
				Trait:    name,
			})
		}
	}

	for _, i := range traits.Detect(interactions, m.ReferencedTraits()) {
		u.Entries = append(u.Entries, Entry{
			Modifier: Modifier{Condition: InteractionCondition(i), Delta: i.Delta},
			Source:   SourceInteraction,
			Kind:     i.Kind,
		})
	}
	return u
}
