package model

// weights.go — per-model weight breakdowns and trait usage statistics.

import (
	"sort"

	"ck3weight/internal/traits"
)

// TraitWeight is one trait row of a breakdown. Weight carries its sign:
// negative and opposite traits are reported as negative numbers.
type TraitWeight struct {
	Name        string
	Description string
	Weight      int
}

// Contribution is one non-trait row of a breakdown.
type Contribution struct {
	Label  string
	Delta  int
	Source Source
}

// WeightBreakdown explains how a model's total weight is made up.
type WeightBreakdown struct {
	Model       string
	Description string
	Base        int
	Positive    []TraitWeight
	Negative    []TraitWeight
	Opposite    []TraitWeight
	// Modifiers holds own modifiers, trait effects and interactions in
	// build order.
	Modifiers     []Contribution
	TraitTotal    int
	ModifierTotal int
	Total         int
}

// Breakdown computes the weight breakdown of m. Total equals the unified
// model's TotalWeight.
func Breakdown(m CharacterModel, reg *traits.Registry, interactions []traits.Interaction) WeightBreakdown {
	b := WeightBreakdown{Model: m.Name, Description: m.Description, Base: m.BaseWeight}

	rows := func(names []string, sign int) []TraitWeight {
		var out []TraitWeight
		for _, n := range names {
			d, ok := reg.Get(n)
			if !ok {
				continue
			}
			out = append(out, TraitWeight{Name: n, Description: d.Description, Weight: sign * d.Weight})
			b.TraitTotal += sign * d.Weight
		}
		return out
	}
	b.Positive = rows(m.Positive, 1)
	b.Negative = rows(m.Negative, -1)
	b.Opposite = rows(m.Opposite, -1)

	u := Unify(m, reg, interactions)
	for _, e := range u.Entries {
		if isTraitRow(e) {
			continue
		}
		b.Modifiers = append(b.Modifiers, Contribution{Label: label(e.Modifier), Delta: e.Delta, Source: e.Source})
		b.ModifierTotal += e.Delta
	}
	b.Total = b.Base + b.TraitTotal + b.ModifierTotal
	return b
}

func isTraitRow(e Entry) bool {
	if e.Source != SourceTrait {
		return false
	}
	return e.Identifier == HasTraitIdentifier || e.Condition == NegatedTrait(e.Trait)
}

func label(m Modifier) string {
	if m.Identifier == "" {
		return m.Condition
	}
	if len(m.Params) == 0 {
		return m.Identifier
	}
	return m.Identifier + " (" + m.Params.String() + ")"
}

// Usage counts how often a trait is referenced in each role.
type Usage struct {
	Positive int
	Negative int
	Opposite int
}

// Total is the sum over all roles.
func (u Usage) Total() int { return u.Positive + u.Negative + u.Opposite }

// UsageStats summarises trait references across a set of models.
type UsageStats struct {
	Traits  map[string]Usage
	Used    []string
	Unused  []string
	Unknown []string
}

// TraitUsage counts trait references across models. Used and Unused are
// partitions of the registry; Unknown lists referenced names the registry
// does not define. All lists are sorted.
func TraitUsage(models []CharacterModel, reg *traits.Registry) UsageStats {
	stats := UsageStats{Traits: map[string]Usage{}}
	for _, m := range models {
		for _, n := range m.Positive {
			u := stats.Traits[n]
			u.Positive++
			stats.Traits[n] = u
		}
		for _, n := range m.Negative {
			u := stats.Traits[n]
			u.Negative++
			stats.Traits[n] = u
		}
		for _, n := range m.Opposite {
			u := stats.Traits[n]
			u.Opposite++
			stats.Traits[n] = u
		}
	}

	for _, n := range reg.Names() {
		if stats.Traits[n].Total() > 0 {
			stats.Used = append(stats.Used, n)
		} else {
			stats.Unused = append(stats.Unused, n)
		}
	}
	for n := range stats.Traits {
		if !reg.Has(n) {
			stats.Unknown = append(stats.Unknown, n)
		}
	}
	sort.Strings(stats.Unknown)
	return stats
}
