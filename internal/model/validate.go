package model

// validate.go — strict validation of character models against the registry.

import (
	"fmt"

	"ck3weight/internal/traits"
)

// Conflict is a pair of traits that cannot be used together in one model.
// A == B for traits listed in more than one of positive/negative/opposite.
type Conflict struct {
	A, B   string
	Reason string
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Model        string
	Valid        bool
	Missing      []string
	Conflicts    []Conflict
	Warnings     []string
	TotalWeight  int
	Interactions []traits.Interaction
}

// Validate checks m against reg. Unlike Unify, unknown trait names are
// reported (as Missing) and make the model invalid.
//
// TotalWeight is base + positive trait weights - negative trait weights
// - opposite trait weights + matching interaction deltas. Own modifiers and
// trait effects are not part of it; UnifiedModel.TotalWeight covers those.
func Validate(m CharacterModel, reg *traits.Registry, interactions []traits.Interaction) ValidationResult {
	res := ValidationResult{Model: m.Name, TotalWeight: m.BaseWeight}

	referenced := unique(m.ReferencedTraits())
	for _, name := range referenced {
		if !reg.Has(name) {
			res.Missing = append(res.Missing, name)
		}
	}

	for i, a := range referenced {
		for _, b := range referenced[i+1:] {
			if !reg.Compatible(a, b) {
				res.Conflicts = append(res.Conflicts, Conflict{A: a, B: b, Reason: "opposite traits"})
			}
		}
	}
	res.Conflicts = append(res.Conflicts, overlaps(m.Positive, m.Negative, "both positive and negative")...)
	res.Conflicts = append(res.Conflicts, overlaps(m.Positive, m.Opposite, "both positive and opposite")...)
	res.Conflicts = append(res.Conflicts, overlaps(m.Negative, m.Opposite, "both negative and opposite")...)

	for _, name := range m.Positive {
		if d, ok := reg.Get(name); ok {
			res.TotalWeight += d.Weight
		}
	}
	for _, name := range append(append([]string(nil), m.Negative...), m.Opposite...) {
		if d, ok := reg.Get(name); ok {
			res.TotalWeight -= d.Weight
		}
	}

	res.Interactions = traits.Detect(interactions, m.ReferencedTraits())
	antagonistic := 0
	for _, i := range res.Interactions {
		res.TotalWeight += i.Delta
		if i.Kind == traits.Antagonism {
			antagonistic++
		}
	}

	if res.TotalWeight < 0 {
		res.Warnings = append(res.Warnings, "Total weight is negative - model may not work effectively")
	}
	if len(m.Positive) == 0 {
		res.Warnings = append(res.Warnings, "Model has no positive traits - consider adding some")
	}
	if antagonistic > 0 {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("Found %d antagonistic trait interactions that may cause conflicts", antagonistic))
	}

	res.Valid = len(res.Missing) == 0 && len(res.Conflicts) == 0
	return res
}

func unique(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// overlaps returns a self-pair conflict for each name of a that is also in b,
// in the order of a.
func overlaps(a, b []string, reason string) []Conflict {
	inB := make(map[string]bool, len(b))
	for _, n := range b {
		inB[n] = true
	}
	var out []Conflict
	for _, n := range unique(a) {
		if inB[n] {
			out = append(out, Conflict{A: n, B: n, Reason: reason})
		}
	}
	return out
}
