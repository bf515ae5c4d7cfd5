package trigger

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ck3weight/internal/conditions"
	"ck3weight/internal/model"
	"ck3weight/internal/traits"
)

func sampleUnified() model.UnifiedModel {
	return model.UnifiedModel{
		Name:       "aggressive",
		BaseWeight: 40,
		Entries: []model.Entry{
			{Modifier: model.Modifier{Identifier: "IS_RULER", Params: conditions.Params{{Key: "yes", Value: "yes"}}, Delta: 5}, Source: model.SourceModel},
			{Modifier: model.Modifier{Identifier: "HAS_TRAIT", Params: conditions.Params{{Key: "trait_name", Value: "brave"}}, Delta: 20}, Source: model.SourceTrait, Trait: "brave"},
			{Modifier: model.Modifier{Condition: "NOT = { has_trait = craven }", Delta: -15}, Source: model.SourceTrait, Trait: "craven"},
			{Modifier: model.Modifier{Condition: "# Trait interaction: battle lust", Delta: 6}, Source: model.SourceInteraction, Kind: traits.Synergy},
		},
	}
}

func TestRenderKeepsBuildOrderAndProvenance(t *testing.T) {
	got := NewRenderer(nil, Options{}).Render(sampleUnified())

	want := Trigger{
		Model:       "aggressive",
		Weight:      56,
		Description: "Generated from unified model 'aggressive'",
		Conditions: []string{
			"is_ruler = yes",
			"has_trait = brave",
			"NOT = { has_trait = craven }",
			"# Trait interaction: battle lust",
		},
		Trait:       []string{"has_trait = brave", "NOT = { has_trait = craven }"},
		Interaction: []string{"# Trait interaction: battle lust"},
		General:     []string{"is_ruler = yes"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("trigger mismatch (-want +got):\n%s", diff)
	}
}

func TestText(t *testing.T) {
	r := NewRenderer(nil, Options{Indent: 2})
	tr := Trigger{Weight: 7, Conditions: []string{"is_ruler = yes", "NOT = { has_trait = craven }"}}

	want := strings.Join([]string{
		"ai_chance = {",
		"\t\tbase = 7",
		"\t\tmodifier = {",
		"\t\t\tadd = 10",
		"\t\t\ttrigger = {",
		"\t\t\t\tis_ruler = yes",
		"\t\t\t}",
		"\t\t}",
		"\t\tmodifier = {",
		"\t\t\tadd = -10",
		"\t\t\ttrigger = {",
		"\t\t\t\tNOT = { has_trait = craven }",
		"\t\t\t}",
		"\t\t}",
		"}",
	}, "\n")
	if diff := cmp.Diff(want, r.Text(tr)); diff != "" {
		t.Errorf("Text mismatch (-want +got):\n%s", diff)
	}
}

func TestBodyHasNoWrapperAndCustomDelta(t *testing.T) {
	r := NewRenderer(nil, Options{Delta: 25})
	got := r.Body(Trigger{Weight: 3, Conditions: []string{"NOT = { is_at_war = yes }"}})
	want := "base = 3\nmodifier = {\n\tadd = -25\n\ttrigger = {\n\t\tNOT = { is_at_war = yes }\n\t}\n}"
	if got != want {
		t.Errorf("Body =\n%s\nwant\n%s", got, want)
	}
}

func TestValidate(t *testing.T) {
	r := NewRenderer(conditions.Default(), Options{})
	tr := Trigger{
		Weight: -1,
		Conditions: []string{
			"is_ruler = yes",
			"",
			"NOT = { has_trait = craven }",
			"NOT = { dragon_rider = yes }",
			"# Trait interaction: note",
			"OR = { is_at_war = yes is_commander = yes }",
			"gold > 1000",
			"diplomacy >= 12",
			"dragon_rider = yes",
			"something weird",
		},
	}
	want := []string{
		"Weight cannot be negative",
		"Condition 2 is empty",
		"Condition 4 (NOT): Unknown condition: dragon_rider",
		"Condition 9: Unknown condition: dragon_rider",
		"Condition 10: may have invalid format: something weird",
	}
	if diff := cmp.Diff(want, r.Validate(tr)); diff != "" {
		t.Errorf("diagnostics mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateCleanTrigger(t *testing.T) {
	r := NewRenderer(nil, Options{})
	if diags := r.Validate(r.Render(sampleUnified())); len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
}
