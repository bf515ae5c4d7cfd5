// Package trigger turns unified models into ai_chance script blocks and
// checks the generated text for obvious mistakes.
package trigger

import (
	"fmt"
	"regexp"
	"strings"

	"ck3weight/internal/conditions"
	"ck3weight/internal/model"
)

// DefaultDelta is the magnitude of the add = ±N inside each modifier block.
const DefaultDelta = 10

// DefaultIndent is the number of tabs before each line of the block body.
const DefaultIndent = 1

const negationPrefix = "NOT = {"

// keywords mark a condition as plausible script even when its name is not a
// catalog identifier.
var keywords = []string{"has_trait", "has_claim_on", "wealth", "prestige", "gold"}

var booleanBlocks = []string{"AND = {", "OR = {", "NOR = {", "NAND = {", "NOT = {"}

// "name op value" with the script's comparison operators.
var comparison = regexp.MustCompile(`^([A-Za-z_][\w.:]*)\s*(<=|>=|!=|=|<|>)\s*(.+)$`)

// Trigger is the rendered form of a unified model.
type Trigger struct {
	Model       string
	Weight      int
	Description string
	// Conditions are in build order. The three lists below split the same
	// texts by where they came from.
	Conditions  []string
	Trait       []string
	Interaction []string
	General     []string
}

// Options configure a Renderer. Zero values select the defaults.
type Options struct {
	Indent int
	Delta  int
}

// Renderer renders unified models using a condition catalog for identifier
// modifiers.
type Renderer struct {
	catalog *conditions.Catalog
	indent  int
	delta   int
}

// NewRenderer returns a renderer. A nil catalog means conditions.Default().
func NewRenderer(cat *conditions.Catalog, opts Options) *Renderer {
	if cat == nil {
		cat = conditions.Default()
	}
	r := &Renderer{catalog: cat, indent: opts.Indent, delta: opts.Delta}
	if r.indent <= 0 {
		r.indent = DefaultIndent
	}
	if r.delta == 0 {
		r.delta = DefaultDelta
	}
	return r
}

// Render builds the trigger for u. Weight is the unified model's total.
func (r *Renderer) Render(u model.UnifiedModel) Trigger {
	t := Trigger{
		Model:       u.Name,
		Weight:      u.TotalWeight(),
		Description: fmt.Sprintf("Generated from unified model '%s'", u.Name),
	}
	for _, e := range u.Entries {
		cond := e.Condition
		if e.Identifier != "" {
			cond = r.catalog.Render(e.Identifier, e.Params)
		}
		t.Conditions = append(t.Conditions, cond)
		switch e.Source {
		case model.SourceTrait:
			t.Trait = append(t.Trait, cond)
		case model.SourceInteraction:
			t.Interaction = append(t.Interaction, cond)
		default:
			t.General = append(t.General, cond)
		}
	}
	return t
}

// IsNegated reports whether cond is wrapped in NOT = { ... }.
func IsNegated(cond string) bool {
	return strings.HasPrefix(strings.TrimSpace(cond), negationPrefix)
}

// Text renders the complete ai_chance block.
func (r *Renderer) Text(t Trigger) string {
	lines := []string{"ai_chance = {"}
	lines = append(lines, r.body(t, strings.Repeat("\t", r.indent))...)
	lines = append(lines, "}")
	return strings.Join(lines, "\n")
}

// Body renders the block contents without the ai_chance wrapper and with no
// leading indentation, for insertion inside an existing block.
func (r *Renderer) Body(t Trigger) string {
	return strings.Join(r.body(t, ""), "\n")
}

func (r *Renderer) body(t Trigger, indent string) []string {
	lines := []string{fmt.Sprintf("%sbase = %d", indent, t.Weight)}
	for _, cond := range t.Conditions {
		add := r.delta
		if IsNegated(cond) {
			add = -r.delta
		}
		lines = append(lines,
			indent+"modifier = {",
			fmt.Sprintf("%s\tadd = %d", indent, add),
			indent+"\ttrigger = {",
			indent+"\t\t"+cond,
			indent+"\t}",
			indent+"}",
		)
	}
	return lines
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate returns diagnostics for t; an empty result means no problems.
// It never fails: every problem becomes a message.
func (r *Renderer) Validate(t Trigger) []string {
	var diags []string
	if t.Weight < 0 {
		diags = append(diags, "Weight cannot be negative")
	}
	for i, cond := range t.Conditions {
		n := i + 1
		cond = strings.TrimSpace(cond)
		if cond == "" {
			diags = append(diags, fmt.Sprintf("Condition %d is empty", n))
			continue
		}
		if strings.HasPrefix(cond, negationPrefix) {
			inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(cond, negationPrefix), "}"))
			if msg := r.checkCondition(inner); msg != "" {
				diags = append(diags, fmt.Sprintf("Condition %d (NOT): %s", n, msg))
			}
			continue
		}
		if msg := r.checkCondition(cond); msg != "" {
			diags = append(diags, fmt.Sprintf("Condition %d: %s", n, msg))
		}
	}
	return diags
}

// checkCondition returns a message for an implausible condition, or "".
func (r *Renderer) checkCondition(cond string) string {
	if cond == "" {
		return "empty inner condition"
	}
	if strings.HasPrefix(cond, "#") {
		return ""
	}
	for _, b := range booleanBlocks {
		if strings.HasPrefix(cond, b) {
			return ""
		}
	}
	if m := comparison.FindStringSubmatch(cond); m != nil {
		name := m[1]
		if r.catalog.Known(name) || hasKeyword(name) {
			return ""
		}
		if m[2] == "=" {
			return "Unknown condition: " + name
		}
	}
	if hasKeyword(cond) {
		return ""
	}
	return "may have invalid format: " + cond
}

func hasKeyword(s string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
