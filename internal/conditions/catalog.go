// Package conditions is the catalog of named condition identifiers
// (IS_RULER, HAS_TRAIT, WEALTH, ...) that model modifiers refer to.
//
// Each identifier carries a syntax template with $key placeholders, a fixed
// set of recognised input keys and optional custom-trigger literals. Params
// for an identifier are validated against that set when they are built, so a
// Params value handed to Render never carries an unexpected key.
package conditions

// catalog.go — condition definitions, lookup, rendering and validation.

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var (
	// ErrUnknownIdentifier is returned for identifiers absent from the catalog.
	ErrUnknownIdentifier = errors.New("unknown condition identifier")
	// ErrUnknownParam is returned when a parameter key is neither an input
	// nor a custom trigger of the identifier.
	ErrUnknownParam = errors.New("unknown condition parameter")
)

// Type classifies how an identifier's parameters are checked.
type Type string

const (
	TypeBoolean    Type = "boolean"
	TypeComparison Type = "comparison"
	TypeTrait      Type = "trait"
	TypeClaim      Type = "claim"
	TypeComplex    Type = "complex"
)

// Relevance is a coarse hint of how useful a condition is in AI weights.
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

var validOperators = map[string]bool{
	"<": true, "<=": true, "=": true, "!=": true, ">": true, ">=": true,
}

// Definition describes one condition identifier.
type Definition struct {
	Name           string
	Category       string
	Description    string
	Syntax         string
	Inputs         map[string]string
	CustomTriggers map[string]string
	Scopes         []string
	Relevance      Relevance
	Type           Type
}

// Category groups definitions under a heading.
type Category struct {
	Name        string
	Description string
	Conditions  []string
}

// Catalog is a read-only set of condition definitions.
type Catalog struct {
	defs       map[string]Definition
	categories map[string]Category
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

// NewCatalog builds a catalog from categories. A definition appearing in a
// later category replaces an earlier one with the same name.
func NewCatalog(categories []Category, defs []Definition) *Catalog {
	c := &Catalog{
		defs:       make(map[string]Definition, len(defs)),
		categories: make(map[string]Category, len(categories)),
	}
	for _, cat := range categories {
		cat.Conditions = append([]string(nil), cat.Conditions...)
		c.categories[cat.Name] = cat
	}
	for _, d := range defs {
		c.defs[d.Name] = d
	}
	return c
}

// Default returns the catalog shipped inside the binary.
func Default() *Catalog {
	c, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("conditions: embedded defaults: %v", err))
	}
	return c
}

type fileFormat struct {
	Conditions map[string]categoryFile `yaml:"conditions"`
}

type categoryFile struct {
	Description string                    `yaml:"description"`
	Conditions  map[string]definitionFile `yaml:"conditions"`
}

type definitionFile struct {
	Description     string            `yaml:"description"`
	Syntax          string            `yaml:"syntax"`
	InputValues     map[string]string `yaml:"input_values"`
	CustomTriggers  map[string]string `yaml:"custom_triggers"`
	SupportedScopes []string          `yaml:"supported_scopes"`
	AIRelevance     string            `yaml:"ai_relevance"`
	ConditionType   string            `yaml:"condition_type"`
}

// Parse decodes a conditions document (JSON or YAML) into a catalog.
// Missing relevance defaults to medium and missing type to complex.
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse conditions: %w", err)
	}

	catNames := make([]string, 0, len(f.Conditions))
	for name := range f.Conditions {
		catNames = append(catNames, name)
	}
	sort.Strings(catNames)

	var cats []Category
	var defs []Definition
	for _, catName := range catNames {
		cf := f.Conditions[catName]
		cat := Category{Name: catName, Description: cf.Description}
		for name, df := range cf.Conditions {
			rel := Relevance(df.AIRelevance)
			if rel == "" {
				rel = RelevanceMedium
			}
			typ := Type(df.ConditionType)
			if typ == "" {
				typ = TypeComplex
			}
			defs = append(defs, Definition{
				Name:           name,
				Category:       catName,
				Description:    df.Description,
				Syntax:         df.Syntax,
				Inputs:         df.InputValues,
				CustomTriggers: df.CustomTriggers,
				Scopes:         df.SupportedScopes,
				Relevance:      rel,
				Type:           typ,
			})
			cat.Conditions = append(cat.Conditions, name)
		}
		sort.Strings(cat.Conditions)
		cats = append(cats, cat)
	}
	return NewCatalog(cats, defs), nil
}

// Merge returns a new catalog holding c's definitions overlaid by other's.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	var cats []Category
	var defs []Definition
	for _, src := range []*Catalog{c, other} {
		if src == nil {
			continue
		}
		for _, name := range src.CategoryNames() {
			cats = append(cats, src.categories[name])
		}
		for _, id := range src.Identifiers() {
			defs = append(defs, src.defs[id])
		}
	}
	return NewCatalog(mergeCategories(cats), defs)
}

func mergeCategories(cats []Category) []Category {
	byName := map[string]*Category{}
	var order []string
	for _, cat := range cats {
		existing, ok := byName[cat.Name]
		if !ok {
			cp := cat
			byName[cat.Name] = &cp
			order = append(order, cat.Name)
			continue
		}
		if cat.Description != "" {
			existing.Description = cat.Description
		}
		seen := map[string]bool{}
		for _, n := range existing.Conditions {
			seen[n] = true
		}
		for _, n := range cat.Conditions {
			if !seen[n] {
				existing.Conditions = append(existing.Conditions, n)
			}
		}
		sort.Strings(existing.Conditions)
	}
	out := make([]Category, 0, len(order))
	for _, n := range order {
		out = append(out, *byName[n])
	}
	return out
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// Lookup returns the definition for identifier.
func (c *Catalog) Lookup(id string) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}
	d, ok := c.defs[id]
	return d, ok
}

// Len returns the number of identifiers.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.defs)
}

// Identifiers returns every identifier, sorted.
func (c *Catalog) Identifiers() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, 0, len(c.defs))
	for id := range c.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CategoryNames returns category names, sorted.
func (c *Catalog) CategoryNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.categories))
	for n := range c.categories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Categories returns all categories sorted by name.
func (c *Catalog) Categories() []Category {
	var out []Category
	for _, n := range c.CategoryNames() {
		out = append(out, c.categories[n])
	}
	return out
}

// ByRelevance groups identifiers by relevance, each group sorted.
func (c *Catalog) ByRelevance() map[Relevance][]string {
	out := map[Relevance][]string{
		RelevanceHigh:   nil,
		RelevanceMedium: nil,
		RelevanceLow:    nil,
	}
	for _, id := range c.Identifiers() {
		r := c.defs[id].Relevance
		out[r] = append(out[r], id)
	}
	return out
}

// ByType returns the sorted identifiers of type t.
func (c *Catalog) ByType(t Type) []string {
	var out []string
	for _, id := range c.Identifiers() {
		if c.defs[id].Type == t {
			out = append(out, id)
		}
	}
	return out
}

// Search returns definitions whose name or description contains q,
// case-insensitively, sorted by name.
func (c *Catalog) Search(q string) []Definition {
	q = strings.ToLower(q)
	var out []Definition
	for _, id := range c.Identifiers() {
		d := c.defs[id]
		if strings.Contains(strings.ToLower(d.Name), q) ||
			strings.Contains(strings.ToLower(d.Description), q) {
			out = append(out, d)
		}
	}
	return out
}

// Known reports whether name refers to a catalog identifier. Script-side
// names are lowercase (has_trait) while identifiers are upper snake case
// (HAS_TRAIT), so both an exact case-insensitive match and containment in
// a lowered identifier count.
func (c *Catalog) Known(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || c == nil {
		return false
	}
	for id := range c.defs {
		lower := strings.ToLower(id)
		if lower == name || strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Params, rendering, validation
// ---------------------------------------------------------------------------

// Params builds a parameter list for id. Every key must be one of the
// identifier's input keys or custom-trigger keys.
func (c *Catalog) Params(id string, values map[string]string) (Params, error) {
	d, ok := c.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentifier, id)
	}
	for k := range values {
		_, isInput := d.Inputs[k]
		_, isTrigger := d.CustomTriggers[k]
		if !isInput && !isTrigger {
			return nil, fmt.Errorf("%w: %s for %s", ErrUnknownParam, k, id)
		}
	}
	return newParams(values), nil
}

// Render produces script text for id. A single parameter whose key names a
// custom trigger renders that trigger's literal; otherwise each $key in the
// syntax template is replaced by its value.
func (c *Catalog) Render(id string, p Params) string {
	d, ok := c.Lookup(id)
	if !ok {
		return "# Unknown condition identifier: " + id
	}
	if len(p) == 1 {
		if lit, ok := d.CustomTriggers[p[0].Key]; ok {
			return lit
		}
	}

	// Longest key first so $skill does not clobber $skill_threshold.
	ordered := append(Params(nil), p...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Key) > len(ordered[j].Key)
	})
	out := d.Syntax
	for _, kv := range ordered {
		out = strings.ReplaceAll(out, "$"+kv.Key, kv.Value)
	}
	return out
}

// Validate checks p against the rules for id's condition type.
func (c *Catalog) Validate(id string, p Params) error {
	d, ok := c.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIdentifier, id)
	}

	if d.Type == TypeBoolean {
		for _, kv := range p {
			v := strings.ToLower(kv.Value)
			if v != "yes" && v != "no" {
				return fmt.Errorf("%s: boolean condition value %s=%q must be yes or no", id, kv.Key, kv.Value)
			}
		}
		return nil
	}

	// A lone custom trigger stands in for the whole input set.
	if len(p) == 1 {
		if _, ok := d.CustomTriggers[p[0].Key]; ok {
			return nil
		}
	}

	var missing []string
	for k := range d.Inputs {
		if _, ok := p.Get(k); !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%s: missing required inputs: %s", id, strings.Join(missing, ", "))
	}

	if d.Type == TypeComparison {
		if op, ok := p.Get("operator"); ok && !validOperators[op] {
			return fmt.Errorf("%s: invalid operator %q", id, op)
		}
		for _, kv := range p {
			if !strings.HasSuffix(kv.Key, "_threshold") {
				continue
			}
			if _, err := strconv.ParseFloat(kv.Value, 64); err != nil {
				return fmt.Errorf("%s: threshold %s=%q is not numeric", id, kv.Key, kv.Value)
			}
		}
	}
	return nil
}
