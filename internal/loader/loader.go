// Package loader reads trait, interaction, model and condition definitions
// from data directories. JSON and YAML files are both accepted; yaml.v3
// parses either. Files are read in sorted order and a later definition with
// the same name replaces an earlier one. A file that cannot be read or parsed
// is skipped with a Warning and loading continues.
package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ck3weight/internal/conditions"
	"ck3weight/internal/model"
	"ck3weight/internal/traits"
)

// ErrNoModels is returned when no character model could be loaded at all.
var ErrNoModels = errors.New("no character models found")

// Warning is a non-fatal problem found while loading one data file.
type Warning struct {
	File string
	Err  error
}

func (w Warning) String() string {
	if w.File == "" {
		return w.Err.Error()
	}
	return w.File + ": " + w.Err.Error()
}

// Paths names the data directories. Conditions may be empty, in which case
// only the built-in catalog is used.
type Paths struct {
	Traits     string
	Models     string
	Conditions string
}

// Result holds everything loaded for one run.
type Result struct {
	Registry *traits.Registry
	Models   []model.CharacterModel
	Catalog  *conditions.Catalog
	Warnings []Warning
}

// Load reads all data directories. Conditions are loaded first so model
// modifiers can be checked against the merged catalog.
func Load(p Paths) (*Result, error) {
	res := &Result{}

	cat, warns := LoadConditions(p.Conditions)
	res.Catalog = cat
	res.Warnings = append(res.Warnings, warns...)

	defs, interactions, warns := LoadTraits(p.Traits)
	res.Registry = traits.NewRegistry(defs, interactions)
	res.Warnings = append(res.Warnings, warns...)

	models, warns, err := LoadModels(p.Models, cat)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, err
	}
	res.Models = models
	return res, nil
}

// ---------------------------------------------------------------------------
// File discovery
// ---------------------------------------------------------------------------

var dataExtensions = map[string]bool{".json": true, ".yaml": true, ".yml": true}

// dataFiles lists data files directly inside dir, sorted by name.
func dataFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !dataExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// ---------------------------------------------------------------------------
// Conditions
// ---------------------------------------------------------------------------

// LoadConditions merges every conditions file in dir over the built-in
// catalog. An empty or missing dir yields the built-in catalog.
func LoadConditions(dir string) (*conditions.Catalog, []Warning) {
	cat := conditions.Default()
	if dir == "" {
		return cat, nil
	}
	files, err := dataFiles(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cat, nil
		}
		return cat, []Warning{{File: dir, Err: err}}
	}

	var warns []Warning
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			warns = append(warns, Warning{File: f, Err: err})
			continue
		}
		parsed, err := conditions.Parse(data)
		if err != nil {
			warns = append(warns, Warning{File: f, Err: err})
			continue
		}
		cat = cat.Merge(parsed)
	}
	return cat, warns
}

// ---------------------------------------------------------------------------
// Traits
// ---------------------------------------------------------------------------

type traitsFile struct {
	Traits       map[string]traitFile `yaml:"traits"`
	Interactions []interactionFile    `yaml:"interactions"`
}

type traitFile struct {
	Description string   `yaml:"description"`
	Weight      int      `yaml:"weight"`
	Opposites   []string `yaml:"opposite_traits"`
	AIEffects   struct {
		Modifiers []effectFile `yaml:"modifiers"`
	} `yaml:"ai_effects"`
}

type effectFile struct {
	Condition string `yaml:"condition"`
	Weight    int    `yaml:"weight_adjustment"`
}

type interactionFile struct {
	Traits      []string `yaml:"trait_combination"`
	Type        string   `yaml:"interaction_type"`
	Weight      int      `yaml:"weight_modifier"`
	Description string   `yaml:"description"`
	Conditions  []string `yaml:"conditions"`
}

// LoadTraits reads trait definitions and interactions from dir. A missing
// directory is reported as a warning; models referencing traits will then
// fail validation rather than loading.
func LoadTraits(dir string) ([]traits.Definition, []traits.Interaction, []Warning) {
	files, err := dataFiles(dir)
	if err != nil {
		return nil, nil, []Warning{{File: dir, Err: fmt.Errorf("traits directory: %w", err)}}
	}

	var (
		defs         []traits.Definition
		interactions []traits.Interaction
		warns        []Warning
	)
	for _, f := range files {
		var tf traitsFile
		if err := decodeFile(f, &tf); err != nil {
			warns = append(warns, Warning{File: f, Err: err})
			continue
		}

		names := make([]string, 0, len(tf.Traits))
		for n := range tf.Traits {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			t := tf.Traits[n]
			d := traits.Definition{
				Name:        n,
				Description: t.Description,
				Weight:      t.Weight,
				Opposites:   t.Opposites,
			}
			for _, e := range t.AIEffects.Modifiers {
				d.Effects = append(d.Effects, traits.EffectModifier{Condition: e.Condition, Delta: e.Weight})
			}
			defs = append(defs, d)
		}

		for i, in := range tf.Interactions {
			kind, err := traits.ParseInteractionKind(in.Type)
			if err != nil {
				warns = append(warns, Warning{File: f, Err: fmt.Errorf("interaction %d: %w", i, err)})
				continue
			}
			interactions = append(interactions, traits.Interaction{
				Traits:      in.Traits,
				Kind:        kind,
				Delta:       in.Weight,
				Description: in.Description,
				Conditions:  in.Conditions,
			})
		}
	}
	return defs, interactions, warns
}

// ---------------------------------------------------------------------------
// Models
// ---------------------------------------------------------------------------

type modelFile struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	BaseWeight  int    `yaml:"base_weight"`
	Traits      *struct {
		Positive []string `yaml:"positive"`
		Negative []string `yaml:"negative"`
	} `yaml:"traits"`
	Opposites []string       `yaml:"opposite_traits"`
	Modifiers []modifierFile `yaml:"modifiers"`
}

type modifierFile struct {
	Identifier string            `yaml:"condition_identifier"`
	Values     map[string]string `yaml:"condition_values"`
	Condition  string            `yaml:"condition"`
	Weight     int               `yaml:"weight_adjustment"`
}

// LoadModels reads character models from dir. Three layouts are accepted:
// {models: {name: {...}}}, a bare {name: {...}} map, and a list of entries
// carrying a name field. Models are returned sorted by name.
func LoadModels(dir string, cat *conditions.Catalog) ([]model.CharacterModel, []Warning, error) {
	files, err := dataFiles(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: models directory: %v", ErrNoModels, err)
	}

	byName := map[string]model.CharacterModel{}
	var warns []Warning
	for _, f := range files {
		var root yaml.Node
		if err := decodeFile(f, &root); err != nil {
			warns = append(warns, Warning{File: f, Err: err})
			continue
		}
		entries, err := modelEntries(&root)
		if err != nil {
			warns = append(warns, Warning{File: f, Err: err})
			continue
		}
		for _, e := range entries {
			m, mw, err := buildModel(e.name, e.node, cat)
			for _, w := range mw {
				warns = append(warns, Warning{File: f, Err: w})
			}
			if err != nil {
				warns = append(warns, Warning{File: f, Err: err})
				continue
			}
			byName[m.Name] = m
		}
	}

	if len(byName) == 0 {
		return nil, warns, fmt.Errorf("%w in %s", ErrNoModels, dir)
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	models := make([]model.CharacterModel, 0, len(names))
	for _, n := range names {
		models = append(models, byName[n])
	}
	return models, warns, nil
}

type modelEntry struct {
	name string
	node *yaml.Node
}

func modelEntries(root *yaml.Node) ([]modelEntry, error) {
	n := root
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return nil, nil
		}
		n = n.Content[0]
	}

	switch n.Kind {
	case yaml.MappingNode:
		if v := mappingValue(n, "models"); v != nil {
			n = v
		}
		if n.Kind != yaml.MappingNode {
			return nil, errors.New("models must be a mapping")
		}
		var out []modelEntry
		for i := 0; i+1 < len(n.Content); i += 2 {
			out = append(out, modelEntry{name: n.Content[i].Value, node: n.Content[i+1]})
		}
		return out, nil
	case yaml.SequenceNode:
		var out []modelEntry
		for _, item := range n.Content {
			name := ""
			if v := mappingValue(item, "name"); v != nil {
				name = v.Value
			}
			out = append(out, modelEntry{name: name, node: item})
		}
		return out, nil
	}
	return nil, errors.New("unsupported model file layout")
}

func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// buildModel decodes one model node. Modifiers whose condition parameters do
// not fit the catalog are dropped and returned as warnings.
func buildModel(name string, node *yaml.Node, cat *conditions.Catalog) (model.CharacterModel, []error, error) {
	if name == "" {
		return model.CharacterModel{}, nil, errors.New("model entry without a name")
	}
	if node.Kind != yaml.MappingNode {
		return model.CharacterModel{}, nil, fmt.Errorf("model %q: invalid model data", name)
	}
	var mf modelFile
	if err := node.Decode(&mf); err != nil {
		return model.CharacterModel{}, nil, fmt.Errorf("model %q: %w", name, err)
	}
	if mf.Traits == nil {
		return model.CharacterModel{}, nil, fmt.Errorf("model %q: missing traits field", name)
	}

	m := model.CharacterModel{
		Name:        name,
		Description: mf.Description,
		BaseWeight:  mf.BaseWeight,
		Positive:    mf.Traits.Positive,
		Negative:    mf.Traits.Negative,
		Opposite:    mf.Opposites,
	}
	var warns []error
	for i, mod := range mf.Modifiers {
		if mod.Identifier == "" {
			m.Modifiers = append(m.Modifiers, model.Modifier{Condition: mod.Condition, Delta: mod.Weight})
			continue
		}
		params, err := cat.Params(mod.Identifier, mod.Values)
		if err == nil {
			err = cat.Validate(mod.Identifier, params)
		}
		if err != nil {
			warns = append(warns, fmt.Errorf("model %q modifier %d dropped: %w", name, i, err))
			continue
		}
		m.Modifiers = append(m.Modifiers, model.Modifier{
			Identifier: mod.Identifier,
			Params:     params,
			Condition:  mod.Condition,
			Delta:      mod.Weight,
		})
	}
	return m, warns, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}
