package export

// export.go — documentation export: converts traits and models into a vault.
//
// Traits and models form a bipartite graph: each model note wiki-links to
// the traits it references; each trait note links back to every model that
// references it.
//
// Vault layout:
//   index.md            — entry point listing models and traits
//   traits/<name>.md    — one note per registered trait
//   models/<name>.md    — one note per character model
//   interactions.md     — every trait interaction

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"ck3weight/internal/model"
	"ck3weight/internal/traits"
)

// Bundle holds pre-generated page content (path → markdown).
// Paths are relative to the output directory, using forward slashes.
type Bundle struct {
	pages map[string]string
}

// Paths returns the page paths in sorted order.
func (b *Bundle) Paths() []string {
	paths := make([]string, 0, len(b.pages))
	for p := range b.pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Page returns the content of the page at path.
func (b *Bundle) Page(path string) (string, bool) {
	p, ok := b.pages[path]
	return p, ok
}

// meta is the YAML frontmatter of every note.
type meta struct {
	Tags   []string `yaml:"tags"`
	Weight *int     `yaml:"weight,omitempty"`
	Total  *int     `yaml:"total_weight,omitempty"`
}

// modelRef records one model's use of a trait.
type modelRef struct {
	model string
	role  string // "positive" | "negative" | "opposite"
}

// Generate builds all vault pages from the engine's registry, models and
// interactions. No files are written.
func Generate(e *model.Engine) (*Bundle, error) {
	reg := e.Registry()
	models := e.Characters()
	interactions := e.Interactions()

	refs := collectRefs(models)
	pages := make(map[string]string)

	index, err := buildIndex(reg, models, interactions)
	if err != nil {
		return nil, err
	}
	pages["index.md"] = index

	for _, name := range reg.Names() {
		d, _ := reg.Get(name)
		page, err := buildTraitPage(d, refs[name], interactions)
		if err != nil {
			return nil, err
		}
		pages["traits/"+sanitizeFilename(name)+".md"] = page
	}

	for _, m := range models {
		page, err := buildModelPage(m, reg, interactions)
		if err != nil {
			return nil, err
		}
		pages["models/"+sanitizeFilename(m.Name)+".md"] = page
	}

	page, err := buildInteractionsPage(interactions)
	if err != nil {
		return nil, err
	}
	pages["interactions.md"] = page

	return &Bundle{pages: pages}, nil
}

// Write writes all pages in bundle to outputDir, overwriting existing
// files. Pages are written in sorted path order and traits/ and models/ are
// always created.
func Write(bundle *Bundle, outputDir string) error {
	for _, sub := range []string{"traits", "models"} {
		if err := os.MkdirAll(filepath.Join(outputDir, sub), 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", sub, err)
		}
	}
	for _, p := range bundle.Paths() {
		abs := filepath.Join(outputDir, filepath.FromSlash(p))
		if err := writeNote(abs, bundle.pages[p]); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Page builders
// ---------------------------------------------------------------------------

func buildIndex(reg *traits.Registry, models []model.CharacterModel, interactions []traits.Interaction) (string, error) {
	var b strings.Builder
	b.WriteString("# AI Weight Models\n\n")
	b.WriteString(fmt.Sprintf("- **Traits**: %d\n", reg.Len()))
	b.WriteString(fmt.Sprintf("- **Character models**: %d\n", len(models)))
	b.WriteString(fmt.Sprintf("- **Interactions**: [[interactions|%d]]\n\n", len(interactions)))

	b.WriteString("## Character Models\n\n")
	for _, m := range models {
		b.WriteString("- " + link("models", m.Name))
		if m.Description != "" {
			b.WriteString(" — " + m.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Traits\n")
	for _, cat := range groupTraits(reg.Names()) {
		b.WriteString(fmt.Sprintf("\n### %s\n\n", cat.title))
		for _, n := range cat.traits {
			d, _ := reg.Get(n)
			b.WriteString(fmt.Sprintf("- %s (%+d)\n", link("traits", n), d.Weight))
		}
	}
	return note(meta{Tags: []string{"ck3weight/index"}}, b.String())
}

func buildTraitPage(d traits.Definition, refs []modelRef, interactions []traits.Interaction) (string, error) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# %s\n\n", d.Name))
	if d.Description != "" {
		b.WriteString(d.Description + "\n\n")
	}
	b.WriteString(fmt.Sprintf("**Weight**: %d\n", d.Weight))

	if len(d.Opposites) > 0 {
		b.WriteString("\n## Opposites\n\n")
		for _, o := range d.Opposites {
			b.WriteString("- " + link("traits", o) + "\n")
		}
	}

	if len(d.Effects) > 0 {
		b.WriteString("\n## Effects\n\n")
		b.WriteString("| Condition | Delta |\n")
		b.WriteString("|-----------|-------|\n")
		for _, e := range d.Effects {
			b.WriteString(fmt.Sprintf("| `%s` | %+d |\n", e.Condition, e.Delta))
		}
	}

	var involved []traits.Interaction
	for _, i := range interactions {
		if contains(i.Traits, d.Name) {
			involved = append(involved, i)
		}
	}
	if len(involved) > 0 {
		b.WriteString("\n## Interactions\n\n")
		for _, i := range involved {
			b.WriteString(fmt.Sprintf("- %s %s (%+d)", i.Kind, traitLinks(i.Traits), i.Delta))
			if i.Description != "" {
				b.WriteString(" — " + i.Description)
			}
			b.WriteString("\n")
		}
	}

	// Back-links to every referencing model.
	b.WriteString("\n## Used By\n\n")
	if len(refs) == 0 {
		b.WriteString("_Not referenced by any model._\n")
	}
	for _, r := range refs {
		b.WriteString(fmt.Sprintf("- %s (%s)\n", link("models", r.model), r.role))
	}

	tags := []string{"trait"}
	if c := category(d.Name); c != "" {
		tags = append(tags, "category-"+c)
	}
	if len(refs) == 0 {
		tags = append(tags, "unused")
	}
	w := d.Weight
	return note(meta{Tags: tags, Weight: &w}, b.String())
}

func buildModelPage(m model.CharacterModel, reg *traits.Registry, interactions []traits.Interaction) (string, error) {
	bd := model.Breakdown(m, reg, interactions)
	v := model.Validate(m, reg, interactions)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# %s\n\n", m.Name))
	if m.Description != "" {
		b.WriteString(m.Description + "\n\n")
	}
	b.WriteString(fmt.Sprintf("**Base weight**: %d\n", bd.Base))
	b.WriteString(fmt.Sprintf("**Total weight**: %d\n", bd.Total))

	section := func(title string, names []string) {
		if len(names) == 0 {
			return
		}
		b.WriteString("\n## " + title + "\n\n")
		for _, n := range names {
			d, ok := reg.Get(n)
			if !ok {
				// No page exists for an unknown trait.
				b.WriteString(fmt.Sprintf("- %s (unknown)\n", n))
				continue
			}
			b.WriteString(fmt.Sprintf("- %s (%d)\n", link("traits", n), d.Weight))
		}
	}
	section("Positive Traits", m.Positive)
	section("Negative Traits", m.Negative)
	section("Opposite Traits", m.Opposite)

	if len(bd.Modifiers) > 0 {
		b.WriteString("\n## Modifiers\n\n")
		b.WriteString("| Condition | Delta | Source |\n")
		b.WriteString("|-----------|-------|--------|\n")
		for _, c := range bd.Modifiers {
			b.WriteString(fmt.Sprintf("| `%s` | %+d | %s |\n", escapeCell(c.Label), c.Delta, c.Source))
		}
	}

	b.WriteString("\n## Validation\n\n")
	if v.Valid && len(v.Warnings) == 0 {
		b.WriteString("No problems found.\n")
	}
	for _, n := range v.Missing {
		b.WriteString("- Missing trait: " + n + "\n")
	}
	for _, c := range v.Conflicts {
		b.WriteString(fmt.Sprintf("- Conflict: %s / %s (%s)\n", c.A, c.B, c.Reason))
	}
	for _, w := range v.Warnings {
		b.WriteString("- Warning: " + w + "\n")
	}

	tags := []string{"model", "valid"}
	if !v.Valid {
		tags[1] = "invalid"
	}
	if len(v.Warnings) > 0 {
		tags = append(tags, "has-warnings")
	}
	base, total := bd.Base, bd.Total
	return note(meta{Tags: tags, Weight: &base, Total: &total}, b.String())
}

func buildInteractionsPage(interactions []traits.Interaction) (string, error) {
	var b strings.Builder
	b.WriteString("# Trait Interactions\n\n")
	if len(interactions) == 0 {
		b.WriteString("_No interactions._\n")
		return note(meta{Tags: []string{"interactions"}}, b.String())
	}
	b.WriteString("| Traits | Kind | Delta | Description |\n")
	b.WriteString("|--------|------|-------|-------------|\n")
	for _, i := range interactions {
		b.WriteString(fmt.Sprintf("| %s | %s | %+d | %s |\n", escapeCell(traitLinks(i.Traits)), i.Kind, i.Delta, escapeCell(i.Description)))
	}
	for _, i := range interactions {
		if i.Kind != traits.Conditional || len(i.Conditions) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("\n## %s\n\n", strings.Join(i.Traits, " + ")))
		for _, c := range i.Conditions {
			b.WriteString("- `" + c + "`\n")
		}
	}
	return note(meta{Tags: []string{"interactions"}}, b.String())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// collectRefs maps each trait name to the models referencing it, in model
// order and then role order.
func collectRefs(models []model.CharacterModel) map[string][]modelRef {
	refs := make(map[string][]modelRef)
	for _, m := range models {
		for _, role := range []struct {
			name  string
			names []string
		}{{"positive", m.Positive}, {"negative", m.Negative}, {"opposite", m.Opposite}} {
			for _, n := range role.names {
				refs[n] = append(refs[n], modelRef{model: m.Name, role: role.name})
			}
		}
	}
	return refs
}

var categories = []struct {
	name   string
	traits []string
}{
	{"personality", []string{"ambitious", "content", "greedy", "generous", "wrathful", "calm"}},
	{"education", []string{"historian", "scholar", "diplomat"}},
	{"combat", []string{"brave", "craven", "berserker", "reckless", "patient"}},
	{"social", []string{"gregarious", "shy", "paranoid", "trusting", "humble"}},
	{"religious", []string{"zealous", "cynical"}},
}

// category returns the trait's category, or "" for uncategorised traits.
func category(trait string) string {
	for _, c := range categories {
		if contains(c.traits, trait) {
			return c.name
		}
	}
	return ""
}

type traitGroup struct {
	title  string
	traits []string
}

// groupTraits groups sorted trait names by category in category order;
// uncategorised traits come last under "Other".
func groupTraits(names []string) []traitGroup {
	var groups []traitGroup
	for _, c := range categories {
		g := traitGroup{title: strings.ToUpper(c.name[:1]) + c.name[1:]}
		for _, n := range names {
			if category(n) == c.name {
				g.traits = append(g.traits, n)
			}
		}
		if len(g.traits) > 0 {
			groups = append(groups, g)
		}
	}
	other := traitGroup{title: "Other"}
	for _, n := range names {
		if category(n) == "" {
			other.traits = append(other.traits, n)
		}
	}
	if len(other.traits) > 0 {
		groups = append(groups, other)
	}
	return groups
}

// link returns a [[dir/name|name]] wiki link.
func link(dir, name string) string {
	return fmt.Sprintf("[[%s/%s|%s]]", dir, sanitizeFilename(name), name)
}

func traitLinks(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = link("traits", n)
	}
	return strings.Join(out, " + ")
}

// escapeCell escapes pipes so text can sit in a markdown table cell.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// note renders m as YAML frontmatter followed by body. Tags are sorted.
func note(m meta, body string) (string, error) {
	m.Tags = append([]string(nil), m.Tags...)
	sort.Strings(m.Tags)
	fm, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("frontmatter: marshal: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n")
	buf.WriteString(body)
	return buf.String(), nil
}

// sanitizeFilename replaces / and . with -, collapses consecutive - to one,
// and trims leading/trailing -.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, ".", "-")
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")
	return s
}

// writeNote writes content to path, creating parent directories as needed.
func writeNote(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
