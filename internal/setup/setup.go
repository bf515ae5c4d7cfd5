// Package setup describes the questions asked when a config file is created
// interactively and maps the answers back onto a config.Config.
package setup

// setup.go — config questions, answer application, and descriptor import.

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"ck3weight/internal/config"
	"ck3weight/internal/mods"
)

// Kind is the answer type a question expects.
type Kind string

const (
	Text Kind = "text"
	Bool Kind = "bool"
	Int  Kind = "int"
)

// Question describes a single configuration prompt.
type Question struct {
	Key     string
	Prompt  string
	Default string
	Kind    Kind
}

// field binds a question key to the config field it reads and writes.
type field struct {
	key    string
	prompt string
	kind   Kind
	get    func(*config.Config) any
}

var fields = []field{
	{"mod.name", "Mod name", Text, func(c *config.Config) any { return &c.Mod.Name }},
	{"mod.project_group", "Project group", Text, func(c *config.Config) any { return &c.Mod.ProjectGroup }},
	{"mod.author", "Author name", Text, func(c *config.Config) any { return &c.Mod.Author }},
	{"mod.version", "Mod version", Text, func(c *config.Config) any { return &c.Mod.Version }},
	{"target.events_directory", "Events directory", Text, func(c *config.Config) any { return &c.Target.EventsDirectory }},
	{"target.mod_folder", "Mod folder (empty for none)", Text, func(c *config.Config) any { return &c.Target.ModFolder }},
	{"processing.delete_markers", "Delete markers after generation (yes/no)", Bool, func(c *config.Config) any { return &c.Processing.DeleteMarkers }},
	{"processing.backup_files", "Back up files before rewriting (yes/no)", Bool, func(c *config.Config) any { return &c.Processing.BackupFiles }},
	{"output.indent_level", "Indent level", Int, func(c *config.Config) any { return &c.Output.IndentLevel }},
}

// Default answers used when a question is left blank.
var fallback = map[string]string{
	"mod.name":          "CK3 AI Weight Generator",
	"mod.project_group": "default",
	"mod.author":        "CK3 Modder",
}

// Questions returns the prompts in order, with defaults taken from cfg.
func Questions(cfg config.Config) []Question {
	qs := make([]Question, 0, len(fields))
	for _, f := range fields {
		def := format(f.get(&cfg))
		if def == "" {
			def = fallback[f.key]
		}
		qs = append(qs, Question{Key: f.key, Prompt: f.prompt, Default: def, Kind: f.kind})
	}
	return qs
}

// Apply writes answers onto a copy of cfg. A blank answer keeps the
// question's default; unknown keys and unparsable values are errors.
func Apply(cfg config.Config, answers map[string]string) (config.Config, error) {
	byKey := make(map[string]field, len(fields))
	for _, f := range fields {
		byKey[f.key] = f
	}
	defaults := map[string]string{}
	for _, q := range Questions(cfg) {
		defaults[q.Key] = q.Default
	}

	keys := make([]string, 0, len(answers))
	for k := range answers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cfg
	for _, k := range keys {
		f, ok := byKey[k]
		if !ok {
			return cfg, fmt.Errorf("unknown setting %q", k)
		}
		v := strings.TrimSpace(answers[k])
		if v == "" {
			v = defaults[k]
		}
		if err := set(f.get(&out), v); err != nil {
			return cfg, fmt.Errorf("%s: %w", k, err)
		}
	}
	out.Target.UseModFolder = out.Target.ModFolder != ""
	return out, nil
}

// FromMod fills the mod section from an installed mod's descriptor and
// points the target at its events directory.
func FromMod(cfg config.Config, m mods.Mod) config.Config {
	if m.DisplayName != "" {
		cfg.Mod.Name = m.DisplayName
	}
	if m.Version != "" {
		cfg.Mod.Version = m.Version
	}
	cfg.Mod.FolderName = m.Name
	cfg.Target.ModFolder = m.Dir
	cfg.Target.UseModFolder = true
	cfg.Target.IsParent = false
	return cfg
}

func format(p any) string {
	switch v := p.(type) {
	case *string:
		return *v
	case *bool:
		if *v {
			return "yes"
		}
		return "no"
	case *int:
		return strconv.Itoa(*v)
	}
	return ""
}

func set(p any, s string) error {
	switch v := p.(type) {
	case *string:
		*v = s
	case *bool:
		b, err := parseBool(s)
		if err != nil {
			return err
		}
		*v = b
	case *int:
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		if n < 0 {
			return fmt.Errorf("must not be negative: %d", n)
		}
		*v = n
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "y", "yes", "true", "1":
		return true, nil
	case "n", "no", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected yes or no, got %q", s)
}
