// Package config loads ck3weight configuration from .ck3weight/config.yaml
// with CK3WEIGHT_* environment overrides.
//
// The exclude list mirrors a permission deny list: glob patterns naming event
// files that must never be rewritten. Patterns may be bare globs
// ("events/vanilla/**") or wrapped in a Read() verb ("Read(./events/vanilla/**)").
package config

// config.go — configuration sections, defaults, load and save.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"ck3weight/internal/scanner"
)

// DefaultPath is the config file location relative to the working directory.
var DefaultPath = filepath.Join(".ck3weight", "config.yaml")

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "CK3WEIGHT_"

// Config is the complete configuration.
type Config struct {
	Mod        ModConfig  `yaml:"mod" envPrefix:"MOD_"`
	Markers    Markers    `yaml:"markers" envPrefix:"MARKERS_"`
	Processing Processing `yaml:"processing" envPrefix:"PROCESSING_"`
	Output     Output     `yaml:"output" envPrefix:"OUTPUT_"`
	Target     Target     `yaml:"target" envPrefix:"TARGET_"`
	Data       DataPaths  `yaml:"data" envPrefix:"DATA_"`
	// Exclude lists event files that are never scanned or rewritten.
	// Paths are forward-slash and relative to the target directory.
	Exclude []string `yaml:"exclude,omitempty" env:"EXCLUDE" envSeparator:","`
}

// ModConfig describes the mod being generated for and where installed mods
// live.
type ModConfig struct {
	Name              string `yaml:"name" env:"NAME"`
	Version           string `yaml:"version" env:"VERSION"`
	Author            string `yaml:"author" env:"AUTHOR"`
	ProjectGroup      string `yaml:"project_group" env:"PROJECT_GROUP"`
	SteamWorkshopPath string `yaml:"steam_workshop_path" env:"STEAM_WORKSHOP_PATH"`
	ParadoxModPath    string `yaml:"paradox_mod_path" env:"PARADOX_MOD_PATH"`
	FolderName        string `yaml:"mod_folder_name" env:"FOLDER_NAME"`
	UseSteamWorkshop  bool   `yaml:"use_steam_workshop" env:"USE_STEAM_WORKSHOP"`
	UseParadoxMods    bool   `yaml:"use_paradox_mods" env:"USE_PARADOX_MODS"`
	BackupModFiles    bool   `yaml:"backup_mod_files" env:"BACKUP_MOD_FILES"`
	BackupSuffix      string `yaml:"mod_backup_suffix" env:"BACKUP_SUFFIX"`
}

// Markers are the region markers and patterns handed to the scanner.
type Markers struct {
	LibraryMarker  string `yaml:"library_marker" env:"LIBRARY_MARKER"`
	StartMarker    string `yaml:"start_marker" env:"START_MARKER"`
	EndMarker      string `yaml:"end_marker" env:"END_MARKER"`
	ModelPattern   string `yaml:"model_pattern" env:"MODEL_PATTERN"`
	CommentPattern string `yaml:"comment_pattern" env:"COMMENT_PATTERN"`
	BlockOpener    string `yaml:"block_opener" env:"BLOCK_OPENER"`
}

// Processing controls how regions are rewritten.
type Processing struct {
	PreserveComments bool   `yaml:"preserve_comments" env:"PRESERVE_COMMENTS"`
	DeleteMarkers    bool   `yaml:"delete_markers" env:"DELETE_MARKERS"`
	BackupFiles      bool   `yaml:"backup_files" env:"BACKUP_FILES"`
	BackupSuffix     string `yaml:"backup_suffix" env:"BACKUP_SUFFIX"`
}

// Output controls generated text and reporting.
type Output struct {
	IndentLevel      int  `yaml:"indent_level" env:"INDENT_LEVEL"`
	ValidateTriggers bool `yaml:"validate_triggers" env:"VALIDATE_TRIGGERS"`
	ShowSummary      bool `yaml:"show_summary" env:"SHOW_SUMMARY"`
	VerboseLogging   bool `yaml:"verbose_logging" env:"VERBOSE_LOGGING"`
	ConditionDelta   int  `yaml:"condition_delta" env:"CONDITION_DELTA"`
}

// Target selects the directory whose event files are processed.
type Target struct {
	EventsDirectory string   `yaml:"events_directory" env:"EVENTS_DIRECTORY"`
	ModFolder       string   `yaml:"mod_folder" env:"MOD_FOLDER"`
	UseModFolder    bool     `yaml:"use_mod_folder" env:"USE_MOD_FOLDER"`
	IsParent        bool     `yaml:"is_parent" env:"IS_PARENT"`
	FileExtensions  []string `yaml:"file_extensions" env:"FILE_EXTENSIONS" envSeparator:","`
}

// DataPaths locate trait, model and condition definition directories.
type DataPaths struct {
	TraitsDir     string `yaml:"traits_dir" env:"TRAITS_DIR"`
	ModelsDir     string `yaml:"models_dir" env:"MODELS_DIR"`
	ConditionsDir string `yaml:"conditions_dir" env:"CONDITIONS_DIR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Mod: ModConfig{
			SteamWorkshopPath: "~/.steam/steam/steamapps/workshop/content/1158310",
			ParadoxModPath:    "~/.local/share/Paradox Interactive/Crusader Kings III/mod",
			UseSteamWorkshop:  true,
			UseParadoxMods:    true,
			BackupModFiles:    true,
			BackupSuffix:      ".ai_backup",
		},
		Markers: Markers{
			LibraryMarker:  scanner.DefaultLibraryMarker,
			StartMarker:    scanner.DefaultStartMarker,
			EndMarker:      scanner.DefaultEndMarker,
			ModelPattern:   scanner.DefaultModelPattern,
			CommentPattern: scanner.DefaultCommentPattern,
			BlockOpener:    scanner.DefaultBlockOpener,
		},
		Processing: Processing{
			PreserveComments: true,
			BackupFiles:      true,
			BackupSuffix:     ".backup",
		},
		Output: Output{
			IndentLevel:      1,
			ValidateTriggers: true,
			ShowSummary:      true,
			ConditionDelta:   10,
		},
		Target: Target{
			EventsDirectory: "events",
			FileExtensions:  []string{".txt"},
		},
		Data: DataPaths{
			TraitsDir:     filepath.Join("models", "traits"),
			ModelsDir:     filepath.Join("models", "characters"),
			ConditionsDir: filepath.Join("models", "conditions"),
		},
	}
}

// Load reads the config file at path over the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("unmarshal %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg fields from CK3WEIGHT_* variables. Unset
// variables leave fields alone.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ScannerConfig converts the marker section for scanner.New.
func (c Config) ScannerConfig() scanner.Config {
	return scanner.Config{
		LibraryMarker:  c.Markers.LibraryMarker,
		StartMarker:    c.Markers.StartMarker,
		EndMarker:      c.Markers.EndMarker,
		ModelPattern:   c.Markers.ModelPattern,
		CommentPattern: c.Markers.CommentPattern,
		BlockOpener:    c.Markers.BlockOpener,
	}
}

// TargetPath returns the events directory to process, resolved against
// base. With use_mod_folder set it is <mod_folder>/<events_directory>, or
// ../<mod_folder>/<events_directory> when is_parent is set.
func (c Config) TargetPath(base string) string {
	events := c.Target.EventsDirectory
	if c.Target.UseModFolder && c.Target.ModFolder != "" {
		if c.Target.IsParent {
			events = filepath.Join("..", c.Target.ModFolder, events)
		} else {
			events = filepath.Join(c.Target.ModFolder, events)
		}
	}
	if filepath.IsAbs(events) {
		return events
	}
	return filepath.Join(base, events)
}

// HasExtension reports whether name ends in one of the configured file
// extensions, case-insensitively.
func (c Config) HasExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range c.Target.FileExtensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Exclusions
// ---------------------------------------------------------------------------

// IsExcluded reports whether relPath (forward-slash, relative to the target
// directory) matches any exclude rule.
func (c Config) IsExcluded(relPath string) bool {
	for _, rule := range c.Exclude {
		if matchExcludePattern(parseExcludeRule(rule), relPath) {
			return true
		}
	}
	return false
}

// parseExcludeRule extracts the path glob from an exclude rule.
//
//	"Read(./vanilla/**)" → "vanilla/**"
//	"vanilla/**"         → "vanilla/**"
func parseExcludeRule(rule string) string {
	if strings.HasPrefix(rule, "Read(") && strings.HasSuffix(rule, ")") {
		rule = rule[5 : len(rule)-1]
	}
	return strings.TrimPrefix(rule, "./")
}

// matchExcludePattern reports whether path matches an exclude glob.
//
// "prefix/**" matches the prefix directory itself and every path beneath it.
// All other patterns use filepath.Match semantics (single * does not cross /).
func matchExcludePattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	matched, _ := filepath.Match(pattern, path)
	return matched
}
