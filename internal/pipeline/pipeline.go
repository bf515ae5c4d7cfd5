// Package pipeline runs the scan → unify → render → splice chain over every
// event file in a target directory.
//
// Files are handled one at a time. A file that cannot be read or written is
// recorded in the summary and the run moves on to the next file.
package pipeline

// pipeline.go — Processor, per-file processing, and the run summary.

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ck3weight/internal/conditions"
	"ck3weight/internal/config"
	"ck3weight/internal/model"
	"ck3weight/internal/mods"
	"ck3weight/internal/scanner"
	"ck3weight/internal/splice"
	"ck3weight/internal/trigger"
)

// Unresolved is a region whose model could not be found.
type Unresolved struct {
	File  string `yaml:"file"`
	Line  int    `yaml:"line"`
	Model string `yaml:"model"`
}

// Diagnostic is an advisory message from trigger validation.
type Diagnostic struct {
	File    string `yaml:"file"`
	Line    int    `yaml:"line"`
	Model   string `yaml:"model"`
	Message string `yaml:"message"`
}

// FileError records a file that could not be processed.
type FileError struct {
	File  string `yaml:"file"`
	Error string `yaml:"error"`
}

// FileResult is the outcome for one file.
type FileResult struct {
	Path        string
	HasLibrary  bool
	Regions     int
	Generated   int
	Changed     bool
	Written     bool
	Backup      string
	Models      []string
	Unresolved  []Unresolved
	Diagnostics []Diagnostic
}

// Summary aggregates a run.
type Summary struct {
	Target                 string         `yaml:"target"`
	DryRun                 bool           `yaml:"dry_run"`
	FilesProcessed         int            `yaml:"files_processed"`
	FilesWithLibraryMarker int            `yaml:"files_with_library_marker"`
	FilesWithRegions       int            `yaml:"files_with_regions"`
	RegionsFound           int            `yaml:"regions_found"`
	TriggersGenerated      int            `yaml:"triggers_generated"`
	FilesChanged           int            `yaml:"files_changed"`
	FilesWritten           int            `yaml:"files_written"`
	ModelUsage             map[string]int `yaml:"model_usage"`
	Unresolved             []Unresolved   `yaml:"unresolved,omitempty"`
	Diagnostics            []Diagnostic   `yaml:"diagnostics,omitempty"`
	Errors                 []FileError    `yaml:"errors,omitempty"`
}

// SuccessRate is the share of regions that received a trigger, in percent.
func (s Summary) SuccessRate() float64 {
	if s.RegionsFound == 0 {
		return 0
	}
	return float64(s.TriggersGenerated) / float64(s.RegionsFound) * 100
}

func (s *Summary) add(r FileResult) {
	s.FilesProcessed++
	if r.HasLibrary {
		s.FilesWithLibraryMarker++
	}
	if r.Regions > 0 {
		s.FilesWithRegions++
	}
	s.RegionsFound += r.Regions
	s.TriggersGenerated += r.Generated
	if r.Changed {
		s.FilesChanged++
	}
	if r.Written {
		s.FilesWritten++
	}
	for _, m := range r.Models {
		s.ModelUsage[m]++
	}
	s.Unresolved = append(s.Unresolved, r.Unresolved...)
	s.Diagnostics = append(s.Diagnostics, r.Diagnostics...)
}

// ---------------------------------------------------------------------------
// Processor
// ---------------------------------------------------------------------------

// Processor rewrites the regions of event files.
type Processor struct {
	cfg      config.Config
	engine   *model.Engine
	scanner  *scanner.Scanner
	renderer *trigger.Renderer
	log      *zap.Logger
	// DryRun computes results without writing files or backups.
	DryRun bool
}

// New builds a Processor. A nil catalog means the embedded default catalog
// and a nil logger discards log output.
func New(cfg config.Config, engine *model.Engine, cat *conditions.Catalog, logger *zap.Logger) (*Processor, error) {
	if engine == nil {
		return nil, fmt.Errorf("pipeline: nil engine")
	}
	sc, err := scanner.New(cfg.ScannerConfig())
	if err != nil {
		return nil, fmt.Errorf("build scanner: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		cfg:      cfg,
		engine:   engine,
		scanner:  sc,
		renderer: trigger.NewRenderer(cat, trigger.Options{Indent: cfg.Output.IndentLevel, Delta: cfg.Output.ConditionDelta}),
		log:      logger,
	}, nil
}

// Files lists the files under dir that would be processed, in lexical order.
// Paths are returned relative to dir with forward slashes.
func (p *Processor) Files(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && p.cfg.IsExcluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if p.Accepts(rel) {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}

// Accepts reports whether a file at rel (relative to the target directory)
// is an event file that is not excluded and not a backup.
func (p *Processor) Accepts(rel string) bool {
	if !p.cfg.HasExtension(rel) || p.cfg.IsExcluded(filepath.ToSlash(rel)) {
		return false
	}
	for _, s := range []string{p.cfg.Processing.BackupSuffix, p.cfg.Mod.BackupSuffix} {
		if s != "" && strings.HasSuffix(rel, s) {
			return false
		}
	}
	return true
}

// Run processes every accepted file under dir. The returned error is non-nil
// only when dir itself cannot be walked; per-file failures are in
// Summary.Errors.
func (p *Processor) Run(dir string) (Summary, error) {
	sum := Summary{Target: dir, DryRun: p.DryRun, ModelUsage: map[string]int{}}
	files, err := p.Files(dir)
	if err != nil {
		return sum, err
	}
	p.log.Info("processing target", zap.String("dir", dir), zap.Int("files", len(files)), zap.Bool("dry_run", p.DryRun))

	for _, rel := range files {
		r, err := p.processFile(filepath.Join(dir, filepath.FromSlash(rel)), rel)
		if err != nil {
			p.log.Warn("file failed", zap.String("file", rel), zap.Error(err))
			sum.Errors = append(sum.Errors, FileError{File: rel, Error: err.Error()})
			continue
		}
		sum.add(r)
	}
	return sum, nil
}

// ScanResult lists the regions of one file without rewriting it.
type ScanResult struct {
	File       string
	HasLibrary bool
	Blocks     []scanner.Block
	Err        error
}

// Scan scans every accepted file under dir. Unreadable files are reported
// through ScanResult.Err.
func (p *Processor) Scan(dir string) ([]ScanResult, error) {
	files, err := p.Files(dir)
	if err != nil {
		return nil, err
	}
	out := make([]ScanResult, 0, len(files))
	for _, rel := range files {
		f, err := p.scanner.ScanFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			out = append(out, ScanResult{File: rel, Err: err})
			continue
		}
		out = append(out, ScanResult{File: rel, HasLibrary: f.HasLibrary, Blocks: f.Blocks})
	}
	return out, nil
}

// ProcessFile rewrites the regions of one file. The file is written, after
// an optional backup, only when its content changes.
func (p *Processor) ProcessFile(path string) (FileResult, error) {
	return p.processFile(path, path)
}

// processFile reports path as name in logs and results.
func (p *Processor) processFile(path, name string) (FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("read: %w", err)
	}
	text := string(data)
	scanned := p.scanner.ScanText(path, text)
	res := FileResult{Path: name, HasLibrary: scanned.HasLibrary, Regions: len(scanned.Blocks)}
	if len(scanned.Blocks) == 0 {
		return res, nil
	}

	repl := splice.Replacements{}
	for _, b := range scanned.Blocks {
		u, err := p.engine.Unified(b.Model)
		if err != nil {
			p.log.Warn("unresolved model", zap.String("file", name), zap.Int("line", b.Start.Line), zap.String("model", b.Model))
			res.Unresolved = append(res.Unresolved, Unresolved{File: name, Line: b.Start.Line, Model: b.Model})
			continue
		}
		t := p.renderer.Render(u)
		if p.cfg.Output.ValidateTriggers {
			for _, msg := range p.renderer.Validate(t) {
				p.log.Warn("trigger diagnostic", zap.String("file", name), zap.Int("line", b.Start.Line), zap.String("model", b.Model), zap.String("message", msg))
				res.Diagnostics = append(res.Diagnostics, Diagnostic{File: name, Line: b.Start.Line, Model: b.Model, Message: msg})
			}
		}
		// With markers kept the opener stays in the file, so only the body
		// goes between them.
		if p.cfg.Processing.DeleteMarkers {
			repl[b.Start.Line] = p.renderer.Text(t)
		} else {
			repl[b.Start.Line] = p.renderer.Body(t)
		}
		res.Generated++
		res.Models = append(res.Models, b.Model)
	}

	out := splice.Apply(splice.SplitLines(text), scanned.Blocks, repl, splice.Policy{
		DeleteMarkers:    p.cfg.Processing.DeleteMarkers,
		PreserveComments: p.cfg.Processing.PreserveComments,
	})
	for _, b := range out.Overlapping {
		p.log.Warn("overlapping region skipped", zap.String("file", name), zap.Int("line", b.Start.Line), zap.String("model", b.Model))
		res.Generated--
		res.Models = remove(res.Models, b.Model)
	}

	updated := splice.Join(out.Lines)
	res.Changed = updated != text
	if !res.Changed || p.DryRun {
		return res, nil
	}

	if suffix := p.backupSuffix(); suffix != "" {
		dst, err := mods.Backup(path, suffix)
		if err != nil {
			return res, err
		}
		res.Backup = dst
		p.log.Debug("backup created", zap.String("file", name), zap.String("backup", dst))
	}
	info, err := os.Stat(path)
	if err != nil {
		return res, fmt.Errorf("stat: %w", err)
	}
	if err := os.WriteFile(path, []byte(updated), info.Mode().Perm()); err != nil {
		return res, fmt.Errorf("write: %w", err)
	}
	res.Written = true
	p.log.Info("file updated", zap.String("file", name), zap.Int("triggers", res.Generated))
	return res, nil
}

// backupSuffix returns the suffix to back files up with, or "" when backups
// are off. Files inside a mod folder follow the mod backup settings.
func (p *Processor) backupSuffix() string {
	if p.cfg.Target.UseModFolder && p.cfg.Target.ModFolder != "" {
		if p.cfg.Mod.BackupModFiles {
			return p.cfg.Mod.BackupSuffix
		}
		return ""
	}
	if p.cfg.Processing.BackupFiles {
		return p.cfg.Processing.BackupSuffix
	}
	return ""
}

func remove(list []string, s string) []string {
	for i, v := range list {
		if v == s {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// Models returns the model names of a summary's usage map, most used first.
func (s Summary) Models() []string {
	names := make([]string, 0, len(s.ModelUsage))
	for n := range s.ModelUsage {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.ModelUsage[names[i]] != s.ModelUsage[names[j]] {
			return s.ModelUsage[names[i]] > s.ModelUsage[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}
