package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"ck3weight/internal/config"
	"ck3weight/internal/model"
	"ck3weight/internal/pipeline"
	"ck3weight/internal/setup"
)

// helpText calls the help function and returns the output as a string.
func helpText() string {
	var sb strings.Builder
	printUsage(&sb)
	return sb.String()
}

// longHelpText returns the long help for a named command.
func longHelpText(name string) string {
	var sb strings.Builder
	printCommandHelp(&sb, name)
	return sb.String()
}

// captureStdout swaps the command output writer for the test's duration.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

const warEvents = "war.1 = {\n\tai_chance = {\n\t\t# AI-START using: {aggressive}\n\t\tbase = 1\n\t\t# AI-END\n\t}\n}\n"

// workspace lays out data files, an events directory and a config file
// pointing at both. It returns the config path and the events directory.
func workspace(t *testing.T, extraModels string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "data", "traits", "traits.yaml"),
		"traits:\n  brave:\n    weight: 20\n  craven:\n    weight: 15\n")
	writeFile(t, filepath.Join(dir, "data", "models", "models.yaml"),
		"models:\n  aggressive:\n    base_weight: 50\n    traits:\n      positive: [brave]\n    opposite_traits: [craven]\n"+extraModels)
	events := filepath.Join(dir, "events")
	writeFile(t, filepath.Join(events, "war.txt"), warEvents)

	cfg := config.Default()
	cfg.Data = config.DataPaths{
		TraitsDir: filepath.Join(dir, "data", "traits"),
		ModelsDir: filepath.Join(dir, "data", "models"),
	}
	cfg.Target.EventsDirectory = events
	cfgPath := filepath.Join(dir, ".ck3weight", "config.yaml")
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}
	return cfgPath, events
}

// ---------------------------------------------------------------------------
// Help and dispatch
// ---------------------------------------------------------------------------

func TestHelpContainsAllCommands(t *testing.T) {
	help := helpText()
	for _, cmd := range commands {
		if !strings.Contains(help, cmd.name) {
			t.Errorf("help output missing command %q", cmd.name)
		}
		if !strings.Contains(help, cmd.short) {
			t.Errorf("help output missing short description for %q", cmd.short)
		}
	}
}

func TestHelpContainsUsageHeader(t *testing.T) {
	help := helpText()
	if !strings.Contains(help, "Usage:") {
		t.Error("help output missing 'Usage:' header")
	}
	if !strings.Contains(help, "ck3weight") {
		t.Error("help output missing program name 'ck3weight'")
	}
}

func TestLongHelpForKnownCommands(t *testing.T) {
	for _, cmd := range commands {
		t.Run(cmd.name, func(t *testing.T) {
			out := longHelpText(cmd.name)
			if !strings.Contains(out, cmd.usage) {
				t.Errorf("long help for %q missing usage line %q\ngot: %s", cmd.name, cmd.usage, out)
			}
		})
	}
}

func TestLongHelpUnknownCommand(t *testing.T) {
	out := longHelpText("no-such-command")
	if !strings.Contains(out, "unknown") || !strings.Contains(out, "no-such-command") {
		t.Errorf("expected unknown-command message, got: %s", out)
	}
}

// The docs command checks its own arguments, so an error that is not
// "unknown command" shows dispatch reached it.
func TestDispatchKnownSubcommand(t *testing.T) {
	err := dispatch([]string{"docs"})
	if err == nil {
		t.Fatal("expected error for docs with no out-dir, got nil")
	}
	if strings.Contains(err.Error(), "unknown command") {
		t.Errorf("got 'unknown command' error for known subcommand 'docs': %v", err)
	}
}

func TestDispatchHelpFlag(t *testing.T) {
	for _, flag := range []string{"--help", "-h"} {
		t.Run(flag, func(t *testing.T) {
			out := captureStdout(t)
			if err := dispatch([]string{flag}); err != nil {
				t.Errorf("dispatch(%q) returned error: %v", flag, err)
			}
			if out.String() != helpText() {
				t.Errorf("dispatch(%q) did not print the usage listing", flag)
			}
		})
	}
}

func TestDispatchNoArgs(t *testing.T) {
	captureStdout(t)
	if err := dispatch([]string{}); err != nil {
		t.Errorf("dispatch() with no args returned error: %v", err)
	}
}

func TestDispatchHelpSubcommand(t *testing.T) {
	for _, cmd := range commands {
		t.Run(cmd.name, func(t *testing.T) {
			out := captureStdout(t)
			if err := dispatch([]string{"help", cmd.name}); err != nil {
				t.Errorf("dispatch(help %q) returned error: %v", cmd.name, err)
			}
			if !strings.Contains(out.String(), cmd.usage) {
				t.Errorf("help %q missing usage line", cmd.name)
			}
		})
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	err := dispatch([]string{"no-such-command-xyz-abc"})
	if err == nil {
		t.Fatal("expected error for unknown command, got nil")
	}
	if !strings.Contains(err.Error(), "unknown") {
		t.Errorf("expected 'unknown' in error, got: %s", err)
	}
}

func TestBadFlagGivesUsage(t *testing.T) {
	err := dispatch([]string{"process", "-no-such-flag"})
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if !strings.Contains(err.Error(), "usage: ck3weight process") {
		t.Errorf("error missing usage line: %v", err)
	}
}

func TestCommandsHaveRequiredFields(t *testing.T) {
	if len(commands) == 0 {
		t.Fatal("commands slice is empty")
	}
	seen := map[string]bool{}
	for _, cmd := range commands {
		if cmd.name == "" || cmd.short == "" || cmd.usage == "" || cmd.run == nil {
			t.Errorf("command %q is incomplete", cmd.name)
		}
		if seen[cmd.name] {
			t.Errorf("command %q registered twice", cmd.name)
		}
		seen[cmd.name] = true
	}
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func TestProcessRewritesTargetAndWritesReport(t *testing.T) {
	cfgPath, events := workspace(t, "")
	out := captureStdout(t)
	report := filepath.Join(t.TempDir(), "report.yaml")

	if err := dispatch([]string{"process", "-config", cfgPath, "-report", report}); err != nil {
		t.Fatalf("process: %v", err)
	}

	got := readFile(t, filepath.Join(events, "war.txt"))
	if !strings.Contains(got, "\t\tbase = 55\n") || !strings.Contains(got, "# AI-START using: {aggressive}") {
		t.Errorf("war.txt not rewritten as expected:\n%s", got)
	}
	if readFile(t, filepath.Join(events, "war.txt.backup")) != warEvents {
		t.Error("backup does not hold the original file")
	}
	if !strings.Contains(out.String(), "Triggers generated") {
		t.Errorf("summary not printed:\n%s", out.String())
	}

	var sum pipeline.Summary
	if err := yaml.Unmarshal([]byte(readFile(t, report)), &sum); err != nil {
		t.Fatal(err)
	}
	want := map[string]int{"aggressive": 1}
	if sum.TriggersGenerated != 1 || sum.FilesWritten != 1 || !cmp.Equal(want, sum.ModelUsage) {
		t.Errorf("report = %+v", sum)
	}
}

func TestProcessDryRunWithExplicitDir(t *testing.T) {
	cfgPath, _ := workspace(t, "")
	captureStdout(t)
	other := t.TempDir()
	writeFile(t, filepath.Join(other, "war.txt"), warEvents)

	if err := dispatch([]string{"process", "-config", cfgPath, "-dry-run", other}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if readFile(t, filepath.Join(other, "war.txt")) != warEvents {
		t.Error("dry run modified the file")
	}
}

func TestScanListsRegions(t *testing.T) {
	cfgPath, events := workspace(t, "")
	out := captureStdout(t)
	if err := dispatch([]string{"scan", "-config", cfgPath}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, want := range []string{"war.txt", "aggressive", "ok"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("scan output missing %q:\n%s", want, out.String())
		}
	}
	if readFile(t, filepath.Join(events, "war.txt")) != warEvents {
		t.Error("scan modified the file")
	}
}

func TestValidateFailsOnInvalidModel(t *testing.T) {
	cfgPath, _ := workspace(t, "  haunted:\n    traits:\n      negative: [ghost]\n")
	out := captureStdout(t)

	err := dispatch([]string{"validate", "-config", cfgPath})
	if err == nil || !strings.Contains(err.Error(), "1 of 2 models failed validation") {
		t.Fatalf("validate error = %v", err)
	}
	if !strings.Contains(out.String(), "haunted: missing trait ghost") {
		t.Errorf("missing trait not reported:\n%s", out.String())
	}
}

func TestWeights(t *testing.T) {
	cfgPath, _ := workspace(t, "")

	out := captureStdout(t)
	if err := dispatch([]string{"weights", "-config", cfgPath, "aggressive"}); err != nil {
		t.Fatalf("weights: %v", err)
	}
	if !strings.Contains(out.String(), "Total:") || !strings.Contains(out.String(), "brave (positive)") {
		t.Errorf("breakdown output:\n%s", out.String())
	}

	err := dispatch([]string{"weights", "-config", cfgPath, "nobody"})
	if !errors.Is(err, model.ErrUnknownModel) {
		t.Errorf("weights nobody = %v, want ErrUnknownModel", err)
	}
}

func TestDocsWritesVault(t *testing.T) {
	cfgPath, _ := workspace(t, "")
	captureStdout(t)
	out := t.TempDir()
	if err := dispatch([]string{"docs", "-config", cfgPath, out}); err != nil {
		t.Fatalf("docs: %v", err)
	}
	for _, p := range []string{"index.md", "interactions.md", "models/aggressive.md", "traits/brave.md"} {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(p))); err != nil {
			t.Errorf("missing %s: %v", p, err)
		}
	}
}

func TestConditionsSearch(t *testing.T) {
	cfgPath, _ := workspace(t, "")
	out := captureStdout(t)
	if err := dispatch([]string{"conditions", "-config", cfgPath, "at war"}); err != nil {
		t.Fatalf("conditions: %v", err)
	}
	if !strings.Contains(out.String(), "IS_AT_WAR") {
		t.Errorf("search output:\n%s", out.String())
	}
}

func TestInitWithDefaultsWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	captureStdout(t)
	if err := dispatch([]string{"init", "-config", path, "-defaults"}); err != nil {
		t.Fatalf("init: %v", err)
	}
	got, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(config.Default(), got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Prompt
// ---------------------------------------------------------------------------

// answer types text into the focused input and presses Enter.
func answer(m tea.Model, text string) tea.Model {
	if text != "" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return m
}

func TestSetupModelAppliesAnswers(t *testing.T) {
	var m tea.Model = newSetupModel(config.Default())
	if !strings.Contains(m.View(), "Mod name") || !strings.Contains(m.View(), "[1/") {
		t.Errorf("first view = %q", m.View())
	}

	answers := map[string]string{
		"mod.name":                  "Sword Weights",
		"processing.delete_markers": "yes",
		"output.indent_level":       "2",
	}
	for _, q := range setup.Questions(config.Default()) {
		m = answer(m, answers[q.Key])
	}

	final := m.(setupModel)
	if !final.done {
		t.Fatal("prompt not done after the last question")
	}
	want := config.Default()
	want.Mod.Name = "Sword Weights"
	want.Mod.ProjectGroup = "default"
	want.Mod.Author = "CK3 Modder"
	want.Processing.DeleteMarkers = true
	want.Output.IndentLevel = 2
	if diff := cmp.Diff(want, final.cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSetupModelRejectsInvalidAnswer(t *testing.T) {
	var m tea.Model = newSetupModel(config.Default())
	var idx int
	for i, q := range setup.Questions(config.Default()) {
		if q.Key == "output.indent_level" {
			idx = i
			break
		}
		m = answer(m, "")
	}

	m = answer(m, "-3")
	got := m.(setupModel)
	if got.idx != idx || got.err == nil {
		t.Fatalf("idx = %d, err = %v; want to stay on question %d with an error", got.idx, got.err, idx)
	}
	if !strings.Contains(m.View(), "must not be negative") {
		t.Errorf("error not shown:\n%s", m.View())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m = answer(m, "3")
	got = m.(setupModel)
	if got.err != nil || got.cfg.Output.IndentLevel != 3 {
		t.Errorf("after correction: err = %v, indent = %d", got.err, got.cfg.Output.IndentLevel)
	}
}

func TestSetupModelEscCancels(t *testing.T) {
	var m tea.Model = newSetupModel(config.Default())
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.(setupModel).done {
		t.Error("Esc marked the prompt done")
	}
	if cmd == nil {
		t.Error("Esc did not return a quit command")
	}
}
