package mods_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ck3weight/internal/config"
	"ck3weight/internal/mods"
)

// withTempHome redirects os.UserHomeDir to a temp directory for the duration of the test.
func withTempHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	return tmp
}

func writeMod(t *testing.T, dir, descriptor string, content ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, mods.DescriptorFile), []byte(descriptor), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, c := range content {
		if err := os.MkdirAll(filepath.Join(dir, c), 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func TestParseDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeMod(t, dir, `version="1.2"
tags={
	"Gameplay"
}
name="Better AI"
supported_version="1.12.*"
remote_file_id="2887120253"
name="Shadowed"
path=unquoted
`)
	got, err := mods.ParseDescriptor(filepath.Join(dir, mods.DescriptorFile))
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"version":           "1.2",
		"name":              "Better AI",
		"supported_version": "1.12.*",
		"remote_file_id":    "2887120253",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDescriptorMissing(t *testing.T) {
	if _, err := mods.ParseDescriptor(filepath.Join(t.TempDir(), mods.DescriptorFile)); err == nil {
		t.Fatal("expected error for missing descriptor")
	}
}

func TestIsValid(t *testing.T) {
	root := t.TempDir()
	good := filepath.Join(root, "good")
	writeMod(t, good, `name="Good"`, "events")
	bare := filepath.Join(root, "bare")
	writeMod(t, bare, `name="Bare"`)
	nodesc := filepath.Join(root, "nodesc")
	if err := os.MkdirAll(filepath.Join(nodesc, "common"), 0o755); err != nil {
		t.Fatal(err)
	}

	for dir, want := range map[string]bool{good: true, bare: false, nodesc: false} {
		if got := mods.IsValid(dir); got != want {
			t.Errorf("IsValid(%s) = %v, want %v", filepath.Base(dir), got, want)
		}
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	home := withTempHome(t)
	steam := filepath.Join(home, "workshop")
	paradox := filepath.Join(home, "paradox")

	writeMod(t, filepath.Join(steam, "200"), `name="Zeta"`+"\n"+`remote_file_id="200"`, "events")
	writeMod(t, filepath.Join(steam, "100"), `name="Alpha Weights"`, "common")
	writeMod(t, filepath.Join(steam, "not-an-id"), `name="Ignored"`, "events")
	writeMod(t, filepath.Join(paradox, "local_mod"), `name="Local"`+"\n"+`version="0.1"`, "localization")
	writeMod(t, filepath.Join(paradox, "empty_mod"), `name="Empty"`)

	cfg := config.Default()
	cfg.Mod.SteamWorkshopPath = "~/workshop"
	cfg.Mod.ParadoxModPath = "$HOME/paradox"
	return cfg
}

func TestList(t *testing.T) {
	cfg := testConfig(t)
	got, err := mods.List(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var labels []string
	for _, m := range got {
		labels = append(labels, string(m.Source)+":"+m.Label())
	}
	want := []string{"steam:Alpha Weights", "steam:Zeta", "paradox:Local"}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("mods mismatch (-want +got):\n%s", diff)
	}
	if got[1].RemoteFileID != "200" || got[2].Version != "0.1" {
		t.Errorf("descriptor fields not loaded: %+v", got)
	}
}

func TestListHonoursSourceSwitches(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mod.UseSteamWorkshop = false
	got, err := mods.List(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "local_mod" {
		t.Errorf("got %+v", got)
	}
}

func TestListSkipsUnreadableDescriptor(t *testing.T) {
	cfg := testConfig(t)
	home, _ := os.UserHomeDir()
	// A descriptor.mod that is a directory passes IsValid but cannot be read.
	broken := filepath.Join(home, "workshop", "150")
	if err := os.MkdirAll(filepath.Join(broken, mods.DescriptorFile), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(broken, "events"), 0o755); err != nil {
		t.Fatal(err)
	}
	if !mods.IsValid(broken) {
		t.Fatal("broken mod folder should look valid")
	}

	got, err := mods.List(cfg)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var labels []string
	for _, m := range got {
		labels = append(labels, string(m.Source)+":"+m.Label())
	}
	want := []string{"steam:Alpha Weights", "steam:Zeta", "paradox:Local"}
	if diff := cmp.Diff(want, labels); diff != "" {
		t.Errorf("mods mismatch (-want +got):\n%s", diff)
	}
}

func TestListMissingDirectories(t *testing.T) {
	withTempHome(t)
	cfg := config.Default()
	got, err := mods.List(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected no mods, got %d", len(got))
	}
}

func TestFind(t *testing.T) {
	cfg := testConfig(t)

	m, err := mods.Find(cfg, "alpha weights")
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "100" || m.Source != mods.SourceSteam {
		t.Errorf("Find by display name = %+v", m)
	}

	m, err = mods.Find(cfg, "LOCAL_MOD")
	if err != nil {
		t.Fatal(err)
	}
	if m.DisplayName != "Local" {
		t.Errorf("Find by folder = %+v", m)
	}

	if _, err := mods.Find(cfg, "Empty"); !errors.Is(err, mods.ErrNotFound) {
		t.Errorf("Find(invalid mod) err = %v, want ErrNotFound", err)
	}
}

func TestExpandPath(t *testing.T) {
	home := withTempHome(t)
	t.Setenv("CK3_ROOT", "/games/ck3")
	tests := map[string]string{
		"~":               filepath.Clean(home),
		"~/mods":          filepath.Join(home, "mods"),
		"$CK3_ROOT/mod":   "/games/ck3/mod",
		"relative/~/path": "relative/~/path",
		"/absolute/path":  "/absolute/path",
	}
	for in, want := range tests {
		if got := mods.ExpandPath(in); got != want {
			t.Errorf("ExpandPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "war_events.txt")
	if err := os.WriteFile(path, []byte("original contents\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A stale, longer backup must be fully replaced.
	if err := os.WriteFile(path+".backup", []byte("a much longer stale backup body\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst, err := mods.Backup(path, ".backup")
	if err != nil {
		t.Fatal(err)
	}
	if dst != path+".backup" {
		t.Errorf("backup path = %s", dst)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "original contents\n" {
		t.Errorf("backup contents = %q", data)
	}

	if _, err := mods.Backup(filepath.Join(t.TempDir(), "missing.txt"), ".backup"); err == nil {
		t.Error("expected error backing up a missing file")
	}
	if _, err := mods.Backup(path, ""); err == nil {
		t.Error("expected error for empty suffix")
	}
}
