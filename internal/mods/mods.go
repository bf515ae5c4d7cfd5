// Package mods discovers installed Crusader Kings III mods and backs up
// files before they are rewritten.
//
// Mods live in two places: Steam Workshop downloads under numbered folders
// (the workshop item id) and local Paradox launcher mods under the user's
// documents directory. A folder counts as a mod when it holds a
// descriptor.mod and at least one content directory.
package mods

// mods.go — descriptor parsing, discovery, and backups.

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ck3weight/internal/config"
)

// DescriptorFile is the metadata file every mod folder carries.
const DescriptorFile = "descriptor.mod"

// ErrNotFound is returned by Find when no installed mod matches.
var ErrNotFound = errors.New("mod not found")

// contentDirs are the folders that mark a directory as real mod content.
var contentDirs = []string{"events", "common", "localization", "gfx", "music"}

// Source says where a mod was discovered.
type Source string

const (
	SourceSteam   Source = "steam"
	SourceParadox Source = "paradox"
)

// Mod is one installed mod.
type Mod struct {
	Dir string
	// Name is the folder name: the workshop id for Steam mods.
	Name             string
	DisplayName      string
	Version          string
	Description      string
	SupportedVersion string
	RemoteFileID     string
	Source           Source
}

// Label returns the display name, falling back to the folder name.
func (m Mod) Label() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Name
}

// EventsDir returns the mod's events directory.
func (m Mod) EventsDir() string { return filepath.Join(m.Dir, "events") }

// ---------------------------------------------------------------------------
// Descriptor
// ---------------------------------------------------------------------------

// ParseDescriptor reads the quoted key="value" fields of a descriptor.mod.
// Unquoted values and block values such as tags={...} are ignored; the first
// occurrence of a key wins.
func ParseDescriptor(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open descriptor: %w", err)
	}
	defer f.Close()

	fields := map[string]string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := descriptorField(sc.Text())
		if !ok {
			continue
		}
		if _, seen := fields[key]; !seen {
			fields[key] = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	return fields, nil
}

func descriptorField(line string) (string, string, bool) {
	key, rest, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	rest = strings.TrimSpace(rest)
	if key == "" || len(rest) < 2 || rest[0] != '"' {
		return "", "", false
	}
	end := strings.IndexByte(rest[1:], '"')
	if end < 0 {
		return "", "", false
	}
	return key, rest[1 : end+1], true
}

// Load reads the mod in dir. The descriptor must exist.
func Load(dir string, src Source) (Mod, error) {
	fields, err := ParseDescriptor(filepath.Join(dir, DescriptorFile))
	if err != nil {
		return Mod{}, err
	}
	return Mod{
		Dir:              dir,
		Name:             filepath.Base(dir),
		DisplayName:      fields["name"],
		Version:          fields["version"],
		Description:      fields["description"],
		SupportedVersion: fields["supported_version"],
		RemoteFileID:     fields["remote_file_id"],
		Source:           src,
	}, nil
}

// IsValid reports whether dir looks like a mod: a descriptor.mod plus at
// least one content directory.
func IsValid(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, DescriptorFile)); err != nil {
		return false
	}
	for _, d := range contentDirs {
		if info, err := os.Stat(filepath.Join(dir, d)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Discovery
// ---------------------------------------------------------------------------

// List returns every valid mod in the configured Steam Workshop and Paradox
// mod directories, Steam first, each group sorted by folder name. Missing
// directories and folders whose descriptor cannot be read are skipped.
func List(cfg config.Config) ([]Mod, error) {
	var mods []Mod
	if cfg.Mod.UseSteamWorkshop {
		found, err := scanDir(ExpandPath(cfg.Mod.SteamWorkshopPath), SourceSteam)
		if err != nil {
			return nil, err
		}
		mods = append(mods, found...)
	}
	if cfg.Mod.UseParadoxMods {
		found, err := scanDir(ExpandPath(cfg.Mod.ParadoxModPath), SourceParadox)
		if err != nil {
			return nil, err
		}
		mods = append(mods, found...)
	}
	return mods, nil
}

func scanDir(root string, src Source) ([]Mod, error) {
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read mod dir %s: %w", root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var mods []Mod
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		// Workshop items are stored under their numeric id.
		if src == SourceSteam && !isDigits(e.Name()) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if !IsValid(dir) {
			continue
		}
		m, err := Load(dir, src)
		if err != nil {
			continue
		}
		mods = append(mods, m)
	}
	return mods, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Find returns the installed mod whose descriptor name or folder name
// matches name, case-insensitively. Steam mods are searched first.
func Find(cfg config.Config, name string) (Mod, error) {
	all, err := List(cfg)
	if err != nil {
		return Mod{}, err
	}
	for _, m := range all {
		if strings.EqualFold(m.DisplayName, name) || strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return Mod{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// ---------------------------------------------------------------------------
// Paths and backups
// ---------------------------------------------------------------------------

// ExpandPath expands environment variables and a leading ~ in p.
func ExpandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}

// Backup copies path to path+suffix, overwriting an older backup, and
// returns the backup path.
func Backup(path, suffix string) (string, error) {
	if suffix == "" {
		return "", fmt.Errorf("backup %s: empty suffix", path)
	}
	dst := path + suffix
	if err := copyFile(path, dst); err != nil {
		return "", fmt.Errorf("backup %s: %w", path, err)
	}
	return dst, nil
}

// copyFile copies a single file from src to dst, preserving permissions.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
