// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package assets enumerates the ISO and virtual-disk trees the server
// publishes. Listing is containment-checked against symlink escapes and
// never fails loudly: a missing or out-of-bounds directory yields empty
// results rather than an error, matching the rest of the server's policy
// of degrading silently on filesystem surprises (spec §7).
package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// File is a regular file entry under an asset root.
type File struct {
	Name  string // base name, e.g. "ubuntu.iso"
	Path  string // tree-relative path, forward-slash separated
	Size  int64
	Label string // Name without its extension
}

// Dir is a directory entry under an asset root.
type Dir struct {
	Name string
	Path string
}

// VHD is a virtual disk discovered by ScanVHDs.
type VHD struct {
	Path     string // tree-relative, forward-slash separated
	FullPath string // absolute
}

var isoExtensions = map[string]bool{".iso": true}

var vhdExtensions = map[string]bool{
	".vhd":   true,
	".qcow2": true,
	".img":   true,
}

// IsISO reports whether name has a canonical ISO extension.
func IsISO(name string) bool {
	return isoExtensions[strings.ToLower(filepath.Ext(name))]
}

// IsVHD reports whether name has a canonical virtual-disk extension.
func IsVHD(name string) bool {
	return vhdExtensions[strings.ToLower(filepath.Ext(name))]
}

func label(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext)
}

// List enumerates root/subpath non-recursively, returning files and
// directories sorted lexicographically by lowercased name. If the
// resolved absolute path of root/subpath escapes root (including via
// symlink resolution) or the directory does not exist, both return
// values are empty — this is not treated as an error.
func List(root, subpath string) ([]File, []Dir) {
	target := filepath.Join(root, subpath)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, nil
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, nil
	}

	absTarget, err := filepath.Abs(target)
	if err != nil {
		return nil, nil
	}
	realTarget, err := filepath.EvalSymlinks(absTarget)
	if err != nil {
		// Non-existent directory: empty, not an error.
		return nil, nil
	}

	if realTarget != realRoot && !strings.HasPrefix(realTarget, realRoot+string(filepath.Separator)) {
		return nil, nil
	}

	entries, err := os.ReadDir(realTarget)
	if err != nil {
		return nil, nil
	}

	var files []File
	var dirs []Dir
	for _, e := range entries {
		info, err := os.Stat(filepath.Join(realTarget, e.Name()))
		if err != nil {
			continue
		}
		relPath := filepath.ToSlash(filepath.Join(subpath, e.Name()))
		switch {
		case info.IsDir():
			dirs = append(dirs, Dir{Name: e.Name(), Path: relPath})
		case info.Mode().IsRegular():
			files = append(files, File{
				Name:  e.Name(),
				Path:  relPath,
				Size:  info.Size(),
				Label: label(e.Name()),
			})
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i].Name) < strings.ToLower(files[j].Name)
	})
	sort.Slice(dirs, func(i, j int) bool {
		return strings.ToLower(dirs[i].Name) < strings.ToLower(dirs[j].Name)
	})

	return files, dirs
}

// ScanVHDs recursively (but shallowly per directory — it walks the whole
// tree) lists every virtual-disk file under vhdRoot, keeping only
// canonical extensions.
func ScanVHDs(vhdRoot string) []VHD {
	var out []VHD
	absRoot, err := filepath.Abs(vhdRoot)
	if err != nil {
		return nil
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil
	}

	_ = filepath.Walk(realRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !info.Mode().IsRegular() || !IsVHD(info.Name()) {
			return nil
		}
		rel, err := filepath.Rel(realRoot, path)
		if err != nil {
			return nil
		}
		out = append(out, VHD{
			Path:     filepath.ToSlash(rel),
			FullPath: path,
		})
		return nil
	})

	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Path) < strings.ToLower(out[j].Path)
	})

	return out
}
