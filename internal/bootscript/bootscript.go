// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package bootscript generates the two iPXE dialects the boot endpoint
// serves: an interactive menu (possibly descended into a subdirectory)
// and a per-client auto-boot script. Both are pure string builders over
// their inputs; the only side effect anywhere in this package is the
// filesystem read performed by the asset scanner it calls into.
package bootscript

import (
	"fmt"
	"strings"

	"github.com/bqd-services-llc/super-pxe-server/internal/assets"
	"github.com/bqd-services-llc/super-pxe-server/internal/config"
	"github.com/bqd-services-llc/super-pxe-server/internal/naming"
)

// TypeFilter selects which asset root(s) a menu request scans.
type TypeFilter string

const (
	TypeRoot TypeFilter = "root"
	TypeISO  TypeFilter = "iso"
	TypeVHD  TypeFilter = "vhd"
)

func normalizeType(t string) TypeFilter {
	switch TypeFilter(t) {
	case TypeISO:
		return TypeISO
	case TypeVHD:
		return TypeVHD
	default:
		return TypeRoot
	}
}

// Params are the boot endpoint's query parameters.
type Params struct {
	MAC  string
	Path string
	Type string
}

// Generator renders boot scripts against a pair of asset roots. ISORoot
// and VHDRoot are deployment-time filesystem paths, set once at startup;
// everything else it needs (server_ip, menu_title, boot_timeout) is
// administrator-mutable and is read fresh from the Config passed to
// Generate on every call, never cached on the Generator itself.
type Generator struct {
	ISORoot string
	VHDRoot string
}

// Generate is the boot endpoint's single entry point: if params.MAC
// matches a roster entry it returns that client's auto-boot script,
// otherwise (including when mac is absent, or present but unmatched —
// spec §7 "Client MAC not found") it returns the interactive menu.
func (g *Generator) Generate(cfg config.Config, params Params) string {
	if params.MAC != "" {
		if client, ok := cfg.FindClientByMAC(params.MAC); ok {
			return g.AutoBoot(cfg.ServerIP, client)
		}
	}
	return g.Menu(params.Path, normalizeType(params.Type), cfg.ServerIP, cfg.MenuTitle, cfg.BootTimeout)
}

// AutoBoot renders the per-client script for an already-resolved client.
func (g *Generator) AutoBoot(serverIP string, client config.Client) string {
	var b strings.Builder
	b.WriteString("#!ipxe\n")

	switch client.Type {
	case config.ClientISO:
		writeISOBoot(&b, serverIP, client)
	case config.ClientVHD:
		writeVHDBoot(&b, serverIP, client)
	}

	return b.String()
}

func writeISOBoot(b *strings.Builder, serverIP string, client config.Client) {
	fmt.Fprintf(b, "initrd http://%s/storage/isos/%s\n", serverIP, client.Image)

	kernelArgs := client.KernelArgs
	if client.InjectionFile != "" {
		kernelArgs += injectionSuffix(serverIP, client.InjectionFile)
	}

	if kernelArgs != "" {
		fmt.Fprintf(b, "imgargs memdisk iso raw %s\n", kernelArgs)
	}

	fmt.Fprintf(b, "chain http://%s/tftpboot/memdisk iso raw\n", serverIP)
}

// injectionSuffix implements the ISO-only kernel-argument injection
// heuristic. The leading space is intentional: it is appended onto
// whatever kernel_args already accumulated (possibly empty).
func injectionSuffix(serverIP, injectionFile string) string {
	u := fmt.Sprintf("http://%s/injections/%s", serverIP, injectionFile)
	switch {
	case strings.HasSuffix(injectionFile, ".cfg") || strings.HasSuffix(injectionFile, ".ks"):
		return " inst.ks=" + u
	case strings.Contains(injectionFile, "user-data"):
		stripped := strings.TrimSuffix(u, "user-data")
		return " ds=nocloud-net;s=" + stripped
	default:
		return ""
	}
}

func writeVHDBoot(b *strings.Builder, serverIP string, client config.Client) {
	var iqn string
	if client.Overlay {
		iqn = naming.ClientIQN(client.MAC, client.Image)
	} else {
		iqn = naming.MasterIQN(client.Image)
	}
	fmt.Fprintf(b, "sanboot iscsi:%s::::%s\n", serverIP, iqn)
}

// menuEntry is one emitted "item"/"label" pair.
type menuEntry struct {
	label string
	name  string
	kind  entryKind
	// for directories: the child path and the type filter to recurse
	// with. For files: the tree-relative asset path.
	path   string
	filter TypeFilter
}

type entryKind int

const (
	entryDir entryKind = iota
	entryFileISO
	entryFileVHD
)

// Menu renders the interactive menu for path under the given type
// filter.
func (g *Generator) Menu(path string, filter TypeFilter, serverIP, menuTitle string, timeoutSeconds int) string {
	var b strings.Builder
	b.WriteString("#!ipxe\n")
	fmt.Fprintf(&b, "set timeout %d\n", timeoutSeconds*1000)

	title := path
	if title == "" {
		title = "Root"
	}
	fmt.Fprintf(&b, "menu %s - %s\n", menuTitle, title)

	var dirs []menuEntry
	var files []menuEntry

	if filter == TypeRoot || filter == TypeISO {
		d, f := g.collect(g.ISORoot, path, TypeISO, assets.IsISO, entryFileISO)
		dirs = append(dirs, d...)
		files = append(files, f...)
	}
	if filter == TypeRoot || filter == TypeVHD {
		d, f := g.collect(g.VHDRoot, path, TypeVHD, assets.IsVHD, entryFileVHD)
		dirs = append(dirs, d...)
		files = append(files, f...)
	}

	hasBack := path != ""
	if hasBack {
		b.WriteString("item back .. (up one level)\n")
	}

	if len(dirs) > 0 {
		b.WriteString("item --gap -- Directories --\n")
		for _, d := range dirs {
			fmt.Fprintf(&b, "item %s %s/\n", d.label, d.name)
		}
	}

	if len(files) > 0 {
		b.WriteString("item --gap -- Files --\n")
		for _, f := range files {
			fmt.Fprintf(&b, "item %s %s\n", f.label, f.name)
		}
	}

	b.WriteString("choose target && goto ${target}\n")

	if hasBack {
		fmt.Fprintf(&b, ":back\nchain http://%s:8000/boot.ipxe?path=%s&type=%s\n", serverIP, parentPath(path), filter)
	}

	for _, d := range dirs {
		fmt.Fprintf(&b, ":%s\nchain http://%s:8000/boot.ipxe?path=%s&type=%s\n", d.label, serverIP, d.path, d.filter)
	}

	for _, f := range files {
		switch f.kind {
		case entryFileISO:
			fmt.Fprintf(&b, ":%s\ninitrd http://%s/storage/isos/%s\n", f.label, serverIP, f.path)
			fmt.Fprintf(&b, "chain http://%s/tftpboot/memdisk iso raw\n", serverIP)
		case entryFileVHD:
			fmt.Fprintf(&b, ":%s\nsanboot iscsi:%s::::%s\n", f.label, serverIP, naming.MasterIQN(f.path))
		}
	}

	return b.String()
}

// collect lists root/path and returns directory and file menu entries,
// filtering files to those matching isAsset. childFilter selects the
// directory labels' Kind namespace and the type filter subsequent
// navigation uses; fileKind selects the file labels' Kind namespace.
func (g *Generator) collect(root, path string, childFilter TypeFilter, isAsset func(string) bool, fileKind entryKind) ([]menuEntry, []menuEntry) {
	files, rawDirs := assets.List(root, path)

	dirKind := naming.KindDirISO
	if childFilter == TypeVHD {
		dirKind = naming.KindDirVHD
	}

	var dirs []menuEntry
	for _, d := range rawDirs {
		dirs = append(dirs, menuEntry{
			label:  naming.MenuLabel(dirKind, d.Path),
			name:   d.Name,
			kind:   entryDir,
			path:   d.Path,
			filter: childFilter,
		})
	}

	fileNamerKind := naming.KindISO
	if fileKind == entryFileVHD {
		fileNamerKind = naming.KindVHD
	}

	var out []menuEntry
	for _, f := range files {
		if !isAsset(f.Name) {
			continue
		}
		out = append(out, menuEntry{
			label: naming.MenuLabel(fileNamerKind, f.Path),
			name:  f.Name,
			kind:  fileKind,
			path:  f.Path,
		})
	}

	return dirs, out
}

// parentPath returns the tree-relative parent of path ("" for top-level
// children).
func parentPath(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}
