// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package naming implements the pure IQN and iPXE label functions that
// bind a menu entry, an overlay file, and an iSCSI target definition
// together. Every function here is pure over its inputs.
package naming

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// IQNPrefix is the fixed vendor prefix for every IQN this server emits.
const IQNPrefix = "iqn.2024-01.com.pxeserver:"

// Kind distinguishes the asset class a menu label was minted for. Each
// kind occupies a distinct label namespace by prefix so that an ISO file
// and a directory of the same name never collide.
type Kind string

const (
	KindISO    Kind = "iso"
	KindVHD    Kind = "vhd"
	KindDirISO Kind = "dir_iso"
	KindDirVHD Kind = "dir_vhd"
)

// SafeName lowercases a tree-relative path and replaces each of '/', '\\',
// '_', '.' with '-'. It is idempotent: SafeName(SafeName(p)) == SafeName(p).
func SafeName(path string) string {
	s := strings.ToLower(path)
	replacer := strings.NewReplacer("/", "-", "\\", "-", "_", "-", ".", "-")
	return replacer.Replace(s)
}

// CompactMAC strips ':' from a lowercased MAC address, e.g.
// "AA:BB:CC:DD:EE:FF" -> "aabbccddeeff".
func CompactMAC(mac string) string {
	return strings.ReplaceAll(strings.ToLower(mac), ":", "")
}

// NormalizeMAC lowercases a MAC and normalizes '-' separators to ':' so
// that "AA-BB-CC-DD-EE-FF" and "aa:bb:cc:dd:ee:ff" compare equal.
func NormalizeMAC(mac string) string {
	return strings.ReplaceAll(strings.ToLower(mac), "-", ":")
}

// MasterIQN returns the IQN for a master virtual disk identified by its
// tree-relative path.
func MasterIQN(vhdPath string) string {
	return IQNPrefix + SafeName(vhdPath)
}

// ClientIQN returns the IQN for a per-client copy-on-write overlay over
// the virtual disk at image (tree-relative path), owned by mac.
func ClientIQN(mac, image string) string {
	return IQNPrefix + CompactMAC(NormalizeMAC(mac)) + ":" + SafeName(image)
}

// MenuLabel mints a short, stable, iPXE-legal identifier for (kind, path).
// The same (kind, path) pair always yields the same label, and the
// namespace is disjoint across kinds by construction (the kind prefix),
// so a single iPXE response can always match each "item X" line to
// exactly one ":X" label block.
func MenuLabel(kind Kind, path string) string {
	h := xxhash.Sum64String(path)
	return fmt.Sprintf("%s_%08x", kind, uint32(h))
}
