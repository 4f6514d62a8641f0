// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bootscript

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bqd-services-llc/super-pxe-server/internal/config"
)

const (
	testServerIP    = "192.168.1.10"
	testMenuTitle   = "Super PXE Server (Next-Gen)"
	testBootTimeout = 10
)

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	isoRoot := t.TempDir()
	vhdRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(isoRoot, "ubuntu.iso"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(isoRoot, "centos.iso"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(isoRoot, "linux"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(vhdRoot, "win.vhd"), []byte("x"), 0o644))

	return &Generator{ISORoot: isoRoot, VHDRoot: vhdRoot}
}

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.ServerIP = testServerIP
	cfg.MenuTitle = testMenuTitle
	cfg.BootTimeout = testBootTimeout
	return cfg
}

// Every "item L <name>" line must have a matching ":L" label block.
var itemLineRe = regexp.MustCompile(`(?m)^item (\S+) `)
var labelLineRe = regexp.MustCompile(`(?m)^:(\S+)$`)

func assertEveryItemHasLabel(t *testing.T, script string) {
	t.Helper()
	labels := map[string]bool{}
	for _, m := range labelLineRe.FindAllStringSubmatch(script, -1) {
		labels[m[1]] = true
	}
	for _, m := range itemLineRe.FindAllStringSubmatch(script, -1) {
		if m[1] == "--gap" {
			continue
		}
		assert.True(t, labels[m[1]], "item %s has no matching label block", m[1])
	}
}

func TestMenuRootListsBothTrees(t *testing.T) {
	g := newGenerator(t)
	script := g.Menu("", TypeRoot, testServerIP, testMenuTitle, testBootTimeout)

	assert.Contains(t, script, "#!ipxe")
	assert.Contains(t, script, "set timeout 10000")
	assert.Contains(t, script, "menu Super PXE Server (Next-Gen) - Root")
	assert.Contains(t, script, "item --gap -- Directories --")
	assert.Contains(t, script, "item --gap -- Files --")
	assert.Contains(t, script, "ubuntu.iso")
	assert.Contains(t, script, "win.vhd")
	assert.NotContains(t, script, "item back")
	assertEveryItemHasLabel(t, script)
}

func TestMenuNonRootPathHasBackItem(t *testing.T) {
	g := newGenerator(t)
	script := g.Menu("linux", TypeISO, testServerIP, testMenuTitle, testBootTimeout)
	assert.Contains(t, script, "item back .. (up one level)")
	assert.Contains(t, script, ":back")
	assert.Contains(t, script, "path=&type=iso")
	assertEveryItemHasLabel(t, script)
}

func TestMenuLabelsAreStableAcrossCalls(t *testing.T) {
	g := newGenerator(t)
	a := g.Menu("", TypeRoot, testServerIP, testMenuTitle, testBootTimeout)
	b := g.Menu("", TypeRoot, testServerIP, testMenuTitle, testBootTimeout)
	assert.Equal(t, a, b)
}

func TestMenuISOFileLabelChainsMemdisk(t *testing.T) {
	g := newGenerator(t)
	script := g.Menu("", TypeISO, testServerIP, testMenuTitle, testBootTimeout)
	assert.Contains(t, script, "initrd http://192.168.1.10/storage/isos/ubuntu.iso")
	assert.Contains(t, script, "chain http://192.168.1.10/tftpboot/memdisk iso raw")
}

func TestMenuVHDFileLabelSanboots(t *testing.T) {
	g := newGenerator(t)
	script := g.Menu("", TypeVHD, testServerIP, testMenuTitle, testBootTimeout)
	assert.Contains(t, script, "sanboot iscsi:192.168.1.10::::iqn.2024-01.com.pxeserver:win-vhd")
}

func TestAutoBootVHDUsesOverlayIQNWhenOverlayEnabled(t *testing.T) {
	g := newGenerator(t)
	client := config.Client{MAC: "aa:bb:cc:dd:ee:ff", Image: "win.vhd", Type: config.ClientVHD, Overlay: true}
	script := g.AutoBoot(testServerIP, client)
	assert.Contains(t, script, "sanboot iscsi:192.168.1.10::::iqn.2024-01.com.pxeserver:aabbccddeeff:win-vhd")
}

func TestAutoBootVHDUsesMasterIQNWithoutOverlay(t *testing.T) {
	g := newGenerator(t)
	client := config.Client{MAC: "aa:bb:cc:dd:ee:ff", Image: "win.vhd", Type: config.ClientVHD, Overlay: false}
	script := g.AutoBoot(testServerIP, client)
	assert.Contains(t, script, "sanboot iscsi:192.168.1.10::::iqn.2024-01.com.pxeserver:win-vhd")
}

func TestAutoBootISOWithKsInjectionFile(t *testing.T) {
	g := newGenerator(t)
	client := config.Client{MAC: "aa:bb:cc:dd:ee:ff", Image: "centos.iso", Type: config.ClientISO, InjectionFile: "ks.cfg"}
	script := g.AutoBoot(testServerIP, client)
	assert.Contains(t, script, "initrd http://192.168.1.10/storage/isos/centos.iso")
	assert.Contains(t, script, "imgargs memdisk iso raw  inst.ks=http://192.168.1.10/injections/ks.cfg")
	assert.Contains(t, script, "chain http://192.168.1.10/tftpboot/memdisk iso raw")
}

func TestAutoBootISOWithUserDataInjectionFile(t *testing.T) {
	g := newGenerator(t)
	client := config.Client{MAC: "aa:bb:cc:dd:ee:ff", Image: "ubuntu.iso", Type: config.ClientISO, InjectionFile: "user-data"}
	script := g.AutoBoot(testServerIP, client)
	assert.Contains(t, script, "imgargs memdisk iso raw  ds=nocloud-net;s=http://192.168.1.10/injections/")
}

func TestAutoBootISOWithNoInjectionOrArgsSkipsImgargsLine(t *testing.T) {
	g := newGenerator(t)
	client := config.Client{MAC: "aa:bb:cc:dd:ee:ff", Image: "ubuntu.iso", Type: config.ClientISO}
	script := g.AutoBoot(testServerIP, client)
	assert.False(t, strings.Contains(script, "imgargs"))
}

func TestAutoBootISOAccumulatesKernelArgsBeforeInjection(t *testing.T) {
	g := newGenerator(t)
	client := config.Client{MAC: "aa:bb:cc:dd:ee:ff", Image: "ubuntu.iso", Type: config.ClientISO, KernelArgs: "console=ttyS0", InjectionFile: "ks.cfg"}
	script := g.AutoBoot(testServerIP, client)
	assert.Contains(t, script, "imgargs memdisk iso raw console=ttyS0 inst.ks=http://192.168.1.10/injections/ks.cfg")
}

func TestGenerateFallsThroughToMenuWhenMACUnknown(t *testing.T) {
	g := newGenerator(t)
	script := g.Generate(testConfig(), Params{MAC: "00:00:00:00:00:00"})
	assert.Contains(t, script, "menu Super PXE Server (Next-Gen) - Root")
}

func TestGenerateDispatchesToAutoBootWhenMACKnown(t *testing.T) {
	g := newGenerator(t)
	cfg := testConfig()
	cfg.Clients = []config.Client{{MAC: "aa:bb:cc:dd:ee:ff", Image: "win.vhd", Type: config.ClientVHD}}
	script := g.Generate(cfg, Params{MAC: "aa:bb:cc:dd:ee:ff"})
	assert.Contains(t, script, "sanboot iscsi:")
	assert.NotContains(t, script, "menu ")
}
