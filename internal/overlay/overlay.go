// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package overlay manages per-client copy-on-write disk overlays backed
// by read-only master virtual disks. Disk-image creation is modeled as a
// narrow DiskImageTool interface (teacher pattern: tools/pkg/toolbox/vmm
// shells out to qemu-img the same way) so tests can substitute a fake and
// production code can enforce timeouts and capture stderr.
package overlay

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bqd-services-llc/super-pxe-server/internal/logging"
	"github.com/bqd-services-llc/super-pxe-server/internal/naming"
)

// DiskImageTool creates a copy-on-write overlay backed by a raw backing
// file. Implementations shell out to an external disk-image utility.
type DiskImageTool interface {
	CreateOverlay(ctx context.Context, masterPath, overlayPath string) error
}

// QemuImgTool invokes the qemu-img binary to create qcow2 overlays.
type QemuImgTool struct {
	// Bin is the qemu-img executable name or path. Defaults to "qemu-img".
	Bin string
}

func (t QemuImgTool) bin() string {
	if t.Bin != "" {
		return t.Bin
	}
	return "qemu-img"
}

// CreateOverlay runs `qemu-img create -f qcow2 -b <master> -F raw <overlay>`.
// The master is treated as a raw backing file per spec §4.3.
func (t QemuImgTool) CreateOverlay(ctx context.Context, masterPath, overlayPath string) error {
	cmd := exec.CommandContext(ctx, t.bin(), "create", "-f", "qcow2", "-b", masterPath, "-F", "raw", overlayPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("qemu-img create overlay: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// Manager ensures per-client overlay files exist over named master disks.
type Manager struct {
	Dir    string // overlay directory
	Tool   DiskImageTool
	Logger *logging.Logger

	mu sync.Mutex
}

// New builds a Manager. If logger is nil, logging.Nop() is used.
func New(dir string, tool DiskImageTool, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{Dir: dir, Tool: tool, Logger: logger}
}

// OverlayPath computes the overlay file path for (mac, masterPath) without
// touching disk: <mac-compact>_<master-basename>.qcow2 under Dir.
func (m *Manager) OverlayPath(masterPath, mac string) string {
	base := filepath.Base(masterPath)
	name := fmt.Sprintf("%s_%s.qcow2", naming.CompactMAC(naming.NormalizeMAC(mac)), base)
	return filepath.Join(m.Dir, name)
}

// EnsureOverlay returns the absolute path of the overlay file for
// (masterPath, mac), creating it via the DiskImageTool if it does not yet
// exist. If the overlay already exists, its path is returned without any
// disk activity. On tool failure, the error is logged and the master path
// is returned as a fallback — callers must tolerate a master being handed
// back in place of an overlay (documented risk, spec §4.3/§7).
func (m *Manager) EnsureOverlay(ctx context.Context, masterPath, mac string) (string, error) {
	overlayPath := m.OverlayPath(masterPath, mac)

	if _, err := os.Stat(overlayPath); err == nil {
		return overlayPath, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Re-check after acquiring the lock: another request may have created
	// it while we were waiting.
	if _, err := os.Stat(overlayPath); err == nil {
		return overlayPath, nil
	}

	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		m.Logger.Error("failed to create overlay directory", "dir", m.Dir, "error", err)
		return masterPath, err
	}

	if err := m.Tool.CreateOverlay(ctx, masterPath, overlayPath); err != nil {
		m.Logger.Error("overlay creation failed, falling back to master",
			"master", masterPath, "overlay", overlayPath, "error", err)
		return masterPath, err
	}

	m.Logger.Info("created overlay", "master", masterPath, "overlay", overlayPath, "mac", mac)
	return overlayPath, nil
}
