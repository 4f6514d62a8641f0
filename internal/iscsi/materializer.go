// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package iscsi generates the iscsi target-daemon configuration file from
// the scanned VHD tree, the client roster, and the initiator allowlist.
// It is the single writer of targets.conf; the file is not reloaded into
// any running daemon (spec §1 Non-goals, §9 Open Question 1).
package iscsi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bqd-services-llc/super-pxe-server/internal/assets"
	"github.com/bqd-services-llc/super-pxe-server/internal/config"
	"github.com/bqd-services-llc/super-pxe-server/internal/logging"
	"github.com/bqd-services-llc/super-pxe-server/internal/metrics"
	"github.com/bqd-services-llc/super-pxe-server/internal/naming"
	"github.com/bqd-services-llc/super-pxe-server/internal/overlay"
)

// OverlayEnsurer is the subset of *overlay.Manager the materializer needs,
// narrowed so tests can substitute a fake.
type OverlayEnsurer interface {
	EnsureOverlay(ctx context.Context, masterPath, mac string) (string, error)
}

var _ OverlayEnsurer = (*overlay.Manager)(nil)

// Materializer writes the target-daemon configuration file.
type Materializer struct {
	TargetFilePath string
	Overlays       OverlayEnsurer
	Logger         *logging.Logger
}

// New builds a Materializer. If logger is nil, logging.Nop() is used.
func New(targetFilePath string, overlays OverlayEnsurer, logger *logging.Logger) *Materializer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Materializer{TargetFilePath: targetFilePath, Overlays: overlays, Logger: logger}
}

// Materialize renders targets.conf for vhds (in scan order, masters
// first) and cfg.Clients (in roster order, overlays second). Writing is
// best-effort temp-file-then-rename, not required to be atomic across
// the pair of generated files (spec §1 Non-goals).
func (m *Materializer) Materialize(ctx context.Context, vhds []assets.VHD, cfg config.Config) error {
	var b strings.Builder

	for _, vhd := range vhds {
		writeTargetBlock(&b, naming.MasterIQN(vhd.Path), vhd.FullPath, cfg.ISCSIAllowedInitiators)
	}

	for _, client := range cfg.Clients {
		if client.Type != config.ClientVHD || !client.Overlay {
			continue
		}
		masterPath := m.resolveMasterPath(vhds, client.Image)
		if masterPath == "" {
			m.Logger.Warn("overlay client references unknown master image, skipping", "mac", client.MAC, "image", client.Image)
			continue
		}
		overlayPath, err := m.Overlays.EnsureOverlay(ctx, masterPath, client.MAC)
		if err != nil {
			m.Logger.Warn("overlay ensure failed, target still emitted with fallback path", "mac", client.MAC, "error", err)
			metrics.OverlayCreationsTotal.WithLabelValues("fallback").Inc()
		} else {
			metrics.OverlayCreationsTotal.WithLabelValues("success").Inc()
		}
		writeTargetBlock(&b, naming.ClientIQN(client.MAC, client.Image), overlayPath, cfg.ISCSIAllowedInitiators)
	}

	return m.writeFile(b.String())
}

func (m *Materializer) resolveMasterPath(vhds []assets.VHD, image string) string {
	for _, vhd := range vhds {
		if vhd.Path == image {
			return vhd.FullPath
		}
	}
	return ""
}

func writeTargetBlock(b *strings.Builder, iqn, backingStore, initiators string) {
	fmt.Fprintf(b, "<target %s>\n", iqn)
	fmt.Fprintf(b, "    backing-store %s\n", backingStore)
	fmt.Fprintf(b, "    initiator-address %s\n", initiators)
	b.WriteString("</target>\n")
}

func (m *Materializer) writeFile(content string) error {
	if err := os.MkdirAll(filepath.Dir(m.TargetFilePath), 0o755); err != nil {
		return fmt.Errorf("create target file dir: %w", err)
	}
	tmp := m.TargetFilePath + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write temp target file: %w", err)
	}
	if err := os.Rename(tmp, m.TargetFilePath); err != nil {
		m.Logger.Error("failed to rename target file into place", "path", m.TargetFilePath, "error", err)
		return fmt.Errorf("rename target file: %w", err)
	}
	return nil
}
