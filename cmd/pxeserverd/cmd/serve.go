// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bqd-services-llc/super-pxe-server/internal/assets"
	"github.com/bqd-services-llc/super-pxe-server/internal/bootscript"
	"github.com/bqd-services-llc/super-pxe-server/internal/config"
	"github.com/bqd-services-llc/super-pxe-server/internal/httpapi"
	"github.com/bqd-services-llc/super-pxe-server/internal/iscsi"
	"github.com/bqd-services-llc/super-pxe-server/internal/license"
	"github.com/bqd-services-llc/super-pxe-server/internal/logging"
	"github.com/bqd-services-llc/super-pxe-server/internal/overlay"
)

// ServeOptions are the serve subcommand's flags, also usable directly by
// tests or alternate entry points without going through cobra.
type ServeOptions struct {
	ConfigFile    string
	ISORoot       string
	VHDRoot       string
	OverlayDir    string
	StaticDir     string
	InjectionsDir string
	TargetFile    string
	TrialStore    string
	ListenAddr    string
	QemuImgBin    string
	LogLevel      string
}

var serveFlags ServeOptions

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the boot controller in the foreground (same as running with no subcommand)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunServe(serveFlags)
	},
}

// bindServeFlags registers the serve flags onto fs, so both the root
// command (default action) and the explicit "serve" subcommand share the
// same ServeOptions values.
func bindServeFlags(fs *pflag.FlagSet) {
	fs.StringVar(&serveFlags.ConfigFile, "config", "/etc/pxeserver/config.json", "path to the administrator configuration document")
	fs.StringVar(&serveFlags.ISORoot, "iso-root", "/srv/pxeserver/isos", "root of the published ISO tree")
	fs.StringVar(&serveFlags.VHDRoot, "vhd-root", "/srv/pxeserver/vhds", "root of the published virtual-disk tree")
	fs.StringVar(&serveFlags.OverlayDir, "overlay-dir", "/srv/pxeserver/overlays", "directory for per-client copy-on-write overlays")
	fs.StringVar(&serveFlags.StaticDir, "static-dir", "/srv/pxeserver/static", "directory served under /static/")
	fs.StringVar(&serveFlags.InjectionsDir, "injections-dir", "/srv/pxeserver/injections", "directory served under /injections/ and written to by upload")
	fs.StringVar(&serveFlags.TargetFile, "target-file", "/etc/tgt/conf.d/pxeserver.conf", "iSCSI target-daemon configuration file to materialize")
	fs.StringVar(&serveFlags.TrialStore, "trial-store", "/etc/pxeserver/.license_store", "path to the persisted trial-license record")
	fs.StringVar(&serveFlags.ListenAddr, "listen-addr", ":8000", "HTTP listen address")
	fs.StringVar(&serveFlags.QemuImgBin, "qemu-img-bin", "qemu-img", "qemu-img executable used to create overlay disks")
	fs.StringVar(&serveFlags.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func init() {
	bindServeFlags(serveCmd.Flags())
}

// RunServe wires every component and blocks serving HTTP until the
// process receives SIGINT or SIGTERM.
func RunServe(opts ServeOptions) error {
	logger := logging.New(os.Stderr, opts.LogLevel)

	// Pre-flight: warn on missing asset roots rather than failing to
	// start — the asset scanner already degrades to empty listings for
	// a missing directory (spec §7), and an operator may intend to
	// populate these trees after the daemon is already up.
	for _, dir := range []string{opts.ISORoot, opts.VHDRoot} {
		if _, err := os.Stat(dir); err != nil {
			logger.Warn("asset root is not present at startup", "dir", dir, "error", err)
		}
	}

	gate := license.New(opts.TrialStore)
	store := config.New(opts.ConfigFile, gate, logger)

	overlayTool := overlay.QemuImgTool{Bin: opts.QemuImgBin}
	overlayMgr := overlay.New(opts.OverlayDir, overlayTool, logger)
	materializer := iscsi.New(opts.TargetFile, overlayMgr, logger)

	generator := &bootscript.Generator{ISORoot: opts.ISORoot, VHDRoot: opts.VHDRoot}

	rematerialize := func(ctx context.Context) error {
		vhds := assets.ScanVHDs(opts.VHDRoot)
		cfg := store.Load()
		return materializer.Materialize(ctx, vhds, cfg)
	}

	// spec §5: in-memory caches are rebuilt on startup via a single scan
	// + materialize.
	if err := rematerialize(context.Background()); err != nil {
		logger.Error("initial materialize failed", "error", err)
	}

	server := httpapi.NewServer(store, generator, opts.ISORoot, opts.VHDRoot, opts.StaticDir, opts.InjectionsDir, logger)
	server.Rematerialize = rematerialize

	httpServer := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
