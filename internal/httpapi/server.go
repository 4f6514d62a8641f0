// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package httpapi is the server's single HTTP surface: the public
// boot.ipxe/static/injections endpoints PXE clients and iPXE hit, and the
// admin JSON API the web UI hits, guarded by HTTP Basic auth.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bqd-services-llc/super-pxe-server/internal/bootscript"
	"github.com/bqd-services-llc/super-pxe-server/internal/config"
	"github.com/bqd-services-llc/super-pxe-server/internal/logging"
)

// Server wires the configuration store, boot script generator, and asset
// directories into an http.Handler.
type Server struct {
	Store         *config.Store
	Generator     *bootscript.Generator
	ISORoot       string
	VHDRoot       string
	StaticDir     string
	InjectionsDir string
	Logger        *logging.Logger

	// Rematerialize re-scans VHDs and rewrites the iSCSI target file; it
	// runs after every successful config save. Nil is tolerated (tests,
	// or a server started without an overlay/iscsi pipeline attached).
	Rematerialize func(ctx context.Context) error
}

// NewServer builds a Server. If logger is nil, logging.Nop() is used.
func NewServer(store *config.Store, generator *bootscript.Generator, isoRoot, vhdRoot, staticDir, injectionsDir string, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		Store:         store,
		Generator:     generator,
		ISORoot:       isoRoot,
		VHDRoot:       vhdRoot,
		StaticDir:     staticDir,
		InjectionsDir: injectionsDir,
		Logger:        logger,
	}
}

// Router builds the full route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware(s.Logger))

	auth := adminAuthMiddleware(func() string { return s.Store.Load().AdminPassword })

	// Public: PXE clients and iPXE itself hit these, unauthenticated.
	r.HandleFunc("/boot.ipxe", s.handleBootScript).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/injections/").Handler(http.StripPrefix("/injections/", http.FileServer(http.Dir(s.InjectionsDir))))
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir(s.StaticDir))))

	// Admin: the web UI, behind HTTP Basic auth against the live
	// admin_password.
	r.Handle("/", auth(http.HandlerFunc(s.handleIndex))).Methods(http.MethodGet)
	r.Handle("/api/config", auth(http.HandlerFunc(s.handleGetConfig))).Methods(http.MethodGet)
	r.Handle("/api/config", auth(http.HandlerFunc(s.handlePostConfig))).Methods(http.MethodPost)
	r.Handle("/api/assets", auth(http.HandlerFunc(s.handleGetAssets))).Methods(http.MethodGet)
	r.Handle("/api/upload_injection", auth(http.HandlerFunc(s.handleUploadInjection))).Methods(http.MethodPost)

	return r
}
