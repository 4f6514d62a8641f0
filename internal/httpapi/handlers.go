// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bqd-services-llc/super-pxe-server/internal/apperrors"
	"github.com/bqd-services-llc/super-pxe-server/internal/assets"
	"github.com/bqd-services-llc/super-pxe-server/internal/bootscript"
	"github.com/bqd-services-llc/super-pxe-server/internal/config"
	"github.com/bqd-services-llc/super-pxe-server/internal/metrics"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBootScript(w http.ResponseWriter, r *http.Request) {
	cfg := s.Store.Load()
	q := r.URL.Query()
	params := bootscript.Params{MAC: q.Get("mac"), Path: q.Get("path"), Type: q.Get("type")}

	mode := metrics.BootModeMenu
	if params.MAC != "" {
		if _, ok := cfg.FindClientByMAC(params.MAC); ok {
			mode = metrics.BootModeAutoBoot
		}
	}
	metrics.BootRequestsTotal.WithLabelValues(string(mode)).Inc()

	script := s.Generator.Generate(cfg, params)
	w.Header().Set("Content-Type", "text/plain; charset=us-ascii")
	_, _ = w.Write([]byte(script))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.StaticDir, "index.html"))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.Store.Load())
}

func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	var doc config.Config
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&doc); err != nil {
		WriteAppError(w, apperrors.Wrap(apperrors.KindValidation, "invalid request body", err))
		return
	}

	saved, err := s.Store.Save(doc)
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "config save failed", "error", err)
		WriteAppError(w, apperrors.Wrap(apperrors.KindInternal, "failed to save configuration", err))
		return
	}
	metrics.ConfigSavesTotal.Inc()

	if s.Rematerialize != nil {
		if err := s.Rematerialize(r.Context()); err != nil {
			s.Logger.ErrorContext(r.Context(), "rematerialize after config save failed", "error", err)
		}
	}

	WriteJSON(w, http.StatusOK, saved)
}

type assetsResponse struct {
	Path     string        `json:"path"`
	Type     string        `json:"type"`
	ISOFiles []assets.File `json:"iso_files"`
	ISODirs  []assets.Dir  `json:"iso_dirs"`
	VHDFiles []assets.File `json:"vhd_files"`
	VHDDirs  []assets.Dir  `json:"vhd_dirs"`
}

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	typeFilter := q.Get("type")

	resp := assetsResponse{Path: path, Type: typeFilter}
	if typeFilter == "" || typeFilter == "root" || typeFilter == "iso" {
		resp.ISOFiles, resp.ISODirs = assets.List(s.ISORoot, path)
	}
	if typeFilter == "" || typeFilter == "root" || typeFilter == "vhd" {
		resp.VHDFiles, resp.VHDDirs = assets.List(s.VHDRoot, path)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// writeUploadError writes the upload endpoint's error shape. Per spec §7
// this is still HTTP 200 — the admin UI parses "status" itself rather
// than branching on the status code, matching brain.py's
// upload_injection handler.
func writeUploadError(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "error", "message": message})
}

// handleUploadInjection accepts a multipart file upload and stores it
// under InjectionsDir by its base name only, so an uploaded filename
// cannot escape the injections directory.
func (s *Server) handleUploadInjection(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	destPath := filepath.Join(s.InjectionsDir, name)

	if err := os.MkdirAll(s.InjectionsDir, 0o755); err != nil {
		s.Logger.ErrorContext(r.Context(), "failed to create injections dir", "error", err)
		writeUploadError(w, err.Error())
		return
	}

	dest, err := os.Create(destPath)
	if err != nil {
		s.Logger.ErrorContext(r.Context(), "failed to create injection file", "path", destPath, "error", err)
		writeUploadError(w, err.Error())
		return
	}
	defer dest.Close()

	if _, err := io.Copy(dest, file); err != nil {
		s.Logger.ErrorContext(r.Context(), "failed to write injection file", "path", destPath, "error", err)
		writeUploadError(w, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "filename": name})
}
