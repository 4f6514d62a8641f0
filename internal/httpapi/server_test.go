// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bqd-services-llc/super-pxe-server/internal/bootscript"
	"github.com/bqd-services-llc/super-pxe-server/internal/config"
	"github.com/bqd-services-llc/super-pxe-server/internal/license"
	"github.com/bqd-services-llc/super-pxe-server/internal/logging"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	isoRoot := filepath.Join(dir, "isos")
	vhdRoot := filepath.Join(dir, "vhds")
	staticDir := filepath.Join(dir, "static")
	injectionsDir := filepath.Join(dir, "injections")
	require.NoError(t, os.MkdirAll(isoRoot, 0o755))
	require.NoError(t, os.MkdirAll(vhdRoot, 0o755))
	require.NoError(t, os.MkdirAll(staticDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(isoRoot, "ubuntu.iso"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>admin</html>"), 0o644))

	gate := license.New(filepath.Join(dir, ".license_store"))
	store := config.New(filepath.Join(dir, "config.json"), gate, logging.Nop())
	gen := &bootscript.Generator{ISORoot: isoRoot, VHDRoot: vhdRoot}

	s := NewServer(store, gen, isoRoot, vhdRoot, staticDir, injectionsDir, logging.Nop())
	return s, dir
}

func TestBootScriptIsPublic(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/boot.ipxe", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "#!ipxe")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealthzIsPublic(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesAcceptDefaultPassword(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.SetBasicAuth("admin", "admin")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	var cfg config.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, "127.0.0.1", cfg.ServerIP)
}

func TestPostConfigSavesAndReturnsDocument(t *testing.T) {
	s, _ := newTestServer(t)
	doc := config.Defaults()
	doc.ServerIP = "10.1.1.1"
	body, err := json.Marshal(doc)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader(body))
	req.SetBasicAuth("admin", "admin")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var saved config.Config
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	assert.Equal(t, "10.1.1.1", saved.ServerIP)

	reloaded := s.Store.Load()
	assert.Equal(t, "10.1.1.1", reloaded.ServerIP)
}

func TestGetAssetsListsISORoot(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/assets?type=iso", nil)
	req.SetBasicAuth("admin", "admin")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp assetsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.ISOFiles, 1)
	assert.Equal(t, "ubuntu.iso", resp.ISOFiles[0].Name)
	assert.Empty(t, resp.VHDFiles)
}

func TestUploadInjectionStoresFileByBaseName(t *testing.T) {
	s, dir := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "../../evil.cfg")
	require.NoError(t, err)
	_, err = part.Write([]byte("ks content"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload_injection", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth("admin", "admin")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	data, err := os.ReadFile(filepath.Join(dir, "injections", "evil.cfg"))
	require.NoError(t, err)
	assert.Equal(t, "ks content", string(data))
}

func TestStaticAndInjectionsServePublicly(t *testing.T) {
	s, dir := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "static", "style.css"), []byte("body{}"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/static/style.css", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "injections"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "injections", "ks.cfg"), []byte("ks"), 0o644))

	req = httptest.NewRequest(http.MethodGet, "/injections/ks.cfg", nil)
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ks", rec.Body.String())
}
