// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config owns the administrator's JSON configuration document:
// the server's only mutable state beyond the generated target file and
// overlay files. Load merges the on-disk document over built-in defaults;
// Save applies license/feature-gate policy before writing.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/bqd-services-llc/super-pxe-server/internal/apperrors"
	"github.com/bqd-services-llc/super-pxe-server/internal/license"
	"github.com/bqd-services-llc/super-pxe-server/internal/logging"
	"github.com/bqd-services-llc/super-pxe-server/internal/metrics"
	"github.com/bqd-services-llc/super-pxe-server/internal/naming"
)

// ClientType is the boot mode for a client record.
type ClientType string

const (
	ClientISO ClientType = "iso"
	ClientVHD ClientType = "vhd"
)

// Client is one entry in the administrator's roster, keyed by MAC.
type Client struct {
	MAC           string     `json:"mac"`
	Image         string     `json:"image"`
	Type          ClientType `json:"type"`
	Hostname      string     `json:"hostname,omitempty"`
	Overlay       bool       `json:"overlay,omitempty"`
	InjectionFile string     `json:"injection_file,omitempty"`
	KernelArgs    string     `json:"kernel_args,omitempty"`
}

// Config is the top-level administrator configuration document.
type Config struct {
	// IP address clients use to reach this server's HTTP/iSCSI endpoints.
	// @default: "127.0.0.1"
	ServerIP string `json:"server_ip"`
	// next-server value handed to PXE clients by the DHCP server.
	// @default: "127.0.0.1"
	DHCPNextServer string `json:"dhcp_next_server"`
	// iSCSI initiator-address allowlist written into every target block.
	// @default: "ALL"
	ISCSIAllowedInitiators string `json:"iscsi_allowed_initiators"`
	// Interactive menu timeout, in seconds.
	// @default: 10
	BootTimeout int `json:"boot_timeout"`
	// @default: "Super PXE Server (Next-Gen)"
	MenuTitle string `json:"menu_title"`
	// Shared secret for HTTP Basic admin auth. Plaintext; compared
	// constant-time, never hashed (see internal/httpapi).
	// @default: "admin"
	AdminPassword string `json:"admin_password"`
	// @default: ""
	LicenseKey string   `json:"license_key"`
	Clients    []Client `json:"clients"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		ServerIP:               "127.0.0.1",
		DHCPNextServer:         "127.0.0.1",
		ISCSIAllowedInitiators: "ALL",
		BootTimeout:            10,
		MenuTitle:              "Super PXE Server (Next-Gen)",
		AdminPassword:          "admin",
		LicenseKey:             "",
		Clients:                []Client{},
	}
}

// Clone returns a deep copy via JSON round-trip, matching the teacher's
// approach to safe config mutation (internal/api/config_handlers.go).
func (c Config) Clone() Config {
	data, _ := json.Marshal(c)
	var out Config
	_ = json.Unmarshal(data, &out)
	return out
}

// Store owns load/save of the on-disk JSON document.
type Store struct {
	Path   string
	Gate   *license.Gate
	Logger *logging.Logger
}

// New builds a Store. If logger is nil, logging.Nop() is used.
func New(path string, gate *license.Gate, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{Path: path, Gate: gate, Logger: logger}
}

// Load merges the on-disk document over Defaults(). A missing or
// unparseable file is logged and defaults are returned — never an error
// visible to the caller (spec §7: "Invalid / missing config file").
func (s *Store) Load() Config {
	cfg := Defaults()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			s.Logger.Info("config file not found, using defaults", "path", s.Path)
		} else {
			s.Logger.Error("failed to read config file, using defaults", "path", s.Path, "error", err)
		}
		return cfg
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		s.Logger.Error("failed to parse config file, using defaults", "path", s.Path, "error", err)
		return Defaults()
	}

	return cfg
}

// Save refreshes license state, applies feature-gate policy to the
// client roster (forcing overlay/injection_file off where the gate
// denies them), then serializes the document indented to the JSON file.
// It returns the (possibly gate-modified) document that was written.
func (s *Store) Save(doc Config) (Config, error) {
	before := s.Load()

	status, err := s.Gate.Refresh(doc.LicenseKey)
	if err != nil {
		return doc, apperrors.Wrap(apperrors.KindInternal, "refresh license", err)
	}
	metrics.SetLicenseState(string(status.Type))

	overlayCount := 0
	for i := range doc.Clients {
		c := &doc.Clients[i]
		if c.Overlay {
			allowed, reason := license.CheckFeature(status, license.FeatureDisklessOverlay, overlayCount)
			if !allowed {
				s.Logger.Warn("feature gate denied overlay, clearing", "mac", c.MAC, "reason", reason)
				c.Overlay = false
			} else {
				overlayCount++
			}
		}
		if c.InjectionFile != "" {
			allowed, reason := license.CheckFeature(status, license.FeatureInjection, 0)
			if !allowed {
				s.Logger.Warn("feature gate denied injection file, clearing", "mac", c.MAC, "reason", reason)
				c.InjectionFile = ""
			}
		}
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return doc, apperrors.Wrap(apperrors.KindInternal, "marshal config", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return doc, apperrors.Wrap(apperrors.KindInternal, "create config dir", err)
	}

	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		s.Logger.Error("failed to write config file", "path", s.Path, "error", err)
		return doc, apperrors.Wrap(apperrors.KindInternal, "write config file", err)
	}

	s.logDiff(before, doc)
	return doc, nil
}

// logDiff emits a unified diff of the saved document for audit purposes.
func (s *Store) logDiff(before, after Config) {
	beforeJSON, _ := json.MarshalIndent(before, "", "    ")
	afterJSON, _ := json.MarshalIndent(after, "", "    ")
	if string(beforeJSON) == string(afterJSON) {
		return
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(beforeJSON)),
		B:        difflib.SplitLines(string(afterJSON)),
		FromFile: "before",
		ToFile:   "after",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return
	}
	s.Logger.Info("config saved", "path", s.Path, "diff", text)
}

// FindClientByMAC returns the first client whose stored MAC matches mac
// after normalization (lowercase, '-' -> ':'), and whether one was found.
func (c Config) FindClientByMAC(mac string) (Client, bool) {
	normalized := naming.NormalizeMAC(mac)
	for _, client := range c.Clients {
		if naming.NormalizeMAC(client.MAC) == normalized {
			return client, true
		}
	}
	return Client{}, false
}
