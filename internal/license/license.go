// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package license implements the license/feature gate: a trial/enterprise
// state machine persisted as a small JSON record, plus per-feature
// allowance checks consulted by the Configuration Store on save.
package license

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bqd-services-llc/super-pxe-server/internal/clock"
)

// Type is the resolved license state.
type Type string

const (
	TypeEnterprise Type = "ENTERPRISE"
	TypeTrial      Type = "TRIAL"
	TypeExpired    Type = "EXPIRED"
)

// Status is the result of Gate.Refresh.
type Status struct {
	Type     Type
	DaysLeft int
	Message  string
}

// IsEnterprise reports whether this status grants the full feature set.
// Trial is treated as enterprise-equivalent: trial equals the full
// feature set for evaluation purposes.
func (s Status) IsEnterprise() bool {
	return s.Type == TypeEnterprise || s.Type == TypeTrial
}

// trialRecord is the persisted trial record, <config_dir>/.license_store.
type trialRecord struct {
	StartTS   int64  `json:"start_ts"`
	MachineID string `json:"machine_id"`
}

const trialDurationDays = 60

// Feature names understood by CheckFeature.
const (
	FeatureDisklessOverlay = "diskless_overlay"
	FeatureInjection       = "injection"
)

// Gate evaluates license state and feature allowance.
type Gate struct {
	// TrialStorePath is the path to the persisted trial record.
	TrialStorePath string
	// MachineIDFunc returns the current host's machine id. Defaults to
	// CurrentMachineID.
	MachineIDFunc func() string
	Clock         clock.Clock
}

// New builds a Gate with production defaults.
func New(trialStorePath string) *Gate {
	return &Gate{
		TrialStorePath: trialStorePath,
		MachineIDFunc:  CurrentMachineID,
		Clock:          clock.Default,
	}
}

func (g *Gate) machineID() string {
	if g.MachineIDFunc != nil {
		return g.MachineIDFunc()
	}
	return CurrentMachineID()
}

func (g *Gate) now() time.Time {
	if g.Clock != nil {
		return g.Clock.Now()
	}
	return time.Now()
}

// CurrentMachineID prefers the contents of /etc/machine-id (trimmed),
// falling back to the host's network node name.
func CurrentMachineID() string {
	if data, err := os.ReadFile("/etc/machine-id"); err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id
		}
	}
	hostname, _ := os.Hostname()
	return hostname
}

// isEnterpriseKey checks whether key is a valid enterprise license key for
// the given machine id: it must contain the literal "SPS-ENT-" and the
// uppercase hex prefix (8 chars) of sha256(machine id).
func isEnterpriseKey(key, machineID string) bool {
	if key == "" || !strings.Contains(key, "SPS-ENT-") {
		return false
	}
	sum := sha256.Sum256([]byte(machineID))
	prefix := strings.ToUpper(hex.EncodeToString(sum[:]))[:8]
	return strings.Contains(key, prefix)
}

// Refresh evaluates the current license state for licenseKey, creating the
// trial record on first run if one doesn't exist yet.
func (g *Gate) Refresh(licenseKey string) (Status, error) {
	machineID := g.machineID()

	if isEnterpriseKey(licenseKey, machineID) {
		return Status{Type: TypeEnterprise, Message: "enterprise license active"}, nil
	}

	rec, err := g.loadTrialRecord()
	if err != nil {
		if os.IsNotExist(err) {
			rec = trialRecord{StartTS: g.now().Unix(), MachineID: machineID}
			if werr := g.saveTrialRecord(rec); werr != nil {
				return Status{}, fmt.Errorf("create trial record: %w", werr)
			}
		} else {
			return Status{}, fmt.Errorf("load trial record: %w", err)
		}
	}

	if rec.MachineID != machineID {
		return Status{Type: TypeExpired, Message: "Hardware ID Mismatch"}, nil
	}

	elapsedDays := float64(g.now().Unix()-rec.StartTS) / 86400
	remaining := float64(trialDurationDays) - elapsedDays
	if remaining <= 0 {
		return Status{Type: TypeExpired, Message: "trial period has ended"}, nil
	}

	return Status{
		Type:     TypeTrial,
		DaysLeft: int(remaining),
		Message:  fmt.Sprintf("trial: %d day(s) remaining", int(remaining)),
	}, nil
}

func (g *Gate) loadTrialRecord() (trialRecord, error) {
	data, err := os.ReadFile(g.TrialStorePath)
	if err != nil {
		return trialRecord{}, err
	}
	var rec trialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return trialRecord{}, fmt.Errorf("parse trial record: %w", err)
	}
	return rec, nil
}

func (g *Gate) saveTrialRecord(rec trialRecord) error {
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(g.TrialStorePath, data, 0o600)
}

// CheckFeature reports whether feature is allowed given currentCount
// existing uses of it, under status.
func CheckFeature(status Status, feature string, currentCount int) (bool, string) {
	switch feature {
	case FeatureDisklessOverlay:
		if status.IsEnterprise() {
			return true, "allowed"
		}
		if currentCount < 1 {
			return true, "allowed"
		}
		return false, "community edition allows at most 1 concurrent overlay client"
	case FeatureInjection:
		if status.IsEnterprise() {
			return true, "allowed"
		}
		return false, "injection files require an enterprise or trial license"
	default:
		return true, "allowed"
	}
}
