// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package license

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bqd-services-llc/super-pxe-server/internal/clock"
)

func newGate(t *testing.T, machineID string, now time.Time) *Gate {
	t.Helper()
	return &Gate{
		TrialStorePath: filepath.Join(t.TempDir(), ".license_store"),
		MachineIDFunc:  func() string { return machineID },
		Clock:          clock.Fixed{At: now},
	}
}

func enterpriseKeyFor(machineID string) string {
	sum := sha256.Sum256([]byte(machineID))
	prefix := strings.ToUpper(hex.EncodeToString(sum[:]))[:8]
	return "SPS-ENT-" + prefix + "-XYZ"
}

func TestRefreshEnterpriseKey(t *testing.T) {
	g := newGate(t, "machine-1", time.Now())
	status, err := g.Refresh(enterpriseKeyFor("machine-1"))
	require.NoError(t, err)
	assert.Equal(t, TypeEnterprise, status.Type)
	assert.True(t, status.IsEnterprise())
}

func TestRefreshCreatesTrialOnFirstRun(t *testing.T) {
	g := newGate(t, "machine-1", time.Now())
	status, err := g.Refresh("")
	require.NoError(t, err)
	assert.Equal(t, TypeTrial, status.Type)
	assert.Equal(t, 60, status.DaysLeft)
	assert.True(t, status.IsEnterprise())
}

func TestRefreshExpiresAfterSixtyDays(t *testing.T) {
	start := time.Now()
	g := newGate(t, "machine-1", start)
	_, err := g.Refresh("")
	require.NoError(t, err)

	g.Clock = clock.Fixed{At: start.Add(61 * 24 * time.Hour)}
	status, err := g.Refresh("")
	require.NoError(t, err)
	assert.Equal(t, TypeExpired, status.Type)
}

func TestRefreshMachineIDMismatchIsExpired(t *testing.T) {
	g := newGate(t, "machine-1", time.Now())
	_, err := g.Refresh("")
	require.NoError(t, err)

	g.MachineIDFunc = func() string { return "machine-2" }
	status, err := g.Refresh("")
	require.NoError(t, err)
	assert.Equal(t, TypeExpired, status.Type)
	assert.Equal(t, "Hardware ID Mismatch", status.Message)
}

func TestCheckFeatureDisklessOverlayCommunity(t *testing.T) {
	expired := Status{Type: TypeExpired}
	allowed, _ := CheckFeature(expired, FeatureDisklessOverlay, 0)
	assert.True(t, allowed)
	allowed, _ = CheckFeature(expired, FeatureDisklessOverlay, 1)
	assert.False(t, allowed)
}

func TestCheckFeatureInjectionDeniedOnCommunity(t *testing.T) {
	expired := Status{Type: TypeExpired}
	allowed, _ := CheckFeature(expired, FeatureInjection, 0)
	assert.False(t, allowed)
}

func TestCheckFeatureUnlimitedOnEnterprise(t *testing.T) {
	ent := Status{Type: TypeEnterprise}
	allowed, _ := CheckFeature(ent, FeatureDisklessOverlay, 100)
	assert.True(t, allowed)
	allowed, _ = CheckFeature(ent, FeatureInjection, 100)
	assert.True(t, allowed)
}
