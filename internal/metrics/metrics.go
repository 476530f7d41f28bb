package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PasswordsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monozip_passwords_generated_total",
			Help: "Generated passwords by mode",
		},
		[]string{"mode"}, // client|custom
	)

	AdminOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monozip_admin_operations_total",
			Help: "Client admin operations by operation and outcome",
		},
		[]string{"op", "result"}, // add|update|delete , ok|<error kind>
	)

	StoreFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "monozip_store_fallback_total",
			Help: "Client list reads answered from the built-in defaults",
		},
	)

	ArchivesBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monozip_archives_total",
			Help: "ZIP archives by encryption mode and outcome",
		},
		[]string{"mode", "result"},
	)

	ArchiveInputBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monozip_archive_input_bytes",
			Help:    "Total uploaded bytes per archive",
			Buckets: prometheus.ExponentialBuckets(1<<10, 4, 11), // 1KiB .. 1GiB
		},
	)

	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monozip_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"result"}, // ok|denied|error
	)

	AuditEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monozip_audit_events_total",
			Help: "Client events consumed by the audit worker",
		},
		[]string{"stage"}, // stored|skipped|failed
	)
)

var once sync.Once

// MustRegister registers all collectors once; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	once.Do(func() {
		r.MustRegister(
			PasswordsGenerated,
			AdminOps,
			StoreFallbacks,
			ArchivesBuilt,
			ArchiveInputBytes,
			LoginAttempts,
			AuditEvents,
		)
	})
}
