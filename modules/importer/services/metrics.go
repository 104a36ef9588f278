package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-uz/hrm-import/modules/importer/domain/session"
)

var (
	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrm",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Total number of imported rows broken down by kind and outcome.",
	}, []string{"kind", "outcome"})

	importRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrm",
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Total number of import runs broken down by kind and final status.",
	}, []string{"kind", "status"})

	importPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrm",
		Subsystem: "import",
		Name:      "purged_records_total",
		Help:      "Total number of stored records deleted before an import, by kind and mode.",
	}, []string{"kind", "mode"})

	importRolledBack = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hrm",
		Subsystem: "import",
		Name:      "rolled_back_records_total",
		Help:      "Total number of inserted records removed after a cancelled import.",
	}, []string{"collection"})
)

const (
	outcomeInserted = "inserted"
	outcomeUpdated  = "updated"
	outcomeFailed   = "failed"
	outcomeSkipped  = "skipped"

	statusCompleted = "completed"
	statusCancelled = "cancelled"
	statusFailed    = "failed"
)

func recordRow(kind session.Kind, outcome string) {
	importRows.WithLabelValues(string(kind), outcome).Inc()
}

func recordSkipped(kind session.Kind, n int) {
	if n > 0 {
		importRows.WithLabelValues(string(kind), outcomeSkipped).Add(float64(n))
	}
}

func recordRun(kind session.Kind, status string) {
	importRuns.WithLabelValues(string(kind), status).Inc()
}

func recordPurged(kind session.Kind, mode PurgeMode, n int64) {
	if n > 0 {
		importPurged.WithLabelValues(string(kind), string(mode)).Add(float64(n))
	}
}

func recordRolledBack(c session.Collection, n int64) {
	if n > 0 {
		importRolledBack.WithLabelValues(string(c)).Add(float64(n))
	}
}
