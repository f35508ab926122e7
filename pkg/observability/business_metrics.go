package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Statement parsing metrics
	statementRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "royalty_statement_rows_total",
		Help: "Statement rows read by the parser",
	}, []string{
		"pro_type", // BMI, ASCAP, SESAC, MLC
		"outcome",  // kept, skipped
	})

	statementsWithoutPeriod = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "royalty_statements_without_period_total",
		Help: "Statements saved with no extractable reporting period",
	}, []string{
		"pro_type",
	})

	// Payee matching metrics
	payeeMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "royalty_payee_matches_total",
		Help: "Payee match attempts by outcome and method",
	}, []string{
		"outcome", // matched, ambiguous, unmatched
		"method",  // writer_ipi, publisher_ipi, name, manual, none
	})

	// Ledger metrics
	ledgerDiscrepanciesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "royalty_ledger_discrepancies_total",
		Help: "Balance fields found out of line with the authoritative records",
	}, []string{
		"field",   // available, pending, lifetime
		"applied", // true, false
	})

	payoutTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "royalty_payout_transitions_total",
		Help: "Payout request status transitions",
	}, []string{
		"from",
		"to",
	})

	// Batch job metrics
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "royalty_job_duration_seconds",
		Help: "Duration of operator batch jobs",
		// Buckets: 100ms to 30 minutes
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
	}, []string{
		"job",
		"status", // ok, partial, failed
	})

	jobRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "royalty_job_records_total",
		Help: "Records handled by operator batch jobs",
	}, []string{
		"job",
		"result", // matched, unmatched, updated, skipped, errors
	})
)

// RecordStatementRows records how many rows of a statement were kept and skipped
func RecordStatementRows(proType string, kept, skipped int) {
	statementRowsTotal.WithLabelValues(proType, "kept").Add(float64(kept))
	statementRowsTotal.WithLabelValues(proType, "skipped").Add(float64(skipped))
}

// RecordMissingPeriod records a statement saved without a period
func RecordMissingPeriod(proType string) {
	statementsWithoutPeriod.WithLabelValues(proType).Inc()
}

// RecordPayeeMatch records the outcome of one match attempt
func RecordPayeeMatch(outcome, method string) {
	payeeMatchesTotal.WithLabelValues(outcome, method).Inc()
}

// RecordDiscrepancy records one drifted balance field
func RecordDiscrepancy(field string, applied bool) {
	label := "false"
	if applied {
		label = "true"
	}
	ledgerDiscrepanciesTotal.WithLabelValues(field, label).Inc()
}

// RecordPayoutTransition records a payout status change
func RecordPayoutTransition(from, to string) {
	payoutTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordJob records a finished batch job with its counts
func RecordJob(job, status string, seconds float64, matched, unmatched, updated, skipped, errors int) {
	jobDuration.WithLabelValues(job, status).Observe(seconds)
	counts := map[string]int{
		"matched":   matched,
		"unmatched": unmatched,
		"updated":   updated,
		"skipped":   skipped,
		"errors":    errors,
	}
	for result, n := range counts {
		if n > 0 {
			jobRecordsTotal.WithLabelValues(job, result).Add(float64(n))
		}
	}
}
