package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "vzev_"

	resultSuccess = "success"
	resultError   = "error"

	verdictBillable = "billable"
	verdictExcluded = "excluded"
)

var (
	registerOnce sync.Once

	readingsImported prometheus.Counter
	importErrors     prometheus.Counter

	monthsChecked *prometheus.CounterVec

	billsGenerated prometheus.Counter

	pipelineRuns    *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec

	exportsTotal *prometheus.CounterVec
)

// Init registers pipeline metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		readingsImported = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "readings_imported_total",
			Help: "Total interval readings imported from CSV files",
		})
		importErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "import_errors_total",
			Help: "Total CSV import failures",
		})
		monthsChecked = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "months_checked_total",
				Help: "Total month completeness checks by verdict",
			},
			[]string{"verdict"},
		)
		billsGenerated = prometheus.NewCounter(prometheus.CounterOpts{
			Name: metricPrefix + "bills_generated_total",
			Help: "Total bills produced",
		})
		pipelineRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "pipeline_runs_total",
				Help: "Total pipeline runs by result",
			},
			[]string{"result"},
		)
		pipelineLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_run_latency_seconds",
				Help:    "Pipeline run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		exportsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_exports_total",
				Help: "Total bill export operations by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			readingsImported,
			importErrors,
			monthsChecked,
			billsGenerated,
			pipelineRuns,
			pipelineLatency,
			exportsTotal,
		)
	})
}

// AddReadingsImported increments the imported readings counter.
func AddReadingsImported(count int) {
	if count <= 0 {
		return
	}
	if readingsImported != nil {
		readingsImported.Add(float64(count))
	}
}

// IncImportError increments the import failure counter.
func IncImportError() {
	if importErrors != nil {
		importErrors.Inc()
	}
}

// IncMonthChecked records a completeness verdict.
func IncMonthChecked(billable bool) {
	if monthsChecked == nil {
		return
	}
	verdict := verdictExcluded
	if billable {
		verdict = verdictBillable
	}
	monthsChecked.WithLabelValues(verdict).Inc()
}

// AddBillsGenerated increments the bill counter.
func AddBillsGenerated(count int) {
	if count <= 0 {
		return
	}
	if billsGenerated != nil {
		billsGenerated.Add(float64(count))
	}
}

// ObservePipelineRun records run latency and result.
func ObservePipelineRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if pipelineRuns != nil {
		pipelineRuns.WithLabelValues(result).Inc()
	}
	if pipelineLatency != nil {
		pipelineLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncExport records a bill export by format and result.
func IncExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportsTotal != nil {
		exportsTotal.WithLabelValues(format, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
