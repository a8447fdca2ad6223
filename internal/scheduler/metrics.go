package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusStats is a Stats implementation backed by a Prometheus registry:
// one counter per lifecycle event plus a gauge of live jobs.
type PrometheusStats struct {
	jobsCreated   prometheus.Counter
	jobsCompleted prometheus.Counter
	contextSwitch prometheus.Counter
	yields        prometheus.Counter
	cyclesRun     prometheus.Counter
	liveJobs      prometheus.GaugeFunc
}

// MetricsConfig configures the Prometheus exporter installed on a Scheduler.
type MetricsConfig struct {
	// Registry to register collectors against. If nil, a fresh registry is
	// created; NewPrometheusStats returns it as its second result.
	Registry  *prometheus.Registry
	Namespace string
}

// DefaultMetricsConfig returns a config suitable with no further setup.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Namespace: "jvmkernel"}
}

// NewPrometheusStats builds a Stats sink for s and registers its collectors
// against cfg.Registry (or a new one if unset). Call SetStats(result) on the
// scheduler to wire it in.
func NewPrometheusStats(s *Scheduler, cfg MetricsConfig) (*PrometheusStats, *prometheus.Registry) {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "jvmkernel"
	}

	p := &PrometheusStats{
		jobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "jobs_created_total",
			Help:      "Total number of jobs constructed.",
		}),
		jobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "jobs_completed_total",
			Help:      "Total number of jobs that reached the Zombie state.",
		}),
		contextSwitch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "context_switches_total",
			Help:      "Total number of fiber switches performed by dispatch.",
		}),
		yields: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "yields_total",
			Help:      "Total number of explicit job yields.",
		}),
		cyclesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Total number of RunCycle invocations.",
		}),
	}
	p.liveJobs = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: ns,
		Subsystem: "scheduler",
		Name:      "live_jobs",
		Help:      "Current number of non-Zombie jobs tracked by the scheduler.",
	}, func() float64 { return float64(s.JobCount()) })

	registry.MustRegister(
		p.jobsCreated,
		p.jobsCompleted,
		p.contextSwitch,
		p.yields,
		p.cyclesRun,
		p.liveJobs,
	)

	return p, registry
}

func (p *PrometheusStats) JobCreated() { p.jobsCreated.Inc() }

func (p *PrometheusStats) JobCompleted() { p.jobsCompleted.Inc() }

func (p *PrometheusStats) ContextSwitch() { p.contextSwitch.Inc() }

func (p *PrometheusStats) Yield() { p.yields.Inc() }

func (p *PrometheusStats) CycleCompleted(_ uint64) { p.cyclesRun.Inc() }
