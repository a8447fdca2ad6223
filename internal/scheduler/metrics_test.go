package scheduler

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"simplejvm/internal/clock"
)

func TestPrometheusStatsCountsLifecycleEvents(t *testing.T) {
	s := NewScheduler(clock.NewFake(0), DefaultConfig())
	stats, registry := NewPrometheusStats(s, MetricsConfig{Namespace: "testkernel"})
	s.SetStats(stats)

	j := s.NewJob("job", func(j *Job) error {
		return j.Yield()
	})
	s.AddJob(j)

	s.RunCycle()
	s.RunCycle()

	if got := testutil.ToFloat64(stats.jobsCreated); got != 1 {
		t.Errorf("jobs_created_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(stats.jobsCompleted); got != 1 {
		t.Errorf("jobs_completed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(stats.yields); got != 1 {
		t.Errorf("yields_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(stats.contextSwitch); got != 2 {
		t.Errorf("context_switches_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(stats.cyclesRun); got != 2 {
		t.Errorf("cycles_total = %v, want 2", got)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather returned an error: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected the registry to expose at least one metric family")
	}
}

func TestPrometheusStatsLiveJobsGaugeTracksScheduler(t *testing.T) {
	s := NewScheduler(clock.NewFake(0), DefaultConfig())
	stats, _ := NewPrometheusStats(s, DefaultMetricsConfig())
	s.SetStats(stats)

	if got := testutil.ToFloat64(stats.liveJobs); got != 0 {
		t.Fatalf("live_jobs should start at 0, got %v", got)
	}

	j := s.NewJob("job", func(j *Job) error { return nil })
	s.AddJob(j)
	if got := testutil.ToFloat64(stats.liveJobs); got != 1 {
		t.Fatalf("live_jobs should reflect a pending job before any cycle runs, got %v", got)
	}

	s.RunCycle()
	if got := testutil.ToFloat64(stats.liveJobs); got != 0 {
		t.Fatalf("live_jobs should drop to 0 once the only job terminates, got %v", got)
	}
}

func TestNewPrometheusStatsUsesProvidedRegistry(t *testing.T) {
	s := NewScheduler(clock.NewFake(0), DefaultConfig())
	reg := prometheus.NewRegistry()
	_, got := NewPrometheusStats(s, MetricsConfig{Registry: reg})
	if got != reg {
		t.Fatal("NewPrometheusStats should reuse the registry passed in via MetricsConfig")
	}
}
