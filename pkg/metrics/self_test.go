package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterSelfMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	// Should not panic.
	RegisterSelfMetrics(reg)

	// Initialise the counter vecs so they appear in Gather output.
	GarblingShocksTotal.WithLabelValues("risky", "flipped").Add(0)
	BlockRefillsTotal.WithLabelValues("risky").Add(0)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	want := map[string]bool{
		"safely_report_garbling_shocks_total":       false,
		"safely_report_concurrency_conflicts_total": false,
		"safely_report_block_refills_total":         false,
		"safely_report_submissions_total":           false,
		"safely_report_resubmission_attempts_total": false,
		"safely_report_advance_duration_seconds":    false,
		"safely_report_s3_persist_duration_seconds": false,
	}

	for _, fam := range families {
		if _, ok := want[fam.GetName()]; ok {
			want[fam.GetName()] = true
		}
	}

	for name, found := range want {
		if !found {
			t.Errorf("expected metric family %q not found in gathered output", name)
		}
	}
}

func TestSelfMetricsUpdate(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterSelfMetrics(reg)

	SubmissionsTotal.Inc()
	ResubmissionAttemptsTotal.Inc()
	ConcurrencyConflictsTotal.Inc()
	AdvanceDuration.Observe(0.01)
	S3PersistDuration.Observe(0.25)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	counters := make(map[string]float64)
	for _, fam := range families {
		switch fam.GetName() {
		case "safely_report_submissions_total":
			counters["submissions"] = fam.GetMetric()[0].GetCounter().GetValue()
		case "safely_report_resubmission_attempts_total":
			counters["resubmissions"] = fam.GetMetric()[0].GetCounter().GetValue()
		case "safely_report_concurrency_conflicts_total":
			counters["conflicts"] = fam.GetMetric()[0].GetCounter().GetValue()
		}
	}

	if got := counters["submissions"]; got != 1 {
		t.Errorf("submissions = %v, want 1", got)
	}
	if got := counters["resubmissions"]; got != 1 {
		t.Errorf("resubmissions = %v, want 1", got)
	}
	if got := counters["conflicts"]; got != 1 {
		t.Errorf("conflicts = %v, want 1", got)
	}
}
