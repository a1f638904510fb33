package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findFamily(families []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	return nil
}

type fakeSessionCounter struct{ n int }

func (f fakeSessionCounter) Count() int { return f.n }

func TestSessionCollector_Collect(t *testing.T) {
	c := NewSessionCollector(fakeSessionCounter{n: 7})
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	fam := findFamily(families, "safely_report_active_sessions")
	if fam == nil {
		t.Fatal("missing safely_report_active_sessions")
	}
	if got := fam.GetMetric()[0].GetGauge().GetValue(); got != 7 {
		t.Errorf("active_sessions = %v, want 7", got)
	}
}

func TestSessionCollector_Performance1000(t *testing.T) {
	c := NewSessionCollector(fakeSessionCounter{n: 1000})
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("gather failed: %v", err)
	}
}
