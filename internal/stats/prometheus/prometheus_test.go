package prometheus

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lecternlabs/marginalia/internal/stats"
)

func TestNew_DefaultRegistry(t *testing.T) {
	c := New(nil)
	if c == nil {
		t.Fatal("New(nil) returned nil")
	}
	if c.registry == nil {
		t.Error("registry should not be nil")
	}
}

func TestCollector_IncCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.IncCounter(stats.MetricL1Hits, 5)
	c.IncCounter(stats.MetricL1Hits, 3)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, m := range metrics {
		if m.GetName() == stats.MetricL1Hits {
			found = true
			if len(m.GetMetric()) == 0 {
				t.Error("counter has no metrics")
				break
			}
			if val := m.GetMetric()[0].GetCounter().GetValue(); val != 8 {
				t.Errorf("counter value = %v, want 8", val)
			}
			if help := m.GetHelp(); help == stats.MetricL1Hits {
				t.Error("known metric should carry descriptive help text")
			}
		}
	}
	if !found {
		t.Errorf("counter %s not found in registry", stats.MetricL1Hits)
	}
}

func TestCollector_SetGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.SetGauge(stats.MetricL1Entries, 42)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, m := range metrics {
		if m.GetName() == stats.MetricL1Entries {
			found = true
			if val := m.GetMetric()[0].GetGauge().GetValue(); val != 42 {
				t.Errorf("gauge value = %v, want 42", val)
			}
		}
	}
	if !found {
		t.Errorf("gauge %s not found in registry", stats.MetricL1Entries)
	}
}

func TestCollector_ObserveHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.ObserveHistogram(stats.MetricGenerationSeconds, 0.5)
	c.ObserveHistogram(stats.MetricGenerationSeconds, 1.5)
	c.ObserveHistogram(stats.MetricGenerationSeconds, 2.5)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, m := range metrics {
		if m.GetName() == stats.MetricGenerationSeconds {
			found = true
			if count := m.GetMetric()[0].GetHistogram().GetSampleCount(); count != 3 {
				t.Errorf("histogram count = %v, want 3", count)
			}
		}
	}
	if !found {
		t.Errorf("histogram %s not found in registry", stats.MetricGenerationSeconds)
	}
}

func TestCollector_ReuseMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.IncCounter("reuse_test", 1)
	c.IncCounter("reuse_test", 1)
	c.IncCounter("reuse_test", 1)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	count := 0
	for _, m := range metrics {
		if m.GetName() == "reuse_test" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected 1 metric named reuse_test, got %d", count)
	}
}

func TestCollector_AlreadyRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()

	existing := prometheus.NewCounter(prometheus.CounterOpts{
		Name: stats.MetricMisses,
		Help: "pre-registered",
	})
	reg.MustRegister(existing)
	existing.Add(100)

	c := New(reg)
	c.IncCounter(stats.MetricMisses, 5)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, m := range metrics {
		if m.GetName() == stats.MetricMisses {
			if val := m.GetMetric()[0].GetCounter().GetValue(); val != 105 {
				t.Errorf("counter value = %v, want 105", val)
			}
		}
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				c.IncCounter(stats.MetricGets, 1)
				c.SetGauge(stats.MetricL1Bytes, int64(j))
				c.ObserveHistogram(stats.MetricGenerationSeconds, float64(j))
			}
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, m := range metrics {
		switch m.GetName() {
		case stats.MetricGets:
			if val := m.GetMetric()[0].GetCounter().GetValue(); val != 1000 {
				t.Errorf("counter value = %v, want 1000", val)
			}
		case stats.MetricGenerationSeconds:
			if count := m.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1000 {
				t.Errorf("histogram count = %v, want 1000", count)
			}
		}
	}
}
