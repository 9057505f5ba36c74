package metrics

import (
	"testing"
)

func TestSetBackendLoad(t *testing.T) {
	c := New()
	c.SetBackendLoad("A", 3, 10)

	mf, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	var activeVal, loadVal float64
	var foundActive, foundLoad bool
	for _, f := range mf {
		switch f.GetName() {
		case "tcplb_backend_active_connections":
			activeVal = f.Metric[0].GetGauge().GetValue()
			foundActive = true
		case "tcplb_backend_load_fraction":
			loadVal = f.Metric[0].GetGauge().GetValue()
			foundLoad = true
		}
	}

	if !foundActive || activeVal != 3 {
		t.Errorf("expected active connections 3, got %v (found=%v)", activeVal, foundActive)
	}
	if !foundLoad || loadVal != 0.3 {
		t.Errorf("expected load fraction 0.3, got %v (found=%v)", loadVal, foundLoad)
	}
}

func TestRecordDispatchOutcomes(t *testing.T) {
	c := New()
	c.RecordDispatchAssigned()
	c.RecordDispatchAssigned()
	c.RecordDispatchRejected()

	mf, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	counters := map[string]float64{}
	for _, f := range mf {
		if f.GetName() != "tcplb_dispatch_total" {
			continue
		}
		for _, m := range f.Metric {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" {
					counters[l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}

	if counters["assigned"] != 2 {
		t.Errorf("expected 2 assigned, got %v", counters["assigned"])
	}
	if counters["rejected"] != 1 {
		t.Errorf("expected 1 rejected, got %v", counters["rejected"])
	}
}

func TestRecordDialOutcomes(t *testing.T) {
	c := New()
	c.RecordDialSuccess("A")
	c.RecordDialFailure("B")

	mf, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	var sawSuccess, sawFailure bool
	for _, f := range mf {
		switch f.GetName() {
		case "tcplb_dial_success_total":
			sawSuccess = f.Metric[0].GetCounter().GetValue() == 1
		case "tcplb_dial_failures_total":
			sawFailure = f.Metric[0].GetCounter().GetValue() == 1
		}
	}
	if !sawSuccess {
		t.Error("expected dial success counter incremented")
	}
	if !sawFailure {
		t.Error("expected dial failure counter incremented")
	}
}

func TestNewCreatesIndependentRegistries(t *testing.T) {
	c1 := New()
	c2 := New()

	c1.RecordDispatchAssigned()

	mf2, err := c2.Registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, f := range mf2 {
		if f.GetName() == "tcplb_dispatch_total" {
			for _, m := range f.Metric {
				if m.GetCounter().GetValue() != 0 {
					t.Error("expected second collector's registry to be unaffected by the first")
				}
			}
		}
	}
}
