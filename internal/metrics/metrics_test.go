package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.CommandsTotal == nil {
		t.Error("CommandsTotal is nil")
	}
	if m.CropsTotal == nil {
		t.Error("CropsTotal is nil")
	}
	if m.ResourcesLive == nil {
		t.Error("ResourcesLive is nil")
	}
	if m.SessionsActive == nil {
		t.Error("SessionsActive is nil")
	}
	if m.AssetsPublishedTotal == nil {
		t.Error("AssetsPublishedTotal is nil")
	}
	if m.EstimatesTotal == nil {
		t.Error("EstimatesTotal is nil")
	}
}

func TestRecordCommand(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordCommand("add_card", "ok")
	m.RecordCommand("add_card", "ok")
	m.RecordCommand("add_card", "rejected")

	if got := testutil.ToFloat64(m.CommandsTotal.WithLabelValues("add_card", "ok")); got != 2 {
		t.Errorf("expected 2 ok commands, got %v", got)
	}
}

func TestResourceGauges(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetResourcesLive(3)
	m.RecordResourceReleased()

	if got := testutil.ToFloat64(m.ResourcesLive); got != 3 {
		t.Errorf("expected 3 live, got %v", got)
	}
	if got := testutil.ToFloat64(m.ResourcesReleasedTotal); got != 1 {
		t.Errorf("expected 1 released, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	// Should not panic
	m.RecordCommand("add_card", "ok")
	m.RecordCrop("auto", "ok", 0.1)
	m.SetResourcesLive(1)
	m.RecordResourceReleased()
	m.SetSessionsActive(1)
	m.RecordSessionEvicted()
	m.RecordAssetPublished("local", "uploaded")
	m.RecordSingleflightDedup("assets")
	m.RecordEstimate("ok", 0.2)
	m.RecordHTTPError("not_found", "/api")
}

func TestRecordCropAndEstimate(t *testing.T) {
	m := New(prometheus.NewRegistry())

	// Should not panic
	m.RecordCrop("manual", "ok", 0.05)
	m.RecordCrop("auto", "stale", 0.2)
	m.RecordEstimate("superseded", 0)
	m.RecordEstimate("ok", 0.3)
}
