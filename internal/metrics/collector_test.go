package metrics

import (
	"context"
	"testing"
)

func TestStaticCollectorFetch(t *testing.T) {
	c := NewStaticCollector(map[string]float64{
		"error_rate": 0.02,
		"latency_ms": 120,
	})

	values, err := c.Fetch(context.Background(), []string{"error_rate", "latency_ms"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if values["error_rate"] != 0.02 {
		t.Errorf("Expected error_rate 0.02, got %f", values["error_rate"])
	}
	if values["latency_ms"] != 120 {
		t.Errorf("Expected latency_ms 120, got %f", values["latency_ms"])
	}
}

func TestStaticCollectorOmitsUnknownMetrics(t *testing.T) {
	c := NewStaticCollector(map[string]float64{"error_rate": 0.02})

	values, err := c.Fetch(context.Background(), []string{"error_rate", "saturation"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if _, ok := values["saturation"]; ok {
		t.Error("Expected unknown metric to be omitted")
	}
	if len(values) != 1 {
		t.Errorf("Expected 1 value, got %d", len(values))
	}
}

func TestStaticCollectorSet(t *testing.T) {
	c := NewStaticCollector(nil)
	c.Set("error_rate", 0.9)
	c.Set("error_rate", 0.01)

	values, err := c.Fetch(context.Background(), []string{"error_rate"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if values["error_rate"] != 0.01 {
		t.Errorf("Expected updated value 0.01, got %f", values["error_rate"])
	}
}
