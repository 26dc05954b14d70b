package engine

import (
	"encoding/json"
	"testing"
	"time"
)

const sampleDefinition = `
name: checkout-service
version: v2.3.1
mode: parallel
max_duration: 1h
stages:
  - name: staging
    strategy: blue_green
    config:
      target_environment: green
  - name: production
    strategy: canary
    dependencies: [staging]
    rollback_on_failure: false
    gates:
      - type: manual
        timeout: 30m
        approvers: [alice, bob]
      - type: metric_based
        timeout: 300
        poll_interval: 15s
        metrics: [error_rate]
        thresholds:
          error_rate: 0.05
`

func TestParseDefinition(t *testing.T) {
	def, err := ParseDefinition([]byte(sampleDefinition))
	if err != nil {
		t.Fatalf("Failed to parse definition: %v", err)
	}

	if def.Name != "checkout-service" {
		t.Errorf("Expected name checkout-service, got %s", def.Name)
	}
	if def.Mode != ModeParallel {
		t.Errorf("Expected parallel mode, got %s", def.Mode)
	}
	if def.MaxDuration.Std() != time.Hour {
		t.Errorf("Expected 1h max duration, got %s", def.MaxDuration.Std())
	}
	if len(def.Stages) != 2 {
		t.Fatalf("Expected 2 stages, got %d", len(def.Stages))
	}

	prod := def.Stages[1]
	if prod.RollbackOnFailure == nil || *prod.RollbackOnFailure {
		t.Error("Expected rollback_on_failure false for production")
	}
	if len(prod.Gates) != 2 {
		t.Fatalf("Expected 2 gates, got %d", len(prod.Gates))
	}
	if prod.Gates[0].Timeout.Std() != 30*time.Minute {
		t.Errorf("Expected 30m gate timeout, got %s", prod.Gates[0].Timeout.Std())
	}
	// Bare numbers decode as seconds
	if prod.Gates[1].Timeout.Std() != 300*time.Second {
		t.Errorf("Expected 300s gate timeout, got %s", prod.Gates[1].Timeout.Std())
	}
	if prod.Gates[1].Thresholds["error_rate"] != 0.05 {
		t.Errorf("Expected threshold 0.05, got %f", prod.Gates[1].Thresholds["error_rate"])
	}
}

func TestParseDefinitionInvalidYAML(t *testing.T) {
	_, err := ParseDefinition([]byte("stages: [unclosed"))
	if err == nil {
		t.Fatal("Expected parse error for invalid YAML")
	}
}

func TestParseDefinitionInvalidDuration(t *testing.T) {
	_, err := ParseDefinition([]byte("name: x\nmax_duration: soon\nstages: []"))
	if err == nil {
		t.Fatal("Expected parse error for invalid duration")
	}
}

func TestDurationJSON(t *testing.T) {
	var d Duration
	if err := json.Unmarshal([]byte(`"90s"`), &d); err != nil {
		t.Fatalf("Failed to unmarshal duration string: %v", err)
	}
	if d.Std() != 90*time.Second {
		t.Errorf("Expected 90s, got %s", d.Std())
	}

	if err := json.Unmarshal([]byte(`45`), &d); err != nil {
		t.Fatalf("Failed to unmarshal bare number: %v", err)
	}
	if d.Std() != 45*time.Second {
		t.Errorf("Expected 45s, got %s", d.Std())
	}

	out, err := json.Marshal(Duration(2 * time.Minute))
	if err != nil {
		t.Fatalf("Failed to marshal duration: %v", err)
	}
	if string(out) != `"2m0s"` {
		t.Errorf("Expected \"2m0s\", got %s", out)
	}
}
