package config

import (
	"strings"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := Default("proj-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Project.ID != "proj-1" {
		t.Fatalf("expected project id override, got %s", cfg.Project.ID)
	}
	if len(cfg.Assessment.Criteria) != 14 {
		t.Fatalf("expected 14 criteria, got %d", len(cfg.Assessment.Criteria))
	}
	if w := cfg.WeightWarning(); w != "" {
		t.Fatalf("default catalog should sum to 100: %s", w)
	}
	if cfg.Assessment.Thresholds.Go != 2.5 || cfg.Assessment.Thresholds.Conditional != 1.8 {
		t.Fatalf("unexpected default thresholds: %+v", cfg.Assessment.Thresholds)
	}
}

func TestValidateRequiresAdminRole(t *testing.T) {
	cfg := Default("proj-1")
	delete(cfg.RBAC.Roles, "admin")
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "admin") {
		t.Fatalf("expected admin role requirement, got %v", err)
	}
}

func TestFromYAMLRejectsBadThresholds(t *testing.T) {
	cfg := Default("proj-1")
	cfg.Assessment.Thresholds.Go = 1.0
	cfg.Assessment.Thresholds.Conditional = 2.0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected threshold ordering error")
	}
}

func TestWeightWarningSurfaced(t *testing.T) {
	cfg := Default("proj-1")
	cfg.Assessment.Criteria[0].Weight += 5
	if err := cfg.Validate(); err != nil {
		t.Fatalf("weight drift must not be a validation error: %v", err)
	}
	if w := cfg.WeightWarning(); !strings.Contains(w, "expected 100") {
		t.Fatalf("expected weight warning, got %q", w)
	}
}

func TestFromYAMLRoundTrip(t *testing.T) {
	raw := []byte(`project:
  id: demo
assessment:
  thresholds:
    go: 2.5
    conditional: 1.8
  criteria:
    - id: only.one
      name: Only one
      category: test
      weight: 100
      allowed_scores: [1, 2, 3]
`)
	cfg, err := FromYAML(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Project.ID != "demo" || len(cfg.Assessment.Criteria) != 1 {
		t.Fatalf("unexpected parse result: %+v", cfg)
	}
}
