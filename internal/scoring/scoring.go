package scoring

import (
	"fmt"
	"math"
)

// Decision labels produced by Classify.
const (
	DecisionGo            = "go"
	DecisionConditionalGo = "conditional_go"
	DecisionNoGo          = "no_go"
	DecisionPending       = "pending"
)

// Thresholds are the decision band cutoffs on the 0-3 scale.
// score >= Go -> go; score >= Conditional -> conditional_go; else no_go.
type Thresholds struct {
	Go          float64 `json:"go" yaml:"go"`
	Conditional float64 `json:"conditional" yaml:"conditional"`
}

// DefaultThresholds returns the standard 2.5 / 1.8 cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Go: 2.5, Conditional: 1.8}
}

func (t Thresholds) Validate() error {
	if t.Go < t.Conditional {
		return fmt.Errorf("go threshold %.2f below conditional threshold %.2f", t.Go, t.Conditional)
	}
	if t.Conditional < 0 || t.Go > 3 {
		return fmt.Errorf("thresholds must lie within the 0-3 scale")
	}
	return nil
}

// Criterion is one row of the evaluation catalog. Weight is a percentage of
// the total; AllowedScores is the discrete set a scorer may pick from.
type Criterion struct {
	ID            string  `json:"id" yaml:"id"`
	Name          string  `json:"name" yaml:"name"`
	Category      string  `json:"category" yaml:"category"`
	Description   string  `json:"description,omitempty" yaml:"description,omitempty"`
	Weight        float64 `json:"weight" yaml:"weight"`
	AllowedScores []int   `json:"allowed_scores" yaml:"allowed_scores"`
}

// Allows reports whether score is in the criterion's allowed set.
func (c Criterion) Allows(score int) bool {
	for _, s := range c.AllowedScores {
		if s == score {
			return true
		}
	}
	return false
}

// Catalog is the ordered criterion table for a project.
type Catalog []Criterion

func (cat Catalog) ByID(id string) (Criterion, bool) {
	for _, c := range cat {
		if c.ID == id {
			return c, true
		}
	}
	return Criterion{}, false
}

// WeightSum returns the total of all criterion weights.
func (cat Catalog) WeightSum() float64 {
	var sum float64
	for _, c := range cat {
		sum += c.Weight
	}
	return sum
}

// Validate checks structural soundness of the catalog. A weight sum other
// than 100 is reported by WeightWarning, not here: the catalog is reference
// data the server displays a warning for but does not correct.
func (cat Catalog) Validate() error {
	if len(cat) == 0 {
		return fmt.Errorf("criterion catalog is empty")
	}
	seen := map[string]bool{}
	for _, c := range cat {
		if c.ID == "" {
			return fmt.Errorf("criterion with empty id")
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate criterion id %s", c.ID)
		}
		seen[c.ID] = true
		if c.Weight <= 0 {
			return fmt.Errorf("criterion %s has non-positive weight", c.ID)
		}
		if len(c.AllowedScores) == 0 {
			return fmt.Errorf("criterion %s has no allowed scores", c.ID)
		}
		for _, s := range c.AllowedScores {
			if s < 1 || s > 3 {
				return fmt.Errorf("criterion %s allows score %d outside 1-3", c.ID, s)
			}
		}
	}
	return nil
}

// WeightWarning returns a human-readable warning when weights do not sum to
// 100, or "" when they do (within a small tolerance).
func (cat Catalog) WeightWarning() string {
	sum := cat.WeightSum()
	if math.Abs(sum-100) <= 0.01 {
		return ""
	}
	return fmt.Sprintf("criterion weights sum to %.2f, expected 100", sum)
}

// WeightedScore computes the weighted total for the recorded scores.
// Each scored criterion contributes score * weight/100; unscored criteria
// contribute nothing, so a partially scored assessment yields its literal
// partial sum rather than a proportionally scaled value. The result is
// rounded to two decimals, matching the resolution of the thresholds.
func WeightedScore(scores map[string]int, cat Catalog) float64 {
	var total float64
	for _, c := range cat {
		if s, ok := scores[c.ID]; ok {
			total += float64(s) * c.Weight / 100
		}
	}
	return round2(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// MaxScore returns the weighted total if every criterion were scored at its
// maximum allowed value. 3.0 for a standard catalog summing to 100.
func MaxScore(cat Catalog) float64 {
	var total float64
	for _, c := range cat {
		max := 0
		for _, s := range c.AllowedScores {
			if s > max {
				max = s
			}
		}
		total += float64(max) * c.Weight / 100
	}
	return round2(total)
}

// AllScored reports whether every catalog criterion has a recorded score.
func AllScored(scores map[string]int, cat Catalog) bool {
	for _, c := range cat {
		if _, ok := scores[c.ID]; !ok {
			return false
		}
	}
	return len(cat) > 0
}

// Classify maps a weighted score to a decision band. Ties resolve to the
// higher category: both cutoffs are inclusive lower bounds.
func Classify(score float64, t Thresholds) string {
	switch {
	case score >= t.Go:
		return DecisionGo
	case score >= t.Conditional:
		return DecisionConditionalGo
	default:
		return DecisionNoGo
	}
}

// GateResult is the outcome of the pursuit-creation gate.
type GateResult struct {
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason,omitempty"`
	Score   float64 `json:"score"`
}

// Gate decides whether pursuits may be created for a project, purely from
// assessment state. An assessment that exists, is scored on every criterion,
// and clears the conditional threshold passes the gate even while still in
// draft; human approval is not required.
func Gate(hasAssessment bool, scores map[string]int, cat Catalog, t Thresholds) GateResult {
	if !hasAssessment {
		return GateResult{Reason: "no assessment exists for this project"}
	}
	if len(scores) == 0 {
		return GateResult{Reason: "assessment has no recorded scores"}
	}
	score := WeightedScore(scores, cat)
	if !AllScored(scores, cat) {
		return GateResult{Score: score, Reason: "assessment is not scored on every criterion"}
	}
	if score < t.Conditional {
		return GateResult{Score: score, Reason: fmt.Sprintf("weighted score %.2f below threshold %.2f", score, t.Conditional)}
	}
	return GateResult{Allowed: true, Score: score}
}
