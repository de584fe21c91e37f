package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pursuitline/internal/domain"
	"pursuitline/internal/events"
	"pursuitline/internal/repo"
	"pursuitline/internal/scoring"
)

// TransitionError indicates a disallowed assessment status change.
type TransitionError struct {
	From, To string
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("invalid assessment transition %s -> %s", e.From, e.To)
}

func ensureAssessmentTransition(oldStatus, newStatus string) error {
	// revert to draft is always allowed, including from decided states
	if newStatus == "draft" {
		return nil
	}
	switch oldStatus {
	case "draft":
		if newStatus == "submitted" {
			return nil
		}
	case "submitted":
		// re-submit is a no-op, not an error
		if newStatus == "submitted" || newStatus == "under_review" || newStatus == "approved" || newStatus == "conditional" || newStatus == "rejected" {
			return nil
		}
	case "under_review":
		if newStatus == "approved" || newStatus == "conditional" || newStatus == "rejected" {
			return nil
		}
	}
	return TransitionError{From: oldStatus, To: newStatus}
}

// EnsureAssessment returns the project's assessment, creating a draft when
// none exists.
func (e Engine) EnsureAssessment(ctx context.Context, projectID, actorID string) (domain.Assessment, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.Assessment{}, err
	}
	a, err := e.Repo.GetAssessmentByProject(ctx, projectID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Assessment{}, err
	}
	now := e.nowStr()
	a = domain.Assessment{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Status:    "draft",
		Decision:  scoring.DecisionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assessment{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertAssessmentTx(ctx, tx, a); err != nil {
		return domain.Assessment{}, err
	}
	if err := e.Events.Append(ctx, tx, "assessment.created", projectID, "assessment", a.ID, actorID, events.EventPayload{}); err != nil {
		return domain.Assessment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Assessment{}, err
	}
	return a, nil
}

// ScoreInput is one criterion score to record.
type ScoreInput struct {
	CriterionID string
	Score       int
	Comment     string
}

// AssessmentView is an assessment with its derived scoring state.
type AssessmentView struct {
	Assessment domain.Assessment   `json:"assessment"`
	Scores     []domain.ScoreEntry `json:"scores"`
	Score      float64             `json:"score"`
	AllScored  bool                `json:"all_scored"`
	Suggested  string              `json:"suggested_decision"`
	Conditions []domain.Condition  `json:"conditions,omitempty"`
}

func (e Engine) GetAssessmentView(ctx context.Context, projectID string) (AssessmentView, error) {
	cfg, err := e.projectConfig(ctx, projectID)
	if err != nil {
		return AssessmentView{}, err
	}
	a, err := e.Repo.GetAssessmentByProject(ctx, projectID)
	if err != nil {
		return AssessmentView{}, err
	}
	scores, err := e.Repo.ListScores(ctx, a.ID)
	if err != nil {
		return AssessmentView{}, err
	}
	conditions, err := e.Repo.ListConditions(ctx, a.ID, "")
	if err != nil {
		return AssessmentView{}, err
	}
	m := make(map[string]int, len(scores))
	for _, s := range scores {
		m[s.CriterionID] = s.Score
	}
	total := scoring.WeightedScore(m, cfg.Assessment.Criteria)
	return AssessmentView{
		Assessment: a,
		Scores:     scores,
		Score:      total,
		AllScored:  scoring.AllScored(m, cfg.Assessment.Criteria),
		Suggested:  scoring.Classify(total, cfg.Assessment.Thresholds),
		Conditions: conditions,
	}, nil
}

// SaveScores records criterion scores. The assessment keeps its current
// status; revert=true forces it back to draft from any state, clearing any
// recorded decision.
func (e Engine) SaveScores(ctx context.Context, projectID string, inputs []ScoreInput, revert bool, actorID string) (AssessmentView, error) {
	cfg, err := e.projectConfig(ctx, projectID)
	if err != nil {
		return AssessmentView{}, err
	}
	a, err := e.EnsureAssessment(ctx, projectID, actorID)
	if err != nil {
		return AssessmentView{}, err
	}
	for _, in := range inputs {
		c, ok := cfg.Assessment.Criteria.ByID(in.CriterionID)
		if !ok {
			return AssessmentView{}, fmt.Errorf("unknown criterion %s", in.CriterionID)
		}
		if !c.Allows(in.Score) {
			return AssessmentView{}, fmt.Errorf("score %d not allowed for criterion %s", in.Score, in.CriterionID)
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AssessmentView{}, err
	}
	defer tx.Rollback()
	now := e.nowStr()
	if revert && a.Status != "draft" {
		from := a.Status
		a.Status = "draft"
		a.Decision = scoring.DecisionPending
		a.DecidedBy = nil
		a.DecidedAt = nil
		a.UpdatedAt = now
		if err := e.Repo.UpdateAssessmentTx(ctx, tx, a); err != nil {
			return AssessmentView{}, err
		}
		if err := e.Events.Append(ctx, tx, "assessment.reverted", projectID, "assessment", a.ID, actorID, events.EventPayload{"from": from}); err != nil {
			return AssessmentView{}, err
		}
	}
	for _, in := range inputs {
		if err := e.Repo.UpsertScoreTx(ctx, tx, domain.ScoreEntry{
			AssessmentID: a.ID,
			CriterionID:  in.CriterionID,
			Score:        in.Score,
			Comment:      in.Comment,
			ScoredBy:     actorID,
			UpdatedAt:    now,
		}); err != nil {
			return AssessmentView{}, err
		}
	}
	scores, err := e.Repo.ScoresMapTx(ctx, tx, a.ID)
	if err != nil {
		return AssessmentView{}, err
	}
	total := scoring.WeightedScore(scores, cfg.Assessment.Criteria)
	if err := e.Events.Append(ctx, tx, "assessment.scored", projectID, "assessment", a.ID, actorID, events.EventPayload{
		"count": len(inputs),
		"score": total,
	}); err != nil {
		return AssessmentView{}, err
	}
	if err := tx.Commit(); err != nil {
		return AssessmentView{}, err
	}
	return e.GetAssessmentView(ctx, projectID)
}

// SubmitAssessment moves a fully scored draft to submitted.
func (e Engine) SubmitAssessment(ctx context.Context, projectID, actorID string) (AssessmentView, error) {
	cfg, err := e.projectConfig(ctx, projectID)
	if err != nil {
		return AssessmentView{}, err
	}
	a, err := e.Repo.GetAssessmentByProject(ctx, projectID)
	if err != nil {
		return AssessmentView{}, err
	}
	if err := ensureAssessmentTransition(a.Status, "submitted"); err != nil {
		return AssessmentView{}, err
	}
	scores, err := e.Repo.ScoresMap(ctx, a.ID)
	if err != nil {
		return AssessmentView{}, err
	}
	if !scoring.AllScored(scores, cfg.Assessment.Criteria) {
		return AssessmentView{}, fmt.Errorf("cannot submit: %d of %d criteria scored", len(scores), len(cfg.Assessment.Criteria))
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AssessmentView{}, err
	}
	defer tx.Rollback()
	a.Status = "submitted"
	a.UpdatedAt = e.nowStr()
	if err := e.Repo.UpdateAssessmentTx(ctx, tx, a); err != nil {
		return AssessmentView{}, err
	}
	total := scoring.WeightedScore(scores, cfg.Assessment.Criteria)
	if err := e.Events.Append(ctx, tx, "assessment.submitted", projectID, "assessment", a.ID, actorID, events.EventPayload{
		"score":     total,
		"suggested": scoring.Classify(total, cfg.Assessment.Thresholds),
	}); err != nil {
		return AssessmentView{}, err
	}
	if err := tx.Commit(); err != nil {
		return AssessmentView{}, err
	}
	return e.GetAssessmentView(ctx, projectID)
}

// ReviewAssessment marks a submitted assessment as under review.
func (e Engine) ReviewAssessment(ctx context.Context, projectID, actorID string) (AssessmentView, error) {
	a, err := e.Repo.GetAssessmentByProject(ctx, projectID)
	if err != nil {
		return AssessmentView{}, err
	}
	if err := ensureAssessmentTransition(a.Status, "under_review"); err != nil {
		return AssessmentView{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AssessmentView{}, err
	}
	defer tx.Rollback()
	a.Status = "under_review"
	a.UpdatedAt = e.nowStr()
	if err := e.Repo.UpdateAssessmentTx(ctx, tx, a); err != nil {
		return AssessmentView{}, err
	}
	if err := e.Events.Append(ctx, tx, "assessment.review.started", projectID, "assessment", a.ID, actorID, events.EventPayload{}); err != nil {
		return AssessmentView{}, err
	}
	if err := tx.Commit(); err != nil {
		return AssessmentView{}, err
	}
	return e.GetAssessmentView(ctx, projectID)
}

func statusForDecision(decision string) (string, error) {
	switch decision {
	case scoring.DecisionGo:
		return "approved", nil
	case scoring.DecisionConditionalGo:
		return "conditional", nil
	case scoring.DecisionNoGo:
		return "rejected", nil
	}
	return "", fmt.Errorf("invalid decision %s", decision)
}

// DecideAssessment records the reviewer's decision. A conditional_go decision
// requires at least one condition attached to the assessment.
func (e Engine) DecideAssessment(ctx context.Context, projectID, decision, actorID string) (AssessmentView, error) {
	target, err := statusForDecision(decision)
	if err != nil {
		return AssessmentView{}, err
	}
	a, err := e.Repo.GetAssessmentByProject(ctx, projectID)
	if err != nil {
		return AssessmentView{}, err
	}
	if err := ensureAssessmentTransition(a.Status, target); err != nil {
		return AssessmentView{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AssessmentView{}, err
	}
	defer tx.Rollback()
	if decision == scoring.DecisionConditionalGo {
		n, err := e.Repo.CountConditionsTx(ctx, tx, a.ID)
		if err != nil {
			return AssessmentView{}, err
		}
		if n == 0 {
			return AssessmentView{}, errors.New("conditional_go requires at least one condition")
		}
	}
	now := e.nowStr()
	a.Status = target
	a.Decision = decision
	a.DecidedBy = &actorID
	a.DecidedAt = &now
	a.UpdatedAt = now
	if err := e.Repo.UpdateAssessmentTx(ctx, tx, a); err != nil {
		return AssessmentView{}, err
	}
	if err := e.Events.Append(ctx, tx, "assessment.decided", projectID, "assessment", a.ID, actorID, events.EventPayload{
		"decision": decision,
		"status":   target,
	}); err != nil {
		return AssessmentView{}, err
	}
	if err := tx.Commit(); err != nil {
		return AssessmentView{}, err
	}
	return e.GetAssessmentView(ctx, projectID)
}

// RevertAssessment forces the assessment back to draft from any state,
// clearing any recorded decision.
func (e Engine) RevertAssessment(ctx context.Context, projectID, actorID string) (AssessmentView, error) {
	a, err := e.Repo.GetAssessmentByProject(ctx, projectID)
	if err != nil {
		return AssessmentView{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return AssessmentView{}, err
	}
	defer tx.Rollback()
	from := a.Status
	a.Status = "draft"
	a.Decision = scoring.DecisionPending
	a.DecidedBy = nil
	a.DecidedAt = nil
	a.UpdatedAt = e.nowStr()
	if err := e.Repo.UpdateAssessmentTx(ctx, tx, a); err != nil {
		return AssessmentView{}, err
	}
	if err := e.Events.Append(ctx, tx, "assessment.reverted", projectID, "assessment", a.ID, actorID, events.EventPayload{"from": from}); err != nil {
		return AssessmentView{}, err
	}
	if err := tx.Commit(); err != nil {
		return AssessmentView{}, err
	}
	return e.GetAssessmentView(ctx, projectID)
}

// ConditionOptions are parameters for creating or updating a condition.
type ConditionOptions struct {
	ID            string
	ProjectID     string
	Condition     string
	ResponsibleID string
	DueDate       string
	Notes         string
	Status        string
	ActorID       string
}

func (e Engine) AddCondition(ctx context.Context, opts ConditionOptions) (domain.Condition, error) {
	if opts.Condition == "" {
		return domain.Condition{}, errors.New("condition text is required")
	}
	a, err := e.Repo.GetAssessmentByProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Condition{}, err
	}
	now := e.nowStr()
	c := domain.Condition{
		ID:            uuid.New().String(),
		AssessmentID:  a.ID,
		Condition:     opts.Condition,
		ResponsibleID: optionalString(opts.ResponsibleID),
		DueDate:       optionalString(opts.DueDate),
		Notes:         opts.Notes,
		Status:        "pending",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Condition{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertConditionTx(ctx, tx, c); err != nil {
		return domain.Condition{}, err
	}
	if err := e.Events.Append(ctx, tx, "assessment.condition.added", opts.ProjectID, "condition", c.ID, opts.ActorID, events.EventPayload{}); err != nil {
		return domain.Condition{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Condition{}, err
	}
	return c, nil
}

func (e Engine) UpdateCondition(ctx context.Context, opts ConditionOptions) (domain.Condition, error) {
	c, err := e.Repo.GetCondition(ctx, opts.ID)
	if err != nil {
		return c, err
	}
	if opts.Condition != "" {
		c.Condition = opts.Condition
	}
	if opts.ResponsibleID != "" {
		c.ResponsibleID = &opts.ResponsibleID
	}
	if opts.DueDate != "" {
		c.DueDate = &opts.DueDate
	}
	if opts.Notes != "" {
		c.Notes = opts.Notes
	}
	if opts.Status != "" {
		switch opts.Status {
		case "pending", "met", "not_met":
		default:
			return c, fmt.Errorf("invalid condition status %s", opts.Status)
		}
		c.Status = opts.Status
	}
	c.UpdatedAt = e.nowStr()
	a, err := e.Repo.GetAssessment(ctx, c.AssessmentID)
	if err != nil {
		return c, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return c, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateConditionTx(ctx, tx, c); err != nil {
		return c, err
	}
	if err := e.Events.Append(ctx, tx, "assessment.condition.updated", a.ProjectID, "condition", c.ID, opts.ActorID, events.EventPayload{"status": c.Status}); err != nil {
		return c, err
	}
	if err := tx.Commit(); err != nil {
		return c, err
	}
	return c, nil
}

func (e Engine) DeleteCondition(ctx context.Context, id, actorID string) error {
	c, err := e.Repo.GetCondition(ctx, id)
	if err != nil {
		return err
	}
	a, err := e.Repo.GetAssessment(ctx, c.AssessmentID)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.DeleteConditionTx(ctx, tx, id); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "assessment.condition.removed", a.ProjectID, "condition", id, actorID, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

// ClassifyPreview classifies a hypothetical score, optionally against
// override thresholds instead of the project's configured ones.
func (e Engine) ClassifyPreview(ctx context.Context, projectID string, score float64, override *scoring.Thresholds) (string, scoring.Thresholds, error) {
	th := scoring.DefaultThresholds()
	if projectID != "" {
		cfg, err := e.projectConfig(ctx, projectID)
		if err != nil {
			return "", th, err
		}
		th = cfg.Assessment.Thresholds
	}
	if override != nil {
		if err := override.Validate(); err != nil {
			return "", th, err
		}
		th = *override
	}
	return scoring.Classify(score, th), th, nil
}
