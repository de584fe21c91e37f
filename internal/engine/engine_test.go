package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pursuitline/internal/config"
	"pursuitline/internal/db"
	"pursuitline/internal/domain"
	"pursuitline/internal/engine"
	"pursuitline/internal/migrate"
	"pursuitline/internal/scoring"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("proj-1")
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if _, err := eng.InitProject(ctx, "proj-1", "Test project", "", "tester"); err != nil {
		t.Fatalf("init project: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

// scoreAll records the same score for every configured criterion, skipping
// values a criterion does not allow (the 1/3-only risk criteria get 3).
func scoreAll(t *testing.T, env testEnv, score int) engine.AssessmentView {
	t.Helper()
	var inputs []engine.ScoreInput
	for _, c := range env.Engine.Config.Assessment.Criteria {
		s := score
		if !c.Allows(s) {
			s = 3
		}
		inputs = append(inputs, engine.ScoreInput{CriterionID: c.ID, Score: s})
	}
	view, err := env.Engine.SaveScores(env.Ctx, "proj-1", inputs, false, "tester")
	if err != nil {
		t.Fatalf("save scores: %v", err)
	}
	return view
}

func TestGateBlocksWithoutAssessment(t *testing.T) {
	env := newTestEnv(t)
	gate, err := env.Engine.EvaluateGate(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("evaluate gate: %v", err)
	}
	if gate.Allowed {
		t.Fatalf("gate should be blocked without an assessment")
	}
	_, err = env.Engine.CreatePursuit(env.Ctx, engine.PursuitCreateOptions{
		ProjectID: "proj-1",
		Title:     "Big deal",
		ActorID:   "tester",
	})
	var blocked engine.GateBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected GateBlockedError, got %v", err)
	}
}

func TestGateBlocksPartialScores(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SaveScores(env.Ctx, "proj-1", []engine.ScoreInput{
		{CriterionID: "strategic.alignment", Score: 3},
		{CriterionID: "win.probability", Score: 3},
	}, false, "tester")
	if err != nil {
		t.Fatalf("save scores: %v", err)
	}
	gate, err := env.Engine.EvaluateGate(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("evaluate gate: %v", err)
	}
	if gate.Allowed {
		t.Fatalf("gate should be blocked while criteria are unscored")
	}
}

func TestGateBlocksLowScore(t *testing.T) {
	env := newTestEnv(t)
	view := scoreAll(t, env, 1)
	if view.Score >= 1.8 {
		t.Fatalf("expected low score, got %.2f", view.Score)
	}
	_, err := env.Engine.CreatePursuit(env.Ctx, engine.PursuitCreateOptions{
		ProjectID: "proj-1",
		Title:     "Risky deal",
		ActorID:   "tester",
	})
	var blocked engine.GateBlockedError
	if !errors.As(err, &blocked) {
		t.Fatalf("expected GateBlockedError, got %v", err)
	}
	if blocked.Score != view.Score {
		t.Fatalf("blocked score %.2f != view score %.2f", blocked.Score, view.Score)
	}
}

func TestGateAllowsFullyScoredDraft(t *testing.T) {
	env := newTestEnv(t)
	view := scoreAll(t, env, 3)
	if view.Assessment.Status != "draft" {
		t.Fatalf("expected draft, got %s", view.Assessment.Status)
	}
	if view.Score != 3.0 {
		t.Fatalf("expected score 3.0, got %.2f", view.Score)
	}
	// a decision is not required for the gate, full scoring is enough
	p, err := env.Engine.CreatePursuit(env.Ctx, engine.PursuitCreateOptions{
		ProjectID: "proj-1",
		Title:     "Good deal",
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create pursuit: %v", err)
	}
	if p.Status != "open" {
		t.Fatalf("expected open, got %s", p.Status)
	}
	comments, err := env.Engine.Repo.ListComments(env.Ctx, p.ID, 10, 0)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 || !comments[0].System {
		t.Fatalf("expected one system comment, got %+v", comments)
	}
	if !strings.Contains(comments[0].Text, "gate passed") {
		t.Fatalf("unexpected comment text %q", comments[0].Text)
	}
}

func TestAssessmentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	scoreAll(t, env, 3)
	view, err := env.Engine.SubmitAssessment(env.Ctx, "proj-1", "tester")
	if err != nil || view.Assessment.Status != "submitted" {
		t.Fatalf("submit: %v (%s)", err, view.Assessment.Status)
	}
	view, err = env.Engine.ReviewAssessment(env.Ctx, "proj-1", "reviewer")
	if err != nil || view.Assessment.Status != "under_review" {
		t.Fatalf("review: %v (%s)", err, view.Assessment.Status)
	}
	view, err = env.Engine.DecideAssessment(env.Ctx, "proj-1", "go", "ceo")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if view.Assessment.Status != "approved" || view.Assessment.Decision != "go" {
		t.Fatalf("expected approved/go, got %s/%s", view.Assessment.Status, view.Assessment.Decision)
	}
	if view.Assessment.DecidedBy == nil || *view.Assessment.DecidedBy != "ceo" {
		t.Fatalf("decided_by not recorded: %+v", view.Assessment.DecidedBy)
	}
	// no forward transition out of a decided state
	_, err = env.Engine.SubmitAssessment(env.Ctx, "proj-1", "tester")
	var te engine.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
}

func TestSubmitRequiresAllScored(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SaveScores(env.Ctx, "proj-1", []engine.ScoreInput{
		{CriterionID: "strategic.alignment", Score: 2},
	}, false, "tester"); err != nil {
		t.Fatalf("save scores: %v", err)
	}
	_, err := env.Engine.SubmitAssessment(env.Ctx, "proj-1", "tester")
	if err == nil || !strings.Contains(err.Error(), "cannot submit") {
		t.Fatalf("expected submit to fail, got %v", err)
	}
}

func TestScoreValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SaveScores(env.Ctx, "proj-1", []engine.ScoreInput{
		{CriterionID: "no.such.criterion", Score: 2},
	}, false, "tester")
	if err == nil || !strings.Contains(err.Error(), "unknown criterion") {
		t.Fatalf("expected unknown criterion error, got %v", err)
	}
	// client.budget only allows 1 or 3
	_, err = env.Engine.SaveScores(env.Ctx, "proj-1", []engine.ScoreInput{
		{CriterionID: "client.budget", Score: 2},
	}, false, "tester")
	if err == nil || !strings.Contains(err.Error(), "not allowed") {
		t.Fatalf("expected allowed-scores error, got %v", err)
	}
}

func TestConditionalGoRequiresCondition(t *testing.T) {
	env := newTestEnv(t)
	scoreAll(t, env, 2)
	if _, err := env.Engine.SubmitAssessment(env.Ctx, "proj-1", "tester"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err := env.Engine.DecideAssessment(env.Ctx, "proj-1", "conditional_go", "ceo")
	if err == nil || !strings.Contains(err.Error(), "at least one condition") {
		t.Fatalf("expected condition requirement, got %v", err)
	}
	if _, err := env.Engine.AddCondition(env.Ctx, engine.ConditionOptions{
		ProjectID: "proj-1",
		Condition: "confirm budget with client",
		ActorID:   "ceo",
	}); err != nil {
		t.Fatalf("add condition: %v", err)
	}
	view, err := env.Engine.DecideAssessment(env.Ctx, "proj-1", "conditional_go", "ceo")
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if view.Assessment.Status != "conditional" || view.Assessment.Decision != "conditional_go" {
		t.Fatalf("expected conditional/conditional_go, got %s/%s", view.Assessment.Status, view.Assessment.Decision)
	}
	if len(view.Conditions) != 1 || view.Conditions[0].Status != "pending" {
		t.Fatalf("unexpected conditions %+v", view.Conditions)
	}
}

func TestRevertClearsDecision(t *testing.T) {
	env := newTestEnv(t)
	scoreAll(t, env, 3)
	if _, err := env.Engine.SubmitAssessment(env.Ctx, "proj-1", "tester"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := env.Engine.DecideAssessment(env.Ctx, "proj-1", "go", "ceo"); err != nil {
		t.Fatalf("decide: %v", err)
	}
	view, err := env.Engine.RevertAssessment(env.Ctx, "proj-1", "tester")
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	a := view.Assessment
	if a.Status != "draft" || a.Decision != scoring.DecisionPending || a.DecidedBy != nil || a.DecidedAt != nil {
		t.Fatalf("revert did not clear decision: %+v", a)
	}
	// scores survive the revert
	if !view.AllScored {
		t.Fatalf("expected scores to survive revert")
	}
}

func TestSaveScoresKeepsStatusUnlessReverted(t *testing.T) {
	env := newTestEnv(t)
	scoreAll(t, env, 3)
	if _, err := env.Engine.SubmitAssessment(env.Ctx, "proj-1", "tester"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	view, err := env.Engine.SaveScores(env.Ctx, "proj-1", []engine.ScoreInput{
		{CriterionID: "strategic.alignment", Score: 1},
	}, false, "tester")
	if err != nil {
		t.Fatalf("save on submitted: %v", err)
	}
	if view.Assessment.Status != "submitted" {
		t.Fatalf("save without revert must keep status, got %s", view.Assessment.Status)
	}
	view, err = env.Engine.SaveScores(env.Ctx, "proj-1", []engine.ScoreInput{
		{CriterionID: "strategic.alignment", Score: 2},
	}, true, "tester")
	if err != nil {
		t.Fatalf("save with revert: %v", err)
	}
	if view.Assessment.Status != "draft" {
		t.Fatalf("expected draft after revert, got %s", view.Assessment.Status)
	}
}

func TestResubmitIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	scoreAll(t, env, 3)
	if _, err := env.Engine.SubmitAssessment(env.Ctx, "proj-1", "tester"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	view, err := env.Engine.SubmitAssessment(env.Ctx, "proj-1", "tester")
	if err != nil {
		t.Fatalf("re-submit: %v", err)
	}
	if view.Assessment.Status != "submitted" {
		t.Fatalf("expected submitted, got %s", view.Assessment.Status)
	}
}

func TestEmptyOptionalFieldsPersist(t *testing.T) {
	env := newTestEnv(t)

	// project created by newTestEnv already has an empty description
	p, err := env.Engine.Repo.GetProject(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if p.Description != "" {
		t.Fatalf("expected empty description, got %q", p.Description)
	}

	s, err := env.Engine.CreateStakeholder(env.Ctx, engine.StakeholderCreateOptions{
		Name:    "Acme Logistics",
		ActorID: "tester",
	})
	if err != nil {
		t.Fatalf("create stakeholder without contact details: %v", err)
	}
	if s.Email != "" || s.Phone != "" || s.Notes != "" {
		t.Fatalf("expected empty contact fields, got %+v", s)
	}

	view, err := env.Engine.SaveScores(env.Ctx, "proj-1", []engine.ScoreInput{
		{CriterionID: "strategic.alignment", Score: 2},
	}, false, "tester")
	if err != nil {
		t.Fatalf("save score without comment: %v", err)
	}
	if len(view.Scores) != 1 || view.Scores[0].Comment != "" {
		t.Fatalf("expected one comment-less score, got %+v", view.Scores)
	}

	c, err := env.Engine.AddCondition(env.Ctx, engine.ConditionOptions{
		ProjectID: "proj-1",
		Condition: "confirm staffing plan",
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("add condition without notes: %v", err)
	}
	if c.Notes != "" {
		t.Fatalf("expected empty notes, got %q", c.Notes)
	}

	d, err := env.Engine.RegisterDocument(env.Ctx, domain.Document{
		ProjectID: "proj-1",
		Name:      "proposal.pdf",
		Path:      "docs/proposal.pdf",
	}, "tester")
	if err != nil {
		t.Fatalf("register document without content type: %v", err)
	}
	if d.ContentType != "" {
		t.Fatalf("expected empty content type, got %q", d.ContentType)
	}
}

func TestPursuitStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	scoreAll(t, env, 3)
	p, err := env.Engine.CreatePursuit(env.Ctx, engine.PursuitCreateOptions{
		ProjectID: "proj-1",
		Title:     "Deal",
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create pursuit: %v", err)
	}
	// open -> won is not allowed
	won := "won"
	_, err = env.Engine.UpdatePursuit(env.Ctx, engine.PursuitUpdateOptions{ID: p.ID, Status: &won, ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected transition error")
	}
	active := "active"
	p, err = env.Engine.UpdatePursuit(env.Ctx, engine.PursuitUpdateOptions{ID: p.ID, Status: &active, ActorID: "tester"})
	if err != nil || p.Status != "active" {
		t.Fatalf("to active: %v (%s)", err, p.Status)
	}
	p, err = env.Engine.UpdatePursuit(env.Ctx, engine.PursuitUpdateOptions{ID: p.ID, Status: &won, ActorID: "tester"})
	if err != nil || p.Status != "won" {
		t.Fatalf("to won: %v (%s)", err, p.Status)
	}
	comments, err := env.Engine.Repo.ListComments(env.Ctx, p.ID, 10, 0)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	var texts []string
	for _, c := range comments {
		if c.System {
			texts = append(texts, c.Text)
		}
	}
	if len(texts) != 3 {
		t.Fatalf("expected 3 system comments, got %v", texts)
	}
	if texts[1] != "status changed open -> active" || texts[2] != "status changed active -> won" {
		t.Fatalf("unexpected status comments %v", texts)
	}
}

func TestCommentsAreAppendOnlyOrdered(t *testing.T) {
	env := newTestEnv(t)
	scoreAll(t, env, 3)
	p, err := env.Engine.CreatePursuit(env.Ctx, engine.PursuitCreateOptions{
		ProjectID: "proj-1",
		Title:     "Deal",
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("create pursuit: %v", err)
	}
	for _, text := range []string{"first call done", "sent proposal", "waiting on legal"} {
		if _, err := env.Engine.AddComment(env.Ctx, p.ID, text, "tester"); err != nil {
			t.Fatalf("add comment: %v", err)
		}
	}
	comments, err := env.Engine.Repo.ListComments(env.Ctx, p.ID, 10, 0)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	var last int64
	for _, c := range comments {
		if c.Seq <= last {
			t.Fatalf("comment seq not strictly increasing: %+v", comments)
		}
		last = c.Seq
	}
	// after_seq pagination
	tail, err := env.Engine.Repo.ListComments(env.Ctx, p.ID, 10, comments[1].Seq)
	if err != nil {
		t.Fatalf("list after seq: %v", err)
	}
	if len(tail) != len(comments)-2 {
		t.Fatalf("expected %d comments after seq, got %d", len(comments)-2, len(tail))
	}
}

func TestClassifyPreview(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		score float64
		want  string
	}{
		{3.0, "go"},
		{2.5, "go"},
		{2.49, "conditional_go"},
		{1.8, "conditional_go"},
		{1.79, "no_go"},
		{1.0, "no_go"},
	}
	for _, tc := range cases {
		got, _, err := env.Engine.ClassifyPreview(env.Ctx, "proj-1", tc.score, nil)
		if err != nil {
			t.Fatalf("classify %.2f: %v", tc.score, err)
		}
		if got != tc.want {
			t.Fatalf("classify %.2f: got %s, want %s", tc.score, got, tc.want)
		}
	}
	// override thresholds
	got, th, err := env.Engine.ClassifyPreview(env.Ctx, "proj-1", 2.0, &scoring.Thresholds{Go: 2.0, Conditional: 1.5})
	if err != nil || got != "go" || th.Go != 2.0 {
		t.Fatalf("override classify: %v (%s)", err, got)
	}
}

func TestEventsRecorded(t *testing.T) {
	env := newTestEnv(t)
	scoreAll(t, env, 3)
	if _, err := env.Engine.SubmitAssessment(env.Ctx, "proj-1", "tester"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 50, "proj-1", "", "", "")
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	seen := map[string]bool{}
	for _, evt := range events {
		seen[evt.Type] = true
	}
	for _, want := range []string{"project.init", "assessment.created", "assessment.scored", "assessment.submitted"} {
		if !seen[want] {
			t.Fatalf("missing event %s in %v", want, seen)
		}
	}
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	scoreAll(t, env, 3)
	value := 120000.0
	if _, err := env.Engine.CreatePursuit(env.Ctx, engine.PursuitCreateOptions{
		ProjectID:     "proj-1",
		Title:         "Deal A",
		ValueEstimate: &value,
		ActorID:       "tester",
	}); err != nil {
		t.Fatalf("create pursuit: %v", err)
	}
	if _, err := env.Engine.CreateStakeholder(env.Ctx, engine.StakeholderCreateOptions{
		Name:      "Acme Corp",
		Kind:      "client",
		ProjectID: "proj-1",
		ActorID:   "tester",
	}); err != nil {
		t.Fatalf("create stakeholder: %v", err)
	}
	d, err := env.Engine.GetDashboard(env.Ctx, "proj-1")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if d.PursuitsByStatus["open"] != 1 {
		t.Fatalf("expected one open pursuit, got %+v", d.PursuitsByStatus)
	}
	if d.PipelineValue != value {
		t.Fatalf("pipeline value %.2f, want %.2f", d.PipelineValue, value)
	}
	if d.StakeholdersByKind["client"] != 1 {
		t.Fatalf("expected one client, got %+v", d.StakeholdersByKind)
	}
	if d.Assessment == nil || d.Assessment.ScoredCount != d.Assessment.CriteriaCount {
		t.Fatalf("unexpected assessment summary %+v", d.Assessment)
	}
	if !d.Gate.Allowed {
		t.Fatalf("gate should be open")
	}
}

func TestConditionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	scoreAll(t, env, 2)
	c, err := env.Engine.AddCondition(env.Ctx, engine.ConditionOptions{
		ProjectID: "proj-1",
		Condition: "sign NDA",
		ActorID:   "tester",
	})
	if err != nil {
		t.Fatalf("add condition: %v", err)
	}
	updated, err := env.Engine.UpdateCondition(env.Ctx, engine.ConditionOptions{
		ID:      c.ID,
		Status:  "met",
		ActorID: "tester",
	})
	if err != nil || updated.Status != "met" {
		t.Fatalf("update condition: %v (%s)", err, updated.Status)
	}
	_, err = env.Engine.UpdateCondition(env.Ctx, engine.ConditionOptions{ID: c.ID, Status: "bogus", ActorID: "tester"})
	if err == nil {
		t.Fatalf("expected invalid status error")
	}
	if err := env.Engine.DeleteCondition(env.Ctx, c.ID, "tester"); err != nil {
		t.Fatalf("delete condition: %v", err)
	}
}
