package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pursuitline/internal/config"
	"pursuitline/internal/domain"
	"pursuitline/internal/events"
	"pursuitline/internal/repo"
	"pursuitline/internal/scoring"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowStr() string {
	return e.now().UTC().Format(time.RFC3339)
}

// projectConfig resolves the per-project config, falling back to the
// engine-level config and then to defaults.
func (e Engine) projectConfig(ctx context.Context, projectID string) (*config.Config, error) {
	cfg, err := e.Repo.GetProjectConfig(ctx, projectID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if e.Config != nil {
		return e.Config, nil
	}
	return config.Default(projectID), nil
}

// InitProject creates a project, stores its default config, seeds the RBAC
// tables from it, and grants the creating actor the admin role.
func (e Engine) InitProject(ctx context.Context, projectID, name, description, actorID string) (domain.Project, error) {
	if projectID == "" {
		return domain.Project{}, errors.New("project id required")
	}
	if name == "" {
		name = projectID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()

	now := e.nowStr()
	p := domain.Project{
		ID:          projectID,
		OrgID:       "default",
		Name:        name,
		Status:      "active",
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertProjectTx(ctx, tx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	cfg := config.Default(projectID)
	if e.Config != nil {
		cfg = e.Config
	}
	if err := e.Repo.UpsertProjectConfigTx(ctx, tx, p.ID, cfg); err != nil {
		return domain.Project{}, fmt.Errorf("insert project config: %w", err)
	}
	if err := e.Repo.SeedRBACTx(ctx, tx, p.ID, cfg.RBAC.Roles); err != nil {
		return domain.Project{}, fmt.Errorf("seed rbac: %w", err)
	}
	if actorID != "" {
		if err := e.Repo.EnsureActor(ctx, tx, actorID, now); err != nil {
			return domain.Project{}, err
		}
		if _, ok := cfg.RBAC.Roles["admin"]; ok {
			if err := e.Repo.AssignRole(ctx, tx, p.ID, actorID, "admin", actorID, now); err != nil {
				return domain.Project{}, err
			}
		}
	}
	if err := e.Events.Append(ctx, tx, "project.init", p.ID, "project", p.ID, actorID, events.EventPayload{"name": p.Name, "status": p.Status}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ProjectUpdateOptions carries optional project field updates.
type ProjectUpdateOptions struct {
	ID          string
	Name        *string
	Status      *string
	Description *string
	ClientID    *string
	ActorID     string
}

func (e Engine) UpdateProject(ctx context.Context, opts ProjectUpdateOptions) (domain.Project, error) {
	if opts.Status != nil {
		switch *opts.Status {
		case "active", "on_hold", "archived":
		default:
			return domain.Project{}, fmt.Errorf("invalid project status %s", *opts.Status)
		}
	}
	if opts.ClientID != nil && *opts.ClientID != "" {
		s, err := e.Repo.GetStakeholder(ctx, *opts.ClientID)
		if err != nil {
			return domain.Project{}, fmt.Errorf("client: %w", err)
		}
		if s.Kind != "client" {
			return domain.Project{}, fmt.Errorf("stakeholder %s is not a client", s.ID)
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProject(ctx, tx, opts.ID, opts.Name, opts.Status, opts.Description, opts.ClientID, e.nowStr()); err != nil {
		return domain.Project{}, err
	}
	if err := e.Events.Append(ctx, tx, "project.updated", opts.ID, "project", opts.ID, opts.ActorID, events.EventPayload{}); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, opts.ID)
}

// ImportProjectConfig replaces a project's config and reseeds RBAC from it.
func (e Engine) ImportProjectConfig(ctx context.Context, projectID string, cfg *config.Config, actorID string) error {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpsertProjectConfigTx(ctx, tx, projectID, cfg); err != nil {
		return err
	}
	if err := e.Repo.SeedRBACTx(ctx, tx, projectID, cfg.RBAC.Roles); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "project.config.imported", projectID, "project", projectID, actorID, events.EventPayload{
		"criteria": len(cfg.Assessment.Criteria),
	}); err != nil {
		return err
	}
	return tx.Commit()
}

// StakeholderCreateOptions are parameters for creating a stakeholder.
type StakeholderCreateOptions struct {
	ID        string
	Name      string
	Kind      string
	Email     string
	Phone     string
	Notes     string
	ProjectID string
	Role      string
	ActorID   string
}

func (e Engine) CreateStakeholder(ctx context.Context, opts StakeholderCreateOptions) (domain.Stakeholder, error) {
	if opts.Name == "" {
		return domain.Stakeholder{}, errors.New("name is required")
	}
	switch opts.Kind {
	case "client", "consultant", "partner":
	case "":
		opts.Kind = "client"
	default:
		return domain.Stakeholder{}, fmt.Errorf("invalid stakeholder kind %s", opts.Kind)
	}
	now := e.nowStr()
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	s := domain.Stakeholder{
		ID:        id,
		OrgID:     "default",
		Name:      opts.Name,
		Kind:      opts.Kind,
		Email:     opts.Email,
		Phone:     opts.Phone,
		Notes:     opts.Notes,
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stakeholder{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertStakeholderTx(ctx, tx, s); err != nil {
		return domain.Stakeholder{}, err
	}
	projectID := opts.ProjectID
	if projectID != "" {
		if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
			return domain.Stakeholder{}, err
		}
		if err := e.Repo.LinkStakeholderTx(ctx, tx, projectID, s.ID, opts.Role, now); err != nil {
			return domain.Stakeholder{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "stakeholder.created", projectID, "stakeholder", s.ID, opts.ActorID, events.EventPayload{"name": s.Name, "kind": s.Kind}); err != nil {
		return domain.Stakeholder{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stakeholder{}, err
	}
	return s, nil
}

// StakeholderUpdateOptions carries optional stakeholder field updates.
type StakeholderUpdateOptions struct {
	ID      string
	Name    *string
	Kind    *string
	Email   *string
	Phone   *string
	Notes   *string
	ActorID string
}

func (e Engine) UpdateStakeholder(ctx context.Context, opts StakeholderUpdateOptions) (domain.Stakeholder, error) {
	if opts.Kind != nil {
		switch *opts.Kind {
		case "client", "consultant", "partner":
		default:
			return domain.Stakeholder{}, fmt.Errorf("invalid stakeholder kind %s", *opts.Kind)
		}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Stakeholder{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateStakeholder(ctx, tx, opts.ID, opts.Name, opts.Kind, opts.Email, opts.Phone, opts.Notes); err != nil {
		return domain.Stakeholder{}, err
	}
	if err := e.Events.Append(ctx, tx, "stakeholder.updated", "", "stakeholder", opts.ID, opts.ActorID, events.EventPayload{}); err != nil {
		return domain.Stakeholder{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Stakeholder{}, err
	}
	return e.Repo.GetStakeholder(ctx, opts.ID)
}

func (e Engine) LinkStakeholder(ctx context.Context, projectID, stakeholderID, role, actorID string) error {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return err
	}
	if _, err := e.Repo.GetStakeholder(ctx, stakeholderID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.LinkStakeholderTx(ctx, tx, projectID, stakeholderID, role, e.nowStr()); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "stakeholder.linked", projectID, "stakeholder", stakeholderID, actorID, events.EventPayload{"role": role}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) UnlinkStakeholder(ctx context.Context, projectID, stakeholderID, actorID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UnlinkStakeholderTx(ctx, tx, projectID, stakeholderID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "stakeholder.unlinked", projectID, "stakeholder", stakeholderID, actorID, events.EventPayload{}); err != nil {
		return err
	}
	return tx.Commit()
}

// PursuitCreateOptions are parameters for creating a pursuit.
type PursuitCreateOptions struct {
	ID            string
	ProjectID     string
	StakeholderID string
	Title         string
	Description   string
	OwnerID       string
	ValueEstimate *float64
	DueDate       string
	ActorID       string
}

// CreatePursuit creates a pursuit after the assessment gate clears.
// The gate decision is recorded as a system comment on the new pursuit.
func (e Engine) CreatePursuit(ctx context.Context, opts PursuitCreateOptions) (domain.Pursuit, error) {
	if opts.Title == "" {
		return domain.Pursuit{}, errors.New("title is required")
	}
	if opts.ProjectID == "" {
		return domain.Pursuit{}, errors.New("project is required")
	}
	if _, err := e.Repo.GetProject(ctx, opts.ProjectID); err != nil {
		return domain.Pursuit{}, err
	}
	if opts.StakeholderID != "" {
		if _, err := e.Repo.GetStakeholder(ctx, opts.StakeholderID); err != nil {
			return domain.Pursuit{}, fmt.Errorf("stakeholder: %w", err)
		}
	}
	gate, err := e.EvaluateGate(ctx, opts.ProjectID)
	if err != nil {
		return domain.Pursuit{}, err
	}
	if !gate.Allowed {
		return domain.Pursuit{}, GateBlockedError{Reason: gate.Reason, Score: gate.Score}
	}
	now := e.nowStr()
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	p := domain.Pursuit{
		ID:            id,
		ProjectID:     opts.ProjectID,
		StakeholderID: optionalString(opts.StakeholderID),
		Title:         opts.Title,
		Description:   opts.Description,
		Status:        "open",
		OwnerID:       optionalString(opts.OwnerID),
		ValueEstimate: opts.ValueEstimate,
		DueDate:       optionalString(opts.DueDate),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Pursuit{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertPursuitTx(ctx, tx, p); err != nil {
		return domain.Pursuit{}, err
	}
	if _, err := e.Repo.AppendCommentTx(ctx, tx, domain.Comment{
		ID:        uuid.New().String(),
		PursuitID: p.ID,
		AuthorID:  opts.ActorID,
		Text:      fmt.Sprintf("pursuit opened; gate passed with weighted score %.2f", gate.Score),
		System:    true,
		CreatedAt: now,
	}); err != nil {
		return domain.Pursuit{}, err
	}
	if err := e.Events.Append(ctx, tx, "pursuit.created", p.ProjectID, "pursuit", p.ID, opts.ActorID, events.EventPayload{
		"title": p.Title,
		"score": gate.Score,
	}); err != nil {
		return domain.Pursuit{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Pursuit{}, err
	}
	return p, nil
}

// GateBlockedError indicates the assessment gate refused pursuit creation.
type GateBlockedError struct {
	Reason string
	Score  float64
}

func (e GateBlockedError) Error() string {
	return fmt.Sprintf("pursuit creation blocked: %s", e.Reason)
}

// EvaluateGate computes the pursuit-creation gate for a project from its
// assessment and config.
func (e Engine) EvaluateGate(ctx context.Context, projectID string) (scoring.GateResult, error) {
	cfg, err := e.projectConfig(ctx, projectID)
	if err != nil {
		return scoring.GateResult{}, err
	}
	a, err := e.Repo.GetAssessmentByProject(ctx, projectID)
	if errors.Is(err, repo.ErrNotFound) {
		return scoring.Gate(false, nil, cfg.Assessment.Criteria, cfg.Assessment.Thresholds), nil
	}
	if err != nil {
		return scoring.GateResult{}, err
	}
	scores, err := e.Repo.ScoresMap(ctx, a.ID)
	if err != nil {
		return scoring.GateResult{}, err
	}
	return scoring.Gate(true, scores, cfg.Assessment.Criteria, cfg.Assessment.Thresholds), nil
}

func ensurePursuitTransition(oldStatus, newStatus string) error {
	switch oldStatus {
	case "open":
		if newStatus == "active" || newStatus == "canceled" {
			return nil
		}
	case "active":
		if newStatus == "won" || newStatus == "lost" || newStatus == "canceled" {
			return nil
		}
	}
	return fmt.Errorf("invalid pursuit status transition %s -> %s", oldStatus, newStatus)
}

// PursuitUpdateOptions carries optional pursuit field updates.
type PursuitUpdateOptions struct {
	ID            string
	Title         *string
	Description   *string
	Status        *string
	StakeholderID *string
	OwnerID       *string
	ValueEstimate *float64
	DueDate       *string
	ActorID       string
}

func (e Engine) UpdatePursuit(ctx context.Context, opts PursuitUpdateOptions) (domain.Pursuit, error) {
	p, err := e.Repo.GetPursuit(ctx, opts.ID)
	if err != nil {
		return p, err
	}
	original := p.Status
	if opts.Title != nil {
		if *opts.Title == "" {
			return p, errors.New("title cannot be empty")
		}
		p.Title = *opts.Title
	}
	if opts.Description != nil {
		p.Description = *opts.Description
	}
	if opts.StakeholderID != nil {
		if *opts.StakeholderID == "" {
			p.StakeholderID = nil
		} else {
			if _, err := e.Repo.GetStakeholder(ctx, *opts.StakeholderID); err != nil {
				return p, fmt.Errorf("stakeholder: %w", err)
			}
			p.StakeholderID = opts.StakeholderID
		}
	}
	if opts.OwnerID != nil {
		if *opts.OwnerID == "" {
			p.OwnerID = nil
		} else {
			p.OwnerID = opts.OwnerID
		}
	}
	if opts.ValueEstimate != nil {
		p.ValueEstimate = opts.ValueEstimate
	}
	if opts.DueDate != nil {
		if *opts.DueDate == "" {
			p.DueDate = nil
		} else {
			p.DueDate = opts.DueDate
		}
	}
	if opts.Status != nil && *opts.Status != p.Status {
		if err := ensurePursuitTransition(p.Status, *opts.Status); err != nil {
			return p, err
		}
		p.Status = *opts.Status
	}
	p.UpdatedAt = e.nowStr()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return p, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdatePursuitTx(ctx, tx, p); err != nil {
		return p, err
	}
	if original != p.Status {
		if _, err := e.Repo.AppendCommentTx(ctx, tx, domain.Comment{
			ID:        uuid.New().String(),
			PursuitID: p.ID,
			AuthorID:  opts.ActorID,
			Text:      fmt.Sprintf("status changed %s -> %s", original, p.Status),
			System:    true,
			CreatedAt: p.UpdatedAt,
		}); err != nil {
			return p, err
		}
	}
	if err := e.Events.Append(ctx, tx, "pursuit.updated", p.ProjectID, "pursuit", p.ID, opts.ActorID, events.EventPayload{
		"from_status": original,
		"to_status":   p.Status,
	}); err != nil {
		return p, err
	}
	if err := tx.Commit(); err != nil {
		return p, err
	}
	return p, nil
}

// AddComment appends a user comment to a pursuit's log.
func (e Engine) AddComment(ctx context.Context, pursuitID, text, actorID string) (domain.Comment, error) {
	if text == "" {
		return domain.Comment{}, errors.New("text is required")
	}
	p, err := e.Repo.GetPursuit(ctx, pursuitID)
	if err != nil {
		return domain.Comment{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Comment{}, err
	}
	defer tx.Rollback()
	c, err := e.Repo.AppendCommentTx(ctx, tx, domain.Comment{
		ID:        uuid.New().String(),
		PursuitID: pursuitID,
		AuthorID:  actorID,
		Text:      text,
		CreatedAt: e.nowStr(),
	})
	if err != nil {
		return domain.Comment{}, err
	}
	if err := e.Events.Append(ctx, tx, "pursuit.commented", p.ProjectID, "pursuit", p.ID, actorID, events.EventPayload{"seq": c.Seq}); err != nil {
		return domain.Comment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Comment{}, err
	}
	return c, nil
}

func (e Engine) CreateMilestone(ctx context.Context, projectID, title, dueDate, actorID string) (domain.Milestone, error) {
	if title == "" {
		return domain.Milestone{}, errors.New("title is required")
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.Milestone{}, err
	}
	m := domain.Milestone{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Title:     title,
		DueDate:   optionalString(dueDate),
		Status:    "pending",
		CreatedAt: e.nowStr(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Milestone{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertMilestoneTx(ctx, tx, m); err != nil {
		return domain.Milestone{}, err
	}
	if err := e.Events.Append(ctx, tx, "milestone.created", projectID, "milestone", m.ID, actorID, events.EventPayload{"title": m.Title}); err != nil {
		return domain.Milestone{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Milestone{}, err
	}
	return m, nil
}

func (e Engine) SetMilestoneStatus(ctx context.Context, id, status, actorID string) (domain.Milestone, error) {
	switch status {
	case "pending", "done", "missed":
	default:
		return domain.Milestone{}, fmt.Errorf("invalid milestone status %s", status)
	}
	m, err := e.Repo.GetMilestone(ctx, id)
	if err != nil {
		return m, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return m, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateMilestoneStatusTx(ctx, tx, id, status); err != nil {
		return m, err
	}
	if err := e.Events.Append(ctx, tx, "milestone.updated", m.ProjectID, "milestone", id, actorID, events.EventPayload{"from": m.Status, "to": status}); err != nil {
		return m, err
	}
	if err := tx.Commit(); err != nil {
		return m, err
	}
	m.Status = status
	return m, nil
}

// RegisterDocument records upload metadata for a project document.
func (e Engine) RegisterDocument(ctx context.Context, d domain.Document, actorID string) (domain.Document, error) {
	if d.Name == "" || d.Path == "" {
		return domain.Document{}, errors.New("name and path are required")
	}
	if _, err := e.Repo.GetProject(ctx, d.ProjectID); err != nil {
		return domain.Document{}, err
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.UploadedBy = actorID
	d.CreatedAt = e.nowStr()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDocumentTx(ctx, tx, d); err != nil {
		return domain.Document{}, err
	}
	if err := e.Events.Append(ctx, tx, "document.registered", d.ProjectID, "document", d.ID, actorID, events.EventPayload{"name": d.Name, "size": d.SizeBytes}); err != nil {
		return domain.Document{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, err
	}
	return d, nil
}

// GrantRole assigns a config-defined role to an actor on a project.
func (e Engine) GrantRole(ctx context.Context, projectID, actorID, roleID, grantedBy string) error {
	ok, err := e.Repo.RoleExists(ctx, projectID, roleID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("role %s not defined for project %s", roleID, projectID)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	now := e.nowStr()
	if err := e.Repo.EnsureActor(ctx, tx, actorID, now); err != nil {
		return err
	}
	if err := e.Repo.AssignRole(ctx, tx, projectID, actorID, roleID, grantedBy, now); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "rbac.role.granted", projectID, "actor", actorID, grantedBy, events.EventPayload{"role": roleID}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) RevokeRole(ctx context.Context, projectID, actorID, roleID, revokedBy string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.RevokeRole(ctx, tx, projectID, actorID, roleID); err != nil {
		return err
	}
	if err := e.Events.Append(ctx, tx, "rbac.role.revoked", projectID, "actor", actorID, revokedBy, events.EventPayload{"role": roleID}); err != nil {
		return err
	}
	return tx.Commit()
}

// Dashboard aggregates project health for the overview screen.
type Dashboard struct {
	ProjectID          string               `json:"project_id"`
	PursuitsByStatus   map[string]int       `json:"pursuits_by_status"`
	PipelineValue      float64              `json:"pipeline_value"`
	StakeholdersByKind map[string]int       `json:"stakeholders_by_kind"`
	Assessment         *DashboardAssessment `json:"assessment,omitempty"`
	Gate               scoring.GateResult   `json:"gate"`
}

// DashboardAssessment summarizes the project assessment for the dashboard.
type DashboardAssessment struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Decision      string         `json:"decision"`
	Score         float64        `json:"score"`
	ScoredCount   int            `json:"scored_count"`
	CriteriaCount int            `json:"criteria_count"`
	Conditions    map[string]int `json:"conditions,omitempty"`
}

func (e Engine) GetDashboard(ctx context.Context, projectID string) (Dashboard, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return Dashboard{}, err
	}
	cfg, err := e.projectConfig(ctx, projectID)
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{ProjectID: projectID}
	if d.PursuitsByStatus, err = e.Repo.CountPursuitsByStatus(ctx, projectID); err != nil {
		return Dashboard{}, err
	}
	if d.PipelineValue, err = e.Repo.SumPursuitValue(ctx, projectID); err != nil {
		return Dashboard{}, err
	}
	if d.StakeholdersByKind, err = e.Repo.CountStakeholdersByKind(ctx, projectID); err != nil {
		return Dashboard{}, err
	}
	a, err := e.Repo.GetAssessmentByProject(ctx, projectID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return Dashboard{}, err
	}
	if err == nil {
		scores, err := e.Repo.ScoresMap(ctx, a.ID)
		if err != nil {
			return Dashboard{}, err
		}
		conditions, err := e.Repo.CountConditionsByStatus(ctx, a.ID)
		if err != nil {
			return Dashboard{}, err
		}
		d.Assessment = &DashboardAssessment{
			ID:            a.ID,
			Status:        a.Status,
			Decision:      a.Decision,
			Score:         scoring.WeightedScore(scores, cfg.Assessment.Criteria),
			ScoredCount:   len(scores),
			CriteriaCount: len(cfg.Assessment.Criteria),
			Conditions:    conditions,
		}
		d.Gate = scoring.Gate(true, scores, cfg.Assessment.Criteria, cfg.Assessment.Thresholds)
	} else {
		d.Gate = scoring.Gate(false, nil, cfg.Assessment.Criteria, cfg.Assessment.Thresholds)
	}
	return d, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
