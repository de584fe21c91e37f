package server

import (
	"pursuitline/internal/config"
	"pursuitline/internal/domain"
	"pursuitline/internal/engine"
	"pursuitline/internal/scoring"
)

// Request payloads

type CreateProjectRequest struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Status      *string `json:"status,omitempty" enum:"active,on_hold,archived"`
	Description *string `json:"description,omitempty"`
	ClientID    *string `json:"client_id,omitempty"`
}

type CreateStakeholderRequest struct {
	ID        *string `json:"id,omitempty"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind,omitempty" enum:"client,consultant,partner"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	ProjectID *string `json:"project_id,omitempty"`
	Role      *string `json:"role,omitempty"`
}

type UpdateStakeholderRequest struct {
	Name  *string `json:"name,omitempty"`
	Kind  *string `json:"kind,omitempty" enum:"client,consultant,partner"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

type LinkStakeholderRequest struct {
	Role string `json:"role,omitempty"`
}

type CreatePursuitRequest struct {
	ID            *string  `json:"id,omitempty"`
	StakeholderID *string  `json:"stakeholder_id,omitempty"`
	Title         string   `json:"title"`
	Description   *string  `json:"description,omitempty"`
	OwnerID       *string  `json:"owner_id,omitempty"`
	ValueEstimate *float64 `json:"value_estimate,omitempty"`
	DueDate       *string  `json:"due_date,omitempty" format:"date-time"`
}

type UpdatePursuitRequest struct {
	Title         *string  `json:"title,omitempty"`
	Description   *string  `json:"description,omitempty"`
	Status        *string  `json:"status,omitempty" enum:"open,active,won,lost,canceled"`
	StakeholderID *string  `json:"stakeholder_id,omitempty"`
	OwnerID       *string  `json:"owner_id,omitempty"`
	ValueEstimate *float64 `json:"value_estimate,omitempty"`
	DueDate       *string  `json:"due_date,omitempty" format:"date-time"`
}

type AddCommentRequest struct {
	Text string `json:"text"`
}

type ScoreRequest struct {
	CriterionID string `json:"criterion_id"`
	Score       int    `json:"score" minimum:"1" maximum:"3"`
	Comment     string `json:"comment,omitempty"`
}

type SaveScoresRequest struct {
	Scores []ScoreRequest `json:"scores"`
	Revert bool           `json:"revert,omitempty"`
}

type DecideAssessmentRequest struct {
	Decision string `json:"decision" enum:"go,conditional_go,no_go"`
}

type ConditionRequest struct {
	Condition     string  `json:"condition"`
	ResponsibleID *string `json:"responsible_id,omitempty"`
	DueDate       *string `json:"due_date,omitempty" format:"date-time"`
	Notes         *string `json:"notes,omitempty"`
}

type UpdateConditionRequest struct {
	Condition     *string `json:"condition,omitempty"`
	ResponsibleID *string `json:"responsible_id,omitempty"`
	DueDate       *string `json:"due_date,omitempty" format:"date-time"`
	Notes         *string `json:"notes,omitempty"`
	Status        *string `json:"status,omitempty" enum:"pending,met,not_met"`
}

type CreateMilestoneRequest struct {
	Title   string  `json:"title"`
	DueDate *string `json:"due_date,omitempty" format:"date-time"`
}

type RegisterDocumentRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	Path        string `json:"path"`
}

type RoleChangeRequest struct {
	ActorID string `json:"actor_id"`
	RoleID  string `json:"role_id"`
}

type DevLoginRequest struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

// Response payloads

type ProjectResponse struct {
	ID          string  `json:"id"`
	OrgID       string  `json:"org_id"`
	Name        string  `json:"name"`
	ClientID    *string `json:"client_id,omitempty"`
	Status      string  `json:"status" enum:"active,on_hold,archived"`
	Description string  `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type StakeholderResponse struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind" enum:"client,consultant,partner"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type PursuitResponse struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id"`
	StakeholderID *string  `json:"stakeholder_id,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Status        string   `json:"status" enum:"open,active,won,lost,canceled"`
	OwnerID       *string  `json:"owner_id,omitempty"`
	ValueEstimate *float64 `json:"value_estimate,omitempty"`
	DueDate       *string  `json:"due_date,omitempty" format:"date-time"`
	CreatedAt     string   `json:"created_at" format:"date-time"`
	UpdatedAt     string   `json:"updated_at" format:"date-time"`
}

type CommentResponse struct {
	ID        string `json:"id"`
	PursuitID string `json:"pursuit_id"`
	Seq       int64  `json:"seq"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	System    bool   `json:"system"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type AssessmentResponse struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Status    string  `json:"status" enum:"draft,submitted,under_review,approved,conditional,rejected"`
	Decision  string  `json:"decision" enum:"pending,go,conditional_go,no_go"`
	DecidedBy *string `json:"decided_by,omitempty"`
	DecidedAt *string `json:"decided_at,omitempty" format:"date-time"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type ScoreEntryResponse struct {
	CriterionID string `json:"criterion_id"`
	Score       int    `json:"score"`
	Comment     string `json:"comment,omitempty"`
	ScoredBy    string `json:"scored_by"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type ConditionResponse struct {
	ID            string  `json:"id"`
	AssessmentID  string  `json:"assessment_id"`
	Condition     string  `json:"condition"`
	ResponsibleID *string `json:"responsible_id,omitempty"`
	DueDate       *string `json:"due_date,omitempty" format:"date-time"`
	Notes         string  `json:"notes,omitempty"`
	Status        string  `json:"status" enum:"pending,met,not_met"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

// AssessmentViewResponse is the assessment with its derived scoring state.
type AssessmentViewResponse struct {
	Assessment AssessmentResponse   `json:"assessment"`
	Scores     []ScoreEntryResponse `json:"scores"`
	Score      float64              `json:"score"`
	AllScored  bool                 `json:"all_scored"`
	Suggested  string               `json:"suggested_decision" enum:"go,conditional_go,no_go"`
	Conditions []ConditionResponse  `json:"conditions"`
}

// PendingApprovalResponse is one approvals-queue entry. Score and suggestion
// are recomputed from the project's current catalog and thresholds, never
// read from a stored value.
type PendingApprovalResponse struct {
	Assessment AssessmentResponse `json:"assessment"`
	Score      float64            `json:"score"`
	AllScored  bool               `json:"all_scored"`
	Suggested  string             `json:"suggested_decision" enum:"go,conditional_go,no_go"`
}

type GateResponse struct {
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason,omitempty"`
	Score   float64 `json:"score"`
}

type ClassifyResponse struct {
	Score      float64            `json:"score"`
	Decision   string             `json:"decision" enum:"go,conditional_go,no_go"`
	Thresholds scoring.Thresholds `json:"thresholds"`
}

type MilestoneResponse struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Title     string  `json:"title"`
	DueDate   *string `json:"due_date,omitempty" format:"date-time"`
	Status    string  `json:"status" enum:"pending,done,missed"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type DocumentResponse struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	Path        string `json:"path"`
	UploadedBy  string `json:"uploaded_by"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type SearchHitResponse struct {
	Kind      string `json:"kind" enum:"project,stakeholder,pursuit,comment"`
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type ProjectConfigResponse struct {
	Project struct {
		ID   string `json:"id"`
		Name string `json:"name,omitempty"`
	} `json:"project"`
	Assessment struct {
		Criteria   scoring.Catalog    `json:"criteria"`
		Thresholds scoring.Thresholds `json:"thresholds"`
	} `json:"assessment"`
	Roles         map[string]config.RBACRole `json:"roles"`
	WeightWarning string                     `json:"weight_warning,omitempty"`
}

type paginatedPursuits struct {
	Items      []PursuitResponse `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Conversion helpers

func projectResponse(p domain.Project) ProjectResponse {
	return ProjectResponse(p)
}

func stakeholderResponse(s domain.Stakeholder) StakeholderResponse {
	return StakeholderResponse(s)
}

func pursuitResponse(p domain.Pursuit) PursuitResponse {
	return PursuitResponse(p)
}

func commentResponse(c domain.Comment) CommentResponse {
	return CommentResponse(c)
}

func assessmentResponse(a domain.Assessment) AssessmentResponse {
	return AssessmentResponse(a)
}

func scoreEntryResponse(s domain.ScoreEntry) ScoreEntryResponse {
	return ScoreEntryResponse{
		CriterionID: s.CriterionID,
		Score:       s.Score,
		Comment:     s.Comment,
		ScoredBy:    s.ScoredBy,
		UpdatedAt:   s.UpdatedAt,
	}
}

func conditionResponse(c domain.Condition) ConditionResponse {
	return ConditionResponse(c)
}

func assessmentViewResponse(v engine.AssessmentView) AssessmentViewResponse {
	res := AssessmentViewResponse{
		Assessment: assessmentResponse(v.Assessment),
		Scores:     []ScoreEntryResponse{},
		Score:      v.Score,
		AllScored:  v.AllScored,
		Suggested:  v.Suggested,
		Conditions: []ConditionResponse{},
	}
	for _, s := range v.Scores {
		res.Scores = append(res.Scores, scoreEntryResponse(s))
	}
	for _, c := range v.Conditions {
		res.Conditions = append(res.Conditions, conditionResponse(c))
	}
	return res
}

func gateResponse(g scoring.GateResult) GateResponse {
	return GateResponse(g)
}

func milestoneResponse(m domain.Milestone) MilestoneResponse {
	return MilestoneResponse(m)
}

func documentResponse(d domain.Document) DocumentResponse {
	return DocumentResponse(d)
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse(e)
}

func searchHitResponse(h domain.SearchHit) SearchHitResponse {
	return SearchHitResponse(h)
}

func configResponse(cfg *config.Config) ProjectConfigResponse {
	var res ProjectConfigResponse
	res.Project.ID = cfg.Project.ID
	res.Project.Name = cfg.Project.Name
	res.Assessment.Criteria = cfg.Assessment.Criteria
	res.Assessment.Thresholds = cfg.Assessment.Thresholds
	res.Roles = cfg.RBAC.Roles
	res.WeightWarning = cfg.WeightWarning()
	return res
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
