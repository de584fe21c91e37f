package domain

type Project struct {
	ID          string  `json:"id"`
	OrgID       string  `json:"org_id"`
	Name        string  `json:"name"`
	ClientID    *string `json:"client_id,omitempty"`
	Status      string  `json:"status" enum:"active,on_hold,archived"`
	Description string  `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

type Stakeholder struct {
	ID        string `json:"id"`
	OrgID     string `json:"org_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind" enum:"client,consultant,partner"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Pursuit struct {
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

// Comment is one entry in a pursuit's append-only comment log.
// System comments are machine-generated (gate decisions, state transitions).
type Comment struct {
	ID        string `json:"id"`
	PursuitID string `json:"pursuit_id"`
	Seq       int64  `json:"seq"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	System    bool   `json:"system"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Assessment struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Status    string  `json:"status" enum:"draft,submitted,under_review,approved,conditional,rejected"`
	Decision  string  `json:"decision" enum:"pending,go,conditional_go,no_go"`
	DecidedBy *string `json:"decided_by,omitempty"`
	DecidedAt *string `json:"decided_at,omitempty" format:"date-time"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

// ScoreEntry is one criterion score inside an assessment, keyed by criterion
// id. Later writes overwrite earlier ones; no history is kept.
type ScoreEntry struct {
	AssessmentID string `json:"assessment_id"`
	CriterionID  string `json:"criterion_id"`
	Score        int    `json:"score"`
	Comment      string `json:"comment,omitempty"`
	ScoredBy     string `json:"scored_by"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type Condition struct {
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

type Milestone struct {
	ID        string  `json:"id"`
	ProjectID string  `json:"project_id"`
	Title     string  `json:"title"`
	DueDate   *string `json:"due_date,omitempty" format:"date-time"`
	Status    string  `json:"status" enum:"pending,done,missed"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// Document holds upload metadata only; content lives on disk outside the DB.
type Document struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes"`
	Path        string `json:"path"`
	UploadedBy  string `json:"uploaded_by"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// SearchHit is one cross-entity search result row.
type SearchHit struct {
	Kind      string `json:"kind" enum:"project,stakeholder,pursuit,comment"`
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type ActorProfile struct {
	ProjectID   string   `json:"project_id"`
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}
