package pursuitlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Pursuitline HTTP API client.
type Client struct {
	BaseURL     string
	ProjectID   string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, projectID string) *Client {
	return &Client{
		BaseURL:   baseURL,
		ProjectID: projectID,
		Timeout:   10 * time.Second,
	}
}

// Pursuit represents the API pursuit model (partial).
type Pursuit struct {
	ID            string   `json:"id"`
	ProjectID     string   `json:"project_id"`
	Title         string   `json:"title"`
	Status        string   `json:"status"`
	OwnerID       *string  `json:"owner_id,omitempty"`
	ValueEstimate *float64 `json:"value_estimate,omitempty"`
}

// Comment is one entry in a pursuit's append-only log.
type Comment struct {
	ID        string `json:"id"`
	PursuitID string `json:"pursuit_id"`
	Seq       int64  `json:"seq"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
	System    bool   `json:"system"`
	CreatedAt string `json:"created_at"`
}

// Assessment represents the project go/no-go assessment.
type Assessment struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
	Decision  string `json:"decision"`
}

// ScoreEntry is one recorded criterion score.
type ScoreEntry struct {
	AssessmentID string `json:"assessment_id"`
	CriterionID  string `json:"criterion_id"`
	Score        int    `json:"score"`
	Comment      string `json:"comment,omitempty"`
	ScoredBy     string `json:"scored_by"`
}

// AssessmentView is an assessment with its derived scoring state.
type AssessmentView struct {
	Assessment Assessment   `json:"assessment"`
	Scores     []ScoreEntry `json:"scores"`
	Score      float64      `json:"score"`
	AllScored  bool         `json:"all_scored"`
	Suggested  string       `json:"suggested_decision"`
}

// GateResult reports whether pursuit creation is allowed.
type GateResult struct {
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason,omitempty"`
	Score   float64 `json:"score"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	ProjectID  string         `json:"project_id"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	Payload    map[string]any `json:"payload"`
}

// SearchHit is one cross-entity search result.
type SearchHit struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	ProjectID string `json:"project_id,omitempty"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// PaginatedPursuits wraps list responses with cursors.
type PaginatedPursuits struct {
	Items      []Pursuit `json:"items"`
	NextCursor string    `json:"next_cursor"`
}

// PaginatedEvents wraps event listings with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// CreatePursuit creates a pursuit. The server enforces the assessment gate
// and responds 409 when it is blocked.
func (c *Client) CreatePursuit(ctx context.Context, title, description string) (Pursuit, error) {
	body := map[string]any{
		"title":       title,
		"description": description,
	}
	var resp Pursuit
	err := c.do(ctx, http.MethodPost, c.projectPath("pursuits"), body, &resp)
	return resp, err
}

// Pursuits returns a paginated pursuit listing.
func (c *Client) Pursuits(ctx context.Context, limit int, cursor string) (PaginatedPursuits, error) {
	var resp PaginatedPursuits
	err := c.do(ctx, http.MethodGet, withPage(c.projectPath("pursuits"), limit, cursor), nil, &resp)
	return resp, err
}

// AddComment appends a comment to a pursuit.
func (c *Client) AddComment(ctx context.Context, pursuitID, text string) (Comment, error) {
	body := map[string]any{"text": text}
	var resp Comment
	endpoint := fmt.Sprintf("v0/pursuits/%s/comments", url.PathEscape(pursuitID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Comments returns the comment log for a pursuit.
func (c *Client) Comments(ctx context.Context, pursuitID string, limit int) ([]Comment, error) {
	var resp []Comment
	endpoint := fmt.Sprintf("v0/pursuits/%s/comments", url.PathEscape(pursuitID))
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// GetAssessment returns the assessment with scores and derived state.
func (c *Client) GetAssessment(ctx context.Context) (AssessmentView, error) {
	var resp AssessmentView
	err := c.do(ctx, http.MethodGet, c.projectPath("assessment"), nil, &resp)
	return resp, err
}

// SaveScores records criterion scores, creating the assessment if missing.
func (c *Client) SaveScores(ctx context.Context, scores map[string]int, revert bool) (AssessmentView, error) {
	entries := make([]map[string]any, 0, len(scores))
	for criterion, score := range scores {
		entries = append(entries, map[string]any{"criterion_id": criterion, "score": score})
	}
	body := map[string]any{"scores": entries, "revert": revert}
	var resp AssessmentView
	err := c.do(ctx, http.MethodPut, c.projectPath("assessment/scores"), body, &resp)
	return resp, err
}

// SubmitAssessment moves the assessment from draft to submitted.
func (c *Client) SubmitAssessment(ctx context.Context) (AssessmentView, error) {
	var resp AssessmentView
	err := c.do(ctx, http.MethodPost, c.projectPath("assessment/submit"), nil, &resp)
	return resp, err
}

// DecideAssessment records the go/no-go decision.
func (c *Client) DecideAssessment(ctx context.Context, decision string) (AssessmentView, error) {
	body := map[string]any{"decision": decision}
	var resp AssessmentView
	err := c.do(ctx, http.MethodPost, c.projectPath("assessment/decide"), body, &resp)
	return resp, err
}

// Gate evaluates the pursuit-creation gate without creating anything.
func (c *Client) Gate(ctx context.Context) (GateResult, error) {
	var resp GateResult
	err := c.do(ctx, http.MethodGet, c.projectPath("gate"), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withPage(c.projectPath("events"), limit, cursor), nil, &resp)
	return resp, err
}

// Search runs a cross-entity search scoped to the client's project.
func (c *Client) Search(ctx context.Context, term string, limit int) ([]SearchHit, error) {
	var resp []SearchHit
	endpoint := fmt.Sprintf("v0/search?q=%s&project_id=%s", url.QueryEscape(term), url.QueryEscape(c.ProjectID))
	if limit > 0 {
		endpoint = fmt.Sprintf("%s&limit=%d", endpoint, limit)
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) projectPath(p string) string {
	project := url.PathEscape(c.ProjectID)
	return fmt.Sprintf("v0/projects/%s/%s", project, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

func withPage(endpoint string, limit int, cursor string) string {
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	return endpoint
}
