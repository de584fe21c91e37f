package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"testing"

	"pursuitline/internal/config"
	"pursuitline/internal/db"
	"pursuitline/internal/engine"
	"pursuitline/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

const testProject = "proj-1"

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default(testProject)
	e := engine.New(conn, cfg)
	if _, err := e.InitProject(context.Background(), testProject, "Test project", "", "tester"); err != nil {
		t.Fatalf("init project: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:              "test-secret",
			AllowLegacyActorHeader: true,
			Logger:                 log.New(io.Discard, "", 0),
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(testSrv.Close)
	return testSrv
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asActor(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id}
}

func errCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope %q: %v", string(data), err)
	}
	return envelope.Error.Code
}

// scorePayload builds a full score sheet with the given score, substituting 3
// where a criterion restricts the allowed values.
func scorePayload(e engine.Engine, score int) map[string]any {
	var scores []map[string]any
	for _, c := range e.Config.Assessment.Criteria {
		s := score
		if !c.Allows(s) {
			s = 3
		}
		scores = append(scores, map[string]any{"criterion_id": c.ID, "score": s})
	}
	return map[string]any{"scores": scores}
}

// approveGate walks the assessment to an approved go decision so pursuit
// creation is allowed.
func approveGate(t *testing.T, srv *testServer) {
	t.Helper()
	client := srv.Client()
	base := srv.URL + "/v0/projects/" + testProject + "/assessment"
	res, data := doJSON(t, client, http.MethodPut, base+"/scores", scorePayload(srv.Engine, 3), asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("save scores: %d %s", res.StatusCode, string(data))
	}
	for _, step := range []string{"submit", "review"} {
		res, data = doJSON(t, client, http.MethodPost, base+"/"+step, nil, asActor("tester"))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s: %d %s", step, res.StatusCode, string(data))
		}
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/decide", map[string]any{"decision": "go"}, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decide: %d %s", res.StatusCode, string(data))
	}
}

func TestHealthWithoutAuth(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+testProject, nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	if code := errCode(t, data); code != "unauthorized" {
		t.Fatalf("expected unauthorized, got %s", code)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+testProject, nil, map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d %s", res.StatusCode, string(data))
	}
	if code := errCode(t, data); code != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %s", code)
	}
}

func TestUnknownActorForbidden(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/projects/"+testProject, nil, asActor("stranger"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", res.StatusCode, string(data))
	}
	if code := errCode(t, data); code != "forbidden" {
		t.Fatalf("expected forbidden, got %s", code)
	}
}

func TestPursuitCreationBlockedByGate(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/projects/"+testProject+"/pursuits", map[string]any{
		"title": "Big deal",
	}, asActor("tester"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
	if code := errCode(t, data); code != "gate_blocked" {
		t.Fatalf("expected gate_blocked, got %s", code)
	}
}

func TestCreatePursuitValidation(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	url := srv.URL + "/v0/projects/" + testProject + "/pursuits"

	res, data := doJSON(t, client, http.MethodPost, url, nil, asActor("tester"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty body, got %d %s", res.StatusCode, string(data))
	}
	if code := errCode(t, data); code != "bad_request" {
		t.Fatalf("expected bad_request, got %s", code)
	}

	res, data = doJSON(t, client, http.MethodPost, url, map[string]any{"description": "no title"}, asActor("tester"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing title, got %d %s", res.StatusCode, string(data))
	}
}

func TestAssessmentFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	base := srv.URL + "/v0/projects/" + testProject + "/assessment"

	res, data := doJSON(t, client, http.MethodPut, base+"/scores", scorePayload(srv.Engine, 3), asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("save scores: %d %s", res.StatusCode, string(data))
	}
	var view AssessmentViewResponse
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if !view.AllScored {
		t.Fatalf("expected all criteria scored")
	}
	if view.Score != 3.0 {
		t.Fatalf("expected weighted score 3.0, got %v", view.Score)
	}
	if view.Suggested != "go" {
		t.Fatalf("expected suggested go, got %s", view.Suggested)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/submit", nil, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &view)
	if view.Assessment.Status != "submitted" {
		t.Fatalf("expected submitted, got %s", view.Assessment.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/review", nil, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("review: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/decide", map[string]any{"decision": "go"}, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decide: %d %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &view)
	if view.Assessment.Status != "approved" || view.Assessment.Decision != "go" {
		t.Fatalf("expected approved/go, got %s/%s", view.Assessment.Status, view.Assessment.Decision)
	}

	// Re-submitting an approved assessment is an invalid transition.
	res, data = doJSON(t, client, http.MethodPost, base+"/submit", nil, asActor("tester"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on re-submit, got %d %s", res.StatusCode, string(data))
	}
	if code := errCode(t, data); code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %s", code)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+testProject+"/pursuits", map[string]any{
		"title": "Big deal",
	}, asActor("tester"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create pursuit: %d %s", res.StatusCode, string(data))
	}
	var pursuit PursuitResponse
	if err := json.Unmarshal(data, &pursuit); err != nil {
		t.Fatalf("unmarshal pursuit: %v", err)
	}
	if pursuit.Status != "open" {
		t.Fatalf("expected open pursuit, got %s", pursuit.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/pursuits/"+pursuit.ID+"/comments", map[string]any{
		"text": "kickoff call booked",
	}, asActor("tester"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add comment: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/pursuits/"+pursuit.ID+"/comments", nil, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list comments: %d %s", res.StatusCode, string(data))
	}
	var comments []CommentResponse
	if err := json.Unmarshal(data, &comments); err != nil {
		t.Fatalf("unmarshal comments: %v", err)
	}
	// Gate passage leaves a system comment before the user one.
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if !comments[0].System {
		t.Fatalf("expected first comment to be the system gate note")
	}
	if comments[1].Text != "kickoff call booked" {
		t.Fatalf("unexpected comment text %q", comments[1].Text)
	}
}

func TestConditionalDecisionNeedsCondition(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	base := srv.URL + "/v0/projects/" + testProject + "/assessment"

	res, data := doJSON(t, client, http.MethodPut, base+"/scores", scorePayload(srv.Engine, 2), asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("save scores: %d %s", res.StatusCode, string(data))
	}
	for _, step := range []string{"submit", "review"} {
		res, data = doJSON(t, client, http.MethodPost, base+"/"+step, nil, asActor("tester"))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("%s: %d %s", step, res.StatusCode, string(data))
		}
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/decide", map[string]any{"decision": "conditional_go"}, asActor("tester"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without conditions, got %d %s", res.StatusCode, string(data))
	}
	if code := errCode(t, data); code != "validation_failed" {
		t.Fatalf("expected validation_failed, got %s", code)
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/conditions", map[string]any{
		"condition": "signed letter of intent before staffing",
	}, asActor("tester"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("add condition: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, base+"/decide", map[string]any{"decision": "conditional_go"}, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("decide conditional: %d %s", res.StatusCode, string(data))
	}
	var view AssessmentViewResponse
	if err := json.Unmarshal(data, &view); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if view.Assessment.Status != "conditional" || view.Assessment.Decision != "conditional_go" {
		t.Fatalf("expected conditional/conditional_go, got %s/%s", view.Assessment.Status, view.Assessment.Decision)
	}
	if len(view.Conditions) != 1 || view.Conditions[0].Status != "pending" {
		t.Fatalf("expected one pending condition, got %+v", view.Conditions)
	}
}

func TestPendingApprovalsCarryRecomputedScore(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	base := srv.URL + "/v0/projects/" + testProject + "/assessment"

	res, data := doJSON(t, client, http.MethodPut, base+"/scores", scorePayload(srv.Engine, 3), asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("save scores: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, base+"/submit", nil, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/approvals/pending", nil, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approvals: %d %s", res.StatusCode, string(data))
	}
	var pending []PendingApprovalResponse
	if err := json.Unmarshal(data, &pending); err != nil {
		t.Fatalf("unmarshal approvals: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending assessment, got %d", len(pending))
	}
	entry := pending[0]
	if entry.Assessment.Status != "submitted" {
		t.Fatalf("expected submitted, got %s", entry.Assessment.Status)
	}
	if entry.Score != 3.0 {
		t.Fatalf("expected recomputed score 3.0, got %v", entry.Score)
	}
	if !entry.AllScored || entry.Suggested != "go" {
		t.Fatalf("expected fully scored go suggestion, got %+v", entry)
	}
}

func TestPursuitStatusConflict(t *testing.T) {
	srv := newTestServer(t)
	approveGate(t, srv)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+testProject+"/pursuits", map[string]any{
		"title": "Framework agreement",
	}, asActor("tester"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create pursuit: %d %s", res.StatusCode, string(data))
	}
	var pursuit PursuitResponse
	_ = json.Unmarshal(data, &pursuit)

	// open -> won skips the active stage.
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/pursuits/"+pursuit.ID, map[string]any{
		"status": "won",
	}, asActor("tester"))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
	if code := errCode(t, data); code != "invalid_transition" {
		t.Fatalf("expected invalid_transition, got %s", code)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/pursuits/"+pursuit.ID, map[string]any{
		"status": "active",
	}, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("open -> active: %d %s", res.StatusCode, string(data))
	}
}

func TestPursuitPagination(t *testing.T) {
	srv := newTestServer(t)
	approveGate(t, srv)
	client := srv.Client()
	url := srv.URL + "/v0/projects/" + testProject + "/pursuits"

	for _, title := range []string{"Alpha", "Beta", "Gamma"} {
		res, data := doJSON(t, client, http.MethodPost, url, map[string]any{"title": title}, asActor("tester"))
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("create %s: %d %s", title, res.StatusCode, string(data))
		}
	}

	seen := map[string]bool{}
	res, data := doJSON(t, client, http.MethodGet, url+"?limit=2", nil, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("first page: %d %s", res.StatusCode, string(data))
	}
	var page paginatedPursuits
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal page: %v", err)
	}
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected 2 items and a cursor, got %d items cursor %q", len(page.Items), page.NextCursor)
	}
	for _, p := range page.Items {
		seen[p.ID] = true
	}

	res, data = doJSON(t, client, http.MethodGet, url+"?limit=2&cursor="+page.NextCursor, nil, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("second page: %d %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatalf("unmarshal second page: %v", err)
	}
	if len(page.Items) != 1 || page.NextCursor != "" {
		t.Fatalf("expected final page of 1, got %d items cursor %q", len(page.Items), page.NextCursor)
	}
	for _, p := range page.Items {
		if seen[p.ID] {
			t.Fatalf("pursuit %s returned twice", p.ID)
		}
		seen[p.ID] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct pursuits, got %d", len(seen))
	}

	res, data = doJSON(t, client, http.MethodGet, url+"?cursor=broken", nil, asActor("tester"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cursor, got %d %s", res.StatusCode, string(data))
	}
}

func TestClassifyPreviewEndpoint(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	url := srv.URL + "/v0/projects/" + testProject + "/assessment/classify"

	cases := []struct {
		query    string
		decision string
	}{
		{"?score=3.0", "go"},
		{"?score=2.5", "go"},
		{"?score=2.49", "conditional_go"},
		{"?score=1.79", "no_go"},
		{"?score=2.1&go=2.0&conditional=1.5", "go"},
	}
	for _, tc := range cases {
		res, data := doJSON(t, client, http.MethodGet, url+tc.query, nil, asActor("tester"))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("classify %s: %d %s", tc.query, res.StatusCode, string(data))
		}
		var resp ClassifyResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("unmarshal classify: %v", err)
		}
		if resp.Decision != tc.decision {
			t.Fatalf("classify %s: expected %s, got %s", tc.query, tc.decision, resp.Decision)
		}
	}

	res, data := doJSON(t, client, http.MethodGet, url+"?score=2.0&go=2.5", nil, asActor("tester"))
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for half an override, got %d %s", res.StatusCode, string(data))
	}
}

func TestDevLoginAndBearerAuth(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/auth/dev/login", map[string]any{
		"actor_id": "tester",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	if login.Token == "" {
		t.Fatalf("expected a token")
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+testProject, nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("bearer get project: %d %s", res.StatusCode, string(data))
	}
	var project ProjectResponse
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}
	if project.ID != testProject {
		t.Fatalf("expected project %s, got %s", testProject, project.ID)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/me", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me: %d %s", res.StatusCode, string(data))
	}
	var who WhoAmIResponse
	if err := json.Unmarshal(data, &who); err != nil {
		t.Fatalf("unmarshal whoami: %v", err)
	}
	if who.ActorID != "tester" {
		t.Fatalf("expected tester, got %s", who.ActorID)
	}
}

func TestSearchAndEvents(t *testing.T) {
	srv := newTestServer(t)
	approveGate(t, srv)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/projects/"+testProject+"/pursuits", map[string]any{
		"title": "Harbor expansion study",
	}, asActor("tester"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create pursuit: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/search?q=harbor&project_id="+testProject, nil, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("search: %d %s", res.StatusCode, string(data))
	}
	var hits []SearchHitResponse
	if err := json.Unmarshal(data, &hits); err != nil {
		t.Fatalf("unmarshal hits: %v", err)
	}
	found := false
	for _, h := range hits {
		if h.Kind == "pursuit" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a pursuit hit, got %+v", hits)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/projects/"+testProject+"/events?limit=100", nil, asActor("tester"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	var events paginatedEvents
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	types := map[string]bool{}
	for _, evt := range events.Items {
		types[evt.Type] = true
	}
	for _, want := range []string{"project.init", "assessment.submitted", "assessment.decided", "pursuit.created"} {
		if !types[want] {
			t.Fatalf("expected event %s, got %v", want, types)
		}
	}
}
