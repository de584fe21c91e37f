package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"pursuitline/internal/config"
	"pursuitline/internal/domain"
	"pursuitline/internal/engine"
	"pursuitline/internal/engine/auth"
	"pursuitline/internal/repo"
	"pursuitline/internal/scoring"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Metrics  bool
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"gate_blocked"`
	Message string         `json:"message" example:"pursuit creation blocked: weighted score 1.64 below conditional threshold 1.80"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"score\":1.64}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Pursuitline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the required envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	if cfg.Metrics {
		m := newMetrics()
		router.Use(m.middleware)
		router.Handle("/metrics", m.handler())
	}
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Pursuitline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerProjects(group, cfg.Engine)
	registerDashboard(group, cfg.Engine)
	registerStakeholders(group, cfg.Engine)
	registerPursuits(group, cfg.Engine)
	registerAssessment(group, cfg.Engine)
	registerApprovals(group, cfg.Engine)
	registerMilestones(group, cfg.Engine)
	registerDocuments(group, cfg.Engine)
	registerSearch(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerRBAC(group, cfg.Engine)
	registerMe(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	var ge engine.GateBlockedError
	if errors.As(err, &ge) {
		return newAPIError(http.StatusConflict, "gate_blocked", err.Error(), map[string]any{"reason": ge.Reason, "score": ge.Score})
	}
	var te engine.TransitionError
	if errors.As(err, &te) {
		return newAPIError(http.StatusConflict, "invalid_transition", err.Error(), map[string]any{"from": te.From, "to": te.To})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "transition"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "cannot submit"),
		strings.Contains(lowered, "requires at least one condition"),
		strings.Contains(lowered, "not allowed for criterion"):
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func hasPermission(perms []string, perm string) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

func requirePermission(ctx context.Context, e engine.Engine, projectID, perm string) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	if hasPermission(principal.Permissions, perm) {
		return nil
	}
	ok, err := e.Repo.HasPermission(ctx, projectID, principal.ActorID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ForbiddenError{Permission: perm}
	}
	return nil
}

// requireGlobalPermission covers operations outside a project path. It falls
// back to the single project's RBAC tables when exactly one project exists;
// with no projects yet, the operation is allowed so a workspace can
// bootstrap itself.
func requireGlobalPermission(ctx context.Context, e engine.Engine, perm string) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	if hasPermission(principal.Permissions, perm) {
		return nil
	}
	if e.Config != nil && e.Config.Project.ID != "" {
		return requirePermission(ctx, e, e.Config.Project.ID, perm)
	}
	p, err := e.Repo.SingleProject(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return auth.ForbiddenError{Permission: perm}
	}
	return requirePermission(ctx, e, p.ID, perm)
}

func configProjectID(e engine.Engine) string {
	if e.Config == nil {
		return ""
	}
	return e.Config.Project.ID
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	devLoginPath := path.Join(basePath, "auth/dev/login")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	if !strings.HasPrefix(devLoginPath, "/") {
		devLoginPath = "/" + devLoginPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath || route == devLoginPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Pursuitline API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.ID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "id is required", nil)
		}
		if err := requireGlobalPermission(ctx, e, "project.create"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.InitProject(ctx, input.Body.ID, stringOrEmpty(input.Body.Name), stringOrEmpty(input.Body.Description), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"active,on_hold,archived"`
	}) (*struct {
		Body []ProjectResponse `json:"body"`
	}, error) {
		if err := requireGlobalPermission(ctx, e, "project.list"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListProjects(ctx, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]ProjectResponse, 0, len(items))
		for _, p := range items {
			res = append(res, projectResponse(p))
		}
		return &struct {
			Body []ProjectResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}",
		Summary:     "Get project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "project.read"); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Repo.GetProject(ctx, projectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}",
		Summary:     "Update project",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      UpdateProjectRequest `json:"body"`
	}) (*struct {
		Body ProjectResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "project.update"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdateProject(ctx, engine.ProjectUpdateOptions{
			ID:          projectID,
			Name:        input.Body.Name,
			Status:      input.Body.Status,
			Description: input.Body.Description,
			ClientID:    input.Body.ClientID,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectResponse `json:"body"`
		}{Body: projectResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}",
		Summary:     "Delete project",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct{}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "project.delete"); err != nil {
			return nil, handleError(err)
		}
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteProject(ctx, projectID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project-config",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/config",
		Summary:     "Get project config",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body ProjectConfigResponse `json:"body"`
	}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "project.config.read"); err != nil {
			return nil, handleError(err)
		}
		cfg, err := e.Repo.GetProjectConfig(ctx, projectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectConfigResponse `json:"body"`
		}{Body: configResponse(cfg)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-project-config",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/config",
		Summary:     "Import project config",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string        `path:"project_id"`
		Body      config.Config `json:"body"`
	}) (*struct {
		Body ProjectConfigResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "project.config.write"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cfg := input.Body
		cfg.Project.ID = projectID
		if err := cfg.Validate(); err != nil {
			return nil, handleError(err)
		}
		if err := e.ImportProjectConfig(ctx, projectID, &cfg, actorID); err != nil {
			return nil, handleError(err)
		}
		stored, err := e.Repo.GetProjectConfig(ctx, projectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProjectConfigResponse `json:"body"`
		}{Body: configResponse(stored)}, nil
	})
}

func registerDashboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-dashboard",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/dashboard",
		Summary:     "Project dashboard",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body engine.Dashboard `json:"body"`
	}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "project.dashboard.read"); err != nil {
			return nil, handleError(err)
		}
		d, err := e.GetDashboard(ctx, projectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Dashboard `json:"body"`
		}{Body: d}, nil
	})
}

func registerStakeholders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-stakeholder",
		Method:        http.MethodPost,
		Path:          "/stakeholders",
		Summary:       "Create stakeholder",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateStakeholderRequest `json:"body"`
	}) (*struct {
		Body StakeholderResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		if err := requireGlobalPermission(ctx, e, "stakeholder.create"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateStakeholder(ctx, engine.StakeholderCreateOptions{
			ID:        stringOrEmpty(input.Body.ID),
			Name:      input.Body.Name,
			Kind:      input.Body.Kind,
			Email:     stringOrEmpty(input.Body.Email),
			Phone:     stringOrEmpty(input.Body.Phone),
			Notes:     stringOrEmpty(input.Body.Notes),
			ProjectID: stringOrEmpty(input.Body.ProjectID),
			Role:      stringOrEmpty(input.Body.Role),
			ActorID:   actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StakeholderResponse `json:"body"`
		}{Body: stakeholderResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-stakeholders",
		Method:      http.MethodGet,
		Path:        "/stakeholders",
		Summary:     "List stakeholders",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Kind      string `query:"kind" enum:"client,consultant,partner"`
		ProjectID string `query:"project_id"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []StakeholderResponse `json:"body"`
	}, error) {
		if err := requireGlobalPermission(ctx, e, "stakeholder.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListStakeholders(ctx, repo.StakeholderFilters{
			Kind:      input.Kind,
			ProjectID: input.ProjectID,
			Limit:     normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]StakeholderResponse, 0, len(items))
		for _, s := range items {
			res = append(res, stakeholderResponse(s))
		}
		return &struct {
			Body []StakeholderResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stakeholder",
		Method:      http.MethodGet,
		Path:        "/stakeholders/{id}",
		Summary:     "Get stakeholder",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body StakeholderResponse `json:"body"`
	}, error) {
		if err := requireGlobalPermission(ctx, e, "stakeholder.read"); err != nil {
			return nil, handleError(err)
		}
		s, err := e.Repo.GetStakeholder(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StakeholderResponse `json:"body"`
		}{Body: stakeholderResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-stakeholder",
		Method:      http.MethodPatch,
		Path:        "/stakeholders/{id}",
		Summary:     "Update stakeholder",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                   `path:"id"`
		Body UpdateStakeholderRequest `json:"body"`
	}) (*struct {
		Body StakeholderResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireGlobalPermission(ctx, e, "stakeholder.update"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpdateStakeholder(ctx, engine.StakeholderUpdateOptions{
			ID:      input.ID,
			Name:    input.Body.Name,
			Kind:    input.Body.Kind,
			Email:   input.Body.Email,
			Phone:   input.Body.Phone,
			Notes:   input.Body.Notes,
			ActorID: actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StakeholderResponse `json:"body"`
		}{Body: stakeholderResponse(s)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-stakeholder",
		Method:      http.MethodDelete,
		Path:        "/stakeholders/{id}",
		Summary:     "Delete stakeholder",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if err := requireGlobalPermission(ctx, e, "stakeholder.delete"); err != nil {
			return nil, handleError(err)
		}
		if err := e.Repo.DeleteStakeholder(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "link-stakeholder",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/stakeholders/{stakeholder_id}/link",
		Summary:     "Link stakeholder to project",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID     string                 `path:"project_id"`
		StakeholderID string                 `path:"stakeholder_id"`
		Body          LinkStakeholderRequest `json:"body"`
	}) (*struct{}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "stakeholder.link"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.LinkStakeholder(ctx, projectID, input.StakeholderID, input.Body.Role, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unlink-stakeholder",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/stakeholders/{stakeholder_id}/link",
		Summary:     "Unlink stakeholder from project",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID     string `path:"project_id"`
		StakeholderID string `path:"stakeholder_id"`
	}) (*struct{}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "stakeholder.link"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.UnlinkStakeholder(ctx, projectID, input.StakeholderID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerPursuits(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-pursuit",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/pursuits",
		Summary:       "Create pursuit",
		Description:   "Creates a pursuit when the project's assessment gate allows it. A blocked gate returns 409 gate_blocked.",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string               `path:"project_id"`
		Body      CreatePursuitRequest `json:"body"`
	}) (*struct {
		Body PursuitResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "pursuit.create"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreatePursuit(ctx, engine.PursuitCreateOptions{
			ID:            stringOrEmpty(input.Body.ID),
			ProjectID:     projectID,
			StakeholderID: stringOrEmpty(input.Body.StakeholderID),
			Title:         input.Body.Title,
			Description:   stringOrEmpty(input.Body.Description),
			OwnerID:       stringOrEmpty(input.Body.OwnerID),
			ValueEstimate: input.Body.ValueEstimate,
			DueDate:       stringOrEmpty(input.Body.DueDate),
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PursuitResponse `json:"body"`
		}{Body: pursuitResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pursuits",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/pursuits",
		Summary:     "List pursuits",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID     string `path:"project_id"`
		Status        string `query:"status" enum:"open,active,won,lost,canceled"`
		OwnerID       string `query:"owner_id"`
		StakeholderID string `query:"stakeholder_id"`
		Limit         int    `query:"limit" default:"50"`
		Cursor        string `query:"cursor"`
	}) (*struct {
		Body paginatedPursuits `json:"body"`
	}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "pursuit.read"); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		cursorCreatedAt, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListPursuits(ctx, repo.PursuitFilters{
			ProjectID:       projectID,
			Status:          input.Status,
			OwnerID:         input.OwnerID,
			StakeholderID:   input.StakeholderID,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreatedAt,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedPursuits{Items: []PursuitResponse{}}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		for _, p := range items {
			resp.Items = append(resp.Items, pursuitResponse(p))
		}
		return &struct {
			Body paginatedPursuits `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pursuit",
		Method:      http.MethodGet,
		Path:        "/pursuits/{id}",
		Summary:     "Get pursuit",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body PursuitResponse `json:"body"`
	}, error) {
		p, err := e.Repo.GetPursuit(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requirePermission(ctx, e, p.ProjectID, "pursuit.read"); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PursuitResponse `json:"body"`
		}{Body: pursuitResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-pursuit",
		Method:      http.MethodPatch,
		Path:        "/pursuits/{id}",
		Summary:     "Update pursuit",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body UpdatePursuitRequest `json:"body"`
	}) (*struct {
		Body PursuitResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		existing, err := e.Repo.GetPursuit(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requirePermission(ctx, e, existing.ProjectID, "pursuit.update"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.UpdatePursuit(ctx, engine.PursuitUpdateOptions{
			ID:            input.ID,
			Title:         input.Body.Title,
			Description:   input.Body.Description,
			Status:        input.Body.Status,
			StakeholderID: input.Body.StakeholderID,
			OwnerID:       input.Body.OwnerID,
			ValueEstimate: input.Body.ValueEstimate,
			DueDate:       input.Body.DueDate,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PursuitResponse `json:"body"`
		}{Body: pursuitResponse(p)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-pursuit-comment",
		Method:        http.MethodPost,
		Path:          "/pursuits/{id}/comments",
		Summary:       "Add pursuit comment",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body AddCommentRequest `json:"body"`
	}) (*struct {
		Body CommentResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if strings.TrimSpace(input.Body.Text) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "text is required", nil)
		}
		p, err := e.Repo.GetPursuit(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requirePermission(ctx, e, p.ProjectID, "pursuit.comment"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.AddComment(ctx, input.ID, input.Body.Text, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CommentResponse `json:"body"`
		}{Body: commentResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pursuit-comments",
		Method:      http.MethodGet,
		Path:        "/pursuits/{id}/comments",
		Summary:     "List pursuit comments",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID       string `path:"id"`
		AfterSeq int64  `query:"after_seq"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body []CommentResponse `json:"body"`
	}, error) {
		p, err := e.Repo.GetPursuit(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		if err := requirePermission(ctx, e, p.ProjectID, "pursuit.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListComments(ctx, input.ID, normalizeLimit(input.Limit), input.AfterSeq)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]CommentResponse, 0, len(items))
		for _, c := range items {
			res = append(res, commentResponse(c))
		}
		return &struct {
			Body []CommentResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerAssessment(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-assessment",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/assessment",
		Summary:     "Get assessment",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body AssessmentViewResponse `json:"body"`
	}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "assessment.read"); err != nil {
			return nil, handleError(err)
		}
		v, err := e.GetAssessmentView(ctx, projectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssessmentViewResponse `json:"body"`
		}{Body: assessmentViewResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "save-assessment-scores",
		Method:      http.MethodPut,
		Path:        "/projects/{project_id}/assessment/scores",
		Summary:     "Record assessment scores",
		Description: "Creates the draft assessment on first use. Scoring a non-draft assessment requires revert=true, which moves it back to draft and clears any recorded decision.",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      SaveScoresRequest `json:"body"`
	}) (*struct {
		Body AssessmentViewResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if len(input.Body.Scores) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "scores are required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "assessment.score"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		inputs := make([]engine.ScoreInput, 0, len(input.Body.Scores))
		for _, s := range input.Body.Scores {
			inputs = append(inputs, engine.ScoreInput{
				CriterionID: s.CriterionID,
				Score:       s.Score,
				Comment:     s.Comment,
			})
		}
		v, err := e.SaveScores(ctx, projectID, inputs, input.Body.Revert, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssessmentViewResponse `json:"body"`
		}{Body: assessmentViewResponse(v)}, nil
	})

	type assessmentAction struct {
		ProjectID string `path:"project_id"`
	}
	type assessmentViewOut struct {
		Body AssessmentViewResponse `json:"body"`
	}
	action := func(opID, pathSuffix, summary, perm string, run func(ctx context.Context, projectID, actorID string) (engine.AssessmentView, error)) {
		huma.Register(api, huma.Operation{
			OperationID: opID,
			Method:      http.MethodPost,
			Path:        "/projects/{project_id}/assessment/" + pathSuffix,
			Summary:     summary,
			Errors: []int{
				http.StatusForbidden,
				http.StatusNotFound,
				http.StatusConflict,
				http.StatusUnprocessableEntity,
			},
		}, func(ctx context.Context, input *assessmentAction) (*assessmentViewOut, error) {
			projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
			if err := requirePermission(ctx, e, projectID, perm); err != nil {
				return nil, handleError(err)
			}
			actorID, authErr := actorIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			v, err := run(ctx, projectID, actorID)
			if err != nil {
				return nil, handleError(err)
			}
			return &assessmentViewOut{Body: assessmentViewResponse(v)}, nil
		})
	}
	action("submit-assessment", "submit", "Submit assessment", "assessment.submit", e.SubmitAssessment)
	action("review-assessment", "review", "Start assessment review", "assessment.review", e.ReviewAssessment)
	action("revert-assessment", "revert", "Revert assessment to draft", "assessment.score", e.RevertAssessment)

	huma.Register(api, huma.Operation{
		OperationID: "decide-assessment",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/assessment/decide",
		Summary:     "Record go/no-go decision",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string                  `path:"project_id"`
		Body      DecideAssessmentRequest `json:"body"`
	}) (*struct {
		Body AssessmentViewResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Decision == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "decision is required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "assessment.approve"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		v, err := e.DecideAssessment(ctx, projectID, input.Body.Decision, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssessmentViewResponse `json:"body"`
		}{Body: assessmentViewResponse(v)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-assessment-condition",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/assessment/conditions",
		Summary:       "Add condition",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string           `path:"project_id"`
		Body      ConditionRequest `json:"body"`
	}) (*struct {
		Body ConditionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Condition == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "condition is required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "assessment.condition.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.AddCondition(ctx, engine.ConditionOptions{
			ProjectID:     projectID,
			Condition:     input.Body.Condition,
			ResponsibleID: stringOrEmpty(input.Body.ResponsibleID),
			DueDate:       stringOrEmpty(input.Body.DueDate),
			Notes:         stringOrEmpty(input.Body.Notes),
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConditionResponse `json:"body"`
		}{Body: conditionResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-assessment-condition",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/assessment/conditions/{id}",
		Summary:     "Update condition",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string                 `path:"project_id"`
		ID        string                 `path:"id"`
		Body      UpdateConditionRequest `json:"body"`
	}) (*struct {
		Body ConditionResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "assessment.condition.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateCondition(ctx, engine.ConditionOptions{
			ID:            input.ID,
			ProjectID:     projectID,
			Condition:     stringOrEmpty(input.Body.Condition),
			ResponsibleID: stringOrEmpty(input.Body.ResponsibleID),
			DueDate:       stringOrEmpty(input.Body.DueDate),
			Notes:         stringOrEmpty(input.Body.Notes),
			Status:        stringOrEmpty(input.Body.Status),
			ActorID:       actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConditionResponse `json:"body"`
		}{Body: conditionResponse(c)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-assessment-condition",
		Method:      http.MethodDelete,
		Path:        "/projects/{project_id}/assessment/conditions/{id}",
		Summary:     "Delete condition",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		ID        string `path:"id"`
	}) (*struct{}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "assessment.condition.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteCondition(ctx, input.ID, actorID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-gate",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/gate",
		Summary:     "Evaluate pursuit-creation gate",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body GateResponse `json:"body"`
	}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "assessment.read"); err != nil {
			return nil, handleError(err)
		}
		if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
			return nil, handleError(err)
		}
		g, err := e.EvaluateGate(ctx, projectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GateResponse `json:"body"`
		}{Body: gateResponse(g)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "classify-score",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/assessment/classify",
		Summary:     "Classify a hypothetical score",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID     string   `path:"project_id"`
		Score         float64  `query:"score" required:"true"`
		GoAt          *float64 `query:"go"`
		ConditionalAt *float64 `query:"conditional"`
	}) (*struct {
		Body ClassifyResponse `json:"body"`
	}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "assessment.read"); err != nil {
			return nil, handleError(err)
		}
		var override *scoring.Thresholds
		if input.GoAt != nil || input.ConditionalAt != nil {
			if input.GoAt == nil || input.ConditionalAt == nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "go and conditional must be given together", nil)
			}
			override = &scoring.Thresholds{Go: *input.GoAt, Conditional: *input.ConditionalAt}
		}
		decision, th, err := e.ClassifyPreview(ctx, projectID, input.Score, override)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ClassifyResponse `json:"body"`
		}{Body: ClassifyResponse{Score: input.Score, Decision: decision, Thresholds: th}}, nil
	})
}

func registerApprovals(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-pending-approvals",
		Method:      http.MethodGet,
		Path:        "/approvals/pending",
		Summary:     "Assessments awaiting review",
		Description: "Each entry carries the weighted score and suggested decision recomputed against the project's current catalog and thresholds.",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50"`
	}) (*struct {
		Body []PendingApprovalResponse `json:"body"`
	}, error) {
		if err := requireGlobalPermission(ctx, e, "approvals.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListPendingApprovals(ctx, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]PendingApprovalResponse, 0, len(items))
		for _, a := range items {
			view, err := e.GetAssessmentView(ctx, a.ProjectID)
			if err != nil {
				return nil, handleError(err)
			}
			res = append(res, PendingApprovalResponse{
				Assessment: assessmentResponse(view.Assessment),
				Score:      view.Score,
				AllScored:  view.AllScored,
				Suggested:  view.Suggested,
			})
		}
		return &struct {
			Body []PendingApprovalResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerMilestones(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-milestone",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/milestones",
		Summary:       "Create milestone",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string                 `path:"project_id"`
		Body      CreateMilestoneRequest `json:"body"`
	}) (*struct {
		Body MilestoneResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "milestone.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.CreateMilestone(ctx, projectID, input.Body.Title, stringOrEmpty(input.Body.DueDate), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MilestoneResponse `json:"body"`
		}{Body: milestoneResponse(m)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-milestones",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/milestones",
		Summary:     "List milestones",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Status    string `query:"status" enum:"pending,done,missed"`
	}) (*struct {
		Body []MilestoneResponse `json:"body"`
	}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "project.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListMilestones(ctx, projectID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]MilestoneResponse, 0, len(items))
		for _, m := range items {
			res = append(res, milestoneResponse(m))
		}
		return &struct {
			Body []MilestoneResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-milestone-status",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/milestones/{id}",
		Summary:     "Set milestone status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		ID        string `path:"id"`
		Body      struct {
			Status string `json:"status" enum:"pending,done,missed"`
		} `json:"body"`
	}) (*struct {
		Body MilestoneResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "milestone.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		m, err := e.SetMilestoneStatus(ctx, input.ID, input.Body.Status, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MilestoneResponse `json:"body"`
		}{Body: milestoneResponse(m)}, nil
	})
}

func registerDocuments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-document",
		Method:        http.MethodPost,
		Path:          "/projects/{project_id}/documents",
		Summary:       "Register document metadata",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string                  `path:"project_id"`
		Body      RegisterDocumentRequest `json:"body"`
	}) (*struct {
		Body DocumentResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if input.Body.Name == "" || input.Body.Path == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name and path are required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "document.manage"); err != nil {
			return nil, handleError(err)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.RegisterDocument(ctx, domain.Document{
			ProjectID:   projectID,
			Name:        input.Body.Name,
			ContentType: input.Body.ContentType,
			SizeBytes:   input.Body.SizeBytes,
			Path:        input.Body.Path,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DocumentResponse `json:"body"`
		}{Body: documentResponse(d)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/documents",
		Summary:     "List documents",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []DocumentResponse `json:"body"`
	}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "project.read"); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListDocuments(ctx, projectID)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]DocumentResponse, 0, len(items))
		for _, d := range items {
			res = append(res, documentResponse(d))
		}
		return &struct {
			Body []DocumentResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerSearch(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "search",
		Method:      http.MethodGet,
		Path:        "/search",
		Summary:     "Search projects, stakeholders, pursuits, and comments",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Q         string `query:"q" required:"true"`
		ProjectID string `query:"project_id"`
		Kinds     string `query:"kinds" example:"pursuit,comment"`
		Limit     int    `query:"limit" default:"50"`
	}) (*struct {
		Body []SearchHitResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Q) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "q is required", nil)
		}
		if input.ProjectID != "" {
			if err := requirePermission(ctx, e, input.ProjectID, "search.read"); err != nil {
				return nil, handleError(err)
			}
		} else if err := requireGlobalPermission(ctx, e, "search.read"); err != nil {
			return nil, handleError(err)
		}
		var kinds []string
		for _, k := range strings.Split(input.Kinds, ",") {
			if k = strings.TrimSpace(k); k != "" {
				kinds = append(kinds, k)
			}
		}
		hits, err := e.Repo.Search(ctx, input.ProjectID, input.Q, kinds, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]SearchHitResponse, 0, len(hits))
		for _, h := range hits {
			res = append(res, searchHitResponse(h))
		}
		return &struct {
			Body []SearchHitResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"project,stakeholder,pursuit,assessment,condition,milestone,document,actor"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "project.events.read"); err != nil {
			return nil, handleError(err)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEventsFrom(ctx, limit+1, cursorID, projectID, input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerRBAC(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "whoami",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/me/permissions",
		Summary:     "Current actor permissions",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		profile, err := e.Repo.ActorProfile(ctx, projectID, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID:     profile.ActorID,
			Roles:       nonNilSlice(profile.Roles),
			Permissions: nonNilSlice(profile.Permissions),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "grant-role",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/rbac/roles/grant",
		Summary:     "Grant role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      RoleChangeRequest `json:"body"`
	}) (*struct{}, error) {
		if input.Body.ActorID == "" || input.Body.RoleID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and role_id are required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "rbac.manage"); err != nil {
			return nil, handleError(err)
		}
		grantedBy, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.GrantRole(ctx, projectID, input.Body.ActorID, input.Body.RoleID, grantedBy); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-role",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/rbac/roles/revoke",
		Summary:     "Revoke role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ProjectID string            `path:"project_id"`
		Body      RoleChangeRequest `json:"body"`
	}) (*struct{}, error) {
		if input.Body.ActorID == "" || input.Body.RoleID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id and role_id are required", nil)
		}
		projectID := projectFromPathOrHeader(ctx, input.ProjectID, configProjectID(e))
		if err := requirePermission(ctx, e, projectID, "rbac.manage"); err != nil {
			return nil, handleError(err)
		}
		revokedBy, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RevokeRole(ctx, projectID, input.Body.ActorID, input.Body.RoleID, revokedBy); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		roles := principal.Roles
		perms := principal.Permissions
		if len(perms) == 0 {
			if p, err := e.Repo.SingleProject(ctx); err == nil {
				if profile, err := e.Repo.ActorProfile(ctx, p.ID, principal.ActorID); err == nil {
					if len(roles) == 0 {
						roles = profile.Roles
					}
					perms = profile.Permissions
				}
			}
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID:     principal.ActorID,
			Roles:       nonNilSlice(roles),
			Permissions: nonNilSlice(perms),
		}}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, input.Body.Roles, input.Body.Permissions)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	if ts == "" || id == "" {
		return ""
	}
	return ts + "|" + id
}

func projectFromPathOrHeader(ctx context.Context, pathProjectID, fallback string) string {
	if pathProjectID != "" {
		return pathProjectID
	}
	return projectFromHeader(ctx, fallback)
}

func projectFromHeader(ctx context.Context, fallback string) string {
	if h, ok := ctx.(interface{ Header(string) string }); ok {
		if v := strings.TrimSpace(h.Header("X-Project-Id")); v != "" {
			return v
		}
	}
	if req, ok := ctx.Value(requestKey{}).(*http.Request); ok && req != nil {
		if v := strings.TrimSpace(req.Header.Get("X-Project-Id")); v != "" {
			return v
		}
	}
	return fallback
}
