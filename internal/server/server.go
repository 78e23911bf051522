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
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"jurybox/internal/engine"
	"jurybox/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_eligible"`
	Message string         `json:"message" example:"worker not eligible for task"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Jurybox API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
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
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Jurybox API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAgents(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerWorkers(group, cfg.Engine, cfg.Auth)
	registerLeaderboard(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	if cfg.Auth.EnableDevLogin {
		registerDevAuth(group, cfg.Auth)
	}
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
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", ve.Msg, nil)
	}
	var cf engine.CompensationFailureError
	if errors.As(err, &cf) {
		return newAPIError(http.StatusInternalServerError, "compensation_failed", "task creation failed and refund did not apply", map[string]any{
			"task_id":  cf.TaskID,
			"agent_id": cf.AgentID,
			"amount":   cf.Amount,
		})
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, engine.ErrInsufficientBalance):
		return newAPIError(http.StatusPaymentRequired, "insufficient_balance", err.Error(), nil)
	case errors.Is(err, engine.ErrNotEligible):
		return newAPIError(http.StatusForbidden, "not_eligible", err.Error(), nil)
	case errors.Is(err, engine.ErrSlotRaceLost):
		return newAPIError(http.StatusConflict, "slots_full", err.Error(), nil)
	case errors.Is(err, engine.ErrAlreadyClaimed):
		return newAPIError(http.StatusConflict, "already_claimed", err.Error(), nil)
	case errors.Is(err, engine.ErrNotTaskOwner):
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, engine.ErrNotCancellable):
		return newAPIError(http.StatusConflict, "not_cancellable", err.Error(), nil)
	case errors.Is(err, engine.ErrTaskNotOpen):
		return newAPIError(http.StatusConflict, "task_not_open", err.Error(), nil)
	case errors.Is(err, engine.ErrNotSubmittable):
		return newAPIError(http.StatusConflict, "already_submitted", err.Error(), nil)
	case errors.Is(err, engine.ErrAlreadyAdjudicated):
		return newAPIError(http.StatusConflict, "already_adjudicated", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	if strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") {
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
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

// requireSelf ensures the authenticated principal is the entity in the
// path. Legacy-header principals already asserted an identity, so the same
// check applies.
func requireSelf(ctx context.Context, id string) huma.StatusError {
	actorID, authErr := actorIDFromContext(ctx)
	if authErr != nil {
		return authErr
	}
	if actorID != id {
		return newAPIError(http.StatusForbidden, "forbidden", "credentials do not match this resource", nil)
	}
	return nil
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
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Jurybox API Docs</title>
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
      Workers authenticate with Authorization: Bearer &lt;token&gt;, agents with X-Api-Key.
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

func registerAgents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-agent",
		Method:        http.MethodPost,
		Path:          "/agents",
		Summary:       "Register agent",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RegisterAgentRequest `json:"body"`
	}) (*struct {
		Body RegisterAgentResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		a, key, err := e.RegisterAgent(ctx, input.Body.Name, input.Body.WebhookURL)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RegisterAgentResponse `json:"body"`
		}{Body: RegisterAgentResponse{Agent: agentResponse(a), APIKey: key}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agent",
		Method:      http.MethodGet,
		Path:        "/agents/{agent_id}",
		Summary:     "Agent balance and profile",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AgentID string `path:"agent_id"`
	}) (*struct {
		Body AgentResponse `json:"body"`
	}, error) {
		if err := requireSelf(ctx, input.AgentID); err != nil {
			return nil, err
		}
		a, err := e.Repo.GetAgent(ctx, input.AgentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AgentResponse `json:"body"`
		}{Body: agentResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deposit",
		Method:      http.MethodPost,
		Path:        "/agents/{agent_id}/deposit",
		Summary:     "Deposit funds",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		AgentID string         `path:"agent_id"`
		Body    DepositRequest `json:"body"`
	}) (*struct {
		Body AgentResponse `json:"body"`
	}, error) {
		if err := requireSelf(ctx, input.AgentID); err != nil {
			return nil, err
		}
		a, err := e.Deposit(ctx, input.AgentID, input.Body.Amount)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AgentResponse `json:"body"`
		}{Body: agentResponse(a)}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Post a task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusPaymentRequired,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		agentID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			AgentID:    agentID,
			Payload:    input.Body.Payload,
			Importance: input.Body.Importance,
			MaxBudget:  input.Body.MaxBudget,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
	}, func(ctx context.Context, input *struct {
		AgentID string `query:"agent_id"`
		Status  string `query:"status"`
		Limit   int    `query:"limit"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		items, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			AgentID: input.AgentID,
			Status:  input.Status,
			Limit:   normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "available-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks/available",
		Summary:     "Tasks the calling worker can claim",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body []TaskResponse `json:"body"`
	}, error) {
		workerID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.AvailableTasks(ctx, workerID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []TaskResponse `json:"body"`
		}{Body: mapTasks(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		t, err := e.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-assignments",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}/assignments",
		Summary:     "List a task's assignments",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body []AssignmentResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetTask(ctx, input.TaskID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListAssignments(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []AssignmentResponse `json:"body"`
		}{Body: mapAssignments(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "claim-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/claim",
		Summary:     "Claim a worker slot",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body AssignmentResponse `json:"body"`
	}, error) {
		workerID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Claim(ctx, input.TaskID, workerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssignmentResponse `json:"body"`
		}{Body: assignmentResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-response",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/submit",
		Summary:     "Submit a response",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string                `path:"task_id"`
		Body   SubmitResponseRequest `json:"body"`
	}) (*struct {
		Body AssignmentResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		workerID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		a, err := e.Submit(ctx, input.TaskID, workerID, input.Body.Response)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AssignmentResponse `json:"body"`
		}{Body: assignmentResponse(a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/cancel",
		Summary:     "Cancel a task before submissions arrive",
		Errors: []int{
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		agentID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.CancelTask(ctx, input.TaskID, agentID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "evaluate-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{task_id}/evaluate",
		Summary:     "Adjudicate submissions",
		Errors: []int{
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.Evaluate(ctx, input.TaskID, actorID)
		if err != nil {
			if errors.Is(err, engine.ErrAlreadyAdjudicated) {
				// The stored verdict is the answer, not a failure.
				return &struct {
					Body TaskResponse `json:"body"`
				}{Body: taskResponse(t)}, nil
			}
			return nil, handleError(err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t)}, nil
	})
}

func registerWorkers(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID:   "register-worker",
		Method:        http.MethodPost,
		Path:          "/workers",
		Summary:       "Register worker",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body RegisterWorkerRequest `json:"body"`
	}) (*struct {
		Body RegisterWorkerResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		w, err := e.RegisterWorker(ctx, input.Body.Username)
		if err != nil {
			return nil, handleError(err)
		}
		token, err := signWorkerToken(authCfg.JWTSecret, w.ID, 30*24*time.Hour)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body RegisterWorkerResponse `json:"body"`
		}{Body: RegisterWorkerResponse{Worker: workerResponse(w), Token: token}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-worker",
		Method:      http.MethodGet,
		Path:        "/workers/{worker_id}",
		Summary:     "Worker profile",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
	}) (*struct {
		Body WorkerResponse `json:"body"`
	}, error) {
		w, err := e.Repo.GetWorker(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body WorkerResponse `json:"body"`
		}{Body: workerResponse(w)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-reputation",
		Method:      http.MethodGet,
		Path:        "/workers/{worker_id}/reputation",
		Summary:     "Worker reputation history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
		Limit    int    `query:"limit"`
	}) (*struct {
		Body []ReputationEventResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetWorker(ctx, input.WorkerID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Repo.ListReputationEvents(ctx, input.WorkerID, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ReputationEventResponse `json:"body"`
		}{Body: mapReputationEvents(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "worker-assignments",
		Method:      http.MethodGet,
		Path:        "/workers/{worker_id}/assignments",
		Summary:     "Worker assignment history",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
	}) (*struct {
		Body []AssignmentResponse `json:"body"`
	}, error) {
		if err := requireSelf(ctx, input.WorkerID); err != nil {
			return nil, err
		}
		items, err := e.Repo.ListWorkerAssignments(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []AssignmentResponse `json:"body"`
		}{Body: mapAssignments(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cashout",
		Method:      http.MethodPost,
		Path:        "/workers/{worker_id}/cashout",
		Summary:     "Withdraw earned balance",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		WorkerID string `path:"worker_id"`
	}) (*struct {
		Body CashOutResponse `json:"body"`
	}, error) {
		if err := requireSelf(ctx, input.WorkerID); err != nil {
			return nil, err
		}
		amount, err := e.CashOut(ctx, input.WorkerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CashOutResponse `json:"body"`
		}{Body: CashOutResponse{WorkerID: input.WorkerID, Amount: amount}}, nil
	})
}

func registerLeaderboard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "leaderboard",
		Method:      http.MethodGet,
		Path:        "/leaderboard",
		Summary:     "Workers ranked by trophies",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*struct {
		Body []WorkerResponse `json:"body"`
	}, error) {
		items, err := e.Repo.Leaderboard(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []WorkerResponse `json:"body"`
		}{Body: mapWorkers(items)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest audit events",
	}, func(ctx context.Context, input *struct {
		Limit      int    `query:"limit"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: mapEvents(items)}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a worker JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		workerID := strings.TrimSpace(input.Body.WorkerID)
		if workerID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "worker_id is required", nil)
		}
		token, err := signWorkerToken(authCfg.JWTSecret, workerID, 24*time.Hour)
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
