package juryboxsdk

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

// Client is a minimal Jurybox HTTP API client. Set APIKey for agent
// calls and BearerToken for worker calls; BearerToken wins when both
// are present.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Agent represents the API agent model.
type Agent struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Balance    float64 `json:"balance"`
	WebhookURL string  `json:"webhook_url,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// Worker represents the API worker model.
type Worker struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	TrustScore       float64 `json:"trust_score"`
	TrustTier        string  `json:"trust_tier"`
	Trophies         int     `json:"trophies"`
	TotalCompleted   int     `json:"total_completed"`
	AccuracyRate     float64 `json:"accuracy_rate"`
	CompletionRate   float64 `json:"completion_rate"`
	AvailableBalance float64 `json:"available_balance"`
	CreatedAt        string  `json:"created_at"`
}

// Task represents the API task model.
type Task struct {
	ID                   string          `json:"id"`
	AgentID              string          `json:"agent_id"`
	Payload              json.RawMessage `json:"payload"`
	Importance           int             `json:"importance"`
	MaxBudget            float64         `json:"max_budget"`
	RequiredWorkers      int             `json:"required_workers"`
	MinTrophies          int             `json:"min_trophies"`
	PricePerWorker       float64         `json:"price_per_worker"`
	EstPrice             float64         `json:"est_price"`
	TrophyReward         int             `json:"trophy_reward"`
	WorkerInstructions   string          `json:"worker_instructions"`
	ExpectedResponseType string          `json:"expected_response_type"`
	Status               string          `json:"status"`
	Result               json.RawMessage `json:"result,omitempty"`
	CreatedAt            string          `json:"created_at"`
	CompletedAt          *string         `json:"completed_at,omitempty"`
}

// Assignment represents a worker's slot on a task.
type Assignment struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"task_id"`
	WorkerID    string          `json:"worker_id"`
	Status      string          `json:"status"`
	Response    json.RawMessage `json:"response,omitempty"`
	SubmittedAt *string         `json:"submitted_at,omitempty"`
	CreatedAt   string          `json:"created_at"`
}

// ReputationEvent represents one trust-score adjustment.
type ReputationEvent struct {
	ID         int64   `json:"id"`
	WorkerID   string  `json:"worker_id"`
	TaskID     string  `json:"task_id"`
	EventType  string  `json:"event_type"`
	ScoreDelta float64 `json:"score_delta"`
	CreatedAt  string  `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

// RegisteredAgent carries the one-time API key alongside the agent.
type RegisteredAgent struct {
	Agent  Agent  `json:"agent"`
	APIKey string `json:"api_key"`
}

// RegisteredWorker carries the bearer token alongside the worker.
type RegisteredWorker struct {
	Worker Worker `json:"worker"`
	Token  string `json:"token"`
}

// CashOutResult reports a completed withdrawal.
type CashOutResult struct {
	WorkerID string  `json:"worker_id"`
	Amount   float64 `json:"amount"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// RegisterAgent registers an agent. The returned API key is shown once;
// store it and set it on the client for subsequent agent calls.
func (c *Client) RegisterAgent(ctx context.Context, name, webhookURL string) (RegisteredAgent, error) {
	body := map[string]any{"name": name}
	if webhookURL != "" {
		body["webhook_url"] = webhookURL
	}
	var resp RegisteredAgent
	err := c.do(ctx, http.MethodPost, "v0/agents", body, &resp)
	return resp, err
}

// Deposit credits an agent's balance.
func (c *Client) Deposit(ctx context.Context, agentID string, amount float64) (Agent, error) {
	body := map[string]any{"amount": amount}
	var resp Agent
	endpoint := fmt.Sprintf("v0/agents/%s/deposit", url.PathEscape(agentID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// GetAgent fetches an agent by id.
func (c *Client) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	var resp Agent
	endpoint := fmt.Sprintf("v0/agents/%s", url.PathEscape(agentID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RegisterWorker registers a worker and returns its bearer token.
func (c *Client) RegisterWorker(ctx context.Context, username string) (RegisteredWorker, error) {
	body := map[string]any{"username": username}
	var resp RegisteredWorker
	err := c.do(ctx, http.MethodPost, "v0/workers", body, &resp)
	return resp, err
}

// GetWorker fetches a worker by id.
func (c *Client) GetWorker(ctx context.Context, workerID string) (Worker, error) {
	var resp Worker
	endpoint := fmt.Sprintf("v0/workers/%s", url.PathEscape(workerID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// WorkerReputation returns a worker's trust-score history.
func (c *Client) WorkerReputation(ctx context.Context, workerID string, limit int) ([]ReputationEvent, error) {
	var resp []ReputationEvent
	endpoint := fmt.Sprintf("v0/workers/%s/reputation", url.PathEscape(workerID))
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// WorkerAssignments returns the calling worker's assignments.
func (c *Client) WorkerAssignments(ctx context.Context, workerID string) ([]Assignment, error) {
	var resp []Assignment
	endpoint := fmt.Sprintf("v0/workers/%s/assignments", url.PathEscape(workerID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CashOut withdraws the calling worker's earned balance.
func (c *Client) CashOut(ctx context.Context, workerID string) (CashOutResult, error) {
	var resp CashOutResult
	endpoint := fmt.Sprintf("v0/workers/%s/cashout", url.PathEscape(workerID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// CreateTask posts a task on behalf of the authenticated agent.
func (c *Client) CreateTask(ctx context.Context, payload json.RawMessage, importance int, maxBudget float64) (Task, error) {
	body := map[string]any{
		"payload":    payload,
		"importance": importance,
		"max_budget": maxBudget,
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "v0/tasks", body, &resp)
	return resp, err
}

// GetTask fetches a task by id.
func (c *Client) GetTask(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// TaskFilters narrows ListTasks.
type TaskFilters struct {
	AgentID string
	Status  string
	Limit   int
}

// ListTasks returns tasks matching the filters.
func (c *Client) ListTasks(ctx context.Context, f TaskFilters) ([]Task, error) {
	q := url.Values{}
	if f.AgentID != "" {
		q.Set("agent_id", f.AgentID)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	endpoint := "v0/tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// AvailableTasks returns tasks the calling worker is eligible to claim.
func (c *Client) AvailableTasks(ctx context.Context, limit int) ([]Task, error) {
	endpoint := "v0/tasks/available"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Claim takes a worker slot on a task for the calling worker.
func (c *Client) Claim(ctx context.Context, taskID string) (Assignment, error) {
	var resp Assignment
	endpoint := fmt.Sprintf("v0/tasks/%s/claim", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Submit delivers the calling worker's response for a claimed task.
func (c *Client) Submit(ctx context.Context, taskID string, response json.RawMessage) (Assignment, error) {
	body := map[string]any{"response": response}
	var resp Assignment
	endpoint := fmt.Sprintf("v0/tasks/%s/submit", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Cancel withdraws an unstarted task posted by the authenticated agent.
func (c *Client) Cancel(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/cancel", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// Evaluate triggers adjudication for a task. Already-completed tasks
// come back with their stored verdict.
func (c *Client) Evaluate(ctx context.Context, taskID string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v0/tasks/%s/evaluate", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// TaskAssignments returns all worker slots on a task.
func (c *Client) TaskAssignments(ctx context.Context, taskID string) ([]Assignment, error) {
	var resp []Assignment
	endpoint := fmt.Sprintf("v0/tasks/%s/assignments", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Leaderboard returns workers ranked by trophies.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]Worker, error) {
	endpoint := "v0/leaderboard"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Worker
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
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

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
