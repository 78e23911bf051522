package server

import (
	"encoding/json"

	"jurybox/internal/domain"
)

// Request payloads

type RegisterAgentRequest struct {
	Name       string `json:"name"`
	WebhookURL string `json:"webhook_url,omitempty" format:"uri"`
}

type DepositRequest struct {
	Amount float64 `json:"amount"`
}

type CreateTaskRequest struct {
	Payload    json.RawMessage `json:"payload"`
	Importance int             `json:"importance" minimum:"1" maximum:"100"`
	MaxBudget  float64         `json:"max_budget"`
}

type SubmitResponseRequest struct {
	Response json.RawMessage `json:"response"`
}

type RegisterWorkerRequest struct {
	Username string `json:"username"`
}

type DevLoginRequest struct {
	WorkerID string `json:"worker_id"`
}

// Response payloads

type AgentResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Balance    float64 `json:"balance"`
	WebhookURL string  `json:"webhook_url,omitempty"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type RegisterAgentResponse struct {
	Agent AgentResponse `json:"agent"`
	// APIKey is shown exactly once; only its hash is kept.
	APIKey string `json:"api_key"`
}

type WorkerResponse struct {
	ID               string  `json:"id"`
	Username         string  `json:"username"`
	TrustScore       float64 `json:"trust_score"`
	TrustTier        string  `json:"trust_tier" enum:"bronze,silver,gold,expert"`
	Trophies         int     `json:"trophies"`
	TotalCompleted   int     `json:"total_completed"`
	AccuracyRate     float64 `json:"accuracy_rate"`
	CompletionRate   float64 `json:"completion_rate"`
	AvailableBalance float64 `json:"available_balance"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
}

type RegisterWorkerResponse struct {
	Worker WorkerResponse `json:"worker"`
	Token  string         `json:"token"`
}

type TaskResponse struct {
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
	Status               string          `json:"status" enum:"open,assigned,in_progress,evaluating,completed,expired,cancelled"`
	Result               json.RawMessage `json:"result,omitempty"`
	CreatedAt            string          `json:"created_at" format:"date-time"`
	CompletedAt          *string         `json:"completed_at,omitempty" format:"date-time"`
}

type AssignmentResponse struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"task_id"`
	WorkerID    string          `json:"worker_id"`
	Status      string          `json:"status" enum:"assigned,submitted,accepted,rejected"`
	Response    json.RawMessage `json:"response,omitempty"`
	SubmittedAt *string         `json:"submitted_at,omitempty" format:"date-time"`
	CreatedAt   string          `json:"created_at" format:"date-time"`
}

type ReputationEventResponse struct {
	ID         int64   `json:"id"`
	WorkerID   string  `json:"worker_id"`
	TaskID     string  `json:"task_id"`
	EventType  string  `json:"event_type"`
	ScoreDelta float64 `json:"score_delta"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type CashOutResponse struct {
	WorkerID string  `json:"worker_id"`
	Amount   float64 `json:"amount"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts" format:"date-time"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	Payload    json.RawMessage `json:"payload"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func agentResponse(a domain.Agent) AgentResponse {
	return AgentResponse{
		ID:         a.ID,
		Name:       a.Name,
		Balance:    a.Balance,
		WebhookURL: a.WebhookURL,
		CreatedAt:  a.CreatedAt,
	}
}

func workerResponse(w domain.Worker) WorkerResponse {
	return WorkerResponse{
		ID:               w.ID,
		Username:         w.Username,
		TrustScore:       w.TrustScore,
		TrustTier:        w.TrustTier,
		Trophies:         w.Trophies,
		TotalCompleted:   w.TotalCompleted,
		AccuracyRate:     w.AccuracyRate,
		CompletionRate:   w.CompletionRate,
		AvailableBalance: w.AvailableBalance,
		CreatedAt:        w.CreatedAt,
	}
}

func taskResponse(t domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:                   t.ID,
		AgentID:              t.AgentID,
		Payload:              rawOrNull(t.InputPayload),
		Importance:           t.Importance,
		MaxBudget:            t.MaxBudget,
		RequiredWorkers:      t.RequiredWorkers,
		MinTrophies:          t.MinTrophies,
		PricePerWorker:       t.PricePerWorker,
		EstPrice:             t.EstPrice,
		TrophyReward:         t.TrophyReward,
		WorkerInstructions:   t.WorkerInstructions,
		ExpectedResponseType: t.ExpectedResponseType,
		Status:               t.Status,
		CreatedAt:            t.CreatedAt,
		CompletedAt:          t.CompletedAt,
	}
	if t.ResultJSON != nil {
		resp.Result = rawOrNull(*t.ResultJSON)
	}
	return resp
}

func assignmentResponse(a domain.Assignment) AssignmentResponse {
	resp := AssignmentResponse{
		ID:          a.ID,
		TaskID:      a.TaskID,
		WorkerID:    a.WorkerID,
		Status:      a.Status,
		SubmittedAt: a.SubmittedAt,
		CreatedAt:   a.CreatedAt,
	}
	if a.ResponseJSON != nil {
		resp.Response = rawOrNull(*a.ResponseJSON)
	}
	return resp
}

func reputationEventResponse(e domain.ReputationEvent) ReputationEventResponse {
	return ReputationEventResponse{
		ID:         e.ID,
		WorkerID:   e.WorkerID,
		TaskID:     e.TaskID,
		EventType:  e.EventType,
		ScoreDelta: e.ScoreDelta,
		CreatedAt:  e.CreatedAt,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    rawOrNull(e.Payload),
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		res = append(res, taskResponse(t))
	}
	return res
}

func mapAssignments(items []domain.Assignment) []AssignmentResponse {
	res := make([]AssignmentResponse, 0, len(items))
	for _, a := range items {
		res = append(res, assignmentResponse(a))
	}
	return res
}

func mapWorkers(items []domain.Worker) []WorkerResponse {
	res := make([]WorkerResponse, 0, len(items))
	for _, w := range items {
		res = append(res, workerResponse(w))
	}
	return res
}

func mapReputationEvents(items []domain.ReputationEvent) []ReputationEventResponse {
	res := make([]ReputationEventResponse, 0, len(items))
	for _, e := range items {
		res = append(res, reputationEventResponse(e))
	}
	return res
}

func mapEvents(items []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, e := range items {
		res = append(res, eventResponse(e))
	}
	return res
}

func rawOrNull(s string) json.RawMessage {
	if s == "" || !json.Valid([]byte(s)) {
		return json.RawMessage("null")
	}
	return json.RawMessage(s)
}
