package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"jurybox/internal/authoring"
	"jurybox/internal/config"
	"jurybox/internal/consensus"
	"jurybox/internal/domain"
	"jurybox/internal/events"
	"jurybox/internal/payout"
	"jurybox/internal/repo"
	"jurybox/internal/reputation"
	"jurybox/internal/routing"
)

type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Config    *config.Config
	Payout    payout.Gateway
	Authoring authoring.Authoring
	Now       func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:        db,
		Repo:      r,
		Events:    events.Writer{DB: db},
		Config:    cfg,
		Payout:    payout.New(r),
		Authoring: authoring.Static{},
		Now:       time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowRFC3339() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) ledger() reputation.Ledger {
	l := reputation.New(e.Repo, e.Config.Reputation.AcceptDelta, e.Config.Reputation.RejectDelta)
	l.Now = e.now
	return l
}

// RegisterAgent creates a requester account together with its first API
// key. The raw key is returned exactly once; only its hash is stored.
func (e Engine) RegisterAgent(ctx context.Context, name, webhookURL string) (domain.Agent, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Agent{}, "", validationf("agent name is required")
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Agent{}, "", err
	}
	defer tx.Rollback()

	a := domain.Agent{
		ID:         uuid.NewString(),
		Name:       name,
		Balance:    0,
		WebhookURL: webhookURL,
		CreatedAt:  e.nowRFC3339(),
	}
	if err := e.Repo.InsertAgent(ctx, tx, a); err != nil {
		return domain.Agent{}, "", fmt.Errorf("insert agent: %w", err)
	}
	rawKey := "jbk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	key := domain.APIKey{
		ID:        uuid.NewString(),
		AgentID:   a.ID,
		Name:      "default",
		KeyHash:   repo.HashAPIKey(rawKey),
		CreatedAt: a.CreatedAt,
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.Agent{}, "", fmt.Errorf("insert api key: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "agent.registered", "agent", a.ID, a.ID, events.EventPayload{"name": a.Name}); err != nil {
		return domain.Agent{}, "", err
	}
	if err := tx.Commit(); err != nil {
		return domain.Agent{}, "", err
	}
	return a, rawKey, nil
}

// Deposit credits an agent's balance.
func (e Engine) Deposit(ctx context.Context, agentID string, amount float64) (domain.Agent, error) {
	if amount <= 0 {
		return domain.Agent{}, validationf("deposit amount must be positive")
	}
	if _, err := e.Repo.GetAgent(ctx, agentID); err != nil {
		return domain.Agent{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Agent{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.CreditAgentBalance(ctx, tx, agentID, amount); err != nil {
		return domain.Agent{}, err
	}
	if err := e.Events.Append(ctx, tx, "agent.deposited", "agent", agentID, agentID, events.EventPayload{"amount": amount}); err != nil {
		return domain.Agent{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Agent{}, err
	}
	return e.Repo.GetAgent(ctx, agentID)
}

// RegisterWorker creates a worker with the starting trust score.
func (e Engine) RegisterWorker(ctx context.Context, username string) (domain.Worker, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Worker{}, validationf("username is required")
	}
	if _, err := e.Repo.GetWorkerByUsername(ctx, username); err == nil {
		return domain.Worker{}, validationf("username %s already taken", username)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.Worker{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Worker{}, err
	}
	defer tx.Rollback()
	w := domain.Worker{
		ID:         uuid.NewString(),
		Username:   username,
		TrustScore: consensus.DefaultWeight,
		TrustTier:  domain.TierSilver,
		CreatedAt:  e.nowRFC3339(),
	}
	if err := e.Repo.InsertWorker(ctx, tx, w); err != nil {
		return domain.Worker{}, fmt.Errorf("insert worker: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "worker.registered", "worker", w.ID, w.ID, events.EventPayload{"username": w.Username}); err != nil {
		return domain.Worker{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Worker{}, err
	}
	return w, nil
}

// TaskCreateOptions are parameters for posting a task.
type TaskCreateOptions struct {
	AgentID    string
	Payload    json.RawMessage
	Importance int
	MaxBudget  float64
}

// CreateTask routes and funds a new task. The agent is debited the
// estimated price before the task row exists; if the task then fails to
// land, the debit is compensated with a refund. A failed refund is the one
// state an operator has to reconcile by hand, so it is logged loudly.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if opts.AgentID == "" {
		return domain.Task{}, validationf("agent_id is required")
	}
	if len(opts.Payload) == 0 || !json.Valid(opts.Payload) {
		return domain.Task{}, validationf("payload must be valid JSON")
	}
	if _, err := e.Repo.GetAgent(ctx, opts.AgentID); err != nil {
		return domain.Task{}, err
	}
	ins, err := e.Authoring.Analyze(ctx, opts.Payload)
	if err != nil {
		return domain.Task{}, validationf("analyze payload: %v", err)
	}
	rewards := routing.Rewards{
		Low:    e.Config.Routing.Rewards.Low,
		Medium: e.Config.Routing.Rewards.Medium,
		High:   e.Config.Routing.Rewards.High,
	}
	rt, err := routing.Compute(opts.Importance, opts.MaxBudget, rewards)
	if err != nil {
		return domain.Task{}, validationf("%v", err)
	}

	t := domain.Task{
		ID:                   uuid.NewString(),
		AgentID:              opts.AgentID,
		InputPayload:         string(opts.Payload),
		Importance:           opts.Importance,
		MaxBudget:            opts.MaxBudget,
		RequiredWorkers:      rt.RequiredWorkers,
		MinTrophies:          rt.MinTrophies,
		PricePerWorker:       rt.PricePerWorker,
		EstPrice:             rt.EstPrice,
		TrophyReward:         rt.TrophyReward,
		WorkerInstructions:   ins.WorkerInstructions,
		ExpectedResponseType: ins.ExpectedResponseType,
		Status:               domain.TaskOpen,
		CreatedAt:            e.nowRFC3339(),
	}

	if err := e.debitAgent(ctx, opts.AgentID, rt.EstPrice); err != nil {
		return domain.Task{}, err
	}
	if err := e.insertTask(ctx, t); err != nil {
		if refundErr := e.refundAgent(ctx, t.ID, t.AgentID, rt.EstPrice); refundErr != nil {
			cf := CompensationFailureError{
				TaskID:  t.ID,
				AgentID: t.AgentID,
				Amount:  rt.EstPrice,
				Cause:   err,
				Refund:  refundErr,
			}
			log.Printf("ALERT: %v", cf)
			return domain.Task{}, cf
		}
		return domain.Task{}, err
	}
	return t, nil
}

func (e Engine) debitAgent(ctx context.Context, agentID string, amount float64) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	ok, err := e.Repo.DebitAgentBalance(ctx, tx, agentID, amount)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientBalance
	}
	return tx.Commit()
}

func (e Engine) insertTask(ctx context.Context, t domain.Task) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "task.created", "task", t.ID, t.AgentID, events.EventPayload{
		"importance":       t.Importance,
		"required_workers": t.RequiredWorkers,
		"est_price":        t.EstPrice,
	}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) refundAgent(ctx context.Context, taskID, agentID string, amount float64) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Payout.Refund(ctx, tx, taskID, agentID, amount); err != nil {
		return err
	}
	return tx.Commit()
}

// AvailableTasks lists tasks the worker may still claim.
func (e Engine) AvailableTasks(ctx context.Context, workerID string, limit int) ([]domain.Task, error) {
	w, err := e.Repo.GetWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListAvailableTasks(ctx, w.ID, w.Trophies, limit)
}

// Claim reserves a worker slot on a task. Slot accounting is a single
// guarded insert, so over-claiming under concurrency is impossible.
func (e Engine) Claim(ctx context.Context, taskID, workerID string) (domain.Assignment, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if t.Status != domain.TaskOpen && t.Status != domain.TaskAssigned {
		return domain.Assignment{}, ErrTaskNotOpen
	}
	w, err := e.Repo.GetWorkerTx(ctx, tx, workerID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if w.Trophies < t.MinTrophies {
		return domain.Assignment{}, ErrNotEligible
	}

	a := domain.Assignment{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		WorkerID:  workerID,
		Status:    domain.AssignmentAssigned,
		CreatedAt: e.nowRFC3339(),
	}
	ok, err := e.Repo.ClaimSlot(ctx, tx, a, t.RequiredWorkers)
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return domain.Assignment{}, ErrAlreadyClaimed
		}
		return domain.Assignment{}, err
	}
	if !ok {
		return domain.Assignment{}, ErrSlotRaceLost
	}
	if t.Status == domain.TaskOpen {
		if _, err := e.Repo.TransitionTaskStatus(ctx, tx, taskID, domain.TaskAssigned, domain.TaskOpen); err != nil {
			return domain.Assignment{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "task.claimed", "task", taskID, workerID, events.EventPayload{"assignment_id": a.ID}); err != nil {
		return domain.Assignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Assignment{}, err
	}
	return a, nil
}

// Submit records a worker's response. When the last required response
// lands, adjudication runs immediately.
func (e Engine) Submit(ctx context.Context, taskID, workerID string, response json.RawMessage) (domain.Assignment, error) {
	if len(response) == 0 || !json.Valid(response) {
		return domain.Assignment{}, validationf("response must be valid JSON")
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Assignment{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Assignment{}, err
	}
	switch t.Status {
	case domain.TaskAssigned, domain.TaskInProgress:
	case domain.TaskCompleted:
		return domain.Assignment{}, ErrAlreadyAdjudicated
	default:
		return domain.Assignment{}, fmt.Errorf("task %s no longer accepts responses (status %s)", taskID, t.Status)
	}

	a, err := e.Repo.GetAssignment(ctx, tx, taskID, workerID)
	if err != nil {
		return domain.Assignment{}, err
	}
	submittedAt := e.nowRFC3339()
	ok, err := e.Repo.SubmitResponse(ctx, tx, a.ID, string(response), submittedAt)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !ok {
		return domain.Assignment{}, ErrNotSubmittable
	}
	if t.Status == domain.TaskAssigned {
		if _, err := e.Repo.TransitionTaskStatus(ctx, tx, taskID, domain.TaskInProgress, domain.TaskAssigned); err != nil {
			return domain.Assignment{}, err
		}
	}
	if err := e.Events.Append(ctx, tx, "response.submitted", "task", taskID, workerID, events.EventPayload{"assignment_id": a.ID}); err != nil {
		return domain.Assignment{}, err
	}
	submitted, err := e.Repo.CountSubmitted(ctx, tx, taskID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Assignment{}, err
	}

	resp := string(response)
	a.Status = domain.AssignmentSubmitted
	a.ResponseJSON = &resp
	a.SubmittedAt = &submittedAt

	if submitted >= t.RequiredWorkers {
		if _, err := e.Evaluate(ctx, taskID, workerID); err != nil && !errors.Is(err, ErrAlreadyAdjudicated) {
			return a, fmt.Errorf("adjudicate task %s: %w", taskID, err)
		}
	}
	return a, nil
}

// Evaluate adjudicates a task's submissions. Exactly one caller wins the
// move into `evaluating`; everyone else either sees the stored result
// (ErrAlreadyAdjudicated) or an in-flight conflict. A round that does not
// reach consensus is not an error: the task drops back to accepting
// responses and the returned task reflects that.
func (e Engine) Evaluate(ctx context.Context, taskID, actorID string) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	won, err := e.Repo.TransitionTaskStatus(ctx, tx, taskID, domain.TaskEvaluating,
		domain.TaskAssigned, domain.TaskInProgress)
	if err != nil {
		return domain.Task{}, err
	}
	if !won {
		t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
		if err != nil {
			return domain.Task{}, err
		}
		if t.Status == domain.TaskCompleted {
			return t, ErrAlreadyAdjudicated
		}
		return t, fmt.Errorf("task %s not adjudicable in status %s", taskID, t.Status)
	}

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	subs, err := e.Repo.ListSubmitted(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	csubs := make([]consensus.Submission, 0, len(subs))
	for _, a := range subs {
		weight := consensus.DefaultWeight
		if w, err := e.Repo.GetWorkerTx(ctx, tx, a.WorkerID); err == nil {
			weight = w.TrustScore
		} else if !errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, err
		}
		var resp json.RawMessage
		if a.ResponseJSON != nil {
			resp = json.RawMessage(*a.ResponseJSON)
		}
		s := consensus.Submission{
			AssignmentID: a.ID,
			WorkerID:     a.WorkerID,
			Response:     resp,
			Weight:       weight,
		}
		if a.SubmittedAt != nil {
			s.SubmittedAt = *a.SubmittedAt
		}
		csubs = append(csubs, s)
	}

	res := consensus.Evaluate(routing.TierFor(t.Importance), csubs, consensus.Options{
		HighWeightThreshold: e.Config.Consensus.HighWeightThreshold,
	})

	if !res.Reached {
		back := domain.TaskAssigned
		if len(subs) > 0 {
			back = domain.TaskInProgress
		}
		if _, err := e.Repo.TransitionTaskStatus(ctx, tx, taskID, back, domain.TaskEvaluating); err != nil {
			return domain.Task{}, err
		}
		if err := e.Events.Append(ctx, tx, "consensus.pending", "task", taskID, actorID, events.EventPayload{
			"submissions": len(subs),
		}); err != nil {
			return domain.Task{}, err
		}
		if err := tx.Commit(); err != nil {
			return domain.Task{}, err
		}
		t.Status = back
		return t, nil
	}

	completedAt := e.nowRFC3339()
	result := string(res.Value)
	if err := e.Repo.CompleteTask(ctx, tx, taskID, result, completedAt); err != nil {
		return domain.Task{}, err
	}
	if err := e.Repo.SetAssignmentStatuses(ctx, tx, res.AcceptedIDs, domain.AssignmentAccepted); err != nil {
		return domain.Task{}, err
	}
	if err := e.Repo.SetAssignmentStatuses(ctx, tx, res.RejectedIDs, domain.AssignmentRejected); err != nil {
		return domain.Task{}, err
	}

	acceptedIDs := make(map[string]bool, len(res.AcceptedIDs))
	for _, id := range res.AcceptedIDs {
		acceptedIDs[id] = true
	}
	ledger := e.ledger()
	var items []payout.Item
	for _, s := range csubs {
		accepted := acceptedIDs[s.AssignmentID]
		if err := ledger.Apply(ctx, tx, s.WorkerID, taskID, accepted, t.TrophyReward); err != nil {
			return domain.Task{}, fmt.Errorf("apply reputation for worker %s: %w", s.WorkerID, err)
		}
		if accepted {
			items = append(items, payout.Item{WorkerID: s.WorkerID, Amount: t.PricePerWorker})
		}
	}
	if err := e.Payout.Release(ctx, tx, taskID, items); err != nil {
		return domain.Task{}, err
	}

	if err := e.Events.Append(ctx, tx, "consensus.reached", "task", taskID, actorID, events.EventPayload{
		"accepted": len(res.AcceptedIDs),
		"rejected": len(res.RejectedIDs),
	}); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "payout.released", "task", taskID, actorID, events.EventPayload{
		"workers":     len(items),
		"amount_each": t.PricePerWorker,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}

	t.Status = domain.TaskCompleted
	t.ResultJSON = &result
	t.CompletedAt = &completedAt
	return t, nil
}

// ExpireStale reaps tasks stuck past the pending deadline, refunding the
// agent's escrow. Nothing was paid out, so the full estimated price goes
// back.
func (e Engine) ExpireStale(ctx context.Context) ([]domain.Task, error) {
	deadline := time.Duration(e.Config.Consensus.PendingDeadlineHours) * time.Hour
	cutoff := e.now().UTC().Add(-deadline).Format(time.RFC3339)
	stuck, err := e.Repo.ListStuckTasks(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var expired []domain.Task
	for _, t := range stuck {
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return expired, err
		}
		won, err := e.Repo.TransitionTaskStatus(ctx, tx, t.ID, domain.TaskExpired,
			domain.TaskOpen, domain.TaskAssigned, domain.TaskInProgress)
		if err != nil {
			tx.Rollback()
			return expired, err
		}
		if !won {
			tx.Rollback()
			continue
		}
		if err := e.Payout.Refund(ctx, tx, t.ID, t.AgentID, t.EstPrice); err != nil {
			tx.Rollback()
			return expired, err
		}
		if err := e.Events.Append(ctx, tx, "task.expired", "task", t.ID, "system", events.EventPayload{
			"refund": t.EstPrice,
		}); err != nil {
			tx.Rollback()
			return expired, err
		}
		if err := tx.Commit(); err != nil {
			return expired, err
		}
		t.Status = domain.TaskExpired
		expired = append(expired, t)
	}
	return expired, nil
}

// CancelTask lets the posting agent withdraw a task before any responses
// arrive. The full escrow goes back; once a submission exists the task must
// run to adjudication or expiry.
func (e Engine) CancelTask(ctx context.Context, taskID, agentID string) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if t.AgentID != agentID {
		return domain.Task{}, ErrNotTaskOwner
	}
	submitted, err := e.Repo.CountSubmitted(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if submitted > 0 {
		return domain.Task{}, ErrNotCancellable
	}
	won, err := e.Repo.TransitionTaskStatus(ctx, tx, taskID, domain.TaskCancelled,
		domain.TaskOpen, domain.TaskAssigned)
	if err != nil {
		return domain.Task{}, err
	}
	if !won {
		if t.Status == domain.TaskCompleted {
			return t, ErrAlreadyAdjudicated
		}
		return domain.Task{}, ErrTaskNotOpen
	}
	if err := e.Payout.Refund(ctx, tx, taskID, agentID, t.EstPrice); err != nil {
		return domain.Task{}, err
	}
	if err := e.Events.Append(ctx, tx, "task.cancelled", "task", taskID, agentID, events.EventPayload{
		"refund": t.EstPrice,
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.Status = domain.TaskCancelled
	return t, nil
}

// CashOut empties a worker's available balance and returns the amount
// withdrawn. Concurrent credits retry against the fresh balance.
func (e Engine) CashOut(ctx context.Context, workerID string) (float64, error) {
	for attempt := 0; attempt < 5; attempt++ {
		w, err := e.Repo.GetWorker(ctx, workerID)
		if err != nil {
			return 0, err
		}
		if w.AvailableBalance <= 0 {
			return 0, validationf("nothing to cash out")
		}
		tx, err := e.DB.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		ok, err := e.Repo.CashOutWorker(ctx, tx, workerID, w.AvailableBalance)
		if err != nil {
			tx.Rollback()
			return 0, err
		}
		if !ok {
			tx.Rollback()
			continue
		}
		if err := e.Events.Append(ctx, tx, "worker.cashout", "worker", workerID, workerID, events.EventPayload{
			"amount": w.AvailableBalance,
		}); err != nil {
			tx.Rollback()
			return 0, err
		}
		if err := tx.Commit(); err != nil {
			return 0, err
		}
		return w.AvailableBalance, nil
	}
	return 0, fmt.Errorf("cash out for worker %s kept conflicting, try again", workerID)
}
