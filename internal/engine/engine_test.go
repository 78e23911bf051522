package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"jurybox/internal/config"
	"jurybox/internal/db"
	"jurybox/internal/domain"
	"jurybox/internal/engine"
	"jurybox/internal/migrate"
	"jurybox/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default())
	// Ticking clock so submissions get distinct timestamps.
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	eng.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return &testEnv{Engine: eng, Ctx: context.Background()}
}

func (env *testEnv) fundedAgent(t *testing.T, balance float64) domain.Agent {
	t.Helper()
	a, _, err := env.Engine.RegisterAgent(env.Ctx, "acme", "")
	if err != nil {
		t.Fatalf("register agent: %v", err)
	}
	if balance > 0 {
		a, err = env.Engine.Deposit(env.Ctx, a.ID, balance)
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	return a
}

func (env *testEnv) worker(t *testing.T, username string, trophies int) domain.Worker {
	t.Helper()
	w, err := env.Engine.RegisterWorker(env.Ctx, username)
	if err != nil {
		t.Fatalf("register worker: %v", err)
	}
	if trophies > 0 {
		w = env.setTrophies(t, w.ID, trophies)
	}
	return w
}

func (env *testEnv) setTrophies(t *testing.T, workerID string, trophies int) domain.Worker {
	t.Helper()
	w, err := env.Engine.Repo.GetWorker(env.Ctx, workerID)
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	w.Trophies = trophies
	ok, err := env.Engine.Repo.UpdateWorkerCAS(env.Ctx, nil, w)
	if err != nil || !ok {
		t.Fatalf("seed trophies: ok=%v err=%v", ok, err)
	}
	w.Version++
	return w
}

func (env *testEnv) setTrust(t *testing.T, workerID string, score float64) {
	t.Helper()
	w, err := env.Engine.Repo.GetWorker(env.Ctx, workerID)
	if err != nil {
		t.Fatalf("get worker: %v", err)
	}
	w.TrustScore = score
	ok, err := env.Engine.Repo.UpdateWorkerCAS(env.Ctx, nil, w)
	if err != nil || !ok {
		t.Fatalf("seed trust: ok=%v err=%v", ok, err)
	}
}

func (env *testEnv) createTask(t *testing.T, agentID string, importance int, budget float64) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		AgentID:    agentID,
		Payload:    json.RawMessage(`{"type":"label","question":"cat or dog?"}`),
		Importance: importance,
		MaxBudget:  budget,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestCreateTaskDebitsAgent(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)

	task := env.createTask(t, agent.ID, 10, 30)
	if task.Status != domain.TaskOpen {
		t.Fatalf("status = %s, want open", task.Status)
	}
	if task.RequiredWorkers != 1 || task.MinTrophies != 100 {
		t.Fatalf("routing = %d workers / %d trophies", task.RequiredWorkers, task.MinTrophies)
	}
	if task.EstPrice != 30 {
		t.Fatalf("est price = %v, want 30", task.EstPrice)
	}
	if task.WorkerInstructions == "" || task.ExpectedResponseType != "label" {
		t.Fatalf("instructions not derived: %+v", task)
	}

	a, err := env.Engine.Repo.GetAgent(env.Ctx, agent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.Balance != 70 {
		t.Fatalf("balance = %v, want 70", a.Balance)
	}
}

func TestCreateTaskInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 5)

	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		AgentID:    agent.ID,
		Payload:    json.RawMessage(`{"type":"label"}`),
		Importance: 10,
		MaxBudget:  30,
	})
	if !errors.Is(err, engine.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	a, _ := env.Engine.Repo.GetAgent(env.Ctx, agent.ID)
	if a.Balance != 5 {
		t.Fatalf("balance = %v, want untouched 5", a.Balance)
	}
}

func TestCreateTaskCompensatesWhenInsertFails(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	if _, err := env.Engine.DB.Exec(`DROP TABLE tasks`); err != nil {
		t.Fatal(err)
	}

	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		AgentID:    agent.ID,
		Payload:    json.RawMessage(`{"type":"label"}`),
		Importance: 10,
		MaxBudget:  30,
	})
	if err == nil {
		t.Fatal("expected create failure")
	}
	a, getErr := env.Engine.Repo.GetAgent(env.Ctx, agent.ID)
	if getErr != nil {
		t.Fatal(getErr)
	}
	if a.Balance != 100 {
		t.Fatalf("balance = %v, want 100 after refund", a.Balance)
	}
}

func TestClaimEligibilityGate(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 10, 10)
	novice := env.worker(t, "novice", 0)

	_, err := env.Engine.Claim(env.Ctx, task.ID, novice.ID)
	if !errors.Is(err, engine.ErrNotEligible) {
		t.Fatalf("err = %v, want ErrNotEligible", err)
	}
}

func TestLowImportanceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 10, 10)
	w := env.worker(t, "alice", 100)

	a, err := env.Engine.Claim(env.Ctx, task.ID, w.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if a.Status != domain.AssignmentAssigned {
		t.Fatalf("assignment status = %s", a.Status)
	}
	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.Status != domain.TaskAssigned {
		t.Fatalf("task status = %s, want assigned", got.Status)
	}

	if _, err := env.Engine.Submit(env.Ctx, task.ID, w.ID, json.RawMessage(`{"answer":"cat"}`)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, _ = env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.Status != domain.TaskCompleted {
		t.Fatalf("task status = %s, want completed", got.Status)
	}
	if got.ResultJSON == nil || *got.ResultJSON != `{"answer":"cat"}` {
		t.Fatalf("result = %v", got.ResultJSON)
	}

	fresh, _ := env.Engine.Repo.GetWorker(env.Ctx, w.ID)
	if fresh.AvailableBalance != 10 {
		t.Fatalf("balance = %v, want 10", fresh.AvailableBalance)
	}
	if fresh.Trophies != 110 {
		t.Fatalf("trophies = %d, want 110", fresh.Trophies)
	}
	if fresh.TrustScore != 0.52 {
		t.Fatalf("trust = %v, want 0.52", fresh.TrustScore)
	}
	if fresh.TotalCompleted != 1 || fresh.AccuracyRate != 1 {
		t.Fatalf("stats = %+v", fresh)
	}
}

func TestMediumMajorityLifecycle(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 40, 10)
	if task.RequiredWorkers != 3 {
		t.Fatalf("required = %d, want 3", task.RequiredWorkers)
	}
	if task.PricePerWorker != 3.33 {
		t.Fatalf("price = %v, want 3.33", task.PricePerWorker)
	}

	var workers []domain.Worker
	for i := 0; i < 3; i++ {
		w := env.worker(t, fmt.Sprintf("w%d", i), 400)
		workers = append(workers, w)
		if _, err := env.Engine.Claim(env.Ctx, task.ID, w.ID); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
	}

	answers := []string{`{"answer":"cat"}`, `{"answer":"cat"}`, `{"answer":"dog"}`}
	for i, w := range workers {
		if _, err := env.Engine.Submit(env.Ctx, task.ID, w.ID, json.RawMessage(answers[i])); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.Status != domain.TaskCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.ResultJSON == nil || *got.ResultJSON != `{"answer":"cat"}` {
		t.Fatalf("result = %v", got.ResultJSON)
	}

	for i, w := range workers {
		fresh, _ := env.Engine.Repo.GetWorker(env.Ctx, w.ID)
		if i < 2 {
			if fresh.AvailableBalance != 3.33 {
				t.Fatalf("worker %d balance = %v, want 3.33", i, fresh.AvailableBalance)
			}
			if fresh.Trophies != 425 {
				t.Fatalf("worker %d trophies = %d, want 425", i, fresh.Trophies)
			}
		} else {
			if fresh.AvailableBalance != 0 {
				t.Fatalf("rejected worker paid %v", fresh.AvailableBalance)
			}
			if fresh.TrustScore != 0.47 {
				t.Fatalf("rejected trust = %v, want 0.47", fresh.TrustScore)
			}
			if fresh.TotalCompleted != 1 {
				t.Fatalf("rejection must still count a completion")
			}
		}
	}

	a, _ := env.Engine.Repo.GetAssignment(env.Ctx, nil, task.ID, workers[2].ID)
	if a.Status != domain.AssignmentRejected {
		t.Fatalf("assignment status = %s, want rejected", a.Status)
	}
}

func TestHighImportanceWeightedConsensus(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 200)
	task := env.createTask(t, agent.ID, 80, 50)
	if task.RequiredWorkers != 5 {
		t.Fatalf("required = %d, want 5", task.RequiredWorkers)
	}

	trusted := []float64{0.9, 0.9, 0.1, 0.1, 0.1}
	answers := []string{`"X"`, `"X"`, `"Y"`, `"Y"`, `"Y"`}
	var workers []domain.Worker
	for i := 0; i < 5; i++ {
		w := env.worker(t, fmt.Sprintf("h%d", i), 800)
		env.setTrust(t, w.ID, trusted[i])
		workers = append(workers, w)
		if _, err := env.Engine.Claim(env.Ctx, task.ID, w.ID); err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
	}
	for i, w := range workers {
		if _, err := env.Engine.Submit(env.Ctx, task.ID, w.ID, json.RawMessage(answers[i])); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	// The two high-trust workers carry 1.8 of 2.1 total weight, so their
	// answer beats the three-headcount majority.
	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.Status != domain.TaskCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.ResultJSON == nil || *got.ResultJSON != `"X"` {
		t.Fatalf("result = %v, want minority-by-count winner", got.ResultJSON)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 10, 10)
	w := env.worker(t, "alice", 100)
	if _, err := env.Engine.Claim(env.Ctx, task.ID, w.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Submit(env.Ctx, task.ID, w.ID, json.RawMessage(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}

	before, _ := env.Engine.Repo.GetWorker(env.Ctx, w.ID)
	got, err := env.Engine.Evaluate(env.Ctx, task.ID, "tester")
	if !errors.Is(err, engine.ErrAlreadyAdjudicated) {
		t.Fatalf("err = %v, want ErrAlreadyAdjudicated", err)
	}
	if got.ResultJSON == nil || *got.ResultJSON != `{"a":1}` {
		t.Fatalf("stored result not returned: %v", got.ResultJSON)
	}
	after, _ := env.Engine.Repo.GetWorker(env.Ctx, w.ID)
	if after.TrustScore != before.TrustScore || after.AvailableBalance != before.AvailableBalance {
		t.Fatalf("re-evaluation mutated worker: %+v vs %+v", before, after)
	}
	payouts, _ := env.Engine.Repo.ListPayouts(env.Ctx, task.ID)
	if len(payouts) != 1 {
		t.Fatalf("payouts = %d, want 1", len(payouts))
	}
}

func TestEvaluateNotReachedFallsBack(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 40, 9)
	w := env.worker(t, "solo", 400)
	if _, err := env.Engine.Claim(env.Ctx, task.ID, w.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Submit(env.Ctx, task.ID, w.ID, json.RawMessage(`"A"`)); err != nil {
		t.Fatal(err)
	}

	// One submission cannot settle a medium-importance task.
	got, err := env.Engine.Evaluate(env.Ctx, task.ID, "tester")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got.Status != domain.TaskInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
	fresh, _ := env.Engine.Repo.GetWorker(env.Ctx, w.ID)
	if fresh.TotalCompleted != 0 {
		t.Fatalf("pending round must not touch reputation")
	}
}

func TestConcurrentClaimsSingleSlot(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 10, 10)

	const n = 8
	workers := make([]domain.Worker, n)
	for i := range workers {
		workers[i] = env.worker(t, fmt.Sprintf("c%d", i), 100)
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.Engine.Claim(env.Ctx, task.ID, workers[i].ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, engine.ErrSlotRaceLost), errors.Is(err, engine.ErrTaskNotOpen):
		default:
			t.Fatalf("claim %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
	count, _ := env.Engine.Repo.CountAssignments(env.Ctx, task.ID)
	if count != 1 {
		t.Fatalf("assignments = %d, want 1", count)
	}
}

func TestSubmitTwiceRejected(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 40, 9)
	w := env.worker(t, "alice", 400)
	if _, err := env.Engine.Claim(env.Ctx, task.ID, w.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Submit(env.Ctx, task.ID, w.ID, json.RawMessage(`"A"`)); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.Submit(env.Ctx, task.ID, w.ID, json.RawMessage(`"B"`))
	if !errors.Is(err, engine.ErrNotSubmittable) {
		t.Fatalf("err = %v, want ErrNotSubmittable", err)
	}
}

func TestSubmitWithoutClaim(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 40, 9)
	env.worker(t, "claimer", 400)
	w2 := env.worker(t, "stranger", 400)
	w1, _ := env.Engine.Repo.GetWorkerByUsername(env.Ctx, "claimer")
	if _, err := env.Engine.Claim(env.Ctx, task.ID, w1.ID); err != nil {
		t.Fatal(err)
	}

	_, err := env.Engine.Submit(env.Ctx, task.ID, w2.ID, json.RawMessage(`"A"`))
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestExpireStaleRefunds(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 40, 9)

	expired, err := env.Engine.ExpireStale(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 0 {
		t.Fatalf("fresh task reaped early")
	}

	env.Engine.Now = func() time.Time {
		return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	}
	expired, err = env.Engine.ExpireStale(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0].ID != task.ID {
		t.Fatalf("expired = %+v", expired)
	}

	got, _ := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	if got.Status != domain.TaskExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}
	a, _ := env.Engine.Repo.GetAgent(env.Ctx, agent.ID)
	if a.Balance != 100 {
		t.Fatalf("balance = %v, want full refund to 100", a.Balance)
	}

	w := env.worker(t, "late", 400)
	if _, err := env.Engine.Claim(env.Ctx, task.ID, w.ID); !errors.Is(err, engine.ErrTaskNotOpen) {
		t.Fatalf("claim on expired task: %v", err)
	}
}

func TestAvailableTasksFiltering(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 200)
	low := env.createTask(t, agent.ID, 5, 5)
	high := env.createTask(t, agent.ID, 90, 50)
	w := env.worker(t, "mid", 100)

	tasks, err := env.Engine.AvailableTasks(env.Ctx, w.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].ID != low.ID {
		t.Fatalf("available = %+v, want only the low task", tasks)
	}

	if _, err := env.Engine.Claim(env.Ctx, low.ID, w.ID); err != nil {
		t.Fatal(err)
	}
	tasks, _ = env.Engine.AvailableTasks(env.Ctx, w.ID, 0)
	if len(tasks) != 0 {
		t.Fatalf("claimed task still listed: %+v", tasks)
	}
	_ = high
}

func TestCashOut(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 10, 10)
	w := env.worker(t, "alice", 100)
	if _, err := env.Engine.Claim(env.Ctx, task.ID, w.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Submit(env.Ctx, task.ID, w.ID, json.RawMessage(`"A"`)); err != nil {
		t.Fatal(err)
	}

	amount, err := env.Engine.CashOut(env.Ctx, w.ID)
	if err != nil {
		t.Fatal(err)
	}
	if amount != 10 {
		t.Fatalf("cashed out %v, want 10", amount)
	}
	fresh, _ := env.Engine.Repo.GetWorker(env.Ctx, w.ID)
	if fresh.AvailableBalance != 0 {
		t.Fatalf("balance = %v after cashout", fresh.AvailableBalance)
	}
	if _, err := env.Engine.CashOut(env.Ctx, w.ID); err == nil {
		t.Fatal("second cashout should fail")
	}
}

func TestRegisterAgentIssuesKey(t *testing.T) {
	env := newTestEnv(t)
	a, rawKey, err := env.Engine.RegisterAgent(env.Ctx, "acme", "https://example.com/hook")
	if err != nil {
		t.Fatal(err)
	}
	if rawKey == "" {
		t.Fatal("no key returned")
	}
	key, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(rawKey))
	if err != nil {
		t.Fatalf("lookup key: %v", err)
	}
	if key.AgentID != a.ID {
		t.Fatalf("key agent = %s, want %s", key.AgentID, a.ID)
	}
}

func TestRegisterWorkerDuplicateUsername(t *testing.T) {
	env := newTestEnv(t)
	env.worker(t, "alice", 0)
	_, err := env.Engine.RegisterWorker(env.Ctx, "alice")
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestDepositValidation(t *testing.T) {
	env := newTestEnv(t)
	a := env.fundedAgent(t, 0)
	if _, err := env.Engine.Deposit(env.Ctx, a.ID, -5); err == nil {
		t.Fatal("negative deposit accepted")
	}
	if _, err := env.Engine.Deposit(env.Ctx, "nope", 5); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelTaskRefundsBeforeSubmissions(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 40, 9)

	if _, err := env.Engine.CancelTask(env.Ctx, task.ID, "someone-else"); !errors.Is(err, engine.ErrNotTaskOwner) {
		t.Fatalf("err = %v, want ErrNotTaskOwner", err)
	}

	cancelled, err := env.Engine.CancelTask(env.Ctx, task.ID, agent.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != domain.TaskCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}
	a, _ := env.Engine.Repo.GetAgent(env.Ctx, agent.ID)
	if a.Balance != 100 {
		t.Fatalf("balance = %v, want full refund to 100", a.Balance)
	}

	w := env.worker(t, "latecomer", 500)
	if _, err := env.Engine.Claim(env.Ctx, task.ID, w.ID); !errors.Is(err, engine.ErrTaskNotOpen) {
		t.Fatalf("claim after cancel: err = %v, want ErrTaskNotOpen", err)
	}
}

func TestCancelTaskRejectedAfterSubmission(t *testing.T) {
	env := newTestEnv(t)
	agent := env.fundedAgent(t, 100)
	task := env.createTask(t, agent.ID, 40, 9)
	w := env.worker(t, "ann", 500)

	if _, err := env.Engine.Claim(env.Ctx, task.ID, w.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Submit(env.Ctx, task.ID, w.ID, json.RawMessage(`{"answer":"cat"}`)); err != nil {
		t.Fatal(err)
	}

	if _, err := env.Engine.CancelTask(env.Ctx, task.ID, agent.ID); !errors.Is(err, engine.ErrNotCancellable) {
		t.Fatalf("err = %v, want ErrNotCancellable", err)
	}
}
