package repo

import (
	"context"
	"database/sql"
	"strings"

	"jurybox/internal/domain"
)

const taskColumns = `id,agent_id,input_payload,importance,max_budget,required_workers,min_trophies,price_per_worker,est_price,trophy_reward,worker_instructions,expected_response_type,status,result_json,created_at,completed_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var result, completedAt sql.NullString
	err := scan(&t.ID, &t.AgentID, &t.InputPayload, &t.Importance, &t.MaxBudget,
		&t.RequiredWorkers, &t.MinTrophies, &t.PricePerWorker, &t.EstPrice, &t.TrophyReward,
		&t.WorkerInstructions, &t.ExpectedResponseType, &t.Status, &result, &t.CreatedAt, &completedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if result.Valid {
		t.ResultJSON = &result.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.AgentID, t.InputPayload, t.Importance, t.MaxBudget,
		t.RequiredWorkers, t.MinTrophies, t.PricePerWorker, t.EstPrice, t.TrophyReward,
		t.WorkerInstructions, t.ExpectedResponseType, t.Status, nullableStringPtr(t.ResultJSON),
		t.CreatedAt, nullableStringPtr(t.CompletedAt))
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	return scanTask(row.Scan)
}

// CompleteTask stores the adjudicated result. Status is already `evaluating`
// at this point; the transition to completed is unconditional inside the
// evaluate winner's transaction.
func (r Repo) CompleteTask(ctx context.Context, tx *sql.Tx, id, resultJSON, completedAt string) error {
	_, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, result_json=?, completed_at=? WHERE id=?`,
		domain.TaskCompleted, resultJSON, completedAt, id)
	return err
}

type TaskFilters struct {
	AgentID string
	Status  string
	Limit   int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.AgentID != "" {
		clauses = append(clauses, "agent_id=?")
		args = append(args, f.AgentID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.queryTasks(ctx, query, args...)
}

// ListAvailableTasks returns claimable tasks for a worker: open slots, the
// worker meets the trophy bar, and the worker holds no assignment yet.
func (r Repo) ListAvailableTasks(ctx context.Context, workerID string, trophies, limit int) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks
WHERE status IN (?,?)
  AND min_trophies <= ?
  AND (SELECT COUNT(*) FROM assignments a WHERE a.task_id=tasks.id) < required_workers
  AND NOT EXISTS (SELECT 1 FROM assignments a WHERE a.task_id=tasks.id AND a.worker_id=?)
ORDER BY created_at ASC, id ASC`
	args := []any{domain.TaskOpen, domain.TaskAssigned, trophies, workerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return r.queryTasks(ctx, query, args...)
}

// ListStuckTasks returns non-terminal tasks created before the cutoff that
// never reached consensus, for the reaper.
func (r Repo) ListStuckTasks(ctx context.Context, cutoff string) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status IN (?,?,?) AND created_at < ? ORDER BY created_at ASC`
	return r.queryTasks(ctx, query, domain.TaskOpen, domain.TaskAssigned, domain.TaskInProgress, cutoff)
}

func (r Repo) queryTasks(ctx context.Context, query string, args ...any) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
