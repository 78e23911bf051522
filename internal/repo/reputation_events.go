package repo

import (
	"context"

	"jurybox/internal/domain"
)

// AppendReputationEvent writes an immutable audit row; there is no update
// or delete path for these.
func (r Repo) AppendReputationEvent(ctx context.Context, ex execer, e domain.ReputationEvent) error {
	if ex == nil {
		ex = r.DB
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO reputation_events(worker_id,task_id,event_type,score_delta,created_at) VALUES (?,?,?,?,?)`,
		e.WorkerID, e.TaskID, e.EventType, e.ScoreDelta, e.CreatedAt)
	return err
}

func (r Repo) ListReputationEvents(ctx context.Context, workerID string, limit int) ([]domain.ReputationEvent, error) {
	query := `SELECT id,worker_id,task_id,event_type,score_delta,created_at FROM reputation_events WHERE worker_id=? ORDER BY id DESC`
	args := []any{workerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ReputationEvent
	for rows.Next() {
		var e domain.ReputationEvent
		if err := rows.Scan(&e.ID, &e.WorkerID, &e.TaskID, &e.EventType, &e.ScoreDelta, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// InsertPayout records a released payment; the (task, worker) primary key
// makes retries idempotent. Returns false when the payout already exists.
func (r Repo) InsertPayout(ctx context.Context, ex execer, p domain.Payout) (bool, error) {
	if ex == nil {
		ex = r.DB
	}
	res, err := ex.ExecContext(ctx, `INSERT OR IGNORE INTO payouts(task_id,worker_id,amount,created_at) VALUES (?,?,?,?)`,
		p.TaskID, p.WorkerID, p.Amount, p.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r Repo) ListPayouts(ctx context.Context, taskID string) ([]domain.Payout, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT task_id,worker_id,amount,created_at FROM payouts WHERE task_id=? ORDER BY worker_id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Payout
	for rows.Next() {
		var p domain.Payout
		if err := rows.Scan(&p.TaskID, &p.WorkerID, &p.Amount, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
