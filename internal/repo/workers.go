package repo

import (
	"context"
	"database/sql"

	"jurybox/internal/domain"
)

const workerColumns = `id,username,trust_score,trust_tier,trophies,total_completed,accuracy_rate,completion_rate,available_balance,version,created_at`

func scanWorker(scan func(dest ...any) error) (domain.Worker, error) {
	var w domain.Worker
	err := scan(&w.ID, &w.Username, &w.TrustScore, &w.TrustTier, &w.Trophies,
		&w.TotalCompleted, &w.AccuracyRate, &w.CompletionRate, &w.AvailableBalance, &w.Version, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) InsertWorker(ctx context.Context, ex execer, w domain.Worker) error {
	if ex == nil {
		ex = r.DB
	}
	_, err := ex.ExecContext(ctx, `INSERT INTO workers(`+workerColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		w.ID, w.Username, w.TrustScore, w.TrustTier, w.Trophies,
		w.TotalCompleted, w.AccuracyRate, w.CompletionRate, w.AvailableBalance, w.Version, w.CreatedAt)
	return err
}

func (r Repo) GetWorker(ctx context.Context, id string) (domain.Worker, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE id=?`, id)
	return scanWorker(row.Scan)
}

func (r Repo) GetWorkerTx(ctx context.Context, tx *sql.Tx, id string) (domain.Worker, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE id=?`, id)
	return scanWorker(row.Scan)
}

func (r Repo) GetWorkerByUsername(ctx context.Context, username string) (domain.Worker, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+workerColumns+` FROM workers WHERE username=?`, username)
	return scanWorker(row.Scan)
}

// UpdateWorkerCAS writes a worker's mutable reputation fields, guarded by
// the version column. A false return means the row moved underneath the
// caller, who re-reads and retries.
func (r Repo) UpdateWorkerCAS(ctx context.Context, ex execer, w domain.Worker) (bool, error) {
	if ex == nil {
		ex = r.DB
	}
	res, err := ex.ExecContext(ctx, `UPDATE workers SET trust_score=?, trust_tier=?, trophies=?, total_completed=?, accuracy_rate=?, completion_rate=?, available_balance=?, version=version+1 WHERE id=? AND version=?`,
		w.TrustScore, w.TrustTier, w.Trophies, w.TotalCompleted, w.AccuracyRate, w.CompletionRate, w.AvailableBalance, w.ID, w.Version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CreditWorkerBalance adds to a worker's available balance atomically.
func (r Repo) CreditWorkerBalance(ctx context.Context, ex execer, id string, amount float64) error {
	if ex == nil {
		ex = r.DB
	}
	_, err := ex.ExecContext(ctx, `UPDATE workers SET available_balance=available_balance+?, version=version+1 WHERE id=?`, amount, id)
	return err
}

// CashOutWorker zeroes the available balance if it still holds the expected
// amount; concurrent credits cause a retry at the caller.
func (r Repo) CashOutWorker(ctx context.Context, ex execer, id string, expected float64) (bool, error) {
	if ex == nil {
		ex = r.DB
	}
	res, err := ex.ExecContext(ctx, `UPDATE workers SET available_balance=0, version=version+1 WHERE id=? AND available_balance=?`, id, expected)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r Repo) Leaderboard(ctx context.Context, limit int) ([]domain.Worker, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+workerColumns+` FROM workers ORDER BY trophies DESC, trust_score DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Worker
	for rows.Next() {
		w, err := scanWorker(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}
