package repo

import (
	"context"
	"database/sql"
	"strings"

	"jurybox/internal/domain"
)

const assignmentColumns = `id,task_id,worker_id,status,response_json,submitted_at,created_at`

func scanAssignment(scan func(dest ...any) error) (domain.Assignment, error) {
	var a domain.Assignment
	var response, submittedAt sql.NullString
	err := scan(&a.ID, &a.TaskID, &a.WorkerID, &a.Status, &response, &submittedAt, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if response.Valid {
		a.ResponseJSON = &response.String
	}
	if submittedAt.Valid {
		a.SubmittedAt = &submittedAt.String
	}
	return a, nil
}

// ClaimSlot inserts an assignment only while the task has a free slot. The
// slot check and the insert are one statement, so two workers racing for the
// last slot cannot both get a row; the loser sees zero rows affected. The
// UNIQUE(task_id, worker_id) constraint backstops duplicate claims.
func (r Repo) ClaimSlot(ctx context.Context, ex execer, a domain.Assignment, quota int) (bool, error) {
	if ex == nil {
		ex = r.DB
	}
	res, err := ex.ExecContext(ctx, `INSERT INTO assignments(id,task_id,worker_id,status,created_at)
SELECT ?,?,?,?,? WHERE (SELECT COUNT(*) FROM assignments WHERE task_id=?) < ?`,
		a.ID, a.TaskID, a.WorkerID, a.Status, a.CreatedAt, a.TaskID, quota)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// IsUniqueViolation reports whether an error is the duplicate-claim
// constraint firing.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}

func (r Repo) GetAssignment(ctx context.Context, q querier, taskID, workerID string) (domain.Assignment, error) {
	if q == nil {
		q = r.DB
	}
	row := q.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE task_id=? AND worker_id=?`, taskID, workerID)
	return scanAssignment(row.Scan)
}

// SubmitResponse moves an assignment to submitted, guarded so a response
// lands at most once.
func (r Repo) SubmitResponse(ctx context.Context, ex execer, assignmentID, responseJSON, submittedAt string) (bool, error) {
	if ex == nil {
		ex = r.DB
	}
	res, err := ex.ExecContext(ctx, `UPDATE assignments SET status=?, response_json=?, submitted_at=? WHERE id=? AND status=?`,
		domain.AssignmentSubmitted, responseJSON, submittedAt, assignmentID, domain.AssignmentAssigned)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r Repo) SetAssignmentStatuses(ctx context.Context, tx *sql.Tx, ids []string, status string) error {
	if len(ids) == 0 {
		return nil
	}
	holes, args := placeholders(ids)
	args = append([]any{status}, args...)
	_, err := tx.ExecContext(ctx, `UPDATE assignments SET status=? WHERE id IN (`+holes+`)`, args...)
	return err
}

func (r Repo) CountAssignments(ctx context.Context, taskID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments WHERE task_id=?`, taskID).Scan(&n)
	return n, err
}

func (r Repo) CountSubmitted(ctx context.Context, q querier, taskID string) (int, error) {
	if q == nil {
		q = r.DB
	}
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM assignments WHERE task_id=? AND status=?`, taskID, domain.AssignmentSubmitted).Scan(&n)
	return n, err
}

func (r Repo) ListAssignments(ctx context.Context, taskID string) ([]domain.Assignment, error) {
	return r.queryAssignments(ctx, r.DB,
		`SELECT `+assignmentColumns+` FROM assignments WHERE task_id=? ORDER BY created_at ASC, id ASC`, taskID)
}

// ListSubmitted returns submitted assignments in submission order, the order
// consensus tie-breaks depend on.
func (r Repo) ListSubmitted(ctx context.Context, q querier, taskID string) ([]domain.Assignment, error) {
	if q == nil {
		q = r.DB
	}
	return r.queryAssignments(ctx, q,
		`SELECT `+assignmentColumns+` FROM assignments WHERE task_id=? AND status=? ORDER BY submitted_at ASC, id ASC`,
		taskID, domain.AssignmentSubmitted)
}

func (r Repo) ListWorkerAssignments(ctx context.Context, workerID string) ([]domain.Assignment, error) {
	return r.queryAssignments(ctx, r.DB,
		`SELECT `+assignmentColumns+` FROM assignments WHERE worker_id=? ORDER BY created_at DESC, id DESC`, workerID)
}

func (r Repo) queryAssignments(ctx context.Context, q querier, query string, args ...any) ([]domain.Assignment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
