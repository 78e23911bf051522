package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// placeholders renders an IN (...) clause for the given values.
func placeholders(values []string) (string, []any) {
	holes := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		holes[i] = "?"
		args[i] = v
	}
	return strings.Join(holes, ","), args
}

// TransitionTaskStatus is the compare-and-set every lifecycle move goes
// through: the update applies only while the task is still in one of the
// expected statuses, and the caller learns whether it won.
func (r Repo) TransitionTaskStatus(ctx context.Context, ex execer, taskID, to string, from ...string) (bool, error) {
	if ex == nil {
		ex = r.DB
	}
	holes, args := placeholders(from)
	args = append([]any{to, taskID}, args...)
	res, err := ex.ExecContext(ctx, fmt.Sprintf(`UPDATE tasks SET status=? WHERE id=? AND status IN (%s)`, holes), args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
