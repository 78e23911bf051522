// Package payout moves money out of the platform once a task settles.
// The ledger-backed gateway credits worker balances inside the caller's
// transaction; a real money-movement integration would implement Gateway
// against an external processor instead.
package payout

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"jurybox/internal/domain"
	"jurybox/internal/repo"
)

// Item is a single worker's share of a settled task.
type Item struct {
	WorkerID string
	Amount   float64
}

// Gateway releases funds for settled tasks and refunds agents for
// tasks that never settle.
type Gateway interface {
	Release(ctx context.Context, tx *sql.Tx, taskID string, items []Item) error
	Refund(ctx context.Context, tx *sql.Tx, taskID, agentID string, amount float64) error
}

// Ledger is the built-in Gateway. Releases are recorded in the payouts
// table keyed by (task, worker), so replaying a settlement credits each
// worker at most once.
type Ledger struct {
	Repo repo.Repo
	Now  func() time.Time
}

func New(r repo.Repo) Ledger {
	return Ledger{Repo: r, Now: time.Now}
}

func (l Ledger) Release(ctx context.Context, tx *sql.Tx, taskID string, items []Item) error {
	now := l.Now().UTC().Format(time.RFC3339)
	for _, it := range items {
		p := domain.Payout{
			TaskID:    taskID,
			WorkerID:  it.WorkerID,
			Amount:    it.Amount,
			CreatedAt: now,
		}
		inserted, err := l.Repo.InsertPayout(ctx, tx, p)
		if err != nil {
			return fmt.Errorf("record payout for worker %s: %w", it.WorkerID, err)
		}
		if !inserted {
			continue
		}
		if err := l.Repo.CreditWorkerBalance(ctx, tx, it.WorkerID, it.Amount); err != nil {
			return fmt.Errorf("credit worker %s: %w", it.WorkerID, err)
		}
	}
	return nil
}

func (l Ledger) Refund(ctx context.Context, tx *sql.Tx, taskID, agentID string, amount float64) error {
	if err := l.Repo.CreditAgentBalance(ctx, tx, agentID, amount); err != nil {
		return fmt.Errorf("refund agent %s for task %s: %w", agentID, taskID, err)
	}
	return nil
}
