package repo

import (
	"context"
	"database/sql"

	"jurybox/internal/domain"
)

func scanAgent(scan func(dest ...any) error) (domain.Agent, error) {
	var a domain.Agent
	var webhook sql.NullString
	err := scan(&a.ID, &a.Name, &a.Balance, &webhook, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if webhook.Valid {
		a.WebhookURL = webhook.String
	}
	return a, err
}

func (r Repo) InsertAgent(ctx context.Context, tx *sql.Tx, a domain.Agent) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `INSERT INTO agents(id,name,balance,webhook_url,created_at) VALUES (?,?,?,?,?)`,
		a.ID, a.Name, a.Balance, nullable(a.WebhookURL), a.CreatedAt)
	return err
}

func (r Repo) GetAgent(ctx context.Context, id string) (domain.Agent, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,name,balance,webhook_url,created_at FROM agents WHERE id=?`, id)
	return scanAgent(row.Scan)
}

// DebitAgentBalance subtracts the amount only while the balance covers it —
// the guard against a double-spend from concurrent task creations. A false
// return means insufficient funds (or a concurrent debit got there first).
func (r Repo) DebitAgentBalance(ctx context.Context, ex execer, id string, amount float64) (bool, error) {
	if ex == nil {
		ex = r.DB
	}
	res, err := ex.ExecContext(ctx, `UPDATE agents SET balance=balance-? WHERE id=? AND balance>=?`, amount, id, amount)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CreditAgentBalance adds funds atomically (deposits, refunds).
func (r Repo) CreditAgentBalance(ctx context.Context, ex execer, id string, amount float64) error {
	if ex == nil {
		ex = r.DB
	}
	_, err := ex.ExecContext(ctx, `UPDATE agents SET balance=balance+? WHERE id=?`, amount, id)
	return err
}
