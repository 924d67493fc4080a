package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mediavault/tubefetch/internal/models"
)

// ErrInsufficientBalance is returned when a debit would drive the balance
// negative. The balance is left untouched in that case, never clamped.
var ErrInsufficientBalance = errors.New("insufficient token balance")

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Balance(ctx context.Context, userID int64) (int, error) {
	var balance int
	err := r.db.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// Credit increases the balance and appends the matching transaction record in
// one database transaction, so the cached balance always equals the ledger sum.
func (r *LedgerRepository) Credit(ctx context.Context, userID int64, amount int, actorID *int64, reason string) (int, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin credit tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE users SET balance = balance + ?, updated_at = NOW() WHERE id = ?`, amount, userID); err != nil {
		return 0, fmt.Errorf("add balance: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO token_transactions (user_id, amount, kind, reason, actor_id) VALUES (?, ?, ?, ?, ?)`,
		userID, amount, models.TransactionCredit, reason, actorID); err != nil {
		return 0, fmt.Errorf("insert credit transaction: %w", err)
	}

	newBalance, err := balanceInTx(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit credit tx: %w", err)
	}
	return newBalance, nil
}

// Debit decreases the balance when it covers the amount. The conditional
// update is the single writer guard: two concurrent debits for the same user
// cannot both pass the balance check on a stale read.
func (r *LedgerRepository) Debit(ctx context.Context, userID int64, amount int, reason string) (int, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("begin debit tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET balance = balance - ?, updated_at = NOW() WHERE id = ? AND balance >= ?`,
		amount, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("subtract balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("debit rows affected: %w", err)
	}
	if affected == 0 {
		return 0, ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO token_transactions (user_id, amount, kind, reason) VALUES (?, ?, ?, ?)`,
		userID, -amount, models.TransactionDebit, reason); err != nil {
		return 0, fmt.Errorf("insert debit transaction: %w", err)
	}

	newBalance, err := balanceInTx(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit debit tx: %w", err)
	}
	return newBalance, nil
}

func balanceInTx(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	var balance int
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM users WHERE id = ?`, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read balance in tx: %w", err)
	}
	return balance, nil
}

func (r *LedgerRepository) History(ctx context.Context, userID int64, limit int) ([]models.TokenTransaction, error) {
	const query = `
SELECT id, user_id, amount, kind, COALESCE(reason, ''), actor_id, created_at
FROM token_transactions
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.TokenTransaction
	for rows.Next() {
		var t models.TokenTransaction
		var actor sql.NullInt64
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Kind, &t.Reason, &actor, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if actor.Valid {
			t.ActorID = &actor.Int64
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}
