package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mediavault/tubefetch/internal/models"
)

type TopupRepository struct {
	db *sql.DB
}

func NewTopupRepository(db *sql.DB) *TopupRepository {
	return &TopupRepository{db: db}
}

func (r *TopupRepository) Create(ctx context.Context, req *models.TopupRequest) error {
	const query = `
INSERT INTO topup_requests (user_id, token_amount, package_id, price_minor_units, status)
VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, req.UserID, req.TokenAmount, req.PackageID, req.PriceMinorUnits, models.TopupPending)
	if err != nil {
		return fmt.Errorf("insert topup request: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	req.ID = id
	req.Status = models.TopupPending
	return nil
}

func (r *TopupRepository) FindByID(ctx context.Context, id int64) (*models.TopupRequest, error) {
	const query = `
SELECT id, user_id, token_amount, package_id, price_minor_units, status, proof_received,
       operator_actor_id, COALESCE(notes, ''), created_at, processed_at
FROM topup_requests WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)
	req, err := scanTopup(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan topup request: %w", err)
	}
	return req, nil
}

func (r *TopupRepository) MarkProofReceived(ctx context.Context, id int64) error {
	const query = `UPDATE topup_requests SET proof_received = 1 WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark proof received: %w", err)
	}
	return nil
}

// Decide flips a pending request to its terminal status. The WHERE clause is
// the compare-and-swap: of two racing operator decisions exactly one sees a
// row affected, the other gets false.
func (r *TopupRepository) Decide(ctx context.Context, id int64, status models.TopupStatus, operatorID int64, notes string) (bool, error) {
	const query = `
UPDATE topup_requests
SET status = ?, operator_actor_id = ?, notes = NULLIF(?, ''), processed_at = NOW()
WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, query, status, operatorID, notes, id, models.TopupPending)
	if err != nil {
		return false, fmt.Errorf("decide topup request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("topup rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *TopupRepository) ListPending(ctx context.Context) ([]models.TopupRequest, error) {
	const query = `
SELECT id, user_id, token_amount, package_id, price_minor_units, status, proof_received,
       operator_actor_id, COALESCE(notes, ''), created_at, processed_at
FROM topup_requests
WHERE status = ?
ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query, models.TopupPending)
	if err != nil {
		return nil, fmt.Errorf("list pending topups: %w", err)
	}
	defer rows.Close()

	var reqs []models.TopupRequest
	for rows.Next() {
		req, err := scanTopup(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan topup row: %w", err)
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}

func scanTopup(scan func(dest ...any) error) (*models.TopupRequest, error) {
	var t models.TopupRequest
	var proof int
	var operator sql.NullInt64
	var processed sql.NullTime
	if err := scan(&t.ID, &t.UserID, &t.TokenAmount, &t.PackageID, &t.PriceMinorUnits, &t.Status,
		&proof, &operator, &t.Notes, &t.CreatedAt, &processed); err != nil {
		return nil, err
	}
	t.ProofReceived = proof != 0
	if operator.Valid {
		t.OperatorActorID = &operator.Int64
	}
	if processed.Valid {
		t.ProcessedAt = &processed.Time
	}
	return &t, nil
}
