package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mediavault/tubefetch/internal/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, telegram_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), balance, is_banned, is_registered, COALESCE(DATE_FORMAT(last_bonus_date, '%Y-%m-%d'), ''), created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var banned, registered int
	if err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.Balance, &banned, &registered, &u.LastBonusDate, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Banned = banned != 0
	u.Registered = registered != 0
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`
	return scanUser(r.db.QueryRowContext(ctx, query, telegramID))
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	const query = `
INSERT INTO users (telegram_id, username, first_name, last_name)
VALUES (?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''))`
	res, err := r.db.ExecContext(ctx, query, user.TelegramID, user.Username, user.FirstName, user.LastName)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	user.ID = id
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, userID int64, username, firstName, lastName string) error {
	const query = `
UPDATE users SET username = NULLIF(?, ''), first_name = NULLIF(?, ''), last_name = NULLIF(?, ''), updated_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, username, firstName, lastName, userID); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// Ensure creates the user on first contact or refreshes the stored profile.
func (r *UserRepository) Ensure(ctx context.Context, telegramID int64, username, firstName, lastName string) (*models.User, bool, error) {
	user, err := r.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, false, err
	}
	if user != nil {
		if user.Username != username || user.FirstName != firstName || user.LastName != lastName {
			if err := r.UpdateProfile(ctx, user.ID, username, firstName, lastName); err != nil {
				return nil, false, err
			}
			user.Username = username
			user.FirstName = firstName
			user.LastName = lastName
		}
		return user, false, nil
	}
	created, err := r.Create(ctx, &models.User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		LastName:   lastName,
	})
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (r *UserRepository) SetRegistered(ctx context.Context, userID int64, registered bool) error {
	value := 0
	if registered {
		value = 1
	}
	const query = `UPDATE users SET is_registered = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, value, userID); err != nil {
		return fmt.Errorf("set registered: %w", err)
	}
	return nil
}

func (r *UserRepository) SetBanned(ctx context.Context, userID int64, banned bool) error {
	value := 0
	if banned {
		value = 1
	}
	const query = `UPDATE users SET is_banned = ?, updated_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, value, userID); err != nil {
		return fmt.Errorf("set banned: %w", err)
	}
	return nil
}

// ClaimBonusDate advances last_bonus_date to the given day. The conditional
// update keeps the claim idempotent per calendar date and forward-only.
func (r *UserRepository) ClaimBonusDate(ctx context.Context, userID int64, day string) (bool, error) {
	const query = `
UPDATE users SET last_bonus_date = ?, updated_at = NOW()
WHERE id = ? AND (last_bonus_date IS NULL OR last_bonus_date < ?)`
	res, err := r.db.ExecContext(ctx, query, day, userID, day)
	if err != nil {
		return false, fmt.Errorf("claim bonus date: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("bonus rows affected: %w", err)
	}
	return affected > 0, nil
}

// RevertBonusDate undoes a claim that could not be credited, restoring the
// previous date. The guard only releases the slot while it still holds the
// claimed day, so it cannot clobber a later claim.
func (r *UserRepository) RevertBonusDate(ctx context.Context, userID int64, day, previous string) error {
	const query = `
UPDATE users SET last_bonus_date = NULLIF(?, ''), updated_at = NOW()
WHERE id = ? AND last_bonus_date = ?`
	if _, err := r.db.ExecContext(ctx, query, previous, userID, day); err != nil {
		return fmt.Errorf("revert bonus date: %w", err)
	}
	return nil
}

// ListRecent returns the newest users first, for the operator overview.
func (r *UserRepository) ListRecent(ctx context.Context, limit int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		var banned, registered int
		if err := rows.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &u.Balance, &banned, &registered, &u.LastBonusDate, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		u.Banned = banned != 0
		u.Registered = registered != 0
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) ListTelegramIDs(ctx context.Context) ([]int64, error) {
	const query = `SELECT telegram_id FROM users`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list telegram ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan telegram id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Stats summarizes the user base for the admin surface.
type Stats struct {
	TotalUsers    int64
	TotalTokens   int64
	CompletedJobs int64
}

func (r *UserRepository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(balance), 0) FROM users`).Scan(&s.TotalUsers, &s.TotalTokens); err != nil {
		return Stats{}, fmt.Errorf("user stats: %w", err)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE status = 'completed'`).Scan(&s.CompletedJobs); err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	return s, nil
}
