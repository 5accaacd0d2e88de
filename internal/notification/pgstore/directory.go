package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"community-notifications/internal/notification"
)

// Directory reads the users table.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) GetRecipientsByRole(ctx context.Context, role notification.Role) ([]notification.Recipient, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, display_name, COALESCE(email, ''), role
		FROM users
		WHERE role = $1
		ORDER BY display_name, id`, string(role))
	if err != nil {
		return nil, fmt.Errorf("query users by role: %w", err)
	}
	defer rows.Close()

	var out []notification.Recipient
	for rows.Next() {
		var r notification.Recipient
		if err := rows.Scan(&r.ID, &r.DisplayName, &r.Email, &r.Role); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *Directory) GetRecipient(ctx context.Context, id string) (*notification.Recipient, error) {
	var r notification.Recipient
	err := d.db.QueryRowContext(ctx, `
		SELECT id, display_name, COALESCE(email, ''), role
		FROM users
		WHERE id = $1`, id).Scan(&r.ID, &r.DisplayName, &r.Email, &r.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user %s: %w", id, err)
	}
	return &r, nil
}

// Ledger reads the payments table.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) HasPayment(ctx context.Context, recipientID string, period notification.Period) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM payments
			WHERE user_id = $1 AND period_month = $2 AND period_year = $3
		)`, recipientID, int(period.Month), period.Year).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("payment lookup: %w", err)
	}
	return exists, nil
}
