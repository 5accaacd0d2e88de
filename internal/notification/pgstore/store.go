// Package pgstore persists delivery records in PostgreSQL and reads the user directory and
// payment ledger from the same database.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"community-notifications/internal/common/database"
	"community-notifications/internal/notification"

	"github.com/lib/pq"
)

const recordColumns = `id, recipient_id, title, message, read, read_at, created_at, link, image_url, batch_id, recorded_by`

const insertRecordSQL = `
	INSERT INTO notifications (id, recipient_id, title, message, link, image_url, batch_id, recorded_by)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (batch_id, recipient_id) DO NOTHING`

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CommitBatch runs every op in one transaction. created_at defaults to now(), which is the
// transaction start time, so all records of a call share it.
func (s *Store) CommitBatch(ctx context.Context, ops []notification.BatchOp) (notification.BatchOutcome, error) {
	var outcome notification.BatchOutcome
	if len(ops) == 0 {
		return outcome, nil
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var (
			creates   []*notification.DeliveryRecord
			deleteIDs []string
		)
		for _, op := range ops {
			switch op.Kind {
			case notification.OpCreate:
				if op.Record == nil {
					return errors.New("create op without record")
				}
				creates = append(creates, op.Record)
			case notification.OpMarkRead:
				res, err := tx.ExecContext(ctx,
					`UPDATE notifications SET read = TRUE, read_at = $2 WHERE id = $1 AND read = FALSE`,
					op.ID, op.ReadAt)
				if err != nil {
					return fmt.Errorf("mark %s read: %w", op.ID, err)
				}
				n, _ := res.RowsAffected()
				outcome.Updated += int(n)
			case notification.OpDelete:
				deleteIDs = append(deleteIDs, op.ID)
			default:
				return fmt.Errorf("unknown op kind %d", op.Kind)
			}
		}

		if len(creates) > 0 {
			n, err := insertRecords(ctx, tx, creates)
			if err != nil {
				return err
			}
			outcome.Created = n
		}

		if len(deleteIDs) > 0 {
			res, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE id = ANY($1)`, pq.Array(deleteIDs))
			if err != nil {
				return fmt.Errorf("delete %d notifications: %w", len(deleteIDs), err)
			}
			n, _ := res.RowsAffected()
			outcome.Deleted = int(n)
		}
		return nil
	})
	if err != nil {
		return notification.BatchOutcome{}, err
	}
	return outcome, nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []*notification.DeliveryRecord) (int, error) {
	stmt, err := tx.PrepareContext(ctx, insertRecordSQL)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	created := 0
	for _, r := range records {
		res, err := stmt.ExecContext(ctx,
			r.ID, r.RecipientID, r.Title, r.Message,
			nullString(r.Link), nullString(r.ImageURL),
			r.BatchID, r.RecordedBy,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("notification id %s already exists: %w", r.ID, err)
			}
			return 0, fmt.Errorf("insert notification for %s: %w", r.RecipientID, err)
		}
		n, _ := res.RowsAffected()
		created += int(n)
	}
	return created, nil
}

func (s *Store) Query(ctx context.Context, q notification.RecordQuery) ([]notification.DeliveryRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if q.RecipientID != "" {
		args = append(args, q.RecipientID)
		where = append(where, fmt.Sprintf("recipient_id = $%d", len(args)))
	}

	order := "created_at DESC, id DESC"
	if q.After != nil {
		args = append(args, q.After.CreatedAt, q.After.ID)
		cmp := "<"
		if q.Direction == notification.DirectionPrev {
			cmp = ">"
			order = "created_at ASC, id ASC"
		}
		where = append(where, fmt.Sprintf("(created_at, id) %s ($%d, $%d)", cmp, len(args)-1, len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + recordColumns + " FROM notifications")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY " + order)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var out []notification.DeliveryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (*notification.DeliveryRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM notifications WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", notification.ErrRecordNotFound, id)
	}
	return rec, err
}

func (s *Store) RecordIDs(ctx context.Context, recipientID string) ([]string, error) {
	query := `SELECT id FROM notifications ORDER BY created_at DESC, id DESC`
	var args []interface{}
	if recipientID != "" {
		query = `SELECT id FROM notifications WHERE recipient_id = $1 ORDER BY created_at DESC, id DESC`
		args = append(args, recipientID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notification ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan notification id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND read = FALSE`,
		recipientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord maps one row, rejecting rows that break the record invariants.
func scanRecord(sc scanner) (*notification.DeliveryRecord, error) {
	var (
		rec      notification.DeliveryRecord
		readAt   sql.NullTime
		link     sql.NullString
		imageURL sql.NullString
	)
	err := sc.Scan(&rec.ID, &rec.RecipientID, &rec.Title, &rec.Message, &rec.Read, &readAt,
		&rec.CreatedAt, &link, &imageURL, &rec.BatchID, &rec.RecordedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}

	if rec.ID == "" || rec.RecipientID == "" || rec.CreatedAt.IsZero() {
		return nil, fmt.Errorf("malformed notification row %q", rec.ID)
	}
	if readAt.Valid {
		if !rec.Read {
			return nil, fmt.Errorf("malformed notification row %q: read_at set on unread record", rec.ID)
		}
		t := readAt.Time
		rec.ReadAt = &t
	}
	rec.Link = link.String
	rec.ImageURL = imageURL.String
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
