package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

// QueueStatus is the connect_queue.status column.
type QueueStatus string

// Queue statuses.
const (
	QueuePending QueueStatus = "pending"
	QueueSent    QueueStatus = "sent"
	QueueFailed  QueueStatus = "failed"
)

// DefaultQueueLimit is the page size used by QueueList when limit is unset.
const DefaultQueueLimit = 100

// QueueItem is one outbound connect action.
type QueueItem struct {
	ID          int64       `db:"id" json:"id"`
	LeadID      int64       `db:"lead_id" json:"lead_id"`
	ProfileURL  string      `db:"linkedin_url" json:"linkedin_url"`
	FullName    string      `db:"full_name" json:"full_name"`
	Note        *string     `db:"note" json:"note"`
	Status      QueueStatus `db:"status" json:"status"`
	ScheduledAt *time.Time  `db:"scheduled_at" json:"scheduled_at"`
	SentAt      *time.Time  `db:"sent_at" json:"sent_at"`
	Error       *string     `db:"error" json:"error"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// QueueStats counts queue rows per status.
type QueueStats struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

const queueColumns = `id, lead_id, linkedin_url, full_name, note, status,
	scheduled_at, sent_at, error, created_at`

// Enqueue adds the given leads to the connect queue and returns how many rows
// became pending: fresh inserts plus failed rows reset for another attempt.
// Leads that are missing or have no profile URL are skipped, and rows that
// are already pending or sent are left alone. The whole batch is one
// transaction.
func (s *Store) Enqueue(ctx context.Context, leadIDs []int64, note string) (int, error) {
	now := s.now()
	notePtr := lead.StringPtr(note)
	added := 0
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, id := range leadIDs {
			var row struct {
				ID       int64   `db:"id"`
				URL      *string `db:"linkedin_url"`
				FullName string  `db:"full_name"`
			}
			err := tx.GetContext(ctx, &row, "SELECT id, linkedin_url, full_name FROM leads WHERE id = ?", id)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("lookup lead %d: %w", id, err)
			}
			url := lead.Value(row.URL)
			if url == "" {
				continue
			}

			res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO connect_queue
				(lead_id, linkedin_url, full_name, note, status, created_at)
				VALUES (?, ?, ?, ?, ?, ?)`,
				row.ID, url, row.FullName, notePtr, QueuePending, now)
			if err != nil {
				return fmt.Errorf("enqueue lead %d: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n == 1 {
				added++
				continue
			}

			var existing struct {
				ID     int64       `db:"id"`
				Status QueueStatus `db:"status"`
			}
			err = tx.GetContext(ctx, &existing, "SELECT id, status FROM connect_queue WHERE linkedin_url = ?", url)
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			if err != nil {
				return fmt.Errorf("lookup queue row for %s: %w", url, err)
			}
			if existing.Status != QueueFailed {
				continue
			}
			if _, err := tx.ExecContext(ctx, `UPDATE connect_queue
				SET lead_id = ?, full_name = ?, note = ?, status = ?,
				    scheduled_at = NULL, sent_at = NULL, error = NULL, created_at = ?
				WHERE id = ?`,
				row.ID, row.FullName, notePtr, QueuePending, now, existing.ID); err != nil {
				return fmt.Errorf("reset failed queue row %d: %w", existing.ID, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// NextPending returns the oldest pending item without claiming it. It returns
// ErrNotFound when the queue has nothing pending.
func (s *Store) NextPending(ctx context.Context) (QueueItem, error) {
	var item QueueItem
	err := s.db.GetContext(ctx, &item,
		"SELECT "+queueColumns+" FROM connect_queue WHERE status = ? ORDER BY id LIMIT 1", QueuePending)
	if errors.Is(err, sql.ErrNoRows) {
		return QueueItem{}, ErrNotFound
	}
	if err != nil {
		return QueueItem{}, fmt.Errorf("next pending connect: %w", err)
	}
	return item, nil
}

// MarkConnect records the outcome of a send attempt. sent_at is stamped only
// for QueueSent; errText is stored as NULL when empty.
func (s *Store) MarkConnect(ctx context.Context, id int64, status QueueStatus, errText string) error {
	var sentAt *time.Time
	if status == QueueSent {
		now := s.now()
		sentAt = &now
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE connect_queue SET status = ?, sent_at = ?, error = ? WHERE id = ?",
		status, sentAt, lead.StringPtr(errText), id)
	if err != nil {
		return fmt.Errorf("mark connect %d %s: %w", id, status, err)
	}
	return nil
}

// QueueStats counts rows per status.
func (s *Store) QueueStats(ctx context.Context) (QueueStats, error) {
	var rows []struct {
		Status QueueStatus `db:"status"`
		N      int         `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, "SELECT status, COUNT(*) AS n FROM connect_queue GROUP BY status"); err != nil {
		return QueueStats{}, fmt.Errorf("connect queue stats: %w", err)
	}
	var out QueueStats
	for _, r := range rows {
		switch r.Status {
		case QueuePending:
			out.Pending = r.N
		case QueueSent:
			out.Sent = r.N
		case QueueFailed:
			out.Failed = r.N
		}
	}
	return out, nil
}

// QueueList lists queue rows in insertion order, optionally by status.
func (s *Store) QueueList(ctx context.Context, status QueueStatus, limit int) ([]QueueItem, error) {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	var (
		items []QueueItem
		err   error
	)
	if status != "" {
		err = s.db.SelectContext(ctx, &items,
			"SELECT "+queueColumns+" FROM connect_queue WHERE status = ? ORDER BY id LIMIT ?", status, limit)
	} else {
		err = s.db.SelectContext(ctx, &items,
			"SELECT "+queueColumns+" FROM connect_queue ORDER BY id LIMIT ?", limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list connect queue: %w", err)
	}
	return items, nil
}

// SentCountForLocalDay counts sent rows whose sent_at falls on day's calendar
// date in day's location. Stored values without a zone are read as UTC.
func (s *Store) SentCountForLocalDay(ctx context.Context, day time.Time) (int, error) {
	var stamps []time.Time
	if err := s.db.SelectContext(ctx, &stamps,
		"SELECT sent_at FROM connect_queue WHERE status = ? AND sent_at IS NOT NULL", QueueSent); err != nil {
		return 0, fmt.Errorf("load sent timestamps: %w", err)
	}
	loc := day.Location()
	y, m, d := day.Date()
	count := 0
	for _, ts := range stamps {
		if ts.IsZero() {
			continue
		}
		ty, tm, td := ts.In(loc).Date()
		if ty == y && tm == m && td == d {
			count++
		}
	}
	return count, nil
}
