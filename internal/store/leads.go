package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

const upsertLeadSQL = `
INSERT INTO leads (dedup_key, linkedin_url, full_name, headline, current_title,
                   current_company, location, connection_degree, mutual_connections,
                   source, search_query, scraped_at)
VALUES (:dedup_key, :linkedin_url, :full_name, :headline, :current_title,
        :current_company, :location, :connection_degree, :mutual_connections,
        :source, :search_query, :scraped_at)
ON CONFLICT(dedup_key) DO UPDATE SET
    headline = COALESCE(excluded.headline, leads.headline),
    current_title = COALESCE(excluded.current_title, leads.current_title),
    current_company = COALESCE(excluded.current_company, leads.current_company),
    location = COALESCE(excluded.location, leads.location),
    connection_degree = COALESCE(excluded.connection_degree, leads.connection_degree),
    mutual_connections = COALESCE(excluded.mutual_connections, leads.mutual_connections),
    scraped_at = excluded.scraped_at`

const leadColumns = `id, dedup_key, linkedin_url, full_name, headline, current_title,
	current_company, location, connection_degree, mutual_connections,
	source, search_query, scraped_at`

// DefaultLeadLimit is the page size used when a filter leaves Limit unset.
const DefaultLeadLimit = 100

const exportLimit = 100_000

// LeadFilter narrows Query and Count. Zero values mean "no filter".
type LeadFilter struct {
	Source  lead.Source
	Company string
	Search  string
	Limit   int
	Offset  int
}

// Stats aggregates the leads table.
type Stats struct {
	Total       int                 `json:"total"`
	BySource    map[lead.Source]int `json:"by_source"`
	LastScraped *time.Time          `json:"last_scraped"`
}

// DeleteResult reports how many rows a delete removed.
type DeleteResult struct {
	LeadsDeleted int64 `json:"leads_deleted"`
	QueueDeleted int64 `json:"queue_deleted"`
}

// Upsert inserts l or merges it into the row sharing its dedup key.
func (s *Store) Upsert(ctx context.Context, l lead.Lead) error {
	_, err := s.UpsertMany(ctx, []lead.Lead{l})
	return err
}

// UpsertMany upserts every lead in a single transaction and returns how many
// rows were written. Fields the new capture did not observe keep their stored
// value; scraped_at is always replaced.
func (s *Store) UpsertMany(ctx context.Context, leads []lead.Lead) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}
	now := s.now()
	count := 0
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, l := range leads {
			if strings.TrimSpace(l.FullName) == "" {
				return errors.New("upsert lead: full name is required")
			}
			row := l.Normalize(now)
			if _, err := tx.NamedExecContext(ctx, upsertLeadSQL, row); err != nil {
				return fmt.Errorf("upsert lead %q: %w", row.DedupKey, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func leadWhere(f LeadFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, string(f.Source))
	}
	if f.Company != "" {
		clauses = append(clauses, "current_company LIKE ?")
		args = append(args, "%"+f.Company+"%")
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		clauses = append(clauses, "(full_name LIKE ? OR headline LIKE ? OR current_title LIKE ?)")
		args = append(args, like, like, like)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Query returns leads matching f, newest capture first.
func (s *Store) Query(ctx context.Context, f LeadFilter) ([]lead.Lead, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLeadLimit
	}
	offset := max(f.Offset, 0)
	where, args := leadWhere(f)
	query := "SELECT " + leadColumns + " FROM leads" + where + " ORDER BY scraped_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var out []lead.Lead
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	return out, nil
}

// Count returns how many leads match f. Limit and Offset are ignored.
func (s *Store) Count(ctx context.Context, f LeadFilter) (int, error) {
	where, args := leadWhere(f)
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM leads"+where, args...); err != nil {
		return 0, fmt.Errorf("count leads: %w", err)
	}
	return n, nil
}

// GetLead loads one lead by id.
func (s *Store) GetLead(ctx context.Context, id int64) (lead.Lead, error) {
	var l lead.Lead
	err := s.db.GetContext(ctx, &l, "SELECT "+leadColumns+" FROM leads WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return lead.Lead{}, ErrNotFound
	}
	if err != nil {
		return lead.Lead{}, fmt.Errorf("get lead %d: %w", id, err)
	}
	return l, nil
}

// Stats returns the total, per-source counts and the latest capture time.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	out := Stats{BySource: make(map[lead.Source]int, len(lead.Sources))}
	if err := s.db.GetContext(ctx, &out.Total, "SELECT COUNT(*) FROM leads"); err != nil {
		return Stats{}, fmt.Errorf("count leads: %w", err)
	}

	type sourceCount struct {
		Source string `db:"source"`
		N      int    `db:"n"`
	}
	var rows []sourceCount
	if err := s.db.SelectContext(ctx, &rows, "SELECT source, COUNT(*) AS n FROM leads GROUP BY source"); err != nil {
		return Stats{}, fmt.Errorf("count leads by source: %w", err)
	}
	for _, src := range lead.Sources {
		out.BySource[src] = 0
	}
	for _, r := range rows {
		out.BySource[lead.Source(r.Source)] = r.N
	}

	var last time.Time
	err := s.db.GetContext(ctx, &last, "SELECT scraped_at FROM leads ORDER BY scraped_at DESC LIMIT 1")
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Stats{}, fmt.Errorf("latest capture: %w", err)
	default:
		out.LastScraped = &last
	}
	return out, nil
}

// ExportRows returns up to 100k leads for src (all sources when empty) with
// the internal dedup key cleared.
func (s *Store) ExportRows(ctx context.Context, src lead.Source) ([]lead.Lead, error) {
	rows, err := s.Query(ctx, LeadFilter{Source: src, Limit: exportLimit})
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].DedupKey = ""
	}
	return rows, nil
}

// ClearLeads deletes every lead and every queue row.
func (s *Store) ClearLeads(ctx context.Context) (DeleteResult, error) {
	var res DeleteResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		queue, err := tx.ExecContext(ctx, "DELETE FROM connect_queue")
		if err != nil {
			return fmt.Errorf("clear connect queue: %w", err)
		}
		leads, err := tx.ExecContext(ctx, "DELETE FROM leads")
		if err != nil {
			return fmt.Errorf("clear leads: %w", err)
		}
		res.QueueDeleted, _ = queue.RowsAffected()
		res.LeadsDeleted, _ = leads.RowsAffected()
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return res, nil
}

// DeleteLeads removes the given leads and any queue rows that reference them,
// either by lead id or by the lead's profile URL. Non-positive and duplicate
// ids are ignored.
func (s *Store) DeleteLeads(ctx context.Context, ids []int64) (DeleteResult, error) {
	unique := uniquePositive(ids)
	if len(unique) == 0 {
		return DeleteResult{}, nil
	}

	var res DeleteResult
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query, args, err := sqlx.In(
			"SELECT linkedin_url FROM leads WHERE id IN (?) AND linkedin_url IS NOT NULL", unique)
		if err != nil {
			return fmt.Errorf("build url lookup: %w", err)
		}
		var urls []string
		if err := tx.SelectContext(ctx, &urls, tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("lookup lead urls: %w", err)
		}

		if len(urls) > 0 {
			query, args, err = sqlx.In(
				"DELETE FROM connect_queue WHERE lead_id IN (?) OR linkedin_url IN (?)", unique, urls)
		} else {
			query, args, err = sqlx.In("DELETE FROM connect_queue WHERE lead_id IN (?)", unique)
		}
		if err != nil {
			return fmt.Errorf("build queue delete: %w", err)
		}
		queue, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("delete queue rows: %w", err)
		}

		query, args, err = sqlx.In("DELETE FROM leads WHERE id IN (?)", unique)
		if err != nil {
			return fmt.Errorf("build lead delete: %w", err)
		}
		leads, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
		if err != nil {
			return fmt.Errorf("delete leads: %w", err)
		}
		res.QueueDeleted, _ = queue.RowsAffected()
		res.LeadsDeleted, _ = leads.RowsAffected()
		return nil
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return res, nil
}

func uniquePositive(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
