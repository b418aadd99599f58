package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JakeFAU/linkedin-prospector/internal/lead"
)

// RunStatus mirrors the scrape_runs status column.
type RunStatus string

// Run statuses persisted in scrape_runs.status.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run list paging bounds.
const (
	DefaultRunLimit = 50
	MaxRunLimit     = 500
)

// Run models the scrape_runs table.
type Run struct {
	ID             int64      `db:"id" json:"id"`
	RunType        string     `db:"run_type" json:"run_type"`
	Status         RunStatus  `db:"status" json:"status"`
	Source         *string    `db:"source" json:"source"`
	QueryText      *string    `db:"query_text" json:"query_text"`
	InputURL       *string    `db:"input_url" json:"input_url"`
	MaxPages       *int       `db:"max_pages" json:"max_pages"`
	LeadsFound     int        `db:"leads_found" json:"leads_found"`
	LeadsEnriched  int        `db:"leads_enriched" json:"leads_enriched"`
	JSONOutputPath *string    `db:"json_output_path" json:"json_output_path"`
	CSVOutputPath  *string    `db:"csv_output_path" json:"csv_output_path"`
	ParamsJSON     *string    `db:"params_json" json:"params_json"`
	Error          *string    `db:"error" json:"error"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	FinishedAt     *time.Time `db:"finished_at" json:"finished_at"`
}

// NewRun describes a run at creation time.
type NewRun struct {
	RunType   string
	Source    string
	QueryText string
	InputURL  string
	MaxPages  int
	Params    any
}

// RunUpdate lists the columns UpdateRun may change. Nil fields are left as is.
type RunUpdate struct {
	Status         *RunStatus
	Source         *string
	QueryText      *string
	InputURL       *string
	MaxPages       *int
	LeadsFound     *int
	LeadsEnriched  *int
	JSONOutputPath *string
	CSVOutputPath  *string
	Params         any
	Error          *string
	FinishedAt     *time.Time
}

// RunFilter narrows ListRuns and CountRuns.
type RunFilter struct {
	Status  RunStatus
	RunType string
	Limit   int
	Offset  int
}

const runColumns = `id, run_type, status, source, query_text, input_url, max_pages,
	leads_found, leads_enriched, json_output_path, csv_output_path, params_json,
	error, created_at, started_at, finished_at`

// CreateRun inserts a running audit row and returns its id.
func (s *Store) CreateRun(ctx context.Context, spec NewRun) (int64, error) {
	params, err := marshalParams(spec.Params)
	if err != nil {
		return 0, err
	}
	var maxPages *int
	if spec.MaxPages > 0 {
		maxPages = &spec.MaxPages
	}
	now := s.now()
	res, err := s.db.NamedExecContext(ctx, `INSERT INTO scrape_runs
		(run_type, status, source, query_text, input_url, max_pages, params_json, created_at, started_at)
		VALUES (:run_type, :status, :source, :query_text, :input_url, :max_pages, :params_json, :created_at, :started_at)`,
		map[string]any{
			"run_type":    spec.RunType,
			"status":      string(RunRunning),
			"source":      lead.StringPtr(spec.Source),
			"query_text":  lead.StringPtr(spec.QueryText),
			"input_url":   lead.StringPtr(spec.InputURL),
			"max_pages":   maxPages,
			"params_json": params,
			"created_at":  now,
			"started_at":  now,
		})
	if err != nil {
		return 0, fmt.Errorf("create scrape run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create scrape run id: %w", err)
	}
	return id, nil
}

// UpdateRun applies the non-nil fields of u. Moving to completed or failed
// stamps finished_at unless u sets it explicitly. Non-positive ids and empty
// updates are ignored.
func (s *Store) UpdateRun(ctx context.Context, id int64, u RunUpdate) error {
	if id <= 0 {
		return nil
	}
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.Source != nil {
		add("source", *u.Source)
	}
	if u.QueryText != nil {
		add("query_text", *u.QueryText)
	}
	if u.InputURL != nil {
		add("input_url", *u.InputURL)
	}
	if u.MaxPages != nil {
		add("max_pages", *u.MaxPages)
	}
	if u.LeadsFound != nil {
		add("leads_found", *u.LeadsFound)
	}
	if u.LeadsEnriched != nil {
		add("leads_enriched", *u.LeadsEnriched)
	}
	if u.JSONOutputPath != nil {
		add("json_output_path", *u.JSONOutputPath)
	}
	if u.CSVOutputPath != nil {
		add("csv_output_path", *u.CSVOutputPath)
	}
	if u.Params != nil {
		params, err := marshalParams(u.Params)
		if err != nil {
			return err
		}
		add("params_json", params)
	}
	if u.Error != nil {
		add("error", *u.Error)
	}
	if u.FinishedAt != nil {
		add("finished_at", u.FinishedAt.UTC())
	}
	if len(sets) == 0 {
		return nil
	}
	if u.Status != nil && u.FinishedAt == nil && (*u.Status == RunCompleted || *u.Status == RunFailed) {
		add("finished_at", s.now())
	}

	args = append(args, id)
	query := "UPDATE scrape_runs SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update scrape run %d: %w", id, err)
	}
	return nil
}

func runWhere(f RunFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.RunType != "" {
		clauses = append(clauses, "run_type = ?")
		args = append(args, f.RunType)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// ClampRunLimit maps an unset limit to DefaultRunLimit and clamps the rest to
// 1..MaxRunLimit.
func ClampRunLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultRunLimit
	case limit < 1:
		return 1
	case limit > MaxRunLimit:
		return MaxRunLimit
	default:
		return limit
	}
}

// ListRuns returns runs newest first.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	where, args := runWhere(f)
	args = append(args, ClampRunLimit(f.Limit), max(f.Offset, 0))
	var runs []Run
	if err := s.db.SelectContext(ctx, &runs,
		"SELECT "+runColumns+" FROM scrape_runs"+where+" ORDER BY id DESC LIMIT ? OFFSET ?", args...); err != nil {
		return nil, fmt.Errorf("list scrape runs: %w", err)
	}
	return runs, nil
}

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, id int64) (Run, error) {
	if id <= 0 {
		return Run{}, ErrNotFound
	}
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT "+runColumns+" FROM scrape_runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get scrape run %d: %w", id, err)
	}
	return run, nil
}

// CountRuns counts runs matching f.
func (s *Store) CountRuns(ctx context.Context, f RunFilter) (int, error) {
	where, args := runWhere(f)
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM scrape_runs"+where, args...); err != nil {
		return 0, fmt.Errorf("count scrape runs: %w", err)
	}
	return n, nil
}

func marshalParams(params any) (*string, error) {
	if params == nil {
		return nil, nil
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal run params: %w", err)
	}
	out := string(payload)
	return &out, nil
}
