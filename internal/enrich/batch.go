package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/linkedin-prospector/internal/metrics"
	"github.com/JakeFAU/linkedin-prospector/internal/store"
)

// RunType labels enrichment passes in scrape_runs.
const RunType = "enrich"

// Recorder keeps the audit row of a pass.
type Recorder interface {
	CreateRun(ctx context.Context, spec store.NewRun) (int64, error)
	UpdateRun(ctx context.Context, id int64, upd store.RunUpdate) error
}

// BatchResult summarizes a pass.
type BatchResult struct {
	RunID      int64     `json:"run_id"`
	Enriched   int       `json:"enriched"`
	OutputPath string    `json:"output_path,omitempty"`
	Profiles   []Profile `json:"profiles"`
}

// Batch enriches targets one at a time under an audit row, updating the
// enriched total after each lead. When outDir is set the profiles are written
// to enrich_run_<id>.json there. A cancelled context fails the run with what
// was read so far.
func (e *Enricher) Batch(ctx context.Context, rec Recorder, targets []Target, outDir string) (BatchResult, error) {
	ids := make([]int64, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.LeadID)
	}
	runID, err := rec.CreateRun(ctx, store.NewRun{
		RunType: RunType,
		Params: map[string]any{
			"lead_ids":        ids,
			"include_details": e.details,
			"max_posts":       e.maxPosts,
		},
	})
	if err != nil {
		return BatchResult{}, err
	}
	res := BatchResult{RunID: runID, Profiles: make([]Profile, 0, len(targets))}
	log := e.logger.With(zap.Int64("run_id", runID))
	log.Info("enrichment started", zap.Int("leads", len(targets)))

	var runErr error
	for _, t := range targets {
		p, err := e.Enrich(ctx, t)
		if err != nil {
			runErr = err
			break
		}
		res.Profiles = append(res.Profiles, p)
		if !p.Enriched() {
			continue
		}
		res.Enriched++
		enriched := res.Enriched
		if err := rec.UpdateRun(ctx, runID, store.RunUpdate{LeadsEnriched: &enriched}); err != nil {
			log.Warn("update enriched total", zap.Error(err))
		}
	}

	final := context.WithoutCancel(ctx)
	processed := len(res.Profiles)
	upd := store.RunUpdate{LeadsFound: &processed, LeadsEnriched: &res.Enriched}
	if outDir != "" && processed > 0 {
		path, err := writeProfiles(outDir, runID, res.Profiles)
		if err != nil {
			log.Warn("write enrichment output", zap.Error(err))
		} else {
			res.OutputPath = path
			upd.JSONOutputPath = &path
		}
	}
	status := store.RunCompleted
	if runErr != nil {
		status = store.RunFailed
		msg := runErr.Error()
		upd.Error = &msg
	}
	upd.Status = &status
	if err := rec.UpdateRun(final, runID, upd); err != nil {
		log.Error("finalize enrichment run", zap.Error(err))
	}
	metrics.ObserveRun(RunType, string(status))
	log.Info("enrichment finished",
		zap.String("status", string(status)),
		zap.Int("processed", processed),
		zap.Int("enriched", res.Enriched),
	)
	if runErr != nil {
		return res, fmt.Errorf("enrichment run %d: %w", runID, runErr)
	}
	return res, nil
}

func writeProfiles(dir string, runID int64, profiles []Profile) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	body, err := json.MarshalIndent(profiles, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode profiles: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("enrich_run_%d.json", runID))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
