package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"leavehub/internal/domain/rollover"
	"leavehub/internal/platform/config"
	"leavehub/internal/platform/querier"
)

const JobYearEndRollover = "year_end_rollover"

// Service runs background jobs and records every run in job_runs so admins
// can see what happened and the scheduler can tell whether this year's
// rollover already ran.
type Service struct {
	DB       querier.Querier
	Cfg      config.Config
	Rollover *rollover.Service
}

type Run struct {
	ID          string         `json:"id"`
	JobType     string         `json:"jobType"`
	Status      string         `json:"status"`
	Details     map[string]any `json:"details"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt"`
}

type RunFilter struct {
	JobType string
	Status  string
}

func New(db querier.Querier, cfg config.Config, rollover *rollover.Service) *Service {
	return &Service{
		DB:       db,
		Cfg:      cfg,
		Rollover: rollover,
	}
}

func (s *Service) Start(ctx context.Context) {
	if s.Cfg.RolloverCheckInterval > 0 {
		go s.scheduleYearEnd(ctx, s.Cfg.RolloverCheckInterval)
	}
}

// RunNow executes the job synchronously and records the run.
func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, jobType, run)
}

func (s *Service) runJob(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, jobType, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

// scheduleYearEnd polls for the December 31st trigger. The rollover runs in
// the tick goroutine, so the completed-run check and the run itself never
// race with each other.
func (s *Service) scheduleYearEnd(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			trigger, due := yearEndDue(now)
			if !due {
				continue
			}
			ran, err := s.completedRunSince(ctx, JobYearEndRollover, trigger)
			if err != nil {
				slog.Warn("rollover scheduler run lookup failed", "err", err)
				continue
			}
			if ran {
				continue
			}
			if _, err := s.runJob(ctx, JobYearEndRollover, func(ctx context.Context) (any, error) {
				return s.Rollover.ProcessYearEndReset(ctx, now, s.Cfg.RolloverNotify)
			}); err != nil {
				slog.Warn("scheduled rollover failed", "err", err)
			}
		}
	}
}

func (s *Service) completedRunSince(ctx context.Context, jobType string, since time.Time) (bool, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM job_runs
    WHERE job_type = $1 AND status = 'completed' AND completed_at >= $2
  `, jobType, since).Scan(&total); err != nil {
		return false, err
	}
	return total > 0, nil
}

func (s *Service) ListRuns(ctx context.Context, filter RunFilter, limit, offset int) ([]Run, error) {
	query, args := buildRunsBaseQuery(filter)
	query += " ORDER BY started_at DESC LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var detailsRaw []byte
		if err := rows.Scan(&run.ID, &run.JobType, &run.Status, &detailsRaw, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, err
		}
		run.Details = decodeDetails(detailsRaw)
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *Service) CountRuns(ctx context.Context, filter RunFilter) (int, error) {
	query, args := buildRunsBaseQuery(filter)
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM ("+query+") job_runs", args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func buildRunsBaseQuery(filter RunFilter) (string, []any) {
	query := `
    SELECT id, job_type, status, COALESCE(details_json, '{}'::jsonb), started_at, completed_at
    FROM job_runs
    WHERE 1=1
  `
	args := []any{}

	if value := strings.TrimSpace(filter.JobType); value != "" {
		query += " AND job_type = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}
	if value := strings.TrimSpace(filter.Status); value != "" {
		query += " AND status = $" + strconv.Itoa(len(args)+1)
		args = append(args, value)
	}

	return query, args
}

func decodeDetails(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	details := map[string]any{}
	if err := json.Unmarshal(raw, &details); err != nil {
		return map[string]any{
			"raw": string(raw),
		}
	}
	return details
}
