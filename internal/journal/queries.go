package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"checkweigher/internal/line"
)

// LineSummary aggregates verdicts of one line and profile.
type LineSummary struct {
	Line                string  `json:"line"`
	Profile             string  `json:"profile"`
	Weighed             int     `json:"weighed"`
	Passed              int     `json:"passed"`
	RejectedContaminant int     `json:"rejected_contaminant"`
	RejectedRange       int     `json:"rejected_range"`
	RejectedTolerance   int     `json:"rejected_tolerance"`
	Flagged             int     `json:"flagged"`
	Discarded           int     `json:"discarded"`
	MeanWeight          float64 `json:"mean_weight"`
	MinWeight           float64 `json:"min_weight"`
	MaxWeight           float64 `json:"max_weight"`
}

// Rejected sums every rejection reason.
func (s LineSummary) Rejected() int {
	return s.RejectedContaminant + s.RejectedRange + s.RejectedTolerance
}

// PassRate is the share of weighed items that passed, in [0, 1].
func (s LineSummary) PassRate() float64 {
	if s.Weighed == 0 {
		return 0
	}
	return float64(s.Passed) / float64(s.Weighed)
}

// Summary groups every recorded event by line and profile. Call Flush first
// to include events still queued.
func (j *Journal) Summary(ctx context.Context) ([]LineSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT line, profile,
			SUM(CASE WHEN kind = 'verdict' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'verdict' AND verdict = 'passed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'verdict' AND reject_reason = 'contaminant' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'verdict' AND reject_reason = 'range' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'verdict' AND reject_reason = 'tolerance' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'scan_flagged' THEN 1 ELSE 0 END),
			SUM(CASE WHEN kind = 'discarded' THEN 1 ELSE 0 END),
			AVG(measured_weight), MIN(measured_weight), MAX(measured_weight)
		FROM events
		WHERE run_id = ?
		GROUP BY line, profile
		ORDER BY line, profile`, j.name)
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []LineSummary
	for rows.Next() {
		var (
			s            LineSummary
			mean, lo, hi sql.NullFloat64
		)
		if err := rows.Scan(&s.Line, &s.Profile,
			&s.Weighed, &s.Passed,
			&s.RejectedContaminant, &s.RejectedRange, &s.RejectedTolerance,
			&s.Flagged, &s.Discarded,
			&mean, &lo, &hi,
		); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.MeanWeight, s.MinWeight, s.MaxWeight = mean.Float64, lo.Float64, hi.Float64
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary: %w", err)
	}
	return out, nil
}

// RecentRejects returns the latest rejections on a line, newest first.
func (j *Journal) RecentRejects(ctx context.Context, lineName string, limit int) ([]line.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT ts, line, kind, item_id, profile, measured_weight, verdict, contaminant, reject_reason, exit_direction
		FROM events
		WHERE run_id = ? AND line = ? AND kind = 'verdict' AND verdict = 'rejected'
		ORDER BY id DESC
		LIMIT ?`, j.name, lineName, limit)
	if err != nil {
		return nil, fmt.Errorf("query rejects: %w", err)
	}
	defer rows.Close()

	var out []line.Event
	for rows.Next() {
		var (
			evt    line.Event
			ts     string
			weight sql.NullFloat64
		)
		if err := rows.Scan(&ts, &evt.Line, &evt.Kind, &evt.ItemID, &evt.Profile, &weight,
			&evt.Verdict, &evt.Contaminant, &evt.RejectReason, &evt.ExitDirection); err != nil {
			return nil, fmt.Errorf("scan rejects: %w", err)
		}
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			evt.Timestamp = parsed
		}
		if weight.Valid {
			w := weight.Float64
			evt.MeasuredWeight = &w
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rejects: %w", err)
	}
	return out, nil
}
