package dto

import (
	"time"

	"github.com/ordersync/backend/internal/application/ordersync"
	"github.com/ordersync/backend/internal/infrastructure/scheduler"
)

// JobResponse is one pass job as reported by the jobs API
type JobResponse struct {
	ID          string         `json:"id"`
	Pass        string         `json:"pass"`
	Trigger     string         `json:"trigger"`
	Status      string         `json:"status"`
	Error       string         `json:"error,omitempty"`
	RunID       string         `json:"run_id,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DurationMs  int64          `json:"duration_ms,omitempty"`
	Summary     map[string]any `json:"summary,omitempty"`
}

// NewJobResponse converts a scheduler job
func NewJobResponse(j scheduler.Job) JobResponse {
	resp := JobResponse{
		ID:          j.ID.String(),
		Pass:        j.Pass.String(),
		Trigger:     string(j.Trigger),
		Status:      string(j.Status),
		Error:       j.Error,
		SubmittedAt: j.SubmittedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
		DurationMs:  j.Duration().Milliseconds(),
	}
	if j.Result != nil {
		resp.RunID = j.Result.RunID
		resp.Summary = summarize(*j.Result)
	}
	return resp
}

// NewJobResponses converts a job list
func NewJobResponses(jobs []scheduler.Job) []JobResponse {
	out := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, NewJobResponse(j))
	}
	return out
}

func summarize(r ordersync.PassResult) map[string]any {
	switch {
	case r.Inbound != nil:
		in := r.Inbound
		return map[string]any{
			"cursor":           in.Cursor.ExternalOrderID,
			"fetched":          in.Fetched,
			"discount_rules":   in.Rules,
			"known":            in.Known,
			"skipped_closed":   in.SkippedClosed,
			"empty":            in.Empty,
			"open_upserted":    in.Open.Upserted,
			"open_modified":    in.Open.Modified,
			"pending_upserted": in.Pending.Upserted,
			"promoted":         in.Promoted.Inserted,
			"retired":          in.Retired.Inserted,
			"rows":             in.Rows,
			"exports":          in.Exports,
		}
	case r.Outbound != nil:
		out := r.Outbound
		return map[string]any{
			"released_since": out.ReleasedSince,
			"rows":           out.Rows,
			"empty":          out.Empty,
			"orders":         out.Reconcile.Orders,
			"ambiguous":      out.Reconcile.Ambiguous,
			"matched":        out.Applied.Matched,
			"unmatched":      out.Unmatched,
			"fulfilled":      out.Fulfilled,
			"tagged":         out.Tagged,
			"closed":         out.Closed,
			"failed":         out.Failed,
			"moved":          out.Migration.Inserted,
		}
	case r.Sweep != nil:
		s := r.Sweep
		return map[string]any{
			"open_closed":     s.OpenClosed,
			"pending_later":   s.PendingLater,
			"removed_open":    s.RemovedOpen,
			"removed_pending": s.RemovedPending,
		}
	default:
		return nil
	}
}
