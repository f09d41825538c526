package gate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/keboola/devgate/internal/pkg/resultcache"
)

// statusConcurrency limits git processes running at once.
const statusConcurrency = 4

// TaskStatus is the persisted state of a task, as seen by the conditions.
type TaskStatus struct {
	Name         string              `json:"name"`
	Key          string              `json:"key"`
	Watermark    string              `json:"watermark,omitempty"`
	NetChurn     int64               `json:"netChurn"`
	GrossChurn   int64               `json:"grossChurn"`
	SessionLines int64               `json:"sessionLines"`
	LastRun      *resultcache.Record `json:"lastRun,omitempty"`
}

// Status returns state of all tasks in the declared order.
func (g *Gate) Status(ctx context.Context, in Input) []TaskStatus {
	tasks := g.tasks.All()
	out := make([]TaskStatus, len(tasks))

	grp := &errgroup.Group{}
	grp.SetLimit(statusConcurrency)
	for i, t := range tasks {
		grp.Go(func() error {
			status := TaskStatus{
				Name:         t.Name,
				Key:          t.Key(),
				NetChurn:     g.churn.NetChurnSince(ctx, t.Key(), t.Files),
				GrossChurn:   g.churn.GrossChurnSince(ctx, t.Key()),
				SessionLines: g.sessions.SinceLastRun(ctx, in.SessionID, t.Key()),
			}
			if hash, found := g.churn.Read(ctx, t.Key()); found {
				status.Watermark = hash
			}
			if record, found := g.cache.Record(ctx, t.Name); found {
				status.LastRun = &record
			}
			out[i] = status
			return nil
		})
	}

	// Errors are logged by the stores, measurements fall back to 0
	_ = grp.Wait()
	return out
}
