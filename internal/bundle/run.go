package bundle

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/treykane/termgrid/internal/dispatch"
	"github.com/treykane/termgrid/internal/model"
)

// DefaultConcurrency bounds parallel launches of one bundle run.
const DefaultConcurrency = 4

// RecordSource looks records up by ID.
type RecordSource interface {
	Get(ctx context.Context, id int64) (model.ServerRecord, error)
}

// Dispatcher launches one record.
type Dispatcher interface {
	Dispatch(ctx context.Context, r model.ServerRecord) (dispatch.Result, error)
}

// Outcome is the result of launching one bundle member.
type Outcome struct {
	RecordID int64
	Result   dispatch.Result
	Err      error
}

// Run launches every record of def concurrently and returns one outcome per
// record, in bundle order. A failure never stops the other launches.
func Run(ctx context.Context, def Definition, records RecordSource, d Dispatcher, limit int) []Outcome {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	out := make([]Outcome, len(def.RecordIDs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, id := range def.RecordIDs {
		i, id := i, id
		g.Go(func() error {
			out[i].RecordID = id
			r, err := records.Get(ctx, id)
			if err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Result, out[i].Err = d.Dispatch(ctx, r)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Failed counts outcomes with an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
