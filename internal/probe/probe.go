// Package probe checks whether records' endpoints accept TCP connections.
package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/treykane/termgrid/internal/model"
	"github.com/treykane/termgrid/internal/util"
)

// DefaultConcurrency bounds simultaneous dials.
const DefaultConcurrency = 16

// Result is the outcome of probing one record.
type Result struct {
	RecordID  int64
	Name      string
	Address   string
	Reachable bool
	Latency   time.Duration
	Err       error
}

// DialFunc opens a connection, like (*net.Dialer).DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Prober dials records concurrently.
type Prober struct {
	Timeout     time.Duration
	Concurrency int
	Dial        DialFunc
}

// New returns a prober with the given per-dial timeout.
func New(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = util.ProbeTimeout
	}
	d := &net.Dialer{}
	return &Prober{Timeout: timeout, Concurrency: DefaultConcurrency, Dial: d.DialContext}
}

// Run probes every record and returns results in input order. A record whose
// effective port is invalid fails without dialing.
func (p *Prober) Run(ctx context.Context, records []model.ServerRecord) []Result {
	out := make([]Result, len(records))
	limit := p.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, r := range records {
		i, r := i, r
		g.Go(func() error {
			out[i] = p.one(ctx, r)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (p *Prober) one(ctx context.Context, r model.ServerRecord) Result {
	res := Result{RecordID: r.ID, Name: r.Name}
	port := r.EffectivePort()
	if err := util.ValidatePort(port); err != nil {
		res.Err = err
		return res
	}
	res.Address = net.JoinHostPort(r.Host, strconv.Itoa(port))

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	start := time.Now()
	conn, err := p.Dial(ctx, "tcp", res.Address)
	if err != nil {
		res.Err = err
		return res
	}
	_ = conn.Close()
	res.Reachable = true
	res.Latency = time.Since(start)
	return res
}
