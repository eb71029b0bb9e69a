// Package lifecycle supervises the worker's long-running routines as one
// unit. The service is up once every routine has signalled ready, and it
// goes down as a whole: cancelling the start context stops every routine
// gracefully, and a routine that fails takes the rest down with it so the
// process can exit and be restarted by its supervisor.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Worker is one long-running routine of the service, such as the request
// processor or the status API. Run must block until ctx is cancelled or the
// routine cannot continue, and must call ready exactly when its startup is
// complete. A nil return is a clean exit; an error stops the whole group.
type Worker interface {
	Name() string
	Run(ctx context.Context, ready func()) error
}

// Group runs a fixed set of workers through a single start-stop cycle.
type Group struct {
	log     zerolog.Logger
	workers []Worker

	startOnce sync.Once
	ready     chan struct{}
	done      chan struct{}

	mu  sync.Mutex
	err error
}

func NewGroup(log zerolog.Logger, workers ...Worker) *Group {
	return &Group{
		log:     log.With().Str("component", "lifecycle").Logger(),
		workers: workers,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches every worker in its own goroutine. Cancelling ctx begins a
// graceful stop; a worker returning an error cancels the remaining workers.
// Calls after the first are no-ops.
func (g *Group) Start(ctx context.Context) {
	g.startOnce.Do(func() {
		eg, runCtx := errgroup.WithContext(ctx)

		var pending sync.WaitGroup
		pending.Add(len(g.workers))
		go func() {
			pending.Wait()
			close(g.ready)
		}()

		for _, w := range g.workers {
			w := w
			var readyOnce sync.Once
			markReady := func() {
				readyOnce.Do(pending.Done)
			}
			eg.Go(func() error {
				g.log.Debug().Str("worker", w.Name()).Msg("worker starting")
				err := w.Run(runCtx, markReady)
				// a worker that exits without ever becoming ready must not
				// wedge the Ready channel
				markReady()
				if err != nil {
					return fmt.Errorf("worker %s: %w", w.Name(), err)
				}
				g.log.Debug().Str("worker", w.Name()).Msg("worker stopped")
				return nil
			})
		}

		go func() {
			err := eg.Wait()
			g.mu.Lock()
			g.err = err
			g.mu.Unlock()
			close(g.done)
		}()
	})
}

// Ready is closed once every worker has signalled ready.
func (g *Group) Ready() <-chan struct{} {
	return g.ready
}

// Done is closed once every worker has returned.
func (g *Group) Done() <-chan struct{} {
	return g.done
}

// Err reports the first worker failure, or nil after a clean stop. Only
// meaningful once Done is closed.
func (g *Group) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
