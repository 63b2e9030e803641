package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/queue"
	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/repository"
)

// Pool manages the lifecycle of all workers. Workers are stateless and
// identical; advance and distribute jobs share the one pool, with the
// lease set serializing work per payload.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
}

func NewPool(
	size int,
	q *queue.Queue,
	leases *queue.LeaseSet,
	repo repository.VideoRepository,
	advance AdvanceHandler,
	distribute DistributeHandler,
	policy RetryPolicy,
	hooks Hooks,
	logger *zap.Logger,
) *Pool {
	workers := make([]*Worker, size)
	for i := range workers {
		workers[i] = NewWorker(
			i, q, leases, repo, advance, distribute, policy, hooks,
			logger.With(zap.Int("worker_id", i)),
		)
	}
	return &Pool{workers: workers}
}

// Start launches all workers as goroutines. Cancelling ctx triggers a
// graceful shutdown of the entire pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context so in-flight jobs finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}
