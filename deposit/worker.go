package deposit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"k8s.io/client-go/util/workqueue"

	tglog "github.com/marqetfi/tradegate/log"
)

// maxRequeues caps retries for genuine failures. Pending conversions are
// requeued without counting against the cap.
const maxRequeues = 5

// RunWorker drains the conversion queue until it is shut down.
func RunWorker(ctx context.Context, wg *sync.WaitGroup, q workqueue.TypedRateLimitingInterface[string], s *Service) {
	defer wg.Done()

	for {
		id, shutdown := q.Get()
		if shutdown {
			return
		}
		reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		processItem(reqCtx, q, s, id)
		cancel()
	}
}

// processItem handles a single conversion id from the queue.
func processItem(ctx context.Context, q workqueue.TypedRateLimitingInterface[string], s *Service, id string) {
	logger := tglog.LoggerFromContext(ctx).With(slog.String("conversion_id", id))
	defer q.Done(id)

	if err := s.process(ctx, id); err != nil {
		if errors.Is(err, context.Canceled) {
			q.Forget(id)
			return
		}

		// The vendor hasn't settled the swap yet; keep polling with
		// backoff and skip the generic retry cap.
		if errors.Is(err, errPending) {
			q.AddRateLimited(id)
			return
		}

		logger.Debug("error processing conversion", slog.String("error", err.Error()))
		if q.NumRequeues(id) < maxRequeues {
			q.AddRateLimited(id)
			return
		}
		q.Forget(id)
		s.markFailed(id, err.Error())
		return
	}
	q.Forget(id)
}
