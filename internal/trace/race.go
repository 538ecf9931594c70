package trace

import "context"

// settled carries the outcome of one racing operation.
type settled struct {
	index int
	err   error
}

// First runs every op concurrently and returns the index and error of
// whichever settles first. Browser operations cannot be interrupted
// mid-flight, only raced against, so losers keep running; each receives
// a context that is cancelled once a winner exists, letting cooperative
// ops bail out early. The channel is buffered so losers never block or
// leak.
func First(ctx context.Context, ops ...func(context.Context) error) (int, error) {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan settled, len(ops))
	for i, op := range ops {
		go func(i int, op func(context.Context) error) {
			results <- settled{index: i, err: op(raceCtx)}
		}(i, op)
	}

	select {
	case r := <-results:
		return r.index, r.err
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}
