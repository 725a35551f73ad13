package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/simlidar/internal/dataset"
	"github.com/banshee-data/simlidar/internal/monitoring"
)

var logf = monitoring.Prefixed("[pipeline]")

// TransformRange transforms frames [from, to) of sensor using up to
// workers goroutines and hands each result to fn in ascending frame order.
// fn runs on the calling goroutine. The first error from a frame or from fn
// stops the remaining work and is returned.
func (ft *FrameTransformer) TransformRange(ctx context.Context, sensor string, from, to, workers int, fn func(*FrameResult) error) error {
	if from < 0 || to > ft.Source.Frames() || from > to {
		return fmt.Errorf("%w: range [%d, %d) outside [0, %d)",
			dataset.ErrFrameOutOfRange, from, to, ft.Source.Frames())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n := to - from
	if n == 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	start := time.Now()
	frames := make(chan int)
	ready := make([]chan *FrameResult, n)
	for i := range ready {
		ready[i] = make(chan *FrameResult, 1)
	}

	g.Go(func() error {
		defer close(frames)
		for f := from; f < to; f++ {
			select {
			case frames <- f:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for f := range frames {
				res, err := ft.TransformFrame(sensor, f)
				if err != nil {
					return err
				}
				ready[f-from] <- res
			}
			return nil
		})
	}

	var deliverErr error
	delivered := 0
deliver:
	for i := range ready {
		select {
		case res := <-ready[i]:
			if err := fn(res); err != nil {
				deliverErr = err
				cancel()
				break deliver
			}
			delivered++
		case <-gctx.Done():
			break deliver
		}
	}

	waitErr := g.Wait()
	if deliverErr != nil {
		return deliverErr
	}
	if waitErr != nil {
		return waitErr
	}
	if delivered < n {
		// Parent context ended before the group saw it.
		return ctx.Err()
	}

	logf("sensor %s: transformed frames [%d, %d) with %d workers in %v",
		sensor, from, to, workers, time.Since(start).Round(time.Millisecond))
	return nil
}
