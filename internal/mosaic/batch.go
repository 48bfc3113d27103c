package mosaic

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/imaging"
)

// Job is one independent pipeline run.
type Job struct {
	Source  *imaging.PixelBuffer
	Options Options
}

// PixelateBatch runs jobs concurrently, at most workers at a time (workers
// < 1 means GOMAXPROCS). Each job runs the whole pipeline on one goroutine;
// a single image is never split across goroutines.
//
// results[i] belongs to jobs[i]. When ctx is cancelled no further jobs are
// started, the slots of unstarted jobs stay nil and the context error is
// returned.
func PixelateBatch(ctx context.Context, jobs []Job, workers int) ([]*Result, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(jobs))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = Pixelate(job.Source, job.Options)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}
