package clone

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/percona/percona-collection-migrator/config"
	"github.com/percona/percona-collection-migrator/errors"
	"github.com/percona/percona-collection-migrator/log"
)

// ForEachCollection runs fn for every name with at most parallelism calls in
// flight. A failing collection does not stop the others; every error is
// returned joined after all started calls finish. Once ctx is done no new
// collection is started.
func ForEachCollection(
	ctx context.Context,
	names []string,
	parallelism int,
	fn func(ctx context.Context, coll string) error,
) error {
	if parallelism < 1 {
		parallelism = config.DefaultNumParallelCollections
	}

	lg := log.Ctx(ctx)
	lg.Debugf("NumParallelCollections: %d", parallelism)

	// errgroup.Group without WithContext: one failure must not cancel the rest.
	var eg errgroup.Group
	eg.SetLimit(parallelism)

	errs := make([]error, len(names)+1)

	for i, name := range names {
		if err := ctx.Err(); err != nil {
			errs[len(names)] = errors.Wrapf(err, "%d collections not started", len(names)-i)

			break
		}

		// Go blocks until a slot is free; ctx may be done by then.
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = errors.Wrapf(err, "collection %q not started", name)

				return nil
			}

			errs[i] = fn(ctx, name)

			return nil
		})
	}

	_ = eg.Wait()

	return errors.Join(errs...)
}
