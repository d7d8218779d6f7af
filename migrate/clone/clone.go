// Package clone copies the documents of collections in acknowledged, ordered batches.
package clone

import (
	"context"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/percona/percona-collection-migrator/config"
	"github.com/percona/percona-collection-migrator/errors"
	"github.com/percona/percona-collection-migrator/log"
	"github.com/percona/percona-collection-migrator/metrics"
)

// Reader streams the documents of the source collection. [*mongo.Collection] implements it.
type Reader interface {
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (*mongo.Cursor, error)
}

// Writer inserts documents into the destination collection. [*mongo.Collection] implements it.
type Writer interface {
	InsertMany(
		ctx context.Context,
		documents any,
		opts ...options.Lister[options.InsertManyOptions],
	) (*mongo.InsertManyResult, error)
}

// Options configures the copy behavior.
type Options struct {
	// BatchSize is the number of documents per insert.
	// Default: 200 (config.DefaultBatchSize)
	BatchSize int
}

// BatchInsertError reports the batch that was not committed. Batches before it
// stay committed on the destination and no batch after it was attempted.
type BatchInsertError struct {
	Collection string
	Batch      int   // 1-based ordinal of the failed batch
	Committed  int64 // documents in acknowledged batches
	Err        error
}

func (e *BatchInsertError) Error() string {
	return "Error during data migration for collection: " + e.Collection +
		": batch " + strconv.Itoa(e.Batch) + ": " + e.Err.Error() +
		" (" + strconv.FormatInt(e.Committed, 10) + " documents committed)"
}

func (e *BatchInsertError) Unwrap() error {
	return e.Err
}

// CopyCollection copies every document of coll from src to dst in ordered
// batches. Each batch is acknowledged before the next one is read, so at most
// one batch is buffered. Acknowledged batches are added to progress.
func CopyCollection(
	ctx context.Context,
	coll string,
	src Reader,
	dst Writer,
	progress *Progress,
	opts Options,
) (err error) {
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = config.DefaultBatchSize
	}

	lg := log.Ctx(ctx)
	startedAt := time.Now()

	metrics.CollectionCopyStarted()
	defer func() { metrics.CollectionCopyFinished(err == nil) }()

	cur, err := src.Find(ctx, bson.D{},
		options.Find().SetBatchSize(int32(min(batchSize, math.MaxInt32)))) //nolint:gosec
	if err != nil {
		return errors.Wrapf(err, "Error during data migration for collection: %s: find", coll)
	}

	defer func() {
		err := cur.Close(context.WithoutCancel(ctx))
		if err != nil {
			lg.Warnf("Close cursor: %s", err)
		}
	}()

	var (
		ordinal   int
		committed int64
		copied    uint64
	)

	batch := make([]any, 0, batchSize)
	batchBytes := uint64(0)

	flush := func() error {
		ordinal++

		if err := ctx.Err(); err != nil {
			return &BatchInsertError{Collection: coll, Batch: ordinal, Committed: committed, Err: err}
		}

		metrics.AddCopyReadDocumentCount(len(batch))
		metrics.AddCopyReadSize(batchBytes)

		insertStartedAt := time.Now()

		_, err := dst.InsertMany(ctx, batch, options.InsertMany().SetOrdered(true))
		if err != nil {
			return &BatchInsertError{Collection: coll, Batch: ordinal, Committed: committed, Err: err}
		}

		metrics.ObserveCopyInsertBatchDuration(time.Since(insertStartedAt))
		metrics.AddCopyInsertDocumentCount(len(batch))
		metrics.AddCopyInsertSize(batchBytes)

		committed += int64(len(batch))
		copied += batchBytes
		progress.Add(int64(len(batch)), batchBytes)

		lg.With(log.Batch(ordinal), log.Count(committed)).
			Debugf("Migrated %d documents so far", committed)

		batch = make([]any, 0, batchSize)
		batchBytes = 0

		return nil
	}

	for cur.Next(ctx) {
		doc := slices.Clone(cur.Current)
		batch = append(batch, doc)
		batchBytes += uint64(len(doc))

		if len(batch) == batchSize {
			err = flush()
			if err != nil {
				return err
			}
		}
	}

	err = cur.Err()
	if err != nil {
		return errors.Wrapf(err, "Error during data migration for collection: %s: read", coll)
	}

	if len(batch) != 0 {
		err = flush()
		if err != nil {
			return err
		}
	}

	elapsed := time.Since(startedAt)
	lg.With(log.Elapsed(elapsed), log.Count(committed), log.Size(copied)).
		Infof("Collection %q copied: %d documents, %s in %s",
			coll, committed, humanize.Bytes(copied), elapsed.Round(time.Millisecond))

	return nil
}
