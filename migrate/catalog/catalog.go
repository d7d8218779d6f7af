// Package catalog manages collection metadata on the destination: indexes,
// document counts and drops.
package catalog

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/percona/percona-collection-migrator/errors"
	"github.com/percona/percona-collection-migrator/log"
	"github.com/percona/percona-collection-migrator/topo"
)

// IndexReplicationError reports the index that could not be created on the
// destination. Index is empty when listing the source indexes failed.
type IndexReplicationError struct {
	Collection string
	Index      string
	Err        error
}

func (e *IndexReplicationError) Error() string {
	if e.Index == "" {
		return "replicate indexes of " + e.Collection + ": " + e.Err.Error()
	}

	return "replicate index " + e.Collection + "." + e.Index + ": " + e.Err.Error()
}

func (e *IndexReplicationError) Unwrap() error {
	return e.Err
}

// ReplicateIndexes creates every index of the source collection, _id_
// included, on the destination collection of the same name. Each index is
// sent with the specification the source reports, so replaying an index that
// already exists is a no-op on the server. The first failure aborts the rest.
//
// NOTE: [mongo.IndexView.CreateMany] uses [mongo.IndexModel], which drops options
// it does not know. A raw createIndexes command keeps the specification intact.
func ReplicateIndexes(
	ctx context.Context,
	src topo.IndexLister,
	dst topo.CommandRunner,
	coll string,
) error {
	lg := log.Ctx(ctx)

	indexes, err := topo.ListIndexes(ctx, src)
	if err != nil {
		return &IndexReplicationError{Collection: coll, Err: err}
	}

	if len(indexes) == 0 {
		lg.Debugf("No indexes on %q", coll)

		return nil
	}

	names := make([]string, 0, len(indexes))

	for _, index := range indexes {
		idx := *index
		idx.Namespace = "" // rejected by servers 4.4+

		err := dst.RunCommand(ctx, bson.D{
			{"createIndexes", coll},
			{"indexes", bson.A{&idx}},
		}).Err()
		if err != nil {
			return &IndexReplicationError{Collection: coll, Index: idx.Name, Err: err}
		}

		if idx.IsDefault() {
			lg.Tracef("Replayed default index on %q", coll)

			continue
		}

		names = append(names, idx.Name)
	}

	lg.Debugf("Replicated indexes on %q: %s", coll, strings.Join(names, ", "))

	return nil
}

// Counter counts documents. [*mongo.Collection] implements it.
type Counter interface {
	CountDocuments(ctx context.Context, filter any, opts ...options.Lister[options.CountOptions]) (int64, error)
}

// CountDocuments returns the exact number of documents in the collection.
// A missing collection has zero documents.
func CountDocuments(ctx context.Context, coll Counter) (int64, error) {
	n, err := coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errors.Wrap(err, "count documents")
	}

	return n, nil
}

// Dropper drops a collection. [*mongo.Collection] implements it.
type Dropper interface {
	Drop(ctx context.Context, opts ...options.Lister[options.DropCollectionOptions]) error
}

// DropCollection drops the collection with its indexes. Dropping a missing
// collection succeeds.
func DropCollection(ctx context.Context, coll Dropper) error {
	err := coll.Drop(ctx)
	if err != nil {
		return errors.Wrap(err, "drop collection")
	}

	return nil
}
