package migrate

import (
	"context"

	"github.com/percona/percona-collection-migrator/migrate/catalog"
	"github.com/percona/percona-collection-migrator/migrate/clone"
	"github.com/percona/percona-collection-migrator/sel"
	"github.com/percona/percona-collection-migrator/topo"
)

// MongoDestination is a [Destination] over a destination connection.
type MongoDestination struct {
	*topo.Conn
}

func (d MongoDestination) CountDocuments(ctx context.Context, coll string) (int64, error) {
	return catalog.CountDocuments(ctx, d.Database().Collection(coll)) //nolint:wrapcheck
}

func (d MongoDestination) DropCollection(ctx context.Context, coll string) error {
	return catalog.DropCollection(ctx, d.Database().Collection(coll)) //nolint:wrapcheck
}

// MongoPipeline is a [Pipeline] between two connections. Collections keep
// their names on the destination.
type MongoPipeline struct {
	source *topo.Conn
	dest   *topo.Conn
	filter sel.CollectionFilter
	opts   clone.Options
}

// NewMongoPipeline creates a pipeline. A nil filter allows every collection.
func NewMongoPipeline(
	source, dest *topo.Conn,
	filter sel.CollectionFilter,
	opts clone.Options,
) *MongoPipeline {
	if filter == nil {
		filter = sel.AllowAllFilter
	}

	return &MongoPipeline{source: source, dest: dest, filter: filter, opts: opts}
}

func (p *MongoPipeline) ListCollections(ctx context.Context) ([]string, error) {
	names, err := topo.ListCollectionNames(ctx, p.source.Database())
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return sel.Apply(names, p.filter), nil
}

func (p *MongoPipeline) ReplicateIndexes(ctx context.Context, coll string) error {
	return catalog.ReplicateIndexes(ctx, //nolint:wrapcheck
		topo.CollectionIndexes(p.source.Database().Collection(coll)),
		p.dest.Database(),
		coll)
}

func (p *MongoPipeline) CopyDocuments(ctx context.Context, coll string, progress *clone.Progress) error {
	return clone.CopyCollection(ctx, coll, //nolint:wrapcheck
		p.source.Database().Collection(coll),
		p.dest.Database().Collection(coll),
		progress,
		p.opts)
}
