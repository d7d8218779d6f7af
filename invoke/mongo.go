package invoke

import (
	"context"

	"github.com/percona/percona-collection-migrator/config"
	"github.com/percona/percona-collection-migrator/migrate"
	"github.com/percona/percona-collection-migrator/migrate/clone"
	"github.com/percona/percona-collection-migrator/sel"
	"github.com/percona/percona-collection-migrator/topo"
)

// MongoConnector dials MongoDB endpoints with the client settings of cfg.
type MongoConnector struct {
	cfg    *config.Config
	filter sel.CollectionFilter
}

// NewMongoConnector builds a connector. The include/exclude collection
// patterns of cfg narrow whole-database migrations.
func NewMongoConnector(cfg *config.Config) (*MongoConnector, error) {
	filter, err := sel.MakeCollectionFilter(cfg.Copy.IncludeCollections, cfg.Copy.ExcludeCollections)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &MongoConnector{cfg: cfg, filter: filter}, nil
}

// Open dials the requested sides. A dial failure is reported as a
// connectivity failure of that side.
func (c *MongoConnector) Open(
	ctx context.Context,
	source, dest *topo.ConnectionDescriptor,
) (*Session, error) {
	var (
		sess    Session
		srcConn *topo.Conn
		dstConn *topo.Conn
	)

	if source != nil {
		conn, err := topo.Dial(ctx, topo.SourceLabel, *source, c.cfg)
		if err != nil {
			return nil, &migrate.OrchestrationError{Stage: migrate.StageSourceConnectivity, Err: err}
		}

		srcConn = conn
		sess.Source = conn
	}

	if dest != nil {
		conn, err := topo.Dial(ctx, topo.DestinationLabel, *dest, c.cfg)
		if err != nil {
			if srcConn != nil {
				_ = srcConn.Close(ctx)
			}

			return nil, &migrate.OrchestrationError{Stage: migrate.StageDestConnectivity, Err: err}
		}

		dstConn = conn
		sess.Dest = migrate.MongoDestination{Conn: conn}
	}

	if srcConn != nil && dstConn != nil {
		sess.Pipeline = migrate.NewMongoPipeline(srcConn, dstConn, c.filter,
			clone.Options{BatchSize: c.cfg.Copy.BatchSize})
	}

	return &sess, nil
}
