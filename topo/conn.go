package topo

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/percona/percona-collection-migrator/config"
	"github.com/percona/percona-collection-migrator/log"
	"github.com/percona/percona-collection-migrator/util"
)

// Endpoint labels.
const (
	SourceLabel      = "source"
	DestinationLabel = "destination"
)

// Conn is a client bound to one database of one endpoint.
type Conn struct {
	label  string
	dbName string
	client *mongo.Client

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps client. The caller hands ownership of the client to Conn.
func NewConn(label string, client *mongo.Client, dbName string) *Conn {
	return &Conn{label: label, client: client, dbName: dbName}
}

// Dial builds the URI from desc, creates a client and binds it to desc.Database.
func Dial(ctx context.Context, label string, desc ConnectionDescriptor, cfg *config.Config) (*Conn, error) {
	uri, err := desc.URI()
	if err != nil {
		return nil, err
	}

	client, err := Connect(ctx, uri, cfg)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debugf("Created %s client for %s", label, desc.Redacted())

	return NewConn(label, client, desc.Database), nil
}

func (c *Conn) Client() *mongo.Client {
	return c.client
}

func (c *Conn) Database() *mongo.Database {
	return c.client.Database(c.dbName)
}

// Probe pings the bound database.
func (c *Conn) Probe(ctx context.Context) ConnectivityResult {
	return Probe(ctx, c.Database(), c.label)
}

// Close disconnects the client. Only the first call disconnects; later calls
// return the first result. It still runs after ctx is canceled.
func (c *Conn) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		ctx = context.WithoutCancel(ctx)
		c.closeErr = util.WithTimeout(ctx, config.DisconnectTimeout, c.client.Disconnect)
		if c.closeErr != nil {
			log.Ctx(ctx).Warnf("Disconnect %s: %s", c.label, c.closeErr)
		}
	})

	return c.closeErr
}
