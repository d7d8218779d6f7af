package topo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/percona/percona-collection-migrator/log"
	"github.com/percona/percona-collection-migrator/metrics"
)

// CommandRunner runs a database command. [*mongo.Database] implements it.
type CommandRunner interface {
	RunCommand(ctx context.Context, cmd any, opts ...options.Lister[options.RunCmdOptions]) *mongo.SingleResult
}

// ConnectivityResult is the outcome of a probe. Err holds the reason when the
// endpoint is not reachable.
type ConnectivityResult struct {
	Reachable bool
	Err       error
}

// Probe pings the endpoint through db. Any failure, including cancellation,
// yields an unreachable result; Probe itself never fails.
func Probe(ctx context.Context, db CommandRunner, label string) ConnectivityResult {
	lg := log.Ctx(ctx).With(log.Scope("probe:" + label))
	startedAt := time.Now()

	err := db.RunCommand(ctx, bson.D{{"ping", 1}}).Err()
	if err != nil {
		lg.With(log.Elapsed(time.Since(startedAt))).
			Errorf(err, "The %s endpoint is not reachable", label)
		metrics.IncProbe(label, false)

		return ConnectivityResult{Reachable: false, Err: err}
	}

	lg.With(log.Elapsed(time.Since(startedAt))).
		Infof("Successfully connected to the %s endpoint", label)
	metrics.IncProbe(label, true)

	return ConnectivityResult{Reachable: true}
}
