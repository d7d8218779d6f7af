package migrate

import (
	"context"

	"github.com/percona/percona-collection-migrator/log"
)

// Destination is the destination endpoint with the operations that do not
// need the source.
type Destination interface {
	Endpoint
	CountDocuments(ctx context.Context, coll string) (int64, error)
	DropCollection(ctx context.Context, coll string) error
}

// CheckConnectivity probes the source, then the destination. The destination
// is not probed when the source is unreachable. Both endpoints are closed.
func CheckConnectivity(ctx context.Context, source, dest Endpoint) error {
	defer closeEndpoints(ctx, source, dest)

	res := source.Probe(ctx)
	if !res.Reachable {
		return &OrchestrationError{Stage: StageSourceConnectivity, Err: res.Err}
	}

	res = dest.Probe(ctx)
	if !res.Reachable {
		return &OrchestrationError{Stage: StageDestConnectivity, Err: res.Err}
	}

	log.Ctx(ctx).Info("Both endpoints are reachable")

	return nil
}

// CollectionSize probes the destination and counts the documents of coll
// there. The destination is closed.
func CollectionSize(ctx context.Context, dest Destination, coll string) (int64, error) {
	defer closeEndpoints(ctx, dest)

	res := dest.Probe(ctx)
	if !res.Reachable {
		return 0, &OrchestrationError{Stage: StageDestConnectivity, Err: res.Err}
	}

	n, err := dest.CountDocuments(ctx, coll)
	if err != nil {
		return 0, &OrchestrationError{Stage: StageDestOperation, Collection: coll, Err: err}
	}

	log.Ctx(ctx).With(log.Count(n)).Infof("Collection %q has %d documents", coll, n)

	return n, nil
}

// DropCollection probes the destination and drops coll there. The
// destination is closed.
func DropCollection(ctx context.Context, dest Destination, coll string) error {
	defer closeEndpoints(ctx, dest)

	res := dest.Probe(ctx)
	if !res.Reachable {
		return &OrchestrationError{Stage: StageDestConnectivity, Err: res.Err}
	}

	err := dest.DropCollection(ctx, coll)
	if err != nil {
		return &OrchestrationError{Stage: StageDestOperation, Collection: coll, Err: err}
	}

	log.Ctx(ctx).Infof("Collection %q dropped", coll)

	return nil
}
