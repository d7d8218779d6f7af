package invoke //nolint:testpackage

import (
	"context"
	"sync"

	"github.com/percona/percona-collection-migrator/errors"
	"github.com/percona/percona-collection-migrator/migrate"
	"github.com/percona/percona-collection-migrator/migrate/clone"
	"github.com/percona/percona-collection-migrator/secret"
	"github.com/percona/percona-collection-migrator/topo"
)

type fakeEndpoint struct {
	unreachable bool
	count       int64

	mu      sync.Mutex
	probes  int
	closes  int
	dropped []string
}

func (f *fakeEndpoint) Probe(context.Context) topo.ConnectivityResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.probes++

	if f.unreachable {
		return topo.ConnectivityResult{Err: errors.New("connection refused")}
	}

	return topo.ConnectivityResult{Reachable: true}
}

func (f *fakeEndpoint) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closes++

	return nil
}

func (f *fakeEndpoint) CountDocuments(context.Context, string) (int64, error) {
	return f.count, nil
}

func (f *fakeEndpoint) DropCollection(_ context.Context, coll string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.dropped = append(f.dropped, coll)

	return nil
}

type fakePipeline struct {
	collections []string
	copyErr     error
	panicOnCopy bool

	mu     sync.Mutex
	copied []string
}

func (f *fakePipeline) ListCollections(context.Context) ([]string, error) {
	return f.collections, nil
}

func (f *fakePipeline) ReplicateIndexes(context.Context, string) error {
	return nil
}

func (f *fakePipeline) CopyDocuments(_ context.Context, coll string, progress *clone.Progress) error {
	if f.panicOnCopy {
		panic("copy exploded")
	}

	if f.copyErr != nil {
		return f.copyErr
	}

	progress.Add(10, 1000)

	f.mu.Lock()
	f.copied = append(f.copied, coll)
	f.mu.Unlock()

	return nil
}

// fakeConnector hands out the same fakes for every request and records
// the descriptors it was asked to open.
type fakeConnector struct {
	source   *fakeEndpoint
	dest     *fakeEndpoint
	pipeline *fakePipeline
	openErr  error

	opens      int
	sourceDesc *topo.ConnectionDescriptor
	destDesc   *topo.ConnectionDescriptor
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{
		source:   &fakeEndpoint{},
		dest:     &fakeEndpoint{},
		pipeline: &fakePipeline{},
	}
}

func (f *fakeConnector) Open(
	_ context.Context,
	source, dest *topo.ConnectionDescriptor,
) (*Session, error) {
	f.opens++
	f.sourceDesc = source
	f.destDesc = dest

	if f.openErr != nil {
		return nil, f.openErr
	}

	var sess Session
	if source != nil {
		sess.Source = f.source
	}

	if dest != nil {
		sess.Dest = f.dest
	}

	if source != nil && dest != nil {
		sess.Pipeline = f.pipeline
	}

	return &sess, nil
}

var _ migrate.Destination = (*fakeEndpoint)(nil)

// countingResolver wraps a static resolver and counts lookups.
type countingResolver struct {
	secret.Static

	mu    sync.Mutex
	calls []string
}

func (r *countingResolver) Resolve(ctx context.Context, ref string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, ref)
	r.mu.Unlock()

	return r.Static.Resolve(ctx, ref) //nolint:wrapcheck
}
