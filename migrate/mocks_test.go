package migrate //nolint:testpackage

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/percona/percona-collection-migrator/errors"
	"github.com/percona/percona-collection-migrator/migrate/clone"
	"github.com/percona/percona-collection-migrator/topo"
)

// mockEndpoint is a test double for the Endpoint and Destination interfaces.
type mockEndpoint struct {
	reachable bool
	probeErr  error

	count   int64
	opErr   error
	dropped []string

	probes atomic.Int32
	closes atomic.Int32
}

func reachable() *mockEndpoint {
	return &mockEndpoint{reachable: true}
}

func unreachable(reason string) *mockEndpoint {
	return &mockEndpoint{probeErr: errors.New(reason)}
}

func (m *mockEndpoint) Probe(context.Context) topo.ConnectivityResult {
	m.probes.Add(1)

	return topo.ConnectivityResult{Reachable: m.reachable, Err: m.probeErr}
}

func (m *mockEndpoint) Close(context.Context) error {
	m.closes.Add(1)

	return nil
}

func (m *mockEndpoint) CountDocuments(context.Context, string) (int64, error) {
	return m.count, m.opErr
}

func (m *mockEndpoint) DropCollection(_ context.Context, coll string) error {
	if m.opErr != nil {
		return m.opErr
	}

	m.dropped = append(m.dropped, coll)

	return nil
}

// mockPipeline is a test double for the Pipeline interface.
type mockPipeline struct {
	collections []string
	listErr     error
	panicOnList bool

	docs     map[string]int64 // documents copied per collection
	indexErr map[string]error
	copyErr  map[string]error
	panicOn  string
	blockOn  string // CopyDocuments waits for ctx cancellation

	started chan struct{}

	mu        sync.Mutex
	lists     int
	indexed   []string
	copied    []string
	callOrder []string
}

func (m *mockPipeline) ListCollections(context.Context) ([]string, error) {
	m.mu.Lock()
	m.lists++
	m.mu.Unlock()

	if m.panicOnList {
		panic("list collections exploded")
	}

	return m.collections, m.listErr
}

func (m *mockPipeline) ReplicateIndexes(_ context.Context, coll string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.indexed = append(m.indexed, coll)
	m.callOrder = append(m.callOrder, "index:"+coll)

	return m.indexErr[coll]
}

func (m *mockPipeline) CopyDocuments(ctx context.Context, coll string, progress *clone.Progress) error {
	m.mu.Lock()
	m.callOrder = append(m.callOrder, "copy:"+coll)
	m.mu.Unlock()

	if coll == m.panicOn {
		panic("copy exploded")
	}

	if coll == m.blockOn {
		if m.started != nil {
			close(m.started)
		}

		<-ctx.Done()

		return ctx.Err()
	}

	if err := m.copyErr[coll]; err != nil {
		return err
	}

	n := m.docs[coll]
	progress.Add(n, uint64(n)*100) //nolint:gosec

	m.mu.Lock()
	m.copied = append(m.copied, coll)
	m.mu.Unlock()

	return nil
}

func (m *mockPipeline) copiedCollections() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.copied...)
}
