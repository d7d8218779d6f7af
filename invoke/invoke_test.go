package invoke //nolint:testpackage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/percona-collection-migrator/config"
	"github.com/percona/percona-collection-migrator/errors"
	"github.com/percona/percona-collection-migrator/secret"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Copy.NumParallelCollections = 2
	cfg.MongoDB.OperationTimeout = time.Minute

	return cfg
}

func testEnvironments() *config.Environments {
	return &config.Environments{Environments: map[string]*config.Environment{
		"dev": {
			Name:                   "dev",
			SourceHost:             "src:27017",
			SourceAuthDatabase:     "admin",
			SourceUsernameRef:      "src-user",
			SourcePasswordRef:      "src-pass",
			DestinationHost:        "dst:27017",
			DestinationUsernameRef: "dst-user",
			DestinationPasswordRef: "dst-pass",
			ValidDatabases:         []string{"app"},
			ValidCollections:       []string{"orders", "users"},
		},
	}}
}

func testResolver() *countingResolver {
	return &countingResolver{Static: secret.Static{
		"src-user": "alice",
		"src-pass": "alice-pw",
		"dst-user": "bob",
		"dst-pass": "bob-pw",
	}}
}

func request(op Operation, coll string) OperationRequest {
	return OperationRequest{
		Environment:    "dev",
		DatabaseName:   "app",
		CollectionName: coll,
		Operation:      op,
	}
}

func TestParseOperation(t *testing.T) {
	t.Parallel()

	for _, op := range Operations() {
		got, err := ParseOperation(string(op))
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}

	for _, name := range []string{"", "migrate", "DropCollection"} {
		_, err := ParseOperation(name)
		require.ErrorIs(t, err, ErrUnknownOperation, name)
		assert.Equal(t, "unknown", operationLabel(Operation(name)))
	}
}

func TestHandleExecuteMigration(t *testing.T) {
	t.Parallel()

	conn := newFakeConnector()
	resolver := testResolver()
	h := NewHandler(testConfig(), testEnvironments(), resolver, conn)

	res := h.Handle(t.Context(), RequestContext{CorrelationID: "req-1"},
		request(OperationExecuteMigration, "orders"))

	assert.Equal(t, OperationResult{
		DatabaseName:   "app",
		CollectionName: "orders",
		Operation:      OperationExecuteMigration,
		Status:         StatusSuccessful,
	}, res)
	assert.Equal(t, []string{"orders"}, conn.pipeline.copied)

	require.NotNil(t, conn.sourceDesc)
	assert.Equal(t, "src:27017", conn.sourceDesc.Host)
	assert.Equal(t, "app", conn.sourceDesc.Database)
	assert.Equal(t, "alice", conn.sourceDesc.Username)
	assert.Equal(t, "alice-pw", conn.sourceDesc.Password)
	assert.Equal(t, "admin", conn.sourceDesc.AuthSource)

	require.NotNil(t, conn.destDesc)
	assert.Equal(t, "bob", conn.destDesc.Username)
	assert.Empty(t, conn.destDesc.AuthSource)

	assert.Equal(t, []string{"src-user", "src-pass", "dst-user", "dst-pass"}, resolver.calls)
	assert.Equal(t, 1, conn.source.closes)
	assert.Equal(t, 1, conn.dest.closes)
}

func TestHandleWholeDatabase(t *testing.T) {
	t.Parallel()

	conn := newFakeConnector()
	conn.pipeline.collections = []string{"orders", "users", "audit"}
	h := NewHandler(testConfig(), testEnvironments(), testResolver(), conn)

	res := h.Handle(t.Context(), RequestContext{}, request(OperationExecuteMigration, ""))

	assert.True(t, res.Succeeded(), res.Status)
	assert.ElementsMatch(t, []string{"orders", "users", "audit"}, conn.pipeline.copied)
}

func TestHandleMigrationFailure(t *testing.T) {
	t.Parallel()

	conn := newFakeConnector()
	conn.pipeline.copyErr = errors.New("E11000 duplicate key")
	h := NewHandler(testConfig(), testEnvironments(), testResolver(), conn)

	res := h.Handle(t.Context(), RequestContext{}, request(OperationExecuteMigration, "orders"))

	assert.False(t, res.Succeeded())
	assert.Equal(t,
		"Failed with: Migration process was interrupted or failed: E11000 duplicate key",
		res.Status)
}

func TestHandleCheckConnectivity(t *testing.T) {
	t.Parallel()

	t.Run("both reachable", func(t *testing.T) {
		t.Parallel()

		conn := newFakeConnector()
		h := NewHandler(testConfig(), testEnvironments(), testResolver(), conn)

		res := h.Handle(t.Context(), RequestContext{}, request(OperationCheckConnectivity, "orders"))

		assert.Equal(t, StatusSuccessful, res.Status)
		assert.Equal(t, 1, conn.source.probes)
		assert.Equal(t, 1, conn.dest.probes)
	})

	t.Run("source unreachable", func(t *testing.T) {
		t.Parallel()

		conn := newFakeConnector()
		conn.source.unreachable = true
		h := NewHandler(testConfig(), testEnvironments(), testResolver(), conn)

		res := h.Handle(t.Context(), RequestContext{}, request(OperationCheckConnectivity, "orders"))

		assert.Equal(t, "Failed with: Source Connectivity Test Failed", res.Status)
		assert.Equal(t, 0, conn.dest.probes)
		assert.Equal(t, 1, conn.source.closes)
		assert.Equal(t, 1, conn.dest.closes)
	})

	t.Run("destination unreachable", func(t *testing.T) {
		t.Parallel()

		conn := newFakeConnector()
		conn.dest.unreachable = true
		h := NewHandler(testConfig(), testEnvironments(), testResolver(), conn)

		res := h.Handle(t.Context(), RequestContext{}, request(OperationCheckConnectivity, "orders"))

		assert.Equal(t, "Failed with: Destination Connectivity Test Failed", res.Status)
	})
}

func TestHandleGetCollectionSize(t *testing.T) {
	t.Parallel()

	conn := newFakeConnector()
	conn.dest.count = 42
	resolver := testResolver()
	h := NewHandler(testConfig(), testEnvironments(), resolver, conn)

	res := h.Handle(t.Context(), RequestContext{}, request(OperationGetCollectionSize, "users"))

	require.True(t, res.Succeeded(), res.Status)
	require.NotNil(t, res.Count)
	assert.Equal(t, int64(42), *res.Count)

	assert.Nil(t, conn.sourceDesc)
	assert.Equal(t, []string{"dst-user", "dst-pass"}, resolver.calls)
	assert.Equal(t, 1, conn.dest.probes)
}

func TestHandleDropCollection(t *testing.T) {
	t.Parallel()

	conn := newFakeConnector()
	h := NewHandler(testConfig(), testEnvironments(), testResolver(), conn)

	res := h.Handle(t.Context(), RequestContext{}, request(OperationDropCollection, "orders"))

	assert.True(t, res.Succeeded(), res.Status)
	assert.Nil(t, res.Count)
	assert.Equal(t, []string{"orders"}, conn.dest.dropped)
	assert.Equal(t, 0, conn.source.probes)
}

func TestHandleRejectedBeforeConnecting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		req    OperationRequest
		status string
	}{
		{
			name:   "missing collection",
			req:    request(OperationDropCollection, ""),
			status: "Failed with: collectionName: is required",
		},
		{
			name:   "collection not allowed",
			req:    request(OperationGetCollectionSize, "invoices"),
			status: `Failed with: collectionName: collection "invoices" is not allowed in this environment`,
		},
		{
			name: "environment not configured",
			req: OperationRequest{
				Environment:    "qa",
				DatabaseName:   "app",
				CollectionName: "orders",
				Operation:      OperationDropCollection,
			},
			status: "Failed with: unknown environment: qa",
		},
		{
			name:   "unknown operation",
			req:    request("renameCollection", "orders"),
			status: "Failed with: operation: must be one of: dropCollection, checkConnectivity, getCollectionSize, executeMigration", //nolint:lll
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conn := newFakeConnector()
			resolver := testResolver()
			h := NewHandler(testConfig(), testEnvironments(), resolver, conn)

			res := h.Handle(t.Context(), RequestContext{}, tt.req)

			assert.Equal(t, tt.status, res.Status)
			assert.Zero(t, conn.opens)
			assert.Empty(t, resolver.calls)
		})
	}
}

func TestHandleSecretFailure(t *testing.T) {
	t.Parallel()

	conn := newFakeConnector()
	resolver := &countingResolver{Static: secret.Static{"dst-user": "bob"}}
	h := NewHandler(testConfig(), testEnvironments(), resolver, conn)

	res := h.Handle(t.Context(), RequestContext{}, request(OperationDropCollection, "orders"))

	assert.Equal(t, "Failed with: destination credentials: password: secret not found: dst-pass", res.Status)
	assert.Zero(t, conn.opens)
}

func TestHandleConnectorFailure(t *testing.T) {
	t.Parallel()

	conn := newFakeConnector()
	conn.openErr = errors.New("bad uri")
	h := NewHandler(testConfig(), testEnvironments(), testResolver(), conn)

	res := h.Handle(t.Context(), RequestContext{}, request(OperationDropCollection, "orders"))

	assert.Equal(t, "Failed with: bad uri", res.Status)
}

func TestHandleRecoversPanic(t *testing.T) {
	t.Parallel()

	h := NewHandler(testConfig(), testEnvironments(), testResolver(), nil)

	var res OperationResult

	require.NotPanics(t, func() {
		res = h.Handle(t.Context(), RequestContext{}, request(OperationDropCollection, "orders"))
	})
	assert.Contains(t, res.Status, "Failed with: panic:")
}
