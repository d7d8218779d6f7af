package clone //nolint:testpackage

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mockReader serves a fixed document set through a preloaded cursor.
type mockReader struct {
	docs    []any
	findErr error
}

func (m *mockReader) Find(
	context.Context,
	any,
	...options.Lister[options.FindOptions],
) (*mongo.Cursor, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}

	return mongo.NewCursorFromDocuments(m.docs, nil, nil)
}

// mockWriter records acknowledged batches. failAt is the 1-based batch that fails.
type mockWriter struct {
	mu      sync.Mutex
	batches [][]bson.Raw
	calls   int
	failAt  int
	failErr error

	onInsert func(call int)
}

func (m *mockWriter) InsertMany(
	_ context.Context,
	documents any,
	_ ...options.Lister[options.InsertManyOptions],
) (*mongo.InsertManyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.onInsert != nil {
		m.onInsert(m.calls)
	}

	if m.calls == m.failAt {
		return nil, m.failErr
	}

	docs := documents.([]any) //nolint:forcetypeassert
	batch := make([]bson.Raw, len(docs))
	ids := make([]any, len(docs))

	for i, doc := range docs {
		batch[i] = doc.(bson.Raw) //nolint:forcetypeassert
		ids[i] = batch[i].Lookup("_id")
	}

	m.batches = append(m.batches, batch)

	return &mongo.InsertManyResult{InsertedIDs: ids, Acknowledged: true}, nil
}

func (m *mockWriter) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	sizes := make([]int, len(m.batches))
	for i, b := range m.batches {
		sizes[i] = len(b)
	}

	return sizes
}

func makeDocs(n int) []any {
	docs := make([]any, n)
	for i := range n {
		docs[i] = bson.D{{"_id", int32(i)}, {"name", "doc"}}
	}

	return docs
}

func docsSize(docs []any) uint64 {
	var size uint64

	for _, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			panic(err)
		}

		size += uint64(len(raw))
	}

	return size
}
