package log

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	scopeKey     = "s"
	nsKey        = "ns"
	elapsedKey   = "elapsed"
	sizeKey      = "size"
	countKey     = "count"
	batchKey     = "batch"
	requestIDKey = "request_id"
)

// Attr adds a field to a logger context.
type Attr func(zerolog.Context) zerolog.Context

func Scope(name string) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Str(scopeKey, name)
	}
}

// NS formats db and coll as a namespace. An empty coll logs the database alone.
func NS(db, coll string) Attr {
	ns := db
	if coll != "" {
		ns = db + "." + coll
	}

	return func(c zerolog.Context) zerolog.Context {
		return c.Str(nsKey, ns)
	}
}

func Elapsed(d time.Duration) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Dur(elapsedKey, d)
	}
}

// Size is a byte size.
func Size(v uint64) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Uint64(sizeKey, v)
	}
}

func Count(v int64) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Int64(countKey, v)
	}
}

// Batch is the 1-based ordinal of an insert batch.
func Batch(n int) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Int(batchKey, n)
	}
}

func RequestID(id string) Attr {
	return func(c zerolog.Context) zerolog.Context {
		return c.Str(requestIDKey, id)
	}
}
