// Package migrate sequences a migration: probe the source, probe the
// destination, then replicate indexes and copy documents of every target
// collection. Both endpoints are closed exactly once whatever the outcome.
package migrate

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/percona/percona-collection-migrator/errors"
	"github.com/percona/percona-collection-migrator/log"
	"github.com/percona/percona-collection-migrator/migrate/clone"
	"github.com/percona/percona-collection-migrator/topo"
)

// State represents the state of a migration.
type State string

const (
	StateInit             State = "init"
	StateCheckSource      State = "check-source"
	StateCheckDestination State = "check-dest"
	StateReplicateAndCopy State = "replicate-and-copy"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// IsTerminal reports whether no further transition follows s.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// Status is the terminal status of an outcome.
type Status string

const (
	StatusSucceeded Status = "Succeeded"
	StatusFailed    Status = "Failed"
)

// Endpoint is one side of a migration. [*topo.Conn] implements it.
type Endpoint interface {
	Probe(ctx context.Context) topo.ConnectivityResult
	Close(ctx context.Context) error
}

// Pipeline performs the copy stage against both endpoints.
type Pipeline interface {
	// ListCollections enumerates the source collections of whole-database mode.
	ListCollections(ctx context.Context) ([]string, error)
	ReplicateIndexes(ctx context.Context, coll string) error
	CopyDocuments(ctx context.Context, coll string, progress *clone.Progress) error
}

// CollectionTarget names what is migrated. An empty Collection selects every
// collection of the database.
type CollectionTarget struct {
	Database   string
	Collection string
}

func (t CollectionTarget) IsWholeDatabase() bool {
	return t.Collection == ""
}

// Outcome is the terminal result of one run.
type Outcome struct {
	Status     Status
	Stage      Stage // empty on success
	Err        error // *OrchestrationError on failure
	Progress   clone.ProgressSnapshot
	Elapsed    time.Duration
	Database   string
	Collection string
}

// Options configures a migration.
type Options struct {
	// NumParallelCollections bounds the collections copied at once in whole-database mode.
	NumParallelCollections int
}

// Migration runs one migration. A Migration is single-use.
type Migration struct {
	source   Endpoint
	dest     Endpoint
	pipeline Pipeline
	target   CollectionTarget
	options  Options

	lock           sync.Mutex
	state          State
	onStateChanged func(State)

	progress    clone.Progress
	releaseOnce sync.Once
}

// New creates a Migration. It takes ownership of both endpoints.
func New(
	source, dest Endpoint,
	pipeline Pipeline,
	target CollectionTarget,
	opts Options,
) *Migration {
	return &Migration{
		source:   source,
		dest:     dest,
		pipeline: pipeline,
		target:   target,
		options:  opts,
		state:    StateInit,
	}
}

// SetOnStateChanged registers a callback invoked after every transition.
func (m *Migration) SetOnStateChanged(fn func(State)) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.onStateChanged = fn
}

func (m *Migration) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.state
}

func (m *Migration) setState(state State) {
	m.lock.Lock()
	m.state = state
	onStateChanged := m.onStateChanged
	m.lock.Unlock()

	if onStateChanged != nil {
		onStateChanged(state)
	}
}

// Run drives the migration to a terminal state and releases both endpoints.
// ctx bounds every network call; canceling it fails the run.
func (m *Migration) Run(ctx context.Context) (outcome Outcome) {
	lg := log.Ctx(ctx).With(log.Scope("migrate"), log.NS(m.target.Database, m.target.Collection))
	ctx = lg.WithContext(ctx)

	startedAt := time.Now()

	defer m.release(ctx)

	defer func() {
		r := recover()
		if r == nil {
			return
		}

		err := &OrchestrationError{
			Stage:      StageMigration,
			Collection: m.target.Collection,
			Err:        errors.Errorf("panic: %v", r),
		}
		outcome = m.finish(ctx, startedAt, err)
	}()

	err := m.run(ctx)

	return m.finish(ctx, startedAt, err)
}

func (m *Migration) run(ctx context.Context) error {
	m.setState(StateCheckSource)

	res := m.source.Probe(ctx)
	if !res.Reachable {
		return &OrchestrationError{Stage: StageSourceConnectivity, Err: res.Err}
	}

	m.setState(StateCheckDestination)

	res = m.dest.Probe(ctx)
	if !res.Reachable {
		return &OrchestrationError{Stage: StageDestConnectivity, Err: res.Err}
	}

	m.setState(StateReplicateAndCopy)

	err := m.replicateAndCopy(ctx)
	if err != nil {
		return &OrchestrationError{Stage: StageMigration, Collection: m.target.Collection, Err: err}
	}

	return nil
}

func (m *Migration) replicateAndCopy(ctx context.Context) error {
	lg := log.Ctx(ctx)

	names := []string{m.target.Collection}

	if m.target.IsWholeDatabase() {
		var err error

		names, err = m.pipeline.ListCollections(ctx)
		if err != nil {
			return errors.Wrap(err, "list collections")
		}

		if len(names) == 0 {
			lg.Warn("No collection to migrate")

			return nil
		}

		lg.Infof("Migrating %d collections", len(names))
	}

	return clone.ForEachCollection(ctx, names, m.options.NumParallelCollections,
		m.migrateCollection)
}

func (m *Migration) migrateCollection(ctx context.Context, coll string) (err error) {
	lg := log.Ctx(ctx).With(log.NS(m.target.Database, coll))
	ctx = lg.WithContext(ctx)

	defer func() {
		r := recover()
		if r != nil {
			err = errors.Errorf("collection %q: panic: %v", coll, r)
		}
	}()

	err = m.pipeline.ReplicateIndexes(ctx, coll)
	if err != nil {
		return err //nolint:wrapcheck
	}

	return m.pipeline.CopyDocuments(ctx, coll, &m.progress) //nolint:wrapcheck
}

func (m *Migration) finish(ctx context.Context, startedAt time.Time, err error) Outcome {
	lg := log.Ctx(ctx)

	outcome := Outcome{
		Status:     StatusSucceeded,
		Progress:   m.progress.Snapshot(),
		Elapsed:    time.Since(startedAt),
		Database:   m.target.Database,
		Collection: m.target.Collection,
	}

	summary := lg.With(
		log.Elapsed(outcome.Elapsed),
		log.Count(outcome.Progress.Documents),
		log.Size(outcome.Progress.SizeBytes))

	if err != nil {
		m.setState(StateFailed)

		outcome.Status = StatusFailed
		outcome.Err = err

		var oe *OrchestrationError
		if errors.As(err, &oe) {
			outcome.Stage = oe.Stage
		}

		summary.Errorf(err, "Migration failed after %s: %d documents, %s committed",
			outcome.Elapsed.Round(time.Millisecond),
			outcome.Progress.Documents, humanize.Bytes(outcome.Progress.SizeBytes))

		return outcome
	}

	m.setState(StateDone)

	summary.Infof("Migration completed in %s: %d documents, %s",
		outcome.Elapsed.Round(time.Millisecond),
		outcome.Progress.Documents, humanize.Bytes(outcome.Progress.SizeBytes))

	return outcome
}

func (m *Migration) release(ctx context.Context) {
	m.releaseOnce.Do(func() {
		closeEndpoints(ctx, m.source, m.dest)
	})
}

func closeEndpoints(ctx context.Context, endpoints ...Endpoint) {
	for _, ep := range endpoints {
		if ep == nil {
			continue
		}

		err := ep.Close(ctx)
		if err != nil {
			log.Ctx(ctx).Warnf("Close endpoint: %s", err)
		}
	}
}
