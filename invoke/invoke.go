// Package invoke turns an operation request into an operation result: it
// validates the request, resolves the environment and its credentials,
// connects and dispatches to the migrate package.
package invoke

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/percona/percona-collection-migrator/config"
	"github.com/percona/percona-collection-migrator/errors"
	"github.com/percona/percona-collection-migrator/log"
	"github.com/percona/percona-collection-migrator/metrics"
	"github.com/percona/percona-collection-migrator/migrate"
	"github.com/percona/percona-collection-migrator/secret"
	"github.com/percona/percona-collection-migrator/topo"
	"github.com/percona/percona-collection-migrator/util"
	"github.com/percona/percona-collection-migrator/validate"
)

const (
	StatusSuccessful   = "Successful"
	statusFailedPrefix = "Failed with: "
)

// OperationRequest is one invocation. An empty CollectionName is accepted
// for executeMigration only and migrates the whole database.
//
//nolint:lll
type OperationRequest struct {
	Environment    string    `json:"environment"    validate:"required,oneof=dev qa prod"`
	DatabaseName   string    `json:"databaseName"   validate:"required,dbname,alloweddb"`
	CollectionName string    `json:"collectionName" validate:"required_unless=Operation executeMigration,omitempty,collname,allowedcoll"`
	Operation      Operation `json:"operation"      validate:"required,oneof=dropCollection checkConnectivity getCollectionSize executeMigration"`
}

// RequestContext carries invocation metadata.
type RequestContext struct {
	// CorrelationID tags every log line of the invocation. A random one is
	// generated when empty.
	CorrelationID string
	// RemainingTime is the time budget of the caller. It is only logged; when
	// zero the deadline of ctx is used.
	RemainingTime time.Duration
}

// OperationResult is the reply to a request.
type OperationResult struct {
	DatabaseName   string    `json:"databaseName"`
	CollectionName string    `json:"collectionName"`
	Operation      Operation `json:"operation"`
	Status         string    `json:"status"`
	Count          *int64    `json:"count,omitempty"`
}

// Succeeded reports whether the operation completed.
func (r OperationResult) Succeeded() bool {
	return r.Status == StatusSuccessful
}

// Session holds the opened endpoints of one request.
type Session struct {
	Source   migrate.Endpoint    // nil unless requested
	Dest     migrate.Destination // nil unless requested
	Pipeline migrate.Pipeline    // set when both endpoints are open
}

// Connector opens endpoints. A nil descriptor skips that side.
type Connector interface {
	Open(ctx context.Context, source, dest *topo.ConnectionDescriptor) (*Session, error)
}

// Handler serves operation requests. It is safe for concurrent use.
type Handler struct {
	cfg       *config.Config
	envs      *config.Environments
	secrets   secret.Resolver
	connector Connector
}

func NewHandler(
	cfg *config.Config,
	envs *config.Environments,
	secrets secret.Resolver,
	connector Connector,
) *Handler {
	return &Handler{cfg: cfg, envs: envs, secrets: secrets, connector: connector}
}

// Handle runs req and always returns a result; failures are reported in
// the result status.
func (h *Handler) Handle(ctx context.Context, rc RequestContext, req OperationRequest) (res OperationResult) {
	if rc.CorrelationID == "" {
		rc.CorrelationID = uuid.NewString()
	}

	if rc.RemainingTime == 0 {
		rc.RemainingTime = util.Remaining(ctx)
	}

	lg := log.Ctx(ctx).With(
		log.Scope("invoke"),
		log.RequestID(rc.CorrelationID),
		log.NS(req.DatabaseName, req.CollectionName))
	ctx = lg.WithContext(ctx)

	lg.Infof("Received %s request for environment %q (remaining time: %s)",
		req.Operation, req.Environment, rc.RemainingTime)

	res = OperationResult{
		DatabaseName:   req.DatabaseName,
		CollectionName: req.CollectionName,
		Operation:      req.Operation,
	}

	defer func() {
		if r := recover(); r != nil {
			res.Count = nil
			res.Status = statusFailedPrefix + errors.Errorf("panic: %v", r).Error()
			lg.Errorf(nil, "Operation %s panicked: %v", req.Operation, r)
		}

		metrics.IncOperation(operationLabel(req.Operation), res.Succeeded())
	}()

	count, err := h.handle(ctx, req)
	if err != nil {
		res.Status = statusFailedPrefix + err.Error()
		lg.Error(err, "Operation failed")

		return res
	}

	res.Status = StatusSuccessful
	res.Count = count

	lg.Infof("Operation %s completed", req.Operation)

	return res
}

func (h *Handler) handle(ctx context.Context, req OperationRequest) (*int64, error) {
	env, envErr := h.envs.Get(req.Environment)

	err := validate.Request(ctx, &req, env)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if envErr != nil {
		return nil, envErr
	}

	op, err := ParseOperation(string(req.Operation))
	if err != nil {
		return nil, err
	}

	var source, dest *topo.ConnectionDescriptor

	if op.needsSource() {
		source, err = h.descriptor(ctx, env.SourceHost, env.SourceAuthDatabase,
			env.SourceUsernameRef, env.SourcePasswordRef, req.DatabaseName)
		if err != nil {
			return nil, errors.Wrap(err, "source credentials")
		}
	}

	dest, err = h.descriptor(ctx, env.DestinationHost, env.DestinationAuthDatabase,
		env.DestinationUsernameRef, env.DestinationPasswordRef, req.DatabaseName)
	if err != nil {
		return nil, errors.Wrap(err, "destination credentials")
	}

	// The migration runs as long as the caller allows; the other
	// operations are bounded.
	if op != OperationExecuteMigration && h.cfg.MongoDB.OperationTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, h.cfg.MongoDB.OperationTimeout)
		defer cancel()
	}

	sess, err := h.connector.Open(ctx, source, dest)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	switch op {
	case OperationCheckConnectivity:
		return nil, migrate.CheckConnectivity(ctx, sess.Source, sess.Dest) //nolint:wrapcheck

	case OperationGetCollectionSize:
		n, err := migrate.CollectionSize(ctx, sess.Dest, req.CollectionName)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		return &n, nil

	case OperationDropCollection:
		return nil, migrate.DropCollection(ctx, sess.Dest, req.CollectionName) //nolint:wrapcheck

	case OperationExecuteMigration:
		target := migrate.CollectionTarget{
			Database:   req.DatabaseName,
			Collection: req.CollectionName,
		}
		opts := migrate.Options{
			NumParallelCollections: h.cfg.Copy.NumParallelCollections,
		}

		outcome := migrate.New(sess.Source, sess.Dest, sess.Pipeline, target, opts).Run(ctx)

		return nil, outcome.Err
	}

	return nil, errors.Errorf("%w: %q", ErrUnknownOperation, op)
}

func (h *Handler) descriptor(
	ctx context.Context,
	host, authDB, userRef, passRef, database string,
) (*topo.ConnectionDescriptor, error) {
	username, err := h.secrets.Resolve(ctx, userRef)
	if err != nil {
		return nil, errors.Wrap(err, "username")
	}

	password, err := h.secrets.Resolve(ctx, passRef)
	if err != nil {
		return nil, errors.Wrap(err, "password")
	}

	return &topo.ConnectionDescriptor{
		Host:       host,
		Database:   database,
		Username:   username,
		Password:   password,
		AuthSource: authDB,
	}, nil
}

// operationLabel keeps the metric label set closed.
func operationLabel(op Operation) string {
	if _, err := ParseOperation(string(op)); err != nil {
		return "unknown"
	}

	return op.String()
}
