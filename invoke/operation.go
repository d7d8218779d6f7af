package invoke

import (
	"github.com/percona/percona-collection-migrator/errors"
)

// ErrUnknownOperation is returned by [ParseOperation] for names outside the closed set.
var ErrUnknownOperation = errors.New("unknown operation")

// Operation is one of the operations a request can ask for.
type Operation string

const (
	OperationDropCollection    Operation = "dropCollection"
	OperationCheckConnectivity Operation = "checkConnectivity"
	OperationGetCollectionSize Operation = "getCollectionSize"
	OperationExecuteMigration  Operation = "executeMigration"
)

// Operations lists every supported operation.
func Operations() []Operation {
	return []Operation{
		OperationDropCollection,
		OperationCheckConnectivity,
		OperationGetCollectionSize,
		OperationExecuteMigration,
	}
}

// ParseOperation returns the operation named s.
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)

	switch op {
	case OperationDropCollection,
		OperationCheckConnectivity,
		OperationGetCollectionSize,
		OperationExecuteMigration:
		return op, nil
	}

	return "", errors.Errorf("%w: %q", ErrUnknownOperation, s)
}

func (op Operation) String() string {
	return string(op)
}

// needsSource reports whether op talks to the source endpoint.
func (op Operation) needsSource() bool {
	return op == OperationCheckConnectivity || op == OperationExecuteMigration
}
