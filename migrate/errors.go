package migrate

// Stage names the step of an operation that failed.
type Stage string

const (
	StageSourceConnectivity Stage = "SOURCE_CONNECTIVITY_FAILED"
	StageDestConnectivity   Stage = "DEST_CONNECTIVITY_FAILED"
	StageMigration          Stage = "MIGRATION_FAILED"
	// StageDestOperation is a failed count or drop on the destination.
	StageDestOperation Stage = "DEST_OPERATION_FAILED"
)

// OrchestrationError is the single error an operation reports. Err is the
// probe reason for connectivity stages and the underlying failure otherwise.
type OrchestrationError struct {
	Stage      Stage
	Collection string
	Err        error
}

func (e *OrchestrationError) Error() string {
	switch e.Stage {
	case StageSourceConnectivity:
		return "Source Connectivity Test Failed"
	case StageDestConnectivity:
		return "Destination Connectivity Test Failed"
	case StageMigration:
		return "Migration process was interrupted or failed: " + e.cause()
	case StageDestOperation:
		return "Destination operation failed: " + e.cause()
	}

	return string(e.Stage) + ": " + e.cause()
}

func (e *OrchestrationError) Unwrap() error {
	return e.Err
}

func (e *OrchestrationError) cause() string {
	if e.Err == nil {
		return "unknown error"
	}

	return e.Err.Error()
}
