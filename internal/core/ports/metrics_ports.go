package ports

import "time"

// OperationRecorder observes the outcome of service operations.
type OperationRecorder interface {
	Observe(operation string, err error, elapsed time.Duration)
}
