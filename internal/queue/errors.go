package queue

import "fmt"

// ExhaustedError marks a job that failed on its final allowed attempt.
// The job is moved to the dead state and needs operator intervention
// (fizzy queue requeue) to run again.
type ExhaustedError struct {
	JobID    string
	Kind     string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("queue: %s job %s dead after %d attempts: %v", e.Kind, e.JobID, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
