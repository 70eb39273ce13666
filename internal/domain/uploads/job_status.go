package uploads

// JobStatus represents the aggregate state of an upload job, derived entirely
// from its item counters.
type JobStatus string

const (
	// JobStatusActive indicates at least one item is still pending or in progress.
	JobStatusActive JobStatus = "ACTIVE"

	// JobStatusCompleted indicates every item finished successfully.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusPartiallyFailed indicates all items reached a terminal state
	// and at least one of them failed.
	JobStatusPartiallyFailed JobStatus = "PARTIALLY_FAILED"

	// JobStatusUnspecified indicates an unknown or invalid status.
	JobStatusUnspecified JobStatus = "UNSPECIFIED"
)

// ParseJobStatus converts a string to its JobStatus equivalent.
func ParseJobStatus(s string) JobStatus {
	switch s {
	case string(JobStatusActive):
		return JobStatusActive
	case string(JobStatusCompleted):
		return JobStatusCompleted
	case string(JobStatusPartiallyFailed):
		return JobStatusPartiallyFailed
	default:
		return JobStatusUnspecified
	}
}

// String returns the string representation of the status.
func (s JobStatus) String() string { return string(s) }

// IsTerminal returns true if no further item transitions can change the job.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusPartiallyFailed
}
