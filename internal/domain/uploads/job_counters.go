package uploads

import "fmt"

// JobCounters tracks how many items of a job sit in each lifecycle state.
// The four counters always sum to the job's total item count.
type JobCounters struct {
	pending    int
	inProgress int
	done       int
	failed     int
}

// NewJobCounters creates counters for a freshly created job where every item
// is pending.
func NewJobCounters(total int) JobCounters {
	return JobCounters{pending: total}
}

// ReconstructJobCounters creates counters from persisted values.
func ReconstructJobCounters(pending, inProgress, done, failed int) JobCounters {
	return JobCounters{
		pending:    pending,
		inProgress: inProgress,
		done:       done,
		failed:     failed,
	}
}

// Pending returns the number of items waiting to start.
func (c JobCounters) Pending() int { return c.pending }

// InProgress returns the number of items currently transferring.
func (c JobCounters) InProgress() int { return c.inProgress }

// Done returns the number of items that finished successfully.
func (c JobCounters) Done() int { return c.done }

// Failed returns the number of items that failed.
func (c JobCounters) Failed() int { return c.failed }

// Total returns the sum of all counters.
func (c JobCounters) Total() int {
	return c.pending + c.inProgress + c.done + c.failed
}

// Outstanding returns the number of items that have not reached a terminal
// state yet.
func (c JobCounters) Outstanding() int {
	return c.pending + c.inProgress
}

// IsBalanced reports whether the counters sum to the expected total.
func (c JobCounters) IsBalanced(total int) bool {
	return c.Total() == total
}

// OnItemStatusChanged moves one item between counter buckets. It returns an
// error when the source bucket is already empty, which would indicate a
// double-applied transition.
func (c JobCounters) OnItemStatusChanged(from, to ItemStatus) (JobCounters, error) {
	next := c

	switch from {
	case ItemStatusPending:
		if next.pending == 0 {
			return c, fmt.Errorf("no pending items to move to %s", to)
		}
		next.pending--
	case ItemStatusInProgress:
		if next.inProgress == 0 {
			return c, fmt.Errorf("no in-progress items to move to %s", to)
		}
		next.inProgress--
	default:
		return c, fmt.Errorf("cannot move item out of terminal status %s", from)
	}

	switch to {
	case ItemStatusInProgress:
		next.inProgress++
	case ItemStatusDone:
		next.done++
	case ItemStatusFailed:
		next.failed++
	default:
		return c, fmt.Errorf("cannot move item into status %s", to)
	}

	return next, nil
}

// DeriveStatus computes the job status implied by the counters. A job with no
// outstanding items is terminal, and any failure makes it partially failed.
func (c JobCounters) DeriveStatus() JobStatus {
	if c.Outstanding() > 0 {
		return JobStatusActive
	}
	if c.failed > 0 {
		return JobStatusPartiallyFailed
	}
	return JobStatusCompleted
}
