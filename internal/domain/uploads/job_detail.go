package uploads

// JobDetail is a read model combining a job with its items, used by the
// status endpoint. It carries no behavior.
type JobDetail struct {
	Job   *Job
	Items []*Item
}
