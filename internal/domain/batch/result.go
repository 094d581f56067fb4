// Package batch describes per-item outcomes of bulk rating ingestion.
package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusAccepted ItemStatus = "accepted"
	StatusRejected ItemStatus = "rejected"
)

// Result is the outcome of ingesting one rating of a batch.
type Result struct {
	index  int
	key    string
	status ItemStatus
	err    error
}

// Accepted records a stored rating.
func Accepted(index int, key string) Result {
	return Result{index: index, key: key, status: StatusAccepted}
}

// Rejected records a rating that was not stored.
func Rejected(index int, key string, err error) Result {
	return Result{index: index, key: key, status: StatusRejected, err: err}
}

// Index returns the position of the item in the request.
func (r Result) Index() int { return r.index }

// Key returns the "user:item" key, empty when the input could not be parsed.
func (r Result) Key() string { return r.key }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Err returns the rejection cause, if any.
func (r Result) Err() error { return r.err }

// Summary counts accepted and rejected items.
func Summary(results []Result) (accepted, rejected int) {
	for _, r := range results {
		if r.status == StatusAccepted {
			accepted++
		} else {
			rejected++
		}
	}
	return accepted, rejected
}
