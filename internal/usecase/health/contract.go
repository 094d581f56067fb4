package health

import "context"

// DBPinger checks rating store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ModelChecker reports whether a trained model is serving.
type ModelChecker interface {
	Ready() bool
}
