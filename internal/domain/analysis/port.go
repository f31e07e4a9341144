package analysis

import "context"

// Reply is whatever the service answered, success or not.
type Reply struct {
	Status int
	Body   []byte
}

// Service port (transport to the external analysis endpoint).
// An error means no response was received at all.
type Service interface {
	Analyze(ctx context.Context, req Request) (Reply, error)
}

// Observer is notified after each terminal transition of a submission.
type Observer interface {
	Completed(ctx context.Context, entry HistoryEntry)
	Rejected(ctx context.Context, log string, f *Failure)
}
