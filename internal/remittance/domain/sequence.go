package remittance

import "context"

// SequenceCounter hands out the file sequence number (NSA). Next persists the
// returned value before returning it; implementations serialize concurrent
// callers against their own backing store.
type SequenceCounter interface {
	Next(ctx context.Context) (int, error)
}
