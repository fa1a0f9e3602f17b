package events

import "time"

// LoaderBatchStart is emitted before a loader issues a bulk fetch.
type LoaderBatchStart struct {
	BatchID uint64
	Loader  string
	Keys    int
}

// LoaderBatchFinish is emitted after a bulk fetch returns.
// Err is shared by every key of the batch.
type LoaderBatchFinish struct {
	BatchID  uint64
	Loader   string
	Keys     int
	Found    int
	Err      error
	Duration time.Duration
}
