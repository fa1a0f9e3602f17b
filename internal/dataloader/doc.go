// Package dataloader coalesces per-item lookups made by field resolvers into
// bulk fetches against a storage collaborator.
//
// # Overview
//
// A request owns one Scheduler and a set of Loaders bound to it. Resolver code
// calls Loader.Load for a single key as if it were a direct lookup; the loader
// records the key in its current window and suspends the caller. The window is
// flushed with one call to the loader's FetchFunc once every resolver goroutine
// that could still add keys has either finished or suspended in a loader.
//
// # Scheduling
//
// Scheduler.Run starts n tracked goroutines. The scheduler counts the tracked
// goroutines that are runnable; a goroutine that suspends in a loader "parks"
// and no longer counts. When the count reaches zero every loader with a
// non-empty window is dispatched. This is the tick: for a breadth-first
// resolver graph it produces one bulk fetch per loader per depth.
//
// A fetch runs on its own goroutine. When it completes, the scheduler counts
// the woken waiters as runnable again before they are released, so a flush
// can never happen while a woken resolver is about to enqueue more keys.
//
// Loads issued from goroutines not started by Run (including fetch functions
// themselves) are not tracked; they flush pending windows immediately.
//
// # Caching and errors
//
// Every key is resolved at most once per Loader. Results are cached for the
// lifetime of the loader, including failures: a failed bulk fetch fails every
// key of its window with the same error. A key absent from the fetched map is
// "not found", which is not an error.
//
// # Ranges
//
// NewRange builds a loader over composite keys (group, offset) backed by a
// ranged read. Offsets are partitioned by group and each group is read once,
// from its smallest to its largest requested offset, concurrently with the
// other groups. Only requested offsets are returned.
package dataloader
