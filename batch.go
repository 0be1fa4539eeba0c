package financial

import (
	"context"
	"sync"
	"time"
)

// DefaultChunkSize is the number of items dispatched concurrently per chunk.
const DefaultChunkSize = 50

// BatchOptions tunes ProcessBatch.
type BatchOptions struct {
	// ChunkSize is the number of items processed concurrently per chunk;
	// non-positive selects DefaultChunkSize.
	ChunkSize int
	// Delay is honored between chunks to bound load on the store. It shapes
	// load only and plays no part in correctness.
	Delay time.Duration
	// StopOnError aborts processing of subsequent chunks after the first
	// failure. Items already committed are not retroactively undone.
	StopOnError bool
	// RollbackOnFailure reverses the items that succeeded within this run,
	// using the per-item inverse operation, when any item failed.
	RollbackOnFailure bool
}

// BatchSuccess is one successfully processed item with its original index.
type BatchSuccess[R any] struct {
	Index  int
	Result R
}

// BatchFailure is one failed item with its original index.
type BatchFailure struct {
	Index int
	Err   error
}

// BatchResult is the complete accounting of a batch run: every input index
// appears in exactly one of Successful or Failed.
type BatchResult[R any] struct {
	Successful []BatchSuccess[R]
	Failed     []BatchFailure
	// Total is the number of items actually attempted. It equals the input
	// length unless StopOnError aborted remaining chunks.
	Total int
	// Stopped reports that StopOnError aborted processing before the end.
	Stopped bool
	// RolledBack reports that same-run successes were reversed.
	RolledBack bool
	// RollbackFailures lists successes whose inverse operation failed.
	RollbackFailures []BatchFailure
}

// ProcessBatch runs op over items in sequential chunks. Within a chunk all
// operations are dispatched concurrently and awaited together; between
// chunks the configured delay is honored. Each item's outcome is recorded
// independently, so one failure never silently stops the batch unless
// StopOnError is set.
//
// Batch operations do not get ledger-level atomicity across the whole batch,
// only within each per-item operation. With RollbackOnFailure, undo is
// called for each same-run success, in reverse order, after a failure; undo
// may be nil when the option is unset.
func ProcessBatch[T, R any](ctx context.Context, items []T, op func(context.Context, T) (R, error), undo func(context.Context, R) error, opts BatchOptions) BatchResult[R] {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var res BatchResult[R]

	type outcome struct {
		result R
		err    error
	}

	for start := 0; start < len(items); start += chunkSize {
		if start > 0 {
			if !sleepCtx(ctx, opts.Delay) {
				res.Stopped = true
				break
			}
		}

		end := min(start+chunkSize, len(items))
		chunk := items[start:end]
		outcomes := make([]outcome, len(chunk))

		var wg sync.WaitGroup
		for i, item := range chunk {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r, err := op(ctx, item)
				outcomes[i] = outcome{result: r, err: err}
			}()
		}
		wg.Wait()

		failed := false
		for i, out := range outcomes {
			idx := start + i
			res.Total++
			if out.err != nil {
				failed = true
				res.Failed = append(res.Failed, BatchFailure{Index: idx, Err: out.err})
			} else {
				res.Successful = append(res.Successful, BatchSuccess[R]{Index: idx, Result: out.result})
			}
		}

		if failed && opts.StopOnError {
			res.Stopped = end < len(items)
			break
		}
	}

	if opts.RollbackOnFailure && len(res.Failed) > 0 && undo != nil {
		res.RolledBack = true
		for i := len(res.Successful) - 1; i >= 0; i-- {
			s := res.Successful[i]
			if err := undo(ctx, s.Result); err != nil {
				res.RollbackFailures = append(res.RollbackFailures, BatchFailure{Index: s.Index, Err: err})
			}
		}
	}

	return res
}

// sleepCtx waits d unless the context is done first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
