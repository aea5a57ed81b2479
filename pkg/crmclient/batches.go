package crmclient

import (
	"context"
	"fmt"
)

const defaultBatchSize = 50

// BatchFunc submits one batch of record ids and reports its outcome.
type BatchFunc func(ctx context.Context, batch []string) (*BatchResult, error)

// RunBatches partitions ids into fixed-size batches and submits them
// sequentially through submit. A rate-limited batch halts the run with the
// partial result preserved; the remainder is simply not attempted. A
// transient network failure or a server rejection fails only its own batch
// and the run continues. Nothing retries and nothing rolls back: partial
// completion is the terminal outcome, and the caller re-runs for the
// remainder.
func RunBatches(ctx context.Context, ids []string, size int, submit BatchFunc) *BatchResult {
	if size <= 0 {
		size = defaultBatchSize
	}
	total := &BatchResult{}
	for start := 0; start < len(ids); start += size {
		if ctx.Err() != nil {
			return total
		}
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		label := fmt.Sprintf("batch %d-%d", start+1, end)

		res, err := submit(ctx, batch)
		if err != nil {
			total.Failed += len(batch)
			total.Errors = append(total.Errors, ItemError{Label: label, Message: err.Error()})
			if IsRateLimited(err) {
				total.Halted = true
				return total
			}
			continue
		}

		total.Succeeded += res.Succeeded
		total.Failed += res.Failed
		total.Errors = append(total.Errors, res.Errors...)
		total.Linked += res.Linked
		if res.Halted {
			total.Halted = true
			return total
		}
	}
	return total
}
