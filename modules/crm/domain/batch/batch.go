// Package batch holds the shared bookkeeping for batched mutations: fixed
// size partitioning, per-item error records, and aggregate results. Bulk
// operations and imports both report through it.
package batch

import (
	"errors"

	"github.com/meridianhq/meridian-sdk/pkg/serrors"
)

// ErrRateLimited signals the backend throttled a batch. Partitioned runs
// stop issuing further batches when they see it; completed work stands.
var ErrRateLimited = serrors.NewError("RATE_LIMITED", "rate limited, retry the remainder later")

// IsRateLimited reports whether err carries the rate-limit code, however
// deeply wrapped.
func IsRateLimited(err error) bool {
	var base *serrors.BaseError
	if errors.As(err, &base) {
		return base.Code == ErrRateLimited.Code
	}
	return false
}

// Partition splits items into consecutive groups of at most size. The groups
// cover the input exactly: ceil(len/size) of them, order preserved, nothing
// duplicated. A non-positive size yields a single group.
func Partition[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}
	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		groups = append(groups, items[start:end])
	}
	return groups
}

// ItemError locates one failure inside a run. Label is a row number, record
// identifier, or batch ordinal depending on the operation.
type ItemError struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// Result aggregates a batched run. Partial completion is a terminal outcome:
// nothing retries and nothing rolls back.
type Result struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
	// Linked counts side effects such as contacts attached to accounts
	// during an import.
	Linked int `json:"linked,omitempty"`
	// Halted is set when a rate limit stopped the run before all batches
	// were attempted.
	Halted bool `json:"halted,omitempty"`
}

func (r *Result) AddSuccess(n int) {
	r.Succeeded += n
}

func (r *Result) AddFailure(label, message string) {
	r.Failed++
	r.Errors = append(r.Errors, ItemError{Label: label, Message: message})
}

// Merge folds another result into this one.
func (r *Result) Merge(other Result) {
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
	r.Linked += other.Linked
	r.Halted = r.Halted || other.Halted
}

// FullSuccess reports whether every item went through.
func (r *Result) FullSuccess() bool {
	return r.Failed == 0 && !r.Halted
}
