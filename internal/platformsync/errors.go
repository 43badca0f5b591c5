package platformsync

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyncFailure marks a projection write that failed after the relational
// mutation had already committed.
var ErrSyncFailure = errors.New("platform sync failed")

// Op names the step of a sync that failed.
type Op string

const (
	OpLoad   Op = "load"
	OpBuild  Op = "build"
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// SyncError is the failure of one platform's sync.
type SyncError struct {
	PlatformID int64
	Op         Op
	Err        error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync platform %d: %s: %v", e.PlatformID, e.Op, e.Err)
}

func (e *SyncError) Unwrap() []error { return []error{ErrSyncFailure, e.Err} }

// BatchError collects per-platform failures of a multi-platform sync. Platforms
// not listed were synced successfully.
type BatchError struct {
	Failures []*SyncError
}

func (e *BatchError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%d platform sync(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f
	}
	return out
}

// PlatformIDs returns the ids of the platforms that failed.
func (e *BatchError) PlatformIDs() []int64 {
	ids := make([]int64, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.PlatformID
	}
	return ids
}
