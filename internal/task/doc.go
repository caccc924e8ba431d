// Package task defines the recurring task value: a named payload with a run interval and an
// absolute expiration.
//
// A task has no stored state machine. Its state is derived on demand from two instants:
//   - last run (absent until the first Execute) decides Pending / CoolingDown / Due
//   - expire decides Expired, independently of the above
//
// Task values are not safe for concurrent use; callers that share them serialize access
// (see internal/task/poller).
package task
