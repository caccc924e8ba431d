// Package scheduler provides the in-memory task registry and its polling tick.
//
// The scheduler is responsible only for:
//   - keeping tasks keyed by unique name
//   - executing every due task on Run
//   - evicting every expired task on Run, after all executions
//
// It owns no goroutine, timer or lock. Callers that share a Scheduler serialize
// every call, Run included (internal/task/poller does this).
package scheduler
