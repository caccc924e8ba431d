package app

import (
	"context"
	"time"

	"cadence/internal/eventbus"
	"cadence/internal/storage"
	logx "cadence/pkg/logx"
)

var journalKinds = map[string]storage.Kind{
	eventbus.TypeTaskAdded:    storage.KindAdded,
	eventbus.TypeTaskRemoved:  storage.KindRemoved,
	eventbus.TypeTaskExecuted: storage.KindExecuted,
	eventbus.TypeTaskEvicted:  storage.KindEvicted,
}

func journalEntry(e eventbus.Event) (storage.Entry, bool) {
	kind, ok := journalKinds[e.Type]
	if !ok {
		return storage.Entry{}, false
	}
	te, ok := e.Data.(eventbus.TaskEvent)
	if !ok {
		return storage.Entry{}, false
	}
	return storage.Entry{
		At:       e.Time,
		Kind:     kind,
		Task:     te.Name,
		Runs:     te.Runs,
		LastRun:  te.LastRun,
		Expire:   te.Expire,
		Interval: te.Interval,
	}, true
}

// runJournal appends task lifecycle events to store until ctx is done or
// events is closed. Write errors are logged and the event is dropped.
func runJournal(ctx context.Context, events <-chan eventbus.Event, store storage.Store, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			entry, ok := journalEntry(e)
			if !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := store.Append(wctx, entry)
			cancel()
			if err != nil {
				log.Warn("journal append failed", logx.String("task", entry.Task), logx.String("kind", string(entry.Kind)), logx.Err(err))
			}
		}
	}
}
