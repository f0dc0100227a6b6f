package collab

import (
	"log"

	"conarrator/api/internal/storage"
)

// AttachAutoSnapshot registers the persistence side effect: every state
// change queues an asynchronous snapshot of the durable view. Snapshots
// of a contentless project are skipped so a transient empty render never
// overwrites a previously richer persisted state. The returned function
// unregisters the listener and stops the writer.
func AttachAutoSnapshot(s *Store, snapshots *storage.SnapshotStore) func() {
	pending := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-pending:
				state := s.persistable()
				if len(state.Messages) == 0 && len(state.Documents) == 0 {
					continue
				}
				if err := snapshots.Save(state); err != nil {
					log.Printf("collab: snapshot save failed: %v", err)
				}
			}
		}
	}()

	unsubscribe := s.OnChange(func() {
		// Coalesce: one queued write covers any number of changes, the
		// writer always reads the latest state.
		select {
		case pending <- struct{}{}:
		default:
		}
	})

	return func() {
		unsubscribe()
		close(done)
	}
}
