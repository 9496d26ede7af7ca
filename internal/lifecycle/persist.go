package lifecycle

import (
	"context"
	"time"

	"github.com/rocjay1/easytax/internal/models"
)

// SnapshotWriter stores saved batches outside the process.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, userID string, snap models.Snapshot) error
}

// PersistResult is the outcome of one persistence attempt.
type PersistResult struct {
	Err error
	// Revision identifies the saved batch the attempt wrote.
	Revision uint64
}

// OK reports whether the snapshot was stored.
func (r PersistResult) OK() bool {
	return r.Err == nil
}

// Persist stores the saved batch of s in the background. The returned
// channel receives exactly one result and is then closed. s itself is never
// changed; apply the result with MarkPersisted.
func Persist(ctx context.Context, w SnapshotWriter, userID string, s State) <-chan PersistResult {
	out := make(chan PersistResult, 1)

	snap, err := s.Snapshot()
	if err != nil {
		out <- PersistResult{Err: err, Revision: s.revision}
		close(out)
		return out
	}
	snap.SavedAt = time.Now().UTC()

	go func() {
		defer close(out)
		out <- PersistResult{Err: w.SaveSnapshot(ctx, userID, snap), Revision: s.revision}
	}()
	return out
}
