package index

import (
	"sync/atomic"

	apperrors "github.com/stackseek/stackseek/pkg/errors"
)

// Holder publishes snapshots to readers via an atomic pointer swap. Queries
// load the current snapshot once and keep using that generation for their
// whole lifetime; a concurrent rebuild never blocks them and never tears a
// read.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder returns an empty Holder. Load fails with ErrIndexUnavailable
// until the first Publish.
func NewHolder() *Holder {
	return &Holder{}
}

// Load returns the currently published snapshot.
func (h *Holder) Load() (*Snapshot, error) {
	snap := h.current.Load()
	if snap == nil {
		return nil, apperrors.ErrIndexUnavailable
	}
	return snap, nil
}

// Publish atomically replaces the current snapshot.
func (h *Holder) Publish(snap *Snapshot) {
	h.current.Store(snap)
}

// Ready reports whether a snapshot has been published.
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}
