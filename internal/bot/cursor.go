package bot

import (
	"fmt"
	"math"

	"github.com/keepmind9/tgembed/internal/logger"
	"github.com/sirupsen/logrus"
)

// CursorStore persists the next update offset across restarts
type CursorStore interface {
	Load() (uint64, error)
	Save(next uint64) error
}

// UpdateCursor is the offset of the next update to request. Zero means no
// update has been consumed yet. It only moves forward.
type UpdateCursor struct {
	next  uint64
	store CursorStore
}

// NewUpdateCursor creates a cursor, restoring it from store when one is
// given.
func NewUpdateCursor(store CursorStore) (*UpdateCursor, error) {
	c := &UpdateCursor{store: store}
	if store == nil {
		return c, nil
	}
	next, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load update cursor: %w", err)
	}
	c.next = next
	logger.WithField("next", next).Info("update-cursor-restored")
	return c, nil
}

// Next returns the offset to send with the next getUpdates
func (c *UpdateCursor) Next() uint64 {
	return c.next
}

// Advance marks update id as consumed. It returns false, leaving the cursor
// unchanged, when id is not past it. When the store fails to save the new
// offset the cursor still moves and the error is returned; the update must
// then be dropped, since after a restart it would be fetched again.
func (c *UpdateCursor) Advance(id uint64) (bool, error) {
	if id == math.MaxUint64 || id+1 <= c.next {
		return false, nil
	}
	c.next = id + 1

	if c.store == nil {
		return true, nil
	}
	if err := c.store.Save(c.next); err != nil {
		logger.WithFields(logrus.Fields{
			"next":  c.next,
			"error": err,
		}).Error("failed-to-persist-update-cursor")
		return true, fmt.Errorf("%w: %w", ErrCursorNotSaved, err)
	}
	return true, nil
}
