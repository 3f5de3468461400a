package lutservice

import (
	"context"
	"errors"
	"time"
)

// SlotSource reports the current slot. solanarpc.Client satisfies it.
type SlotSource interface {
	Slot(ctx context.Context) (uint64, error)
}

// StaticSlot always reports the same slot.
type StaticSlot uint64

func (s StaticSlot) Slot(context.Context) (uint64, error) { return uint64(s), nil }

// Ticker derives the slot from wall time: one slot every SlotDuration
// since Genesis.
type Ticker struct {
	Genesis      time.Time
	SlotDuration time.Duration
	Now          func() time.Time
}

func (t Ticker) Slot(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if t.SlotDuration <= 0 {
		return 0, errors.New("slot duration must be positive")
	}
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	d := now().Sub(t.Genesis)
	if d < 0 {
		return 0, nil
	}
	return uint64(d / t.SlotDuration), nil
}
