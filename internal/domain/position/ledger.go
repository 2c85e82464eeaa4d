// Package position keeps the gallery and start page rankings gap free.
//
// For each slot the positive ranks always form exactly {1..N}. The ledger holds no state of its
// own; every call re-reads what it needs from the Store, which is expected to be bound to the
// caller's transaction through the context.
package position

import (
	"context"
	"fmt"

	"github.com/janhq/picture-api/internal/utils/platformerrors"
)

// Store is the storage capability the ledger needs. excludeID names an entity that must be
// neither shifted nor counted, typically the one being moved; empty excludes nothing.
type Store interface {
	// ShiftUp increments the slot of every entity ranked at from or later.
	ShiftUp(ctx context.Context, slot Slot, from int, excludeID string) (int64, error)
	// ShiftDown decrements the slot of every entity ranked after the given rank.
	ShiftDown(ctx context.Context, slot Slot, after int, excludeID string) (int64, error)
	// CountRanked returns how many entities hold a positive rank in the slot.
	CountRanked(ctx context.Context, slot Slot, excludeID string) (int64, error)
}

// Ledger applies rank insertions and removals through a Store.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// InsertAt opens a hole at targetRank and returns the rank the caller must store on the entity.
// A targetRank of 0 or less is a no-op that returns 0. Ranks past the end are clamped to N+1.
func (l *Ledger) InsertAt(ctx context.Context, slot Slot, targetRank int, excludeID string) (int, error) {
	if targetRank <= 0 {
		return 0, nil
	}
	if err := checkSlot(ctx, slot); err != nil {
		return 0, err
	}

	count, err := l.store.CountRanked(ctx, slot, excludeID)
	if err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, fmt.Sprintf("count %s ranks", slot))
	}

	rank := targetRank
	if limit := int(count) + 1; rank > limit {
		rank = limit
	}

	if _, err := l.store.ShiftUp(ctx, slot, rank, excludeID); err != nil {
		return 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, fmt.Sprintf("shift %s ranks up", slot))
	}
	return rank, nil
}

// RemoveAt closes the gap left when the entity holding rank leaves the slot. The caller clears
// the entity's own rank. A rank of 0 or less is a no-op.
func (l *Ledger) RemoveAt(ctx context.Context, slot Slot, rank int, excludeID string) error {
	if rank <= 0 {
		return nil
	}
	if err := checkSlot(ctx, slot); err != nil {
		return err
	}

	if _, err := l.store.ShiftDown(ctx, slot, rank, excludeID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, fmt.Sprintf("shift %s ranks down", slot))
	}
	return nil
}

// Move relocates the entity id from one rank to another within the slot and returns its new
// rank. Moving to 0 or less takes the entity out of the slot.
func (l *Ledger) Move(ctx context.Context, slot Slot, from, to int, id string) (int, error) {
	if from == to {
		return from, nil
	}
	if err := l.RemoveAt(ctx, slot, from, id); err != nil {
		return 0, err
	}
	return l.InsertAt(ctx, slot, to, id)
}

func checkSlot(ctx context.Context, slot Slot) error {
	if slot.Valid() {
		return nil
	}
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
		fmt.Sprintf("unknown position slot %s", slot), nil, "4f0b7c1e-8d2a-4e65-b3c9-1a7e5d2f9c40")
}
