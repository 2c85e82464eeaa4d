package position

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/picture-api/internal/utils/platformerrors"
)

type memStore struct {
	ranks    map[string]*Ranks
	shiftErr error
}

func newMemStore() *memStore {
	return &memStore{ranks: map[string]*Ranks{}}
}

func (m *memStore) put(id string, gallery, startPage int) {
	m.ranks[id] = &Ranks{Gallery: gallery, StartPage: startPage}
}

func (m *memStore) ShiftUp(_ context.Context, slot Slot, from int, excludeID string) (int64, error) {
	if m.shiftErr != nil {
		return 0, m.shiftErr
	}
	var n int64
	for id, r := range m.ranks {
		if id == excludeID {
			continue
		}
		if v := slot.Of(r); v > 0 && v >= from {
			slot.Set(r, v+1)
			n++
		}
	}
	return n, nil
}

func (m *memStore) ShiftDown(_ context.Context, slot Slot, after int, excludeID string) (int64, error) {
	if m.shiftErr != nil {
		return 0, m.shiftErr
	}
	var n int64
	for id, r := range m.ranks {
		if id == excludeID {
			continue
		}
		if v := slot.Of(r); v > after {
			slot.Set(r, v-1)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountRanked(_ context.Context, slot Slot, excludeID string) (int64, error) {
	var n int64
	for id, r := range m.ranks {
		if id != excludeID && slot.Of(r) > 0 {
			n++
		}
	}
	return n, nil
}

func (m *memStore) values(slot Slot) []int {
	out := []int{}
	for _, r := range m.ranks {
		if v := slot.Of(r); v > 0 {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func (m *memStore) rank(id string, slot Slot) int {
	return slot.Of(m.ranks[id])
}

func assertGapFree(t *testing.T, m *memStore, slot Slot) {
	t.Helper()
	values := m.values(slot)
	for i, v := range values {
		require.Equalf(t, i+1, v, "%s ranks are not contiguous: %v", slot, values)
	}
}

// insert mirrors what the picture service does for a new entity.
func insert(t *testing.T, l *Ledger, m *memStore, id string, slot Slot, target int) int {
	t.Helper()
	m.ranks[id] = &Ranks{}
	rank, err := l.InsertAt(context.Background(), slot, target, id)
	require.NoError(t, err)
	slot.Set(m.ranks[id], rank)
	return rank
}

func TestInsertAtShiftsTail(t *testing.T) {
	m := newMemStore()
	m.put("a", 1, 0)
	m.put("b", 2, 0)
	m.put("c", 3, 0)
	l := NewLedger(m)

	rank := insert(t, l, m, "new", SlotGallery, 2)

	assert.Equal(t, 2, rank)
	assert.Equal(t, 1, m.rank("a", SlotGallery))
	assert.Equal(t, 3, m.rank("b", SlotGallery))
	assert.Equal(t, 4, m.rank("c", SlotGallery))
	assert.Equal(t, []int{1, 2, 3, 4}, m.values(SlotGallery))
}

func TestRemoveAtClosesGap(t *testing.T) {
	m := newMemStore()
	m.put("a", 0, 1)
	m.put("b", 0, 2)
	m.put("c", 0, 3)
	m.put("d", 0, 4)
	l := NewLedger(m)

	require.NoError(t, l.RemoveAt(context.Background(), SlotStartPage, 2, "b"))
	delete(m.ranks, "b")

	assert.Equal(t, []int{1, 2, 3}, m.values(SlotStartPage))
	assert.Equal(t, 2, m.rank("c", SlotStartPage))
	assert.Equal(t, 3, m.rank("d", SlotStartPage))
}

func TestInsertAtZeroIsNoop(t *testing.T) {
	m := newMemStore()
	m.put("a", 1, 2)
	m.put("b", 2, 1)
	l := NewLedger(m)

	for _, target := range []int{0, -3} {
		rank, err := l.InsertAt(context.Background(), SlotGallery, target, "")
		require.NoError(t, err)
		assert.Equal(t, 0, rank)
	}
	require.NoError(t, l.RemoveAt(context.Background(), SlotGallery, 0, ""))

	assert.Equal(t, 1, m.rank("a", SlotGallery))
	assert.Equal(t, 2, m.rank("b", SlotGallery))
}

func TestInsertAtClampsPastEnd(t *testing.T) {
	m := newMemStore()
	m.put("a", 1, 0)
	m.put("b", 2, 0)
	l := NewLedger(m)

	rank := insert(t, l, m, "new", SlotGallery, 99)

	assert.Equal(t, 3, rank)
	assert.Equal(t, []int{1, 2, 3}, m.values(SlotGallery))

	rank = insert(t, l, m, "first", SlotStartPage, 7)
	assert.Equal(t, 1, rank)
}

func TestSlotsAreIndependent(t *testing.T) {
	m := newMemStore()
	m.put("a", 1, 3)
	m.put("b", 2, 1)
	m.put("c", 3, 2)
	l := NewLedger(m)
	ctx := context.Background()

	insert(t, l, m, "new", SlotGallery, 1)
	require.NoError(t, l.RemoveAt(ctx, SlotGallery, 2, "a"))
	m.ranks["a"].Gallery = 0

	assert.Equal(t, 3, m.rank("a", SlotStartPage))
	assert.Equal(t, 1, m.rank("b", SlotStartPage))
	assert.Equal(t, 2, m.rank("c", SlotStartPage))
	assert.Equal(t, 0, m.rank("new", SlotStartPage))
	assertGapFree(t, m, SlotGallery)
}

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     int
		expected map[string]int
	}{
		{name: "down the list", from: 1, to: 3, want: 3, expected: map[string]int{"a": 3, "b": 1, "c": 2, "d": 4}},
		{name: "up the list", from: 4, to: 2, want: 2, expected: map[string]int{"a": 1, "b": 3, "c": 4, "d": 2}},
		{name: "past the end", from: 2, to: 10, want: 4, expected: map[string]int{"a": 1, "b": 4, "c": 2, "d": 3}},
		{name: "same rank", from: 3, to: 3, want: 3, expected: map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}},
		{name: "unranked joins", from: 0, to: 2, want: 2, expected: map[string]int{"a": 1, "b": 3, "c": 4, "d": 5}},
		{name: "leave the slot", from: 2, to: 0, want: 0, expected: map[string]int{"a": 1, "b": 0, "c": 2, "d": 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemStore()
			m.put("a", 1, 0)
			m.put("b", 2, 0)
			m.put("c", 3, 0)
			m.put("d", 4, 0)
			mover := map[int]string{1: "a", 2: "b", 3: "c", 4: "d"}[tt.from]
			if tt.from == 0 {
				mover = "e"
				m.put("e", 0, 0)
			}
			l := NewLedger(m)

			got, err := l.Move(context.Background(), SlotGallery, tt.from, tt.to, mover)
			require.NoError(t, err)
			m.ranks[mover].Gallery = got

			assert.Equal(t, tt.want, got)
			for id, rank := range tt.expected {
				assert.Equalf(t, rank, m.rank(id, SlotGallery), "rank of %s", id)
			}
			assertGapFree(t, m, SlotGallery)
			for _, r := range m.ranks {
				assert.Zero(t, r.StartPage)
			}
		})
	}
}

func TestRandomSequencesStayGapFree(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	m := newMemStore()
	l := NewLedger(m)
	ctx := context.Background()
	next := 0

	for step := 0; step < 500; step++ {
		slot := Slots[rng.Intn(len(Slots))]
		ids := make([]string, 0, len(m.ranks))
		for id := range m.ranks {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		switch op := rng.Intn(4); {
		case op == 0 || len(ids) == 0:
			next++
			id := fmt.Sprintf("p%d", next)
			insert(t, l, m, id, slot, rng.Intn(len(ids)+3))
		case op == 1:
			id := ids[rng.Intn(len(ids))]
			for _, s := range Slots {
				require.NoError(t, l.RemoveAt(ctx, s, s.Of(m.ranks[id]), id))
			}
			delete(m.ranks, id)
		default:
			id := ids[rng.Intn(len(ids))]
			got, err := l.Move(ctx, slot, slot.Of(m.ranks[id]), rng.Intn(len(ids)+2), id)
			require.NoError(t, err)
			slot.Set(m.ranks[id], got)
		}

		for _, s := range Slots {
			assertGapFree(t, m, s)
		}
	}
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	m := newMemStore()
	m.put("a", 1, 0)
	m.shiftErr = platformerrors.NewError(context.Background(), platformerrors.LayerRepository,
		platformerrors.ErrorTypeDatabaseError, "update failed", errors.New("connection reset"), "repo-uuid")
	l := NewLedger(m)

	_, err := l.InsertAt(context.Background(), SlotGallery, 1, "")
	require.Error(t, err)
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeDatabaseError))

	err = l.RemoveAt(context.Background(), SlotGallery, 1, "")
	require.Error(t, err)
	assert.Equal(t, 1, m.rank("a", SlotGallery))
}

func TestInvalidSlotIsValidationError(t *testing.T) {
	l := NewLedger(newMemStore())

	_, err := l.InsertAt(context.Background(), Slot(9), 1, "")
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
}
