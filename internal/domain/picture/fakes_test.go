package picture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/janhq/picture-api/internal/domain/position"
)

// memoryRepository keeps pictures in a map and doubles as the Transactor: a transaction works
// on the live map and restores a snapshot when fn fails.
type memoryRepository struct {
	mu       sync.Mutex
	rows     map[string]*Picture
	clock    time.Time
	failOn   map[string]error
	listHits int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		rows:   map[string]*Picture{},
		clock:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		failOn: map[string]error{},
	}
}

func (r *memoryRepository) fail(op string) error {
	return r.failOn[op]
}

func (r *memoryRepository) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memoryRepository) seed(id string, gallery, startPage int) *Picture {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.tick()
	pic := &Picture{
		ID:          id,
		Title:       "seed " + id,
		BlobRef:     "pictures/" + id + ".png",
		MimeType:    "image/png",
		Ranks:       position.Ranks{Gallery: gallery, StartPage: startPage},
		Description: "seeded",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.rows[id] = pic
	return clonePicture(pic)
}

func (r *memoryRepository) ranks(id string) position.Ranks {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pic, ok := r.rows[id]; ok {
		return pic.Ranks
	}
	return position.Ranks{}
}

func (r *memoryRepository) slotValues(slot position.Slot) []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []int{}
	for _, pic := range r.rows {
		if v := slot.Of(&pic.Ranks); v > 0 {
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func (r *memoryRepository) snapshot() map[string]*Picture {
	out := make(map[string]*Picture, len(r.rows))
	for id, pic := range r.rows {
		out[id] = clonePicture(pic)
	}
	return out
}

func (r *memoryRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	saved := r.snapshot()
	r.mu.Unlock()

	if err := fn(ctx); err != nil {
		r.mu.Lock()
		r.rows = saved
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepository) ShiftUp(_ context.Context, slot position.Slot, from int, excludeID string) (int64, error) {
	if err := r.fail("ShiftUp"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, pic := range r.rows {
		if id == excludeID {
			continue
		}
		if v := slot.Of(&pic.Ranks); v > 0 && v >= from {
			slot.Set(&pic.Ranks, v+1)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) ShiftDown(_ context.Context, slot position.Slot, after int, excludeID string) (int64, error) {
	if err := r.fail("ShiftDown"); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, pic := range r.rows {
		if id == excludeID {
			continue
		}
		if v := slot.Of(&pic.Ranks); v > after {
			slot.Set(&pic.Ranks, v-1)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) CountRanked(_ context.Context, slot position.Slot, excludeID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, pic := range r.rows {
		if id != excludeID && slot.Of(&pic.Ranks) > 0 {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) Create(_ context.Context, pic *Picture) error {
	if err := r.fail("Create"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[pic.ID]; exists {
		return fmt.Errorf("duplicate id %s", pic.ID)
	}
	now := r.tick()
	pic.CreatedAt, pic.UpdatedAt = now, now
	r.rows[pic.ID] = clonePicture(pic)
	return nil
}

func (r *memoryRepository) Update(_ context.Context, pic *Picture) error {
	if err := r.fail("Update"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.rows[pic.ID]; !exists {
		return fmt.Errorf("missing id %s", pic.ID)
	}
	pic.UpdatedAt = r.tick()
	r.rows[pic.ID] = clonePicture(pic)
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id string) (*Picture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pic, ok := r.rows[id]; ok {
		return clonePicture(pic), nil
	}
	return nil, nil
}

func (r *memoryRepository) GetByIDForUpdate(ctx context.Context, id string) (*Picture, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryRepository) Delete(_ context.Context, id string) error {
	if err := r.fail("Delete"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memoryRepository) List(_ context.Context, q ListQuery) ([]*Picture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listHits++

	slot, filtered := q.Slot()
	out := []*Picture{}
	for _, pic := range r.rows {
		if filtered && slot.Of(&pic.Ranks) <= 0 {
			continue
		}
		out = append(out, clonePicture(pic))
	}
	sort.Slice(out, func(i, j int) bool {
		var less bool
		if filtered {
			less = slot.Of(&out[i].Ranks) < slot.Of(&out[j].Ranks)
		} else {
			less = out[i].UpdatedAt.Before(out[j].UpdatedAt)
		}
		if q.Descending() {
			return !less
		}
		return less
	})
	return out, nil
}

func (r *memoryRepository) Ranked(_ context.Context, slot position.Slot) ([]position.Entry, error) {
	if err := r.fail("Ranked"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []position.Entry{}
	for id, pic := range r.rows {
		if v := slot.Of(&pic.Ranks); v > 0 {
			out = append(out, position.Entry{ID: id, Rank: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRepository) SetRank(_ context.Context, slot position.Slot, id string, rank int) error {
	if err := r.fail("SetRank"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	pic, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("missing id %s", id)
	}
	slot.Set(&pic.Ranks, rank)
	return nil
}

func clonePicture(p *Picture) *Picture {
	c := *p
	return &c
}

type memoryStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleteErr error
	deleted   []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (s *memoryStorage) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if s.uploadErr != nil {
		return s.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *memoryStorage) PublicURL(_ context.Context, key string) (string, error) {
	return "https://cdn.example.test/" + key, nil
}

func (s *memoryStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *memoryStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

type memoryCache struct {
	mu          sync.Mutex
	entries     map[string][]*Picture
	version     uint64
	invalidated int
	getErr      error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]*Picture{}}
}

func (c *memoryCache) Get(_ context.Context, q ListQuery) ([]*Picture, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	pictures, ok := c.entries[q.String()]
	return pictures, ok, nil
}

func (c *memoryCache) Version(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version, nil
}

func (c *memoryCache) Set(_ context.Context, q ListQuery, version uint64, pictures []*Picture) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.version {
		return nil
	}
	c.entries[q.String()] = pictures
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string][]*Picture{}
	c.version++
	c.invalidated++
	return nil
}

func (c *memoryCache) cached(q ListQuery) ([]*Picture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pictures, ok := c.entries[q.String()]
	return pictures, ok
}

// pausingListRepository hands a List result back only after release is closed, so a test can
// commit a mutation between the read and the cache fill.
type pausingListRepository struct {
	*memoryRepository
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newPausingListRepository(repo *memoryRepository) *pausingListRepository {
	return &pausingListRepository{memoryRepository: repo, read: make(chan struct{}), release: make(chan struct{})}
}

func (r *pausingListRepository) List(ctx context.Context, q ListQuery) ([]*Picture, error) {
	pictures, err := r.memoryRepository.List(ctx, q)
	r.once.Do(func() {
		close(r.read)
		<-r.release
	})
	return pictures, err
}

var errInjected = errors.New("injected failure")

func pngFile(name string) *File {
	data := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0x01}, 32)...)
	return &File{Name: name, Reader: bytes.NewReader(data)}
}

func pdfFile(name string) *File {
	return &File{Name: name, Reader: bytes.NewReader([]byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\n"))}
}

func textFile(name string) *File {
	return &File{Name: name, Reader: bytes.NewReader([]byte("just some plain text, not a picture"))}
}
