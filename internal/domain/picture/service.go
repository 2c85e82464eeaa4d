package picture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/janhq/picture-api/internal/config"
	"github.com/janhq/picture-api/internal/domain/position"
	"github.com/janhq/picture-api/internal/utils/platformerrors"
	"github.com/janhq/picture-api/utils/pictureid"
)

var allowedMIMEs = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"image/bmp":       "bmp",
	"image/tiff":      "tiff",
	"image/svg+xml":   "svg",
	"application/pdf": "pdf",
}

// Repository defines persistence operations needed by the service. Implementations must run
// on the transaction carried by ctx when there is one.
type Repository interface {
	position.Store

	Create(ctx context.Context, pic *Picture) error
	Update(ctx context.Context, pic *Picture) error
	// GetByID returns nil when no picture has the id.
	GetByID(ctx context.Context, id string) (*Picture, error)
	// GetByIDForUpdate is GetByID with the row locked until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*Picture, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, q ListQuery) ([]*Picture, error)
	// Ranked returns every picture with a positive rank in the slot, ordered by rank and then
	// by the listing tie-break.
	Ranked(ctx context.Context, slot position.Slot) ([]position.Entry, error)
	// SetRank writes one rank without shifting anything else.
	SetRank(ctx context.Context, slot position.Slot, id string, rank int) error
}

// Transactor runs fn in a single transaction. Any error returned by fn rolls everything back.
type Transactor interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Storage defines blob storage operations. Delete of a missing object succeeds.
type Storage interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PublicURL(ctx context.Context, key string) (string, error)
}

// ListCache stores listing projections between mutations. Every Invalidate advances the
// version, and Set drops listings read under an older version.
type ListCache interface {
	Get(ctx context.Context, q ListQuery) ([]*Picture, bool, error)
	Version(ctx context.Context) (uint64, error)
	Set(ctx context.Context, q ListQuery, version uint64, pictures []*Picture) error
	Invalidate(ctx context.Context) error
}

// Service orchestrates picture uploads, rankings and listings.
type Service struct {
	cfg     *config.Config
	repo    Repository
	tx      Transactor
	storage Storage
	cache   ListCache
	locker  Locker
	ledger  *position.Ledger
	log     zerolog.Logger

	// lists collapses concurrent reads of the same projection; generation keeps reads that
	// started before a mutation from being shared with callers that arrive after it.
	lists      singleflight.Group
	generation atomic.Uint64
}

// NewService wires the picture service. cache may be nil.
func NewService(cfg *config.Config, repo Repository, tx Transactor, storage Storage, cache ListCache, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		cfg:     cfg,
		repo:    repo,
		tx:      tx,
		storage: storage,
		cache:   cache,
		locker:  newLocalLocker(),
		ledger:  position.NewLedger(repo),
		log:     log.With().Str("component", "picture-service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type blob struct {
	key      string
	data     []byte
	mimeType string
}

// List returns one of the listing projections. No rank reconciliation happens on read.
func (s *Service) List(ctx context.Context, q ListQuery) ([]*Picture, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, q)
		if err != nil {
			s.log.Warn().Err(err).Str("query", q.String()).Msg("read listing cache")
		} else if ok {
			return cached, nil
		}
	}

	generation := s.generation.Load()
	flight := fmt.Sprintf("%s@%d", q, generation)
	v, err, _ := s.lists.Do(flight, func() (any, error) {
		// The version is taken before the read so a mutation committing meanwhile makes the
		// fill a no-op instead of caching rows it already replaced.
		version, cacheable := s.cacheVersion(ctx)

		pictures, err := s.repo.List(ctx, q)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list pictures")
		}
		for _, pic := range pictures {
			s.resolveURL(ctx, pic)
		}

		if cacheable && s.generation.Load() == generation {
			if err := s.cache.Set(ctx, q, version, pictures); err != nil {
				s.log.Warn().Err(err).Str("query", q.String()).Msg("fill listing cache")
			}
		}
		return pictures, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Picture), nil
}

// Get returns a single picture.
func (s *Service) Get(ctx context.Context, id string) (*Picture, error) {
	pic, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	s.resolveURL(ctx, pic)
	return pic, nil
}

// Create stores the file, then inserts the picture into every ranking it asks for and saves the
// row in one transaction. The uploaded file is removed again when the transaction fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Picture, error) {
	title := strings.TrimSpace(in.Title)
	if err := s.validateTitle(ctx, title); err != nil {
		return nil, err
	}
	if err := s.validateDescription(ctx, in.Description); err != nil {
		return nil, err
	}
	requested := position.Ranks{Gallery: in.GalleryPosition, StartPage: in.StartpagePosition}
	for _, slot := range position.Slots {
		if err := validateRank(ctx, slot, slot.Of(&requested)); err != nil {
			return nil, err
		}
	}
	if in.File == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"file is required", nil, "2b5d8e14-6c3f-4a97-8e21-d0f4b7a6c915")
	}

	id := pictureid.New()
	b, err := s.readFile(ctx, id, in.File)
	if err != nil {
		return nil, err
	}
	if err := s.upload(ctx, b); err != nil {
		return nil, err
	}

	pic := &Picture{
		ID:          id,
		Title:       title,
		BlobRef:     b.key,
		MimeType:    b.mimeType,
		Bytes:       int64(len(b.data)),
		Description: s.descriptionOrDefault(in.Description),
		CreatedBy:   in.CreatedBy,
	}

	err = s.mutate(ctx, func(ctx context.Context) error {
		for _, slot := range position.Slots {
			rank, err := s.ledger.InsertAt(ctx, slot, slot.Of(&requested), pic.ID)
			if err != nil {
				return err
			}
			slot.Set(&pic.Ranks, rank)
		}
		if err := s.repo.Create(ctx, pic); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "create picture")
		}
		return nil
	})
	if err != nil {
		s.discardBlob(ctx, b.key, "discard upload of failed create")
		return nil, err
	}

	s.log.Info().
		Str("picture_id", pic.ID).
		Int("gallery_position", pic.Ranks.Gallery).
		Int("startpage_position", pic.Ranks.StartPage).
		Msg("picture created")

	s.invalidate(ctx)
	s.resolveURL(ctx, pic)
	return pic, nil
}

// Update applies the supplied fields. Changed ranks are moved through the ledger and a
// replacement file is swapped in; the previous file is removed after commit.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Picture, error) {
	var title string
	if in.Title != nil {
		title = strings.TrimSpace(*in.Title)
		if err := s.validateTitle(ctx, title); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		if err := s.validateDescription(ctx, *in.Description); err != nil {
			return nil, err
		}
	}
	for _, slot := range position.Slots {
		if r := in.rank(slot); r != nil {
			if err := validateRank(ctx, slot, *r); err != nil {
				return nil, err
			}
		}
	}

	var replacement *blob
	if in.File != nil {
		b, err := s.readFile(ctx, id, in.File)
		if err != nil {
			return nil, err
		}
		// Keys are unique per upload so the old object stays valid until commit.
		b.key = fmt.Sprintf("pictures/%s/%s.%s", id, pictureid.New(), allowedMIMEs[b.mimeType])
		if err := s.upload(ctx, b); err != nil {
			return nil, err
		}
		replacement = b
	}

	var (
		updated  *Picture
		replaced string
	)
	err := s.mutate(ctx, func(ctx context.Context) error {
		pic, err := s.load(ctx, id, true)
		if err != nil {
			return err
		}

		for _, slot := range position.Slots {
			requested := in.rank(slot)
			if requested == nil || *requested == 0 {
				continue
			}
			current := slot.Of(&pic.Ranks)
			if *requested == current {
				continue
			}
			rank, err := s.ledger.Move(ctx, slot, current, *requested, pic.ID)
			if err != nil {
				return err
			}
			slot.Set(&pic.Ranks, rank)
		}

		if in.Title != nil {
			pic.Title = title
		}
		if in.Description != nil {
			pic.Description = s.descriptionOrDefault(*in.Description)
		}
		if replacement != nil {
			replaced = pic.BlobRef
			pic.BlobRef = replacement.key
			pic.MimeType = replacement.mimeType
			pic.Bytes = int64(len(replacement.data))
		}

		if err := s.repo.Update(ctx, pic); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "update picture")
		}
		updated = pic
		return nil
	})
	if err != nil {
		if replacement != nil {
			s.discardBlob(ctx, replacement.key, "discard upload of failed update")
		}
		return nil, err
	}

	if replaced != "" && replaced != updated.BlobRef {
		s.discardBlob(ctx, replaced, "remove replaced picture file")
	}

	s.log.Info().
		Str("picture_id", updated.ID).
		Int("gallery_position", updated.Ranks.Gallery).
		Int("startpage_position", updated.Ranks.StartPage).
		Bool("file_replaced", replacement != nil).
		Msg("picture updated")

	s.invalidate(ctx)
	s.resolveURL(ctx, updated)
	return updated, nil
}

// Unrank takes the picture out of one ranking and closes the gap it leaves.
func (s *Service) Unrank(ctx context.Context, id string, slot position.Slot) (*Picture, error) {
	if !slot.Valid() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"unknown position slot", nil, "93c6a0d2-7e1b-4f58-a4c3-5b8e2d9f0a17")
	}

	var updated *Picture
	err := s.mutate(ctx, func(ctx context.Context) error {
		pic, err := s.load(ctx, id, true)
		if err != nil {
			return err
		}
		updated = pic

		current := slot.Of(&pic.Ranks)
		if current == 0 {
			return nil
		}
		if err := s.ledger.RemoveAt(ctx, slot, current, pic.ID); err != nil {
			return err
		}
		slot.Set(&pic.Ranks, 0)
		if err := s.repo.Update(ctx, pic); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "unrank picture")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("picture_id", id).Str("slot", slot.String()).Msg("picture unranked")
	s.invalidate(ctx)
	s.resolveURL(ctx, updated)
	return updated, nil
}

// Delete vacates both rankings and removes the row in one transaction, then removes the file.
// A failed file removal is logged and does not fail the delete.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// BulkDelete deletes every id in its own transaction. A failure is reported for its id and
// does not stop the remaining ids.
func (s *Service) BulkDelete(ctx context.Context, ids []string) (*BulkDeleteResult, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"ids must contain at least one picture id", nil, "c81f4e27-3a9d-4b06-9d52-e7a1f3c0b648")
	}

	result := &BulkDeleteResult{Deleted: []string{}, Failed: []BulkDeleteFail{}}
	for _, id := range unique {
		if err := s.delete(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("picture_id", id).Msg("bulk delete item failed")
			result.Failed = append(result.Failed, BulkDeleteFail{ID: id, Message: clientMessage(err)})
			continue
		}
		result.Deleted = append(result.Deleted, id)
	}

	if len(result.Deleted) > 0 {
		s.invalidate(ctx)
	}
	s.log.Info().Int("deleted", len(result.Deleted)).Int("failed", len(result.Failed)).Msg("bulk delete finished")
	return result, nil
}

func (s *Service) delete(ctx context.Context, id string) error {
	var blobRef string
	err := s.mutate(ctx, func(ctx context.Context) error {
		pic, err := s.load(ctx, id, true)
		if err != nil {
			return err
		}
		for _, slot := range position.Slots {
			if err := s.ledger.RemoveAt(ctx, slot, slot.Of(&pic.Ranks), pic.ID); err != nil {
				return err
			}
		}
		if err := s.repo.Delete(ctx, pic.ID); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "delete picture")
		}
		blobRef = pic.BlobRef
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info().Str("picture_id", id).Msg("picture deleted")
	if blobRef != "" {
		s.discardBlob(ctx, blobRef, "remove file of deleted picture")
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string, lock bool) (*Picture, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"picture id is required", nil, "5e2a9c71-d04b-4f3e-8b16-a7c3e9f2d580")
	}

	var (
		pic *Picture
		err error
	)
	if lock {
		pic, err = s.repo.GetByIDForUpdate(ctx, id)
	} else {
		pic, err = s.repo.GetByID(ctx, id)
	}
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load picture")
	}
	if pic == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			fmt.Sprintf("picture %s not found", id), nil, "0d7f3b58-91e4-4c2a-b6d9-8e5a1c4f7b23")
	}
	return pic, nil
}

func (s *Service) readFile(ctx context.Context, id string, f *File) (*blob, error) {
	if f.Reader == nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"file is required", nil, "2b5d8e14-6c3f-4a97-8e21-d0f4b7a6c915")
	}

	data, err := io.ReadAll(io.LimitReader(f.Reader, s.cfg.MaxPictureBytes+1))
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"failed to read file", err, "7a4c2e90-5b1d-4f83-9c6e-3d8b0a2f1e75")
	}
	if len(data) == 0 {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"file is empty", nil, "e6b39d1f-2c84-4a70-b5e8-9f1c7d3a4b62")
	}
	if int64(len(data)) > s.cfg.MaxPictureBytes {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("file exceeds max size of %d bytes", s.cfg.MaxPictureBytes), nil, "b3f80a6c-1d27-4e95-8c4b-6a2e9f5d0c18")
	}

	mimeType := detectMIME(data)
	ext, ok := allowedMIMEs[mimeType]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported file type %s", mimeType), nil, "48e1d6b2-9a0c-4f73-a5d8-c2b7e4f1a936")
	}

	return &blob{
		key:      fmt.Sprintf("pictures/%s.%s", id, ext),
		data:     data,
		mimeType: mimeType,
	}, nil
}

func detectMIME(data []byte) string {
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if _, ok := allowedMIMEs[m.String()]; ok {
			return m.String()
		}
	}
	// mimetype reports parameters for some formats, e.g. "image/svg+xml; charset=utf-8".
	base, _, _ := strings.Cut(detected.String(), ";")
	return strings.TrimSpace(base)
}

func (s *Service) upload(ctx context.Context, b *blob) error {
	if err := s.storage.Upload(ctx, b.key, bytes.NewReader(b.data), int64(len(b.data)), b.mimeType); err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"failed to store picture file", err, "f19c7e3a-4d62-4b8e-a0f5-7c3d1e9b2a84")
	}
	return nil
}

// discardBlob removes a file whose record decision has already been made. Failures only warn.
func (s *Service) discardBlob(ctx context.Context, key, reason string) {
	if err := s.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn().Err(err).Str("blob_ref", key).Msg(reason)
	}
}

// mutate runs fn in a transaction while holding the ranking lock.
func (s *Service) mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.locker.WithLock(ctx, func(ctx context.Context) error {
		return s.tx.RunInTransaction(ctx, fn)
	})
}

func (s *Service) cacheVersion(ctx context.Context) (uint64, bool) {
	if s.cache == nil {
		return 0, false
	}
	version, err := s.cache.Version(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("read listing cache version")
		return 0, false
	}
	return version, true
}

func (s *Service) invalidate(ctx context.Context) {
	s.generation.Add(1)
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn().Err(err).Msg("invalidate listing cache")
	}
}

func (s *Service) resolveURL(ctx context.Context, pic *Picture) {
	if pic == nil || pic.BlobRef == "" {
		return
	}
	url, err := s.storage.PublicURL(ctx, pic.BlobRef)
	if err != nil {
		s.log.Warn().Err(err).Str("picture_id", pic.ID).Msg("resolve picture url")
		return
	}
	pic.URL = url
}

func (s *Service) descriptionOrDefault(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return s.cfg.DefaultDescription
	}
	return description
}

func (s *Service) validateTitle(ctx context.Context, title string) error {
	if title == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"title is required", nil, "a2d5f8c1-6e39-4b07-9d4a-1f8c3e7b5d92")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("title must be at most %d characters", MaxTitleLength), nil, "d84b1e6f-0a73-4c29-b8e5-2c9f6a1d3e70")
	}
	return nil
}

func (s *Service) validateDescription(ctx context.Context, description string) error {
	if utf8.RuneCountInString(strings.TrimSpace(description)) > MaxDescriptionLength {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("description must be at most %d characters", MaxDescriptionLength), nil, "6c0e3a9b-d517-4f28-a3b6-8e4d2f1c7a59")
	}
	return nil
}

func validateRank(ctx context.Context, slot position.Slot, rank int) error {
	if rank < 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			fmt.Sprintf("%s position must not be negative", slot), nil, "1f7b4d2e-8c05-4a69-b3e1-5d9a7c6f0e28")
	}
	return nil
}

// clientMessage is the part of err that is safe to show to API callers.
func clientMessage(err error) string {
	if pe := platformerrors.GetPlatformError(err); pe != nil {
		switch pe.Type {
		case platformerrors.ErrorTypeValidation, platformerrors.ErrorTypeNotFound, platformerrors.ErrorTypeConflict:
			return pe.Message
		}
	}
	return "failed to delete picture"
}
