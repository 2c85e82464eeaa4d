package picture

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	domain "github.com/janhq/picture-api/internal/domain/picture"
	"github.com/janhq/picture-api/internal/domain/position"
	"github.com/janhq/picture-api/internal/infrastructure/database/entities"
	"github.com/janhq/picture-api/internal/infrastructure/database/transaction"
	"github.com/janhq/picture-api/internal/infrastructure/metrics"
	"github.com/janhq/picture-api/internal/utils/platformerrors"
)

var updatableColumns = []string{
	"title",
	"blob_ref",
	"mime_type",
	"bytes",
	"gallery_position",
	"startpage_position",
	"description",
	"updated_at",
}

// Repository handles picture persistence. Every method runs on the transaction carried by ctx.
type Repository struct {
	db *transaction.Database
}

func NewRepository(db *transaction.Database) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ShiftUp(ctx context.Context, slot position.Slot, from int, excludeID string) (int64, error) {
	col := slot.Column()
	query := r.ranked(ctx, slot, excludeID).Where(col+" >= ?", from)
	result := query.UpdateColumn(col, gorm.Expr(col+" + 1"))
	if result.Error != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to shift picture positions", result.Error, "3e9a5c71-2b4d-4f86-a1c8-7d0e6b2f9a35")
	}
	metrics.RecordLedgerShift(slot.String(), "up", result.RowsAffected)
	return result.RowsAffected, nil
}

func (r *Repository) ShiftDown(ctx context.Context, slot position.Slot, after int, excludeID string) (int64, error) {
	col := slot.Column()
	query := r.ranked(ctx, slot, excludeID).Where(col+" > ?", after)
	result := query.UpdateColumn(col, gorm.Expr(col+" - 1"))
	if result.Error != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to shift picture positions", result.Error, "8b1f4d26-c9e3-4a57-b0d2-5e7a3c9f1b64")
	}
	metrics.RecordLedgerShift(slot.String(), "down", result.RowsAffected)
	return result.RowsAffected, nil
}

func (r *Repository) CountRanked(ctx context.Context, slot position.Slot, excludeID string) (int64, error) {
	var count int64
	if err := r.ranked(ctx, slot, excludeID).Count(&count).Error; err != nil {
		return 0, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to count ranked pictures", err, "d6c2a8f0-4e71-4b93-9a5d-1f8e3b7c0d26")
	}
	return count, nil
}

// ranked selects the pictures holding a positive rank in slot, minus excludeID.
func (r *Repository) ranked(ctx context.Context, slot position.Slot, excludeID string) *gorm.DB {
	col := slot.Column()
	query := r.db.GetTx(ctx).Model(&entities.Picture{}).Where(col + " > 0")
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	return query
}

func (r *Repository) Create(ctx context.Context, pic *domain.Picture) error {
	entity := entities.NewPictureFromDomain(pic)
	if err := r.db.GetTx(ctx).Create(entity).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to create picture", err, "a7e3b9d1-5f28-4c60-8d4a-2b9f6e1c3a87")
	}
	pic.CreatedAt = entity.CreatedAt
	pic.UpdatedAt = entity.UpdatedAt
	return nil
}

func (r *Repository) Update(ctx context.Context, pic *domain.Picture) error {
	db := r.db.GetTx(ctx)
	entity := entities.NewPictureFromDomain(pic)
	entity.UpdatedAt = db.NowFunc()

	result := db.Model(entity).Select(updatableColumns).Updates(entity)
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to update picture", result.Error, "f0b5d3e8-7a14-4c29-b6e1-9d3c5a8f2b70")
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"picture not found", nil, "2c8e6a4f-b135-4d79-a0e2-6f1d9b3c7e58")
	}
	pic.UpdatedAt = entity.UpdatedAt
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Picture, error) {
	return r.get(ctx, r.db.GetTx(ctx), id)
}

// GetByIDForUpdate locks the row on PostgreSQL. Other dialects read without a lock.
func (r *Repository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Picture, error) {
	query := r.db.GetTx(ctx)
	if query.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.get(ctx, query, id)
}

func (r *Repository) get(ctx context.Context, query *gorm.DB, id string) (*domain.Picture, error) {
	var entity entities.Picture
	if err := query.Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to get picture by id", err, "5b9d1f37-e8a2-4c64-9f0b-3a7e2d6c1b95")
	}
	return entity.EtoD(), nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	result := r.db.GetTx(ctx).Where("id = ?", id).Delete(&entities.Picture{})
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to delete picture", result.Error, "e4a7c2b9-1d63-4f08-b5e9-8c2a6d4f0e13")
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"picture not found", nil, "9f3b7e15-6a2c-4d80-8e4b-1c5d9a7f3e26")
	}
	return nil
}

// List returns the ranked pictures of one slot ordered by rank, or every picture ordered by
// last update.
func (r *Repository) List(ctx context.Context, q domain.ListQuery) ([]*domain.Picture, error) {
	query := r.db.GetTx(ctx).Model(&entities.Picture{})

	orderColumn := "updated_at"
	if slot, ok := q.Slot(); ok {
		orderColumn = slot.Column()
		query = query.Where(orderColumn + " > 0")
	}
	query = query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: orderColumn}, Desc: q.Descending()}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.Descending()})

	var rows []entities.Picture
	if err := query.Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list pictures", err, "7d0c4a9e-3b58-4e17-a6f2-0e9b8c3d5a41")
	}

	result := make([]*domain.Picture, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].EtoD())
	}
	return result, nil
}

// Ranked returns the ids and ranks of one slot ordered by rank, ties broken by id.
func (r *Repository) Ranked(ctx context.Context, slot position.Slot) ([]position.Entry, error) {
	col := slot.Column()
	var rows []struct {
		ID           string
		PositionRank int
	}
	err := r.ranked(ctx, slot, "").
		Select("id, " + col + " AS position_rank").
		Order(clause.OrderByColumn{Column: clause.Column{Name: col}}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}}).
		Scan(&rows).Error
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to read picture positions", err, "2c8e5f14-7a93-4d06-b1e8-9f4a3c7d2e50")
	}

	entries := make([]position.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, position.Entry{ID: row.ID, Rank: row.PositionRank})
	}
	return entries, nil
}

// SetRank overwrites one picture's rank in the slot. updated_at is left alone because the
// picture's content did not change.
func (r *Repository) SetRank(ctx context.Context, slot position.Slot, id string, rank int) error {
	result := r.db.GetTx(ctx).Model(&entities.Picture{}).
		Where("id = ?", id).
		UpdateColumn(slot.Column(), rank)
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to set picture position", result.Error, "b7d1a4e9-3c62-4f85-a0d7-6e2b9c5f1a38")
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"picture not found", nil, "5f0c8b3a-e6d4-4917-8a2c-d3b7f1e9a046")
	}
	return nil
}
