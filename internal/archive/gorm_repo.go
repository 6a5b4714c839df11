package archive

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/RickEth137/ClawStream/pkg/log"
)

// GormRepository implements Repository using GORM.
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&StreamRecord{}); err != nil {
		return nil, err
	}
	return &GormRepository{db: db}, nil
}

func (r *GormRepository) Save(ctx context.Context, rec *StreamRecord) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Create(rec)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldStreamID, rec.ID).Msg("failed to save stream record")
		return result.Error
	}
	l.Debug().Str(log.FieldStreamID, rec.ID).Msg("stream record saved")
	return nil
}

func (r *GormRepository) GetByID(ctx context.Context, id string) (*StreamRecord, error) {
	l := log.Ctx(ctx)

	var rec StreamRecord
	result := r.db.WithContext(ctx).First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldStreamID, id).Msg("failed to load stream record")
		return nil, result.Error
	}
	return &rec, nil
}

func (r *GormRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]StreamRecord, error) {
	l := log.Ctx(ctx)

	if limit < 1 {
		limit = 20
	}

	var recs []StreamRecord
	result := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("ended_at DESC").
		Limit(limit).
		Find(&recs)
	if result.Error != nil {
		l.Error().Err(result.Error).Str("owner_id", ownerID).Msg("failed to list stream records")
		return nil, result.Error
	}
	return recs, nil
}
