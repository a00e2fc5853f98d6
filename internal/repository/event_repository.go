package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/calendar-core/internal/model"
)

// MaxEventPage ограничивает выборку журнала событий.
const MaxEventPage = 200

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	// ListByBusiness: последние события бизнеса, новые первыми.
	ListByBusiness(ctx context.Context, businessID uuid.UUID, limit int) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Create(ctx context.Context, event *model.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormEventRepository) ListByBusiness(ctx context.Context, businessID uuid.UUID, limit int) ([]model.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxEventPage {
		limit = MaxEventPage
	}
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at DESC, id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
