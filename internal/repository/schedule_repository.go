package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/calendar-core/internal/model"
)

type ScheduleRepository interface {
	// ListByProvider возвращает живые записи расписания провайдера.
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]model.ScheduleEntry, error)
	// ListActive возвращает живые записи провайдеров, окно действия которых пересекается с [from, to].
	ListActive(ctx context.Context, providerIDs []uuid.UUID, from, to time.Time) ([]model.ScheduleEntry, error)
	// SoftDeleteWeekdays помечает удалёнными живые записи провайдера на указанные дни недели.
	SoftDeleteWeekdays(ctx context.Context, providerID uuid.UUID, weekdays []int) (int64, error)
	CreateBatch(ctx context.Context, entries []model.ScheduleEntry) error
	CountByProvider(ctx context.Context, providerID uuid.UUID) (int64, error)
}

type GormScheduleRepository struct {
	db *gorm.DB
}

func NewGormScheduleRepository(db *gorm.DB) *GormScheduleRepository {
	return &GormScheduleRepository{db: db}
}

func (r *GormScheduleRepository) live(ctx context.Context) *gorm.DB {
	return alive(r.db.WithContext(ctx).Model(&model.ScheduleEntry{}), "schedule_entries")
}

func (r *GormScheduleRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]model.ScheduleEntry, error) {
	var entries []model.ScheduleEntry
	err := r.live(ctx).
		Where("provider_id = ?", providerID).
		Order("weekday ASC").
		Order("start_time ASC").
		Order("valid_from ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *GormScheduleRepository) ListActive(
	ctx context.Context,
	providerIDs []uuid.UUID,
	from, to time.Time,
) ([]model.ScheduleEntry, error) {
	if len(providerIDs) == 0 {
		return []model.ScheduleEntry{}, nil
	}
	var entries []model.ScheduleEntry
	err := r.live(ctx).
		Where("provider_id IN ?", providerIDs).
		Where("valid_from <= ?", to).
		Where("(valid_until IS NULL OR valid_until >= ?)", from).
		Order("provider_id ASC").
		Order("weekday ASC").
		Order("start_time ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *GormScheduleRepository) SoftDeleteWeekdays(
	ctx context.Context,
	providerID uuid.UUID,
	weekdays []int,
) (int64, error) {
	if len(weekdays) == 0 {
		return 0, nil
	}
	res := r.live(ctx).
		Where("provider_id = ?", providerID).
		Where("weekday IN ?", weekdays).
		Updates(map[string]any{
			"is_deleted": true,
			"updated_at": r.db.NowFunc(),
		})
	return res.RowsAffected, res.Error
}

func (r *GormScheduleRepository) CreateBatch(ctx context.Context, entries []model.ScheduleEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *GormScheduleRepository) CountByProvider(ctx context.Context, providerID uuid.UUID) (int64, error) {
	var total int64
	err := r.live(ctx).
		Where("provider_id = ?", providerID).
		Count(&total).Error
	return total, err
}
