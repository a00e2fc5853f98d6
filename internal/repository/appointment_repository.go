package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/calendar-core/internal/model"
)

type AppointmentRepository interface {
	// Создать новую запись.
	Create(ctx context.Context, appt *model.Appointment) error
	// Перезаписать изменяемые поля записи.
	Update(ctx context.Context, appt *model.Appointment) error
	// Получить живую запись бизнеса по ID.
	GetByID(ctx context.Context, businessID, id uuid.UUID) (*model.Appointment, error)
	// Пометить запись удалённой.
	SoftDelete(ctx context.Context, businessID, id uuid.UUID) error
	// Живые записи провайдера, предварительно пересекающиеся с [from, to). excludeID исключает саму запись.
	ListOverlapping(ctx context.Context, providerID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]model.Appointment, error)
	// Живые записи бизнеса с началом в [from, to], по возрастанию начала.
	ListByBusinessAndRange(ctx context.Context, businessID uuid.UUID, from, to time.Time) ([]model.Appointment, error)
	// Живые записи указанных провайдеров с началом в [from, to).
	ListByProviders(ctx context.Context, businessID uuid.UUID, providerIDs []uuid.UUID, from, to time.Time) ([]model.Appointment, error)
	// Живые записи указанных провайдеров за [from, to) вместе с клиентом, провайдером и услугой.
	ListDetailed(ctx context.Context, businessID uuid.UUID, providerIDs []uuid.UUID, from, to time.Time) ([]model.Appointment, error)
	// Количество живых записей указанных провайдеров с началом в [from, to).
	Count(ctx context.Context, businessID uuid.UUID, providerIDs []uuid.UUID, from, to time.Time) (int64, error)
}

// Реализация на GORM.
type GormAppointmentRepository struct {
	db *gorm.DB
}

func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) live(ctx context.Context) *gorm.DB {
	return alive(r.db.WithContext(ctx).Model(&model.Appointment{}), "appointments")
}

func (r *GormAppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	return r.db.WithContext(ctx).Create(appt).Error
}

func (r *GormAppointmentRepository) Update(ctx context.Context, appt *model.Appointment) error {
	res := alive(r.db.WithContext(ctx).Model(&model.Appointment{}), "appointments").
		Where("id = ? AND business_id = ?", appt.ID, appt.BusinessID).
		Updates(map[string]any{
			"provider_id": appt.ProviderID,
			"customer_id": appt.CustomerID,
			"service_id":  appt.ServiceID,
			"start_at":    appt.StartAt,
			"end_at":      appt.EndAt,
			"status":      appt.Status,
			"notes":       appt.Notes,
			"updated_at":  r.db.NowFunc(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormAppointmentRepository) GetByID(ctx context.Context, businessID, id uuid.UUID) (*model.Appointment, error) {
	var a model.Appointment
	err := r.live(ctx).
		Where("id = ? AND business_id = ?", id, businessID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAppointmentRepository) SoftDelete(ctx context.Context, businessID, id uuid.UUID) error {
	res := r.live(ctx).
		Where("id = ? AND business_id = ?", id, businessID).
		Updates(map[string]any{
			"is_deleted": true,
			"updated_at": r.db.NowFunc(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GormAppointmentRepository) ListOverlapping(
	ctx context.Context,
	providerID uuid.UUID,
	from, to time.Time,
	excludeID *uuid.UUID,
) ([]model.Appointment, error) {
	q := r.live(ctx).
		Where("provider_id = ?", providerID).
		Where("start_at < ? AND end_at > ?", to, from)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}

	var appts []model.Appointment
	if err := q.Order("start_at ASC").Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *GormAppointmentRepository) ListByBusinessAndRange(
	ctx context.Context,
	businessID uuid.UUID,
	from, to time.Time,
) ([]model.Appointment, error) {
	var appts []model.Appointment
	err := r.live(ctx).
		Where("business_id = ?", businessID).
		Where("start_at >= ? AND start_at <= ?", from, to).
		Order("start_at ASC").
		Find(&appts).Error
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *GormAppointmentRepository) ListByProviders(
	ctx context.Context,
	businessID uuid.UUID,
	providerIDs []uuid.UUID,
	from, to time.Time,
) ([]model.Appointment, error) {
	if len(providerIDs) == 0 {
		return []model.Appointment{}, nil
	}
	var appts []model.Appointment
	err := r.live(ctx).
		Where("business_id = ?", businessID).
		Where("provider_id IN ?", providerIDs).
		Where("start_at >= ? AND start_at < ?", from, to).
		Order("start_at ASC").
		Find(&appts).Error
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *GormAppointmentRepository) ListDetailed(
	ctx context.Context,
	businessID uuid.UUID,
	providerIDs []uuid.UUID,
	from, to time.Time,
) ([]model.Appointment, error) {
	if len(providerIDs) == 0 {
		return []model.Appointment{}, nil
	}
	var appts []model.Appointment
	err := r.live(ctx).
		Preload("Provider").
		Preload("Customer").
		Preload("Service").
		Where("business_id = ?", businessID).
		Where("provider_id IN ?", providerIDs).
		Where("start_at >= ? AND start_at < ?", from, to).
		Order("start_at DESC").
		Find(&appts).Error
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *GormAppointmentRepository) Count(
	ctx context.Context,
	businessID uuid.UUID,
	providerIDs []uuid.UUID,
	from, to time.Time,
) (int64, error) {
	if len(providerIDs) == 0 {
		return 0, nil
	}
	var total int64
	err := r.live(ctx).
		Where("business_id = ?", businessID).
		Where("provider_id IN ?", providerIDs).
		Where("start_at >= ? AND start_at < ?", from, to).
		Count(&total).Error
	return total, err
}
