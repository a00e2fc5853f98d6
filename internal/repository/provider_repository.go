package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/calendar-core/internal/calendar"
	"github.com/Leganyst/calendar-core/internal/model"
)

type ProviderRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error)
	// ListActiveIDs: ID активных провайдеров бизнеса.
	ListActiveIDs(ctx context.Context, businessID uuid.UUID) ([]uuid.UUID, error)
}

type GormProviderRepository struct {
	db *gorm.DB
}

func NewGormProviderRepository(db *gorm.DB) *GormProviderRepository {
	return &GormProviderRepository{db: db}
}

func (r *GormProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	var p model.Provider
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProviderRepository) ListActiveIDs(ctx context.Context, businessID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.Provider{}).
		Where("business_id = ? AND is_active = ?", businessID, true).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ProviderDirectory отдаёт провайдеров в виде calendar.ProviderInfo.
// Отсутствующий провайдер: (nil, nil).
type ProviderDirectory struct {
	Repo ProviderRepository
}

func (d ProviderDirectory) FindProvider(ctx context.Context, id uuid.UUID) (*calendar.ProviderInfo, error) {
	p, err := d.Repo.GetByID(ctx, id)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &calendar.ProviderInfo{
		ID:          p.ID,
		BusinessID:  p.BusinessID,
		DisplayName: p.DisplayName,
		IsActive:    p.IsActive,
	}, nil
}

func (d ProviderDirectory) ListActiveIDs(ctx context.Context, businessID uuid.UUID) ([]uuid.UUID, error) {
	return d.Repo.ListActiveIDs(ctx, businessID)
}
