package calendar

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Ошибки валидации провайдера.
var (
	ErrInvalidProviderID = errors.New("invalid provider id")
	ErrProviderNotFound  = errors.New("provider not found")
	ErrProviderInactive  = errors.New("provider is inactive")
)

// Минимальное представление провайдера для проверок ядра.
type ProviderInfo struct {
	ID          uuid.UUID
	BusinessID  uuid.UUID
	DisplayName string
	IsActive    bool
}

// Источник данных о провайдерах.
// В реале это обёртка над БД, в тестах, мок.
type ProviderStore interface {
	FindProvider(ctx context.Context, providerID uuid.UUID) (*ProviderInfo, error)
}

// ValidateProvider:
//   - проверяет корректность идентификатора;
//   - вытаскивает провайдера из хранилища;
//   - провайдер чужого бизнеса считается ненайденным;
//   - неактивный провайдер не принимает записи.
func ValidateProvider(
	ctx context.Context,
	store ProviderStore,
	businessID, providerID uuid.UUID,
) (*ProviderInfo, error) {
	if providerID == uuid.Nil {
		return nil, ErrInvalidProviderID
	}

	p, err := store.FindProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if p == nil || p.BusinessID != businessID {
		return nil, ErrProviderNotFound
	}

	if !p.IsActive {
		return nil, ErrProviderInactive
	}

	return p, nil
}
