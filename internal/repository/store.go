package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/calendar-core/internal/model"
)

// Tx: набор репозиториев, привязанных к одной транзакции.
type Tx interface {
	Appointments() AppointmentRepository
	Schedules() ScheduleRepository
	Providers() ProviderRepository
	Customers() CustomerRepository
	Services() ServiceRepository
	Events() EventRepository

	// LockProvider сериализует записи по одному провайдеру (SELECT ... FOR UPDATE).
	LockProvider(ctx context.Context, providerID uuid.UUID) error
}

// Store выдаёт репозитории и открывает транзакции.
type Store interface {
	Tx
	Transaction(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Appointments() AppointmentRepository {
	return NewGormAppointmentRepository(s.db)
}

func (s *GormStore) Schedules() ScheduleRepository {
	return NewGormScheduleRepository(s.db)
}

func (s *GormStore) Providers() ProviderRepository {
	return NewGormProviderRepository(s.db)
}

func (s *GormStore) Customers() CustomerRepository {
	return NewGormCustomerRepository(s.db)
}

func (s *GormStore) Services() ServiceRepository {
	return NewGormServiceRepository(s.db)
}

func (s *GormStore) Events() EventRepository {
	return NewGormEventRepository(s.db)
}

func (s *GormStore) LockProvider(ctx context.Context, providerID uuid.UUID) error {
	var p model.Provider
	// В SQLite блокировки строк нет, запись сериализует _txlock=immediate.
	return s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&p, "id = ?", providerID).Error
}

// Transaction выполняет fn в одной транзакции. Внутри fn нужно пользоваться только tx.
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&GormStore{db: db})
	})
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// IsNotFound: запись не найдена.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsExclusionViolation: нарушено exclusion-ограничение Postgres (пересечение записей).
func IsExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23P01"
	}
	return false
}

// alive: обязательный фильтр мягкого удаления. Добавляется явно в каждое чтение.
func alive(db *gorm.DB, table string) *gorm.DB {
	return db.Where(table+".is_deleted = ?", false)
}
