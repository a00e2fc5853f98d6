// Package dbtest поднимает SQLite в памяти для тестов репозиториев и движка.
package dbtest

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Leganyst/calendar-core/internal/config"
	"github.com/Leganyst/calendar-core/internal/db"
	"github.com/Leganyst/calendar-core/internal/logging"
	"github.com/Leganyst/calendar-core/internal/model"
)

// Open возвращает изолированную БД с выполненной миграцией.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	// одно соединение: внутри транзакции используем только tx
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// OpenFile поднимает файловую БД с пулом соединений, как в рабочей конфигурации.
// Нужна для тестов, где транзакции идут параллельно.
func OpenFile(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.NewGormDB(&config.DBConfig{
		Driver:       "sqlite",
		SQLitePath:   filepath.Join(t.TempDir(), "calendar.db"),
		MaxOpenConns: 8,
	}, logging.Nop())
	if err != nil {
		t.Fatalf("open sqlite file: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// Provider создаёт активного провайдера.
func Provider(t *testing.T, db *gorm.DB, businessID uuid.UUID, name string) *model.Provider {
	t.Helper()
	p := &model.Provider{BusinessID: businessID, DisplayName: name, IsActive: true}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create provider: %v", err)
	}
	return p
}

// Customer создаёт клиента.
func Customer(t *testing.T, db *gorm.DB, businessID uuid.UUID, name string) *model.Customer {
	t.Helper()
	c := &model.Customer{BusinessID: businessID, DisplayName: name}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c
}

// Service создаёт услугу.
func Service(t *testing.T, db *gorm.DB, businessID uuid.UUID, name string) *model.Service {
	t.Helper()
	s := &model.Service{BusinessID: businessID, Name: name, IsActive: true}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("create service: %v", err)
	}
	return s
}

// Appointment вставляет запись напрямую, минуя проверку конфликтов.
func Appointment(t *testing.T, db *gorm.DB, a model.Appointment) *model.Appointment {
	t.Helper()
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("create appointment: %v", err)
	}
	return &a
}

// Shift вставляет запись расписания, действующую с validFrom без ограничения.
func Shift(t *testing.T, db *gorm.DB, providerID uuid.UUID, weekday time.Weekday, start, end string, validFrom time.Time) *model.ScheduleEntry {
	t.Helper()
	e := &model.ScheduleEntry{
		ProviderID: providerID,
		Weekday:    int(weekday),
		StartTime:  clock(t, start),
		EndTime:    clock(t, end),
		ValidFrom:  datatypes.Date(validFrom),
	}
	if err := db.Create(e).Error; err != nil {
		t.Fatalf("create schedule entry: %v", err)
	}
	return e
}

// At: момент времени в UTC для дат тестов.
func At(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func clock(t *testing.T, s string) datatypes.Time {
	t.Helper()
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		t.Fatalf("bad clock %q: %v", s, err)
	}
	return datatypes.NewTime(h, m, 0, 0)
}
