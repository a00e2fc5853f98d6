package model

import (
	"fmt"

	"gorm.io/gorm"
)

// AutoMigrate выполняет миграцию всех сущностей календарного ядра.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&Provider{},
		&Customer{},
		&Service{},
		&ScheduleEntry{},
		&Appointment{},
		&Event{},
	); err != nil {
		return err
	}
	if db.Dialector.Name() == "postgres" {
		return migratePostgresConstraints(db)
	}
	return nil
}

// OverlapConstraintName: exclusion-ограничение, запрещающее пересечение записей
// одного провайдера на уровне БД.
const OverlapConstraintName = "appointments_provider_no_overlap"

func migratePostgresConstraints(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		return fmt.Errorf("enable btree_gist: %w", err)
	}

	var exists bool
	if err := db.Raw(
		`SELECT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = ?)`,
		OverlapConstraintName,
	).Scan(&exists).Error; err != nil {
		return fmt.Errorf("check overlap constraint: %w", err)
	}
	if exists {
		return nil
	}

	stmt := fmt.Sprintf(`ALTER TABLE appointments ADD CONSTRAINT %s
		EXCLUDE USING gist (provider_id WITH =, tsrange(start_at, end_at, '[)') WITH &&)
		WHERE (NOT is_deleted)`, OverlapConstraintName)
	if err := db.Exec(stmt).Error; err != nil {
		return fmt.Errorf("add overlap constraint: %w", err)
	}
	return nil
}
