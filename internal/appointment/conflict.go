package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/calendar-core/internal/calendar"
	"github.com/Leganyst/calendar-core/internal/model"
)

// Источник существующих записей провайдера.
type overlapSource interface {
	ListOverlapping(ctx context.Context, providerID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]model.Appointment, error)
}

// ConflictChecker ищет пересечения только в пределах провайдера, бизнес не учитывается.
type ConflictChecker struct {
	appointments overlapSource
}

func NewConflictChecker(appointments overlapSource) *ConflictChecker {
	return &ConflictChecker{appointments: appointments}
}

// HasConflict сообщает, пересекается ли candidate с живой записью провайдера.
// excludeID исключает саму запись при переносе. Ошибка означает только сбой хранилища.
func (c *ConflictChecker) HasConflict(
	ctx context.Context,
	providerID uuid.UUID,
	candidate calendar.TimeRange,
	excludeID *uuid.UUID,
) (bool, error) {
	existing, err := c.appointments.ListOverlapping(ctx, providerID, candidate.Start, candidate.End, excludeID)
	if err != nil {
		return false, err
	}
	for _, a := range existing {
		if a.IsDeleted || (excludeID != nil && a.ID == *excludeID) {
			continue
		}
		if calendar.Overlaps(candidate, calendar.TimeRange{Start: a.StartAt, End: a.EndAt}) {
			return true, nil
		}
	}
	return false, nil
}
