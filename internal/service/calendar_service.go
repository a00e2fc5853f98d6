package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/Leganyst/calendar-core/internal/apperror"
	"github.com/Leganyst/calendar-core/internal/appointment"
	"github.com/Leganyst/calendar-core/internal/availability"
	"github.com/Leganyst/calendar-core/internal/schedule"
)

// CalendarService: gRPC-обёртка над ядром планирования.
type CalendarService struct {
	ledger     *appointment.Ledger
	registry   *schedule.Registry
	replacer   *schedule.Replacer
	aggregator *availability.Aggregator
	log        *slog.Logger
}

var _ CalendarServer = (*CalendarService)(nil)

func NewCalendarService(
	ledger *appointment.Ledger,
	registry *schedule.Registry,
	replacer *schedule.Replacer,
	aggregator *availability.Aggregator,
	log *slog.Logger,
) *CalendarService {
	if log == nil {
		log = slog.Default()
	}
	return &CalendarService{
		ledger:     ledger,
		registry:   registry,
		replacer:   replacer,
		aggregator: aggregator,
		log:        log,
	}
}

// call достаёт бизнес из контекста и переводит ошибку ядра в статус.
func (s *CalendarService) call(ctx context.Context, fn func(businessID uuid.UUID) (map[string]any, error)) (*structpb.Struct, error) {
	businessID, ok := BusinessIDFrom(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, errNoBusiness.Error())
	}
	doc, err := fn(businessID)
	if err != nil {
		return nil, toStatus(ctx, s.log, err)
	}
	resp, err := toStruct(doc)
	if err != nil {
		return nil, toStatus(ctx, s.log, err)
	}
	return resp, nil
}

func (s *CalendarService) CreateAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		f := fieldsOf(in)
		providerID, err := f.uuid("provider_id")
		if err != nil {
			return nil, err
		}
		customerID, err := f.optionalUUID("customer_id")
		if err != nil {
			return nil, err
		}
		serviceID, err := f.optionalUUID("service_id")
		if err != nil {
			return nil, err
		}
		start, err := f.timestamp("start")
		if err != nil {
			return nil, err
		}
		end, err := f.timestamp("end")
		if err != nil {
			return nil, err
		}
		if start.IsZero() || end.IsZero() {
			return nil, apperror.Validation("start and end are required")
		}

		appt, err := s.ledger.Create(ctx, appointment.CreateRequest{
			BusinessID: businessID,
			ProviderID: providerID,
			CustomerID: customerID,
			ServiceID:  serviceID,
			Start:      start,
			End:        end,
			Notes:      f.str("notes"),
		})
		if err != nil {
			return nil, err
		}
		return appointmentDoc(appt), nil
	})
}

func (s *CalendarService) UpdateAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		f := fieldsOf(in)
		appointmentID, err := f.uuid("appointment_id")
		if err != nil {
			return nil, err
		}
		req := appointment.UpdateRequest{
			BusinessID:    businessID,
			AppointmentID: appointmentID,
			Status:        f.str("status"),
			Notes:         f.strPtr("notes"),
		}
		if f.str("provider_id") != "" {
			if req.ProviderID, err = f.uuid("provider_id"); err != nil {
				return nil, err
			}
		}
		if req.CustomerID, err = f.optionalUUID("customer_id"); err != nil {
			return nil, err
		}
		if req.ServiceID, err = f.optionalUUID("service_id"); err != nil {
			return nil, err
		}
		if req.Start, err = f.timestamp("start"); err != nil {
			return nil, err
		}
		if req.End, err = f.timestamp("end"); err != nil {
			return nil, err
		}

		appt, err := s.ledger.Update(ctx, req)
		if err != nil {
			return nil, err
		}
		return appointmentDoc(appt), nil
	})
}

func (s *CalendarService) DeleteAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		appointmentID, err := fieldsOf(in).uuid("appointment_id")
		if err != nil {
			return nil, err
		}
		if err := s.ledger.SoftDelete(ctx, businessID, appointmentID); err != nil {
			return nil, err
		}
		return map[string]any{"appointment_id": appointmentID.String(), "deleted": true}, nil
	})
}

func (s *CalendarService) GetAppointment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		appointmentID, err := fieldsOf(in).uuid("appointment_id")
		if err != nil {
			return nil, err
		}
		appt, err := s.ledger.Get(ctx, businessID, appointmentID)
		if err != nil {
			return nil, err
		}
		return appointmentDoc(appt), nil
	})
}

func (s *CalendarService) ListAppointments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		f := fieldsOf(in)
		from, err := f.timestamp("from")
		if err != nil {
			return nil, err
		}
		to, err := f.timestamp("to")
		if err != nil {
			return nil, err
		}
		if from.IsZero() || to.IsZero() {
			return nil, apperror.Validation("from and to are required")
		}

		appts, err := s.ledger.ListByDateRange(ctx, businessID, from, to)
		if err != nil {
			return nil, err
		}
		docs := make([]any, 0, len(appts))
		for i := range appts {
			docs = append(docs, appointmentDoc(&appts[i]))
		}
		return map[string]any{"appointments": docs}, nil
	})
}

func (s *CalendarService) GetProviderSchedule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		providerID, err := fieldsOf(in).uuid("provider_id")
		if err != nil {
			return nil, err
		}
		entries, err := s.registry.ProviderSchedule(ctx, businessID, providerID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": scheduleDocs(entries)}, nil
	})
}

func (s *CalendarService) ReplaceProviderSchedule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		f := fieldsOf(in)
		providerID, err := f.uuid("provider_id")
		if err != nil {
			return nil, err
		}
		req := schedule.ReplaceRequest{BusinessID: businessID, ProviderID: providerID}
		if f.str("valid_from") != "" {
			if req.ValidFrom, err = f.date("valid_from"); err != nil {
				return nil, err
			}
		}
		for _, v := range f.list("entries") {
			item := fieldsOf(v.GetStructValue())
			if !item.has("weekday") {
				return nil, apperror.Validation("entries[].weekday is required")
			}
			weekday, err := item.integer("weekday")
			if err != nil {
				return nil, apperror.Validation("entries[].weekday must be an integer")
			}
			req.Entries = append(req.Entries, schedule.EntryInput{
				Weekday: weekday,
				Start:   item.str("start"),
				End:     item.str("end"),
			})
		}

		entries, err := s.replacer.Replace(ctx, req)
		if err != nil {
			return nil, err
		}
		return map[string]any{"entries": scheduleDocs(entries)}, nil
	})
}

func (s *CalendarService) InitProviderSchedule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		providerID, err := fieldsOf(in).uuid("provider_id")
		if err != nil {
			return nil, err
		}
		entries, err := s.replacer.SeedDefault(ctx, businessID, providerID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"seeded": entries != nil, "entries": scheduleDocs(entries)}, nil
	})
}

func (s *CalendarService) GetCalendarSummary(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		f := fieldsOf(in)
		start, err := f.date("start_date")
		if err != nil {
			return nil, err
		}
		end, err := f.date("end_date")
		if err != nil {
			return nil, err
		}
		days, err := s.aggregator.CalendarSummary(ctx, businessID, start, end)
		if err != nil {
			return nil, err
		}
		return map[string]any{"days": summaryDocs(days)}, nil
	})
}

func (s *CalendarService) GetDayDetail(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		f := fieldsOf(in)
		date, err := f.date("date")
		if err != nil {
			return nil, err
		}
		page, err := f.integer("page")
		if err != nil {
			return nil, err
		}
		pageSize, err := f.integer("page_size")
		if err != nil {
			return nil, err
		}
		detail, err := s.aggregator.DayDetail(ctx, availability.DayDetailRequest{
			BusinessID: businessID,
			Date:       date,
			Page:       page,
			PageSize:   pageSize,
			Filters: availability.Filters{
				Status:    f.str("status"),
				StartTime: f.str("start_time"),
				Text:      f.str("text"),
			},
		})
		if err != nil {
			return nil, err
		}
		return dayDetailDoc(detail), nil
	})
}

func (s *CalendarService) ListFreeSlots(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		f := fieldsOf(in)
		providerID, err := f.uuid("provider_id")
		if err != nil {
			return nil, err
		}
		date, err := f.date("date")
		if err != nil {
			return nil, err
		}
		minutes, err := f.integer("duration_min")
		if err != nil {
			return nil, err
		}
		if minutes <= 0 {
			return nil, apperror.Validation("duration_min must be positive")
		}

		slots, err := s.aggregator.FreeSlots(ctx, businessID, providerID, date, time.Duration(minutes)*time.Minute)
		if err != nil {
			return nil, err
		}
		return map[string]any{"slots": slotDocs(slots)}, nil
	})
}

func (s *CalendarService) ListEvents(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.call(ctx, func(businessID uuid.UUID) (map[string]any, error) {
		limit, err := fieldsOf(in).integer("limit")
		if err != nil {
			return nil, err
		}
		events, err := s.ledger.RecentEvents(ctx, businessID, limit)
		if err != nil {
			return nil, err
		}
		return map[string]any{"events": eventDocs(events)}, nil
	})
}
