package service

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/calendar-core/internal/apperror"
)

// toStatus переводит результат ядра в gRPC-статус. Детали сбоев инфраструктуры
// остаются в логах, клиент видит только codes.Internal.
func toStatus(ctx context.Context, log *slog.Logger, err error) error {
	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		log.ErrorContext(ctx, "calendar request failed", slog.Any("err", err))
		return status.Error(codes.Internal, "internal error")
	}

	switch appErr.Kind {
	case apperror.KindNotFound:
		return status.Error(codes.NotFound, appErr.Message)
	case apperror.KindConflict:
		return status.Error(codes.FailedPrecondition, appErr.Message)
	case apperror.KindBadRequest, apperror.KindValidation:
		return status.Error(codes.InvalidArgument, appErr.Message)
	default:
		return status.Error(codes.Unknown, appErr.Message)
	}
}
