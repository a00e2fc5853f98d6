// Package events доставляет события аудита наружу после фиксации транзакции.
package events

import (
	"context"
	"errors"

	"github.com/Leganyst/calendar-core/internal/model"
)

// Publisher получает события, уже записанные в таблицу events.
// Ошибка публикации не откатывает изменение: событие остаётся в БД.
type Publisher interface {
	Publish(ctx context.Context, events ...model.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, ...model.Event) error { return nil }

// Nop ничего не публикует.
func Nop() Publisher { return nopPublisher{} }

// Multi рассылает события всем публикаторам и собирает ошибки.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, events ...model.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
