package services

import (
	"context"
	"fmt"

	"bilancio/internal/core"
)

// EventPublisher is what the services need from the AMQP client. A nil
// publisher disables events; records stay queued in sync_status and the
// worker's periodic scan picks them up.
type EventPublisher interface {
	PublishRecordChanged(ctx context.Context, kind string, id, version int64) error
	PublishMonthCloned(ctx context.Context, sourceID, nextID int64, count int) error
}

// requireOpenMonth rejects writes into a closed month.
func requireOpenMonth(ctx context.Context, get func(context.Context, int64) (core.Month, error), monthID int64) error {
	m, err := get(ctx, monthID)
	if err != nil {
		return err
	}
	if m.Closed {
		return fmt.Errorf("month %s: %w", m.DisplayName(), core.ErrMonthClosed)
	}
	return nil
}
