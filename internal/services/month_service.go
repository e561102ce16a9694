package services

import (
	"context"
	"log/slog"

	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

type MonthStore interface {
	CreateMonth(ctx context.Context, year, month int) (core.Month, error)
	GetMonth(ctx context.Context, id int64) (core.Month, error)
	GetMonthByYearMonth(ctx context.Context, year, month int) (core.Month, error)
	ListMonths(ctx context.Context) ([]core.Month, error)
	ListRecentMonths(ctx context.Context, n int) ([]core.Month, error)
	SetMonthClosed(ctx context.Context, id int64, closed bool) error
	CloneMonthToNext(ctx context.Context, sourceID int64) (storage.CloneResult, error)
}

type MonthService struct {
	store     MonthStore
	publisher EventPublisher
}

func NewMonthService(store MonthStore, publisher EventPublisher) *MonthService {
	return &MonthService{store: store, publisher: publisher}
}

func (s *MonthService) Create(ctx context.Context, year, month int) (core.Month, error) {
	if err := (core.Month{Year: year, Month: month}).Validate(); err != nil {
		return core.Month{}, err
	}
	return s.store.CreateMonth(ctx, year, month)
}

func (s *MonthService) Get(ctx context.Context, id int64) (core.Month, error) {
	return s.store.GetMonth(ctx, id)
}

func (s *MonthService) List(ctx context.Context) ([]core.Month, error) {
	return s.store.ListMonths(ctx)
}

func (s *MonthService) ListRecent(ctx context.Context, n int) ([]core.Month, error) {
	return s.store.ListRecentMonths(ctx, n)
}

func (s *MonthService) Close(ctx context.Context, id int64) error {
	return s.store.SetMonthClosed(ctx, id, true)
}

func (s *MonthService) Reopen(ctx context.Context, id int64) error {
	return s.store.SetMonthClosed(ctx, id, false)
}

// CloneToNext copies the month's records into the following month.
// The source may be closed; only the destination is guarded, which the
// storage layer enforces inside the clone transaction.
func (s *MonthService) CloneToNext(ctx context.Context, sourceID int64) (storage.CloneResult, error) {
	result, err := s.store.CloneMonthToNext(ctx, sourceID)
	if err != nil {
		return storage.CloneResult{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishMonthCloned(ctx, sourceID, result.NextMonth.ID, result.ClonedCount); err != nil {
			slog.ErrorContext(ctx, "Failed to publish month cloned event",
				"source_month_id", sourceID,
				"next_month_id", result.NextMonth.ID,
				log.FieldError, err)
		}
	}

	return result, nil
}

func (s *MonthService) GetByYearMonth(ctx context.Context, year, month int) (core.Month, error) {
	return s.store.GetMonthByYearMonth(ctx, year, month)
}
