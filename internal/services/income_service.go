package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

type IncomeStore interface {
	CreateIncome(ctx context.Context, in core.Income) (core.Income, error)
	GetIncome(ctx context.Context, id int64) (core.Income, error)
	ListIncomes(ctx context.Context, f storage.IncomeFilter) ([]core.Income, error)
	UpdateIncome(ctx context.Context, in core.Income) (int64, error)
	DeleteIncome(ctx context.Context, id int64) error
	GetMonth(ctx context.Context, id int64) (core.Month, error)
}

type IncomeService struct {
	store     IncomeStore
	publisher EventPublisher
}

func NewIncomeService(store IncomeStore, publisher EventPublisher) *IncomeService {
	return &IncomeService{store: store, publisher: publisher}
}

func (s *IncomeService) Create(ctx context.Context, in core.Income) (core.Income, error) {
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	if err := requireOpenMonth(ctx, s.store.GetMonth, in.MonthID); err != nil {
		return core.Income{}, err
	}

	created, err := s.store.CreateIncome(ctx, in)
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}

	s.publishChange(ctx, created.ID, 1)
	return created, nil
}

func (s *IncomeService) Get(ctx context.Context, id int64) (core.Income, error) {
	return s.store.GetIncome(ctx, id)
}

func (s *IncomeService) List(ctx context.Context, f storage.IncomeFilter) ([]core.Income, error) {
	return s.store.ListIncomes(ctx, f)
}

func (s *IncomeService) Update(ctx context.Context, in core.Income) (core.Income, error) {
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}

	existing, err := s.store.GetIncome(ctx, in.ID)
	if err != nil {
		return core.Income{}, err
	}
	if err := requireOpenMonth(ctx, s.store.GetMonth, existing.MonthID); err != nil {
		return core.Income{}, err
	}

	version, err := s.store.UpdateIncome(ctx, in)
	if err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}

	s.publishChange(ctx, in.ID, version)
	return s.store.GetIncome(ctx, in.ID)
}

func (s *IncomeService) Delete(ctx context.Context, id int64) error {
	existing, err := s.store.GetIncome(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOpenMonth(ctx, s.store.GetMonth, existing.MonthID); err != nil {
		return err
	}
	return s.store.DeleteIncome(ctx, id)
}

func (s *IncomeService) publishChange(ctx context.Context, id, version int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRecordChanged(ctx, amqp.KindIncome, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish income change",
			log.FieldIncomeID, id,
			"version", version,
			log.FieldError, err)
	}
}
