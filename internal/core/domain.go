package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type (
	Money struct {
		Cents int64
	}

	// Month is the top-level time bucket owning expenses and incomes.
	// A closed month rejects further expense/income mutation.
	Month struct {
		ID     int64
		Year   int
		Month  int // 1-12
		Closed bool
	}

	// Category buckets expenses by name; Period is a user-defined
	// pay-cycle label; IncomeType buckets incomes by id.
	Category struct {
		ID    int64
		Name  string
		Color string
	}

	Period struct {
		ID    int64
		Name  string
		Color string
	}

	IncomeType struct {
		ID    int64
		Name  string
		Color string
	}

	// Purchase is a single line item contributing to an expense's
	// actual cost. Owned exclusively by one expense.
	Purchase struct {
		Name   string
		Amount Money
		Date   time.Time // zero when not provided
	}

	Expense struct {
		ID        int64
		MonthID   int64
		Name      string
		Category  string // category name reference
		Period    string // period name reference
		Budget    Money
		Actual    Money
		Notes     string
		Purchases []Purchase
	}

	Income struct {
		ID           int64
		MonthID      int64
		IncomeTypeID int64
		Period       string
		Budget       Money
		Actual       Money
	}
)

var (
	// ErrInvalidInput covers validation failures that have no
	// dedicated sentinel of their own.
	ErrInvalidInput = errors.New("invalid input")

	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidYear   = errors.New("invalid year")
	ErrEmptyName     = errors.New("empty name")
	ErrMissingMonth  = errors.New("missing month reference")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrMonthClosed   = errors.New("month is closed")
)

// DisplayName renders the month as shown to users, e.g. "December 2024".
func (m Month) DisplayName() string {
	return fmt.Sprintf("%s %d", time.Month(m.Month).String(), m.Year)
}

func (m Month) Validate() error {
	if m.Year < 1970 || m.Year > 9999 {
		return ErrInvalidYear
	}
	if m.Month < 1 || m.Month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NextYearMonth returns the calendar period following (year, month).
func NextYearMonth(year, month int) (int, int) {
	if month == 12 {
		return year + 1, 1
	}
	return year, month + 1
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// PurchaseTotal sums the expense's purchase line items.
func (e Expense) PurchaseTotal() Money {
	var cents int64
	for _, p := range e.Purchases {
		cents += p.Amount.Cents
	}
	return Money{Cents: cents}
}

func (e Expense) Validate() error {
	if e.MonthID <= 0 {
		return ErrMissingMonth
	}
	if len(strings.TrimSpace(e.Name)) == 0 {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return fmt.Errorf("name too long (max 200 characters): %w", ErrInvalidInput)
	}
	if strings.TrimSpace(e.Category) == "" {
		return fmt.Errorf("empty category: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(e.Period) == "" {
		return fmt.Errorf("empty period: %w", ErrInvalidInput)
	}
	if err := e.Budget.Validate(); err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	if err := e.Actual.Validate(); err != nil {
		return fmt.Errorf("actual: %w", err)
	}
	for i, p := range e.Purchases {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("purchase %d: %w", i, ErrEmptyName)
		}
		if err := p.Amount.Validate(); err != nil {
			return fmt.Errorf("purchase %d: %w", i, err)
		}
	}
	return nil
}

func (in Income) Validate() error {
	if in.MonthID <= 0 {
		return ErrMissingMonth
	}
	if in.IncomeTypeID <= 0 {
		return fmt.Errorf("missing income type reference: %w", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Period) == "" {
		return fmt.Errorf("empty period: %w", ErrInvalidInput)
	}
	if err := in.Budget.Validate(); err != nil {
		return fmt.Errorf("budget: %w", err)
	}
	if err := in.Actual.Validate(); err != nil {
		return fmt.Errorf("actual: %w", err)
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (p Period) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (it IncomeType) Validate() error {
	if strings.TrimSpace(it.Name) == "" {
		return ErrEmptyName
	}
	return nil
}
