package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/storage"
)

// errBadRequest marks malformed requests (bad JSON, bad path or query
// values) as distinct from domain validation failures.
var errBadRequest = errors.New("bad request")

type contextKey string

const requestIDKey contextKey = "request_id"

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// clientIP resolves the caller's address, trusting proxy headers in
// their usual precedence order.
func clientIP(r *http.Request) string {
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		// First hop is the original client.
		if i := strings.IndexByte(v, ','); i > 0 {
			return strings.TrimSpace(v[:i])
		}
		return strings.TrimSpace(v)
	}
	if v := r.Header.Get("X-Real-IP"); v != "" {
		return v
	}
	return r.RemoteAddr
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: %w", raw, errBadRequest)
	}
	return id, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, raw, errBadRequest)
	}
	return v, nil
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode request body: %w", errBadRequest)
	}
	return nil
}

// Wire types. Amounts travel as decimal strings on input (the parser
// takes both dot and comma separators) and as cents plus a display
// string on output.

type moneyJSON struct {
	Cents   int64  `json:"cents"`
	Display string `json:"display"`
}

func toMoneyJSON(m core.Money) moneyJSON {
	return moneyJSON{Cents: m.Cents, Display: core.FormatCents(m.Cents)}
}

func parseAmount(field, raw string) (core.Money, error) {
	if strings.TrimSpace(raw) == "" {
		return core.Money{}, nil
	}
	cents, err := core.ParseDecimalToCents(raw)
	if err != nil {
		return core.Money{}, fmt.Errorf("%s: %w", field, err)
	}
	return core.Money{Cents: cents}, nil
}

type purchaseRequest struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Date   string `json:"date,omitempty"` // YYYY-MM-DD
}

type purchaseResponse struct {
	Name   string    `json:"name"`
	Amount moneyJSON `json:"amount"`
	Date   string    `json:"date,omitempty"`
}

func (p purchaseRequest) toDomain() (core.Purchase, error) {
	amount, err := parseAmount("purchase amount", p.Amount)
	if err != nil {
		return core.Purchase{}, err
	}
	out := core.Purchase{Name: strings.TrimSpace(p.Name), Amount: amount}
	if p.Date != "" {
		d, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return core.Purchase{}, fmt.Errorf("invalid purchase date %q: %w", p.Date, errBadRequest)
		}
		out.Date = d
	}
	return out, nil
}

func toPurchaseResponse(p core.Purchase) purchaseResponse {
	out := purchaseResponse{Name: p.Name, Amount: toMoneyJSON(p.Amount)}
	if !p.Date.IsZero() {
		out.Date = p.Date.Format("2006-01-02")
	}
	return out
}

type expenseRequest struct {
	MonthID   int64             `json:"month_id"`
	Name      string            `json:"name"`
	Category  string            `json:"category"`
	Period    string            `json:"period"`
	Budget    string            `json:"budget"`
	Actual    string            `json:"actual,omitempty"`
	Notes     string            `json:"notes,omitempty"`
	Purchases []purchaseRequest `json:"purchases,omitempty"`
}

func (req expenseRequest) toDomain() (core.Expense, error) {
	budget, err := parseAmount("budget", req.Budget)
	if err != nil {
		return core.Expense{}, err
	}
	actual, err := parseAmount("actual", req.Actual)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		MonthID:  req.MonthID,
		Name:     strings.TrimSpace(req.Name),
		Category: strings.TrimSpace(req.Category),
		Period:   strings.TrimSpace(req.Period),
		Budget:   budget,
		Actual:   actual,
		Notes:    strings.TrimSpace(req.Notes),
	}
	for _, p := range req.Purchases {
		dp, err := p.toDomain()
		if err != nil {
			return core.Expense{}, err
		}
		e.Purchases = append(e.Purchases, dp)
	}
	return e, nil
}

type expenseResponse struct {
	ID        int64              `json:"id"`
	MonthID   int64              `json:"month_id"`
	Name      string             `json:"name"`
	Category  string             `json:"category"`
	Period    string             `json:"period"`
	Budget    moneyJSON          `json:"budget"`
	Actual    moneyJSON          `json:"actual"`
	Notes     string             `json:"notes,omitempty"`
	Purchases []purchaseResponse `json:"purchases,omitempty"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	out := expenseResponse{
		ID:       e.ID,
		MonthID:  e.MonthID,
		Name:     e.Name,
		Category: e.Category,
		Period:   e.Period,
		Budget:   toMoneyJSON(e.Budget),
		Actual:   toMoneyJSON(e.Actual),
		Notes:    e.Notes,
	}
	for _, p := range e.Purchases {
		out.Purchases = append(out.Purchases, toPurchaseResponse(p))
	}
	return out
}

type incomeRequest struct {
	MonthID      int64  `json:"month_id"`
	IncomeTypeID int64  `json:"income_type_id"`
	Period       string `json:"period"`
	Budget       string `json:"budget"`
	Actual       string `json:"actual,omitempty"`
}

func (req incomeRequest) toDomain() (core.Income, error) {
	budget, err := parseAmount("budget", req.Budget)
	if err != nil {
		return core.Income{}, err
	}
	actual, err := parseAmount("actual", req.Actual)
	if err != nil {
		return core.Income{}, err
	}
	return core.Income{
		MonthID:      req.MonthID,
		IncomeTypeID: req.IncomeTypeID,
		Period:       strings.TrimSpace(req.Period),
		Budget:       budget,
		Actual:       actual,
	}, nil
}

type incomeResponse struct {
	ID           int64     `json:"id"`
	MonthID      int64     `json:"month_id"`
	IncomeTypeID int64     `json:"income_type_id"`
	Period       string    `json:"period"`
	Budget       moneyJSON `json:"budget"`
	Actual       moneyJSON `json:"actual"`
}

func toIncomeResponse(in core.Income) incomeResponse {
	return incomeResponse{
		ID:           in.ID,
		MonthID:      in.MonthID,
		IncomeTypeID: in.IncomeTypeID,
		Period:       in.Period,
		Budget:       toMoneyJSON(in.Budget),
		Actual:       toMoneyJSON(in.Actual),
	}
}

type monthResponse struct {
	ID     int64  `json:"id"`
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

func toMonthResponse(m core.Month) monthResponse {
	return monthResponse{
		ID:     m.ID,
		Year:   m.Year,
		Month:  m.Month,
		Name:   m.DisplayName(),
		Closed: m.Closed,
	}
}

func expenseFilterFrom(r *http.Request) (storage.ExpenseFilter, error) {
	monthID, err := queryInt64(r, "month_id")
	if err != nil {
		return storage.ExpenseFilter{}, err
	}
	return storage.ExpenseFilter{
		MonthID:  monthID,
		Period:   strings.TrimSpace(r.URL.Query().Get("period")),
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
	}, nil
}

func incomeFilterFrom(r *http.Request) (storage.IncomeFilter, error) {
	monthID, err := queryInt64(r, "month_id")
	if err != nil {
		return storage.IncomeFilter{}, err
	}
	typeID, err := queryInt64(r, "income_type_id")
	if err != nil {
		return storage.IncomeFilter{}, err
	}
	return storage.IncomeFilter{
		MonthID:      monthID,
		Period:       strings.TrimSpace(r.URL.Query().Get("period")),
		IncomeTypeID: typeID,
	}, nil
}
