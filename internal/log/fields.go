package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldMonthID      = "month_id"
	FieldExpenseID    = "expense_id"
	FieldIncomeID     = "income_id"
	FieldCategory     = "category"
	FieldIncomeTypeID = "income_type_id"
	FieldBudgetCents  = "budget_cents"
	FieldActualCents  = "actual_cents"
	FieldClonedCount  = "cloned_count"
)

// Components defines standard component names
const (
	ComponentApp    = "app"
	ComponentWorker = "worker"
)
