package log

import "eventfin/internal/core"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldEventID       = "event_id"
	FieldCategoryID    = "category_id"
	FieldExpenseID     = "expense_id"
	FieldIncomeID      = "income_id"
	FieldAmountCents   = "amount_cents"
	FieldStatus        = "status"
	FieldPeriod        = "period"
	FieldAttachment    = "attachment_ref"
	FieldCount         = "count"
)

const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentEvents    = "events"
	ComponentBudget    = "budget"
	ComponentExpense   = "expense"
	ComponentIncome    = "income"
	ComponentDashboard = "dashboard"
	ComponentReconcile = "reconcile"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentOCR       = "ocr"
	ComponentRateLimit = "rate_limit"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
)

const (
	OpCreate    = "create"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpApprove   = "approve"
	OpReject    = "reject"
	OpAddSpend  = "add_spend"
	OpPublish   = "publish"
	OpAppend    = "append"
	OpReconcile = "reconcile"
	OpExtract   = "extract"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields builds structured attributes fluently.
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithExpense adds the identifying fields of an expense.
func (f LogFields) WithExpense(e core.Expense) LogFields {
	f[FieldExpenseID] = e.ID
	f[FieldEventID] = e.EventID
	f[FieldCategoryID] = e.CategoryID
	f[FieldAmountCents] = e.Amount.Cents
	f[FieldStatus] = string(e.Status)
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
