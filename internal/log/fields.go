package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldOperation  = "operation"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldSuccess    = "success"
	FieldError      = "error"

	FieldUserID         = "user_id"
	FieldLoanID         = "loan_id"
	FieldPaymentID      = "payment_id"
	FieldBudgetID       = "budget_id"
	FieldNotificationID = "notification_id"
	FieldConnID         = "conn_id"
	FieldAmount         = "amount"
	FieldOldStatus      = "old_status"
	FieldNewStatus      = "new_status"
	FieldCondition      = "condition"
	FieldEventType      = "event_type"
	FieldDelivered      = "delivered"
)

// Components
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentNotify    = "notify"
	ComponentMonitor   = "monitor"
	ComponentSession   = "session"
	ComponentWebSocket = "websocket"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentJournal   = "journal"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentTrace     = "trace"
	ComponentBackend   = "backend"
)

// Operations
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpPay      = "apply_payment"
	OpReverse  = "reverse_payment"
	OpNotify   = "notify"
	OpDispatch = "dispatch"
	OpSweep    = "sweep"
	OpAppend   = "append"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message; nil errors are skipped.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithLoan adds the loan id and, when known, its status transition.
func (f LogFields) WithLoan(loanID int64, oldStatus, newStatus string) LogFields {
	f[FieldLoanID] = loanID
	if oldStatus != "" {
		f[FieldOldStatus] = oldStatus
	}
	if newStatus != "" {
		f[FieldNewStatus] = newStatus
	}
	return f
}

func (f LogFields) WithPayment(paymentID, amount int64) LogFields {
	f[FieldPaymentID] = paymentID
	f[FieldAmount] = amount
	return f
}

func (f LogFields) WithHTTPRequest(method, path, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	if userAgent != "" {
		f[FieldUserAgent] = userAgent
	}
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to key/value pairs for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
