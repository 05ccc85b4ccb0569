package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status_code"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldScope     = "scope"
	FieldCompanyID = "company_id"
	FieldUserID    = "user_id"
	FieldRevision  = "revision"
	FieldProjectID = "project_id"
	FieldInvoiceNo = "invoice_number"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentStore    = "store"
	ComponentGateway  = "gateway"
	ComponentStorage  = "storage"
	ComponentRemote   = "remote"
	ComponentSession  = "session"
	ComponentBilling  = "billing"
	ComponentNotifier = "notifier"
	ComponentWorker   = "worker"
)
