package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldOperation   = "operation"
	FieldError       = "error"
	FieldErrorType   = "error_type"
	FieldDuration    = "duration_ms"
	FieldDocument    = "document"
	FieldLocation    = "location"
	FieldMonthKey    = "month_key"
	FieldBucketKey   = "bucket_key"
	FieldEntryID     = "entry_id"
	FieldColumn      = "column"
	FieldValue       = "value"
	FieldCount       = "count"
	FieldVersion     = "version"
	FieldStream      = "stream"
	FieldBackend     = "backend"
	FieldEventKind   = "event_kind"
	FieldEventOrigin = "event_origin"
	FieldMask        = "mask"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLedger    = "ledger"
	ComponentSync      = "sync"
	ComponentReconcile = "reconcile"
	ComponentStore     = "store"
	ComponentSheets    = "sheets"
	ComponentAMQP      = "amqp"
	ComponentNotify    = "notify"
	ComponentLock      = "lock"
	ComponentMetrics   = "metrics"
	ComponentBackend   = "backend"
)

// Operations defines standard operation names
const (
	OpAddEntry       = "add_entry"
	OpUpdateEntry    = "update_entry"
	OpDeleteEntry    = "delete_entry"
	OpAddLocation    = "add_location"
	OpDeleteLocation = "delete_location"
	OpAddColumn      = "add_column"
	OpReconcile      = "reconcile"
	OpSubscribe      = "subscribe"
	OpRefresh        = "refresh"
	OpPublish        = "publish"
	OpConsume        = "consume"
	OpMigrate        = "migrate"
	OpStartup        = "startup"
	OpShutdown       = "shutdown"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation  = "validation_error"
	ErrorTypeTransport   = "transport_error"
	ErrorTypeConsistency = "consistency_warning"
	ErrorTypeConfig      = "configuration_error"
	ErrorTypeInternal    = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithErrorType adds the error category
func (f LogFields) WithErrorType(kind string) LogFields {
	f[FieldErrorType] = kind
	return f
}

// WithBucket adds document and location fields
func (f LogFields) WithBucket(document, location string) LogFields {
	f[FieldDocument] = document
	f[FieldLocation] = location
	return f
}

// WithEntry adds the entry document id
func (f LogFields) WithEntry(id string) LogFields {
	if id != "" {
		f[FieldEntryID] = id
	}
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
