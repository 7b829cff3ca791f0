package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrNotImplemented  ErrorCode = "not_implemented"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidPrice    ErrorCode = "invalid_price"

	// Measurement errors
	ErrMeter       ErrorCode = "meter_error"
	ErrMeterStart  ErrorCode = "meter_start_failed"
	ErrMeterStop   ErrorCode = "meter_stop_failed"
	ErrMeterSource ErrorCode = "meter_source_failed"
	ErrMeterBusy   ErrorCode = "meter_busy"

	// Analysis errors
	ErrInsufficientData ErrorCode = "insufficient_data"
	ErrLookupFailed     ErrorCode = "lookup_failed"

	// I/O errors
	ErrIO          ErrorCode = "io_failed"
	ErrMalformed   ErrorCode = "malformed_record"
	ErrRender      ErrorCode = "render_failed"
	ErrPublish     ErrorCode = "publish_failed"
	ErrStorageInit ErrorCode = "storage_init_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:         "Internal error occurred",
	ErrInvalidArgument:  "Invalid argument provided",
	ErrNotImplemented:   "Operation not implemented",
	ErrInvalidConfig:    "Invalid configuration",
	ErrReadConfig:       "Failed to read config file",
	ErrBindFlags:        "Failed to bind flags",
	ErrInvalidLogLevel:  "Invalid log level",
	ErrInvalidInterval:  "Invalid interval value",
	ErrInvalidPrice:     "Invalid price per kWh",
	ErrMeter:            "Meter failure",
	ErrMeterStart:       "Failed to start meter",
	ErrMeterStop:        "Failed to stop meter",
	ErrMeterSource:      "Failed to read energy source",
	ErrMeterBusy:        "Another host measurement is running",
	ErrInsufficientData: "Insufficient data",
	ErrLookupFailed:     "Lookup failed",
	ErrIO:               "I/O failure",
	ErrMalformed:        "Malformed record",
	ErrRender:           "Failed to render artifact",
	ErrPublish:          "Failed to publish artifact",
	ErrStorageInit:      "Failed to initialize storage",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
