package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string identifier for a specific error condition, formatted
// as "<MODULE>_<NNN>".
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel codes outside the module numbering.
const (
	CodeOK      ErrorCode = "OK"
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Binning module error codes
const (
	ErrCodeInvalidResolution  ErrorCode = "BIN_001"
	ErrCodeNoLevelsConfigured ErrorCode = "BIN_002"
	ErrCodeInvalidZoom        ErrorCode = "BIN_003"
	ErrCodeInvalidBinKey      ErrorCode = "BIN_004"
)

// Selection / instruction module error codes
const (
	ErrCodeInvalidInstruction ErrorCode = "SEL_001"
	ErrCodeInvalidFacet       ErrorCode = "SEL_002"
)

// Dataset module error codes
const (
	ErrCodeDatasetUnavailable ErrorCode = "DATA_001"
	ErrCodeDatasetParse       ErrorCode = "DATA_002"
	ErrCodeDatasetFormat      ErrorCode = "DATA_003"
	ErrCodeDatasetEmpty       ErrorCode = "DATA_004"
)

// Session module error codes
const (
	ErrCodeSessionNotFound ErrorCode = "SES_001"
	ErrCodeSessionLimit    ErrorCode = "SES_002"
)

// ErrorCodeHTTPStatus maps each code to the HTTP status the API returns.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,

	ErrCodeInvalidResolution:  http.StatusBadRequest,
	ErrCodeNoLevelsConfigured: http.StatusInternalServerError,
	ErrCodeInvalidZoom:        http.StatusBadRequest,
	ErrCodeInvalidBinKey:      http.StatusBadRequest,

	ErrCodeInvalidInstruction: http.StatusBadRequest,
	ErrCodeInvalidFacet:       http.StatusBadRequest,

	ErrCodeDatasetUnavailable: http.StatusServiceUnavailable,
	ErrCodeDatasetParse:       http.StatusUnprocessableEntity,
	ErrCodeDatasetFormat:      http.StatusBadRequest,
	ErrCodeDatasetEmpty:       http.StatusUnprocessableEntity,

	ErrCodeSessionNotFound: http.StatusNotFound,
	ErrCodeSessionLimit:    http.StatusTooManyRequests,
}

// ErrorCodeMessage holds the default message for each code.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",

	ErrCodeInvalidResolution:  "resolution level is not on the ladder",
	ErrCodeNoLevelsConfigured: "resolution ladder has no levels",
	ErrCodeInvalidZoom:        "zoom signal is not a finite number",
	ErrCodeInvalidBinKey:      "malformed bin key",

	ErrCodeInvalidInstruction: "unknown instruction kind",
	ErrCodeInvalidFacet:       "unknown selection facet",

	ErrCodeDatasetUnavailable: "dataset unavailable",
	ErrCodeDatasetParse:       "failed to parse dataset",
	ErrCodeDatasetFormat:      "unsupported dataset format",
	ErrCodeDatasetEmpty:       "dataset contains no usable records",

	ErrCodeSessionNotFound: "session not found",
	ErrCodeSessionLimit:    "session limit reached",
}

// HTTPStatusForCode returns the HTTP status for code, defaulting to 500.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if code maps to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if code maps to a 5xx status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of code.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
