package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "BIN_001", ErrCodeInvalidResolution.String())
}

func TestHTTPStatusForCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInternal, 500},
		{ErrCodeBadRequest, 400},
		{ErrCodeNotFound, 404},
		{ErrCodeValidation, 422},
		{ErrCodeInvalidResolution, 400},
		{ErrCodeNoLevelsConfigured, 500},
		{ErrCodeSessionNotFound, 404},
		{ErrorCode("NOPE_999"), 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatusForCode(tt.code), tt.code)
	}
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "internal server error", DefaultMessageForCode(ErrCodeInternal))
	assert.Equal(t, "resolution level is not on the ladder", DefaultMessageForCode(ErrCodeInvalidResolution))
	assert.Equal(t, "unknown error", DefaultMessageForCode(ErrorCode("NOPE_999")))
}

func TestClientServerClassification(t *testing.T) {
	assert.True(t, IsClientError(ErrCodeInvalidResolution))
	assert.False(t, IsClientError(ErrCodeNoLevelsConfigured))
	assert.True(t, IsServerError(ErrCodeNoLevelsConfigured))
	assert.False(t, IsServerError(ErrCodeBadRequest))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
	assert.Equal(t, "BIN", ModuleForCode(ErrCodeInvalidResolution))
	assert.Equal(t, "SEL", ModuleForCode(ErrCodeInvalidInstruction))
	assert.Equal(t, "DATA", ModuleForCode(ErrCodeDatasetParse))
	assert.Equal(t, "SES", ModuleForCode(ErrCodeSessionNotFound))
	assert.Equal(t, "UNKNOWN", ModuleForCode(ErrorCode("")))
}

func TestErrorCodeMappings_Completeness(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]+_\d{3}$`)
	for code := range ErrorCodeHTTPStatus {
		assert.Regexp(t, re, string(code))
		_, hasMessage := ErrorCodeMessage[code]
		assert.True(t, hasMessage, "missing message for %s", code)
	}
	assert.Len(t, ErrorCodeMessage, len(ErrorCodeHTTPStatus))
}
