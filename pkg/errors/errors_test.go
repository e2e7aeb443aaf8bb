package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	e := &Error{Type: ErrorTypeAuthoritative, Message: "unexpected status", Code: 403}
	assert.Equal(t, "authoritative error (code 403): unexpected status", e.Error())

	wrapped := Wrap(ErrorTypeNetwork, fmt.Errorf("dial tcp: timeout"), "fetch page")
	assert.Equal(t, "network error: fetch page: dial tcp: timeout", wrapped.Error())
}

func TestTypeOfThroughWrapping(t *testing.T) {
	base := New(ErrorTypePersistenceLock, "ledger locked")
	err := fmt.Errorf("record post 42: %w", base)

	assert.Equal(t, ErrorTypePersistenceLock, TypeOf(err))
	assert.True(t, IsType(err, ErrorTypePersistenceLock))
	assert.False(t, IsTransient(err))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain")))
	assert.False(t, IsType(nil, ErrorTypeUnknown))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(Wrap(ErrorTypeNetwork, fmt.Errorf("reset"), "fetch")))
	assert.False(t, IsTransient(&Error{Type: ErrorTypeAuthoritative, Code: 500}))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeAsset))
	assert.False(t, IsRetryable(ErrorTypeAuthoritative))
	assert.False(t, IsRetryable(ErrorTypeSchemaMismatch))
}

func TestIsRetryableStatusCode(t *testing.T) {
	for code, want := range map[int]bool{0: true, 429: true, 503: true, 404: false, 403: false, 400: false} {
		assert.Equal(t, want, IsRetryableStatusCode(code), "status %d", code)
	}
}
