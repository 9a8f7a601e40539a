package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageError(t *testing.T) {
	err := NewStorageError(
		ErrCodePageNotFound,
		"FetchPage",
		"page not found",
		nil,
	)

	assert.Equal(t, ErrCodePageNotFound, err.Code)
	assert.Equal(t, "FetchPage", err.Op)
	assert.Equal(t, "FetchPage: page not found", err.Error())
}

func TestStorageErrorWithUnderlying(t *testing.T) {
	underlying := fmt.Errorf("pool size must be greater than 0")
	err := ErrInvalidConfig("NewBufferPoolSimulator", underlying)

	assert.Same(t, underlying, errors.Unwrap(err))
	assert.Equal(t,
		"NewBufferPoolSimulator: invalid configuration: pool size must be greater than 0",
		err.Error())
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name string
		err  *StorageError
		code ErrorCode
		msg  string
	}{
		{"frame out of range", ErrFrameOutOfRange("RecordAccess", 7, 4), ErrCodeFrameOutOfRange, "RecordAccess: frame 7 out of range [0, 4)"},
		{"frame not evictable", ErrFrameNotEvictable("Remove", 2), ErrCodeFrameNotEvictable, "Remove: frame 2 is not evictable"},
		{"directory index", ErrDirectoryIndex("GetLocalDepth", 8, 4), ErrCodeDirectoryIndex, "GetLocalDepth: directory index 8 out of range [0, 4)"},
		{"hash exhausted", ErrHashExhausted("Insert", 63), ErrCodeHashExhausted, "Insert: cannot split bucket beyond global depth 63"},
		{"page not found", ErrPageNotFound("UnpinPage", 5), ErrCodePageNotFound, "UnpinPage: page 5 not found"},
		{"no free frames", ErrNoFreeFrames("evictPage"), ErrCodeNoFreeFrames, "evictPage: no free or evictable frames available"},
		{"page pinned", ErrPagePinned("DeletePage", 3, 2), ErrCodePagePinned, "DeletePage: page 3 is pinned (pin count: 2)"},
		{"invalid pin", ErrInvalidPin("UnpinPage", 9), ErrCodeInvalidPin, "UnpinPage: page 9 is not pinned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.msg, tt.err.Error())
		})
	}
}

func TestIsErrorCode(t *testing.T) {
	err := ErrPageNotFound("UnpinPage", 1)
	wrapped := fmt.Errorf("replay page 1: %w", err)

	assert.True(t, IsErrorCode(wrapped, ErrCodePageNotFound))
	assert.False(t, IsErrorCode(wrapped, ErrCodeInvalidPin))
	assert.False(t, IsErrorCode(errors.New("plain"), ErrCodePageNotFound))

	assert.Equal(t, ErrCodePageNotFound, GetErrorCode(wrapped))
	assert.Equal(t, ErrCodeUnknown, GetErrorCode(errors.New("plain")))

	// Is matches on code alone
	assert.True(t, errors.Is(wrapped, &StorageError{Code: ErrCodePageNotFound}))
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "hash_exhausted", ErrCodeHashExhausted.String())
	assert.Equal(t, "error_code(99)", ErrorCode(99).String())
}

func TestRecoverStorageError(t *testing.T) {
	assert.Nil(t, RecoverStorageError(nil))

	se := ErrFrameNotEvictable("Remove", 1)
	assert.Same(t, se, RecoverStorageError(se))

	fromErr := RecoverStorageError(errors.New("boom"))
	require.NotNil(t, fromErr)
	assert.Equal(t, ErrCodeInternal, fromErr.Code)

	fromValue := RecoverStorageError("boom")
	assert.Equal(t, ErrCodeInternal, fromValue.Code)
	assert.Contains(t, fromValue.Error(), "boom")
}

func TestPanicRecoveredAsStorageError(t *testing.T) {
	replacer := NewLRUKReplacer(2, 2)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = RecoverStorageError(r)
			}
		}()
		replacer.RecordAccess(5)
		return nil
	}()

	require.Error(t, err)
	assert.True(t, IsErrorCode(err, ErrCodeFrameOutOfRange))
}
