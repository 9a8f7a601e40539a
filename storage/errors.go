package storage

import (
	"errors"
	"fmt"
)

// ErrorCode represents different types of storage errors
type ErrorCode int

const (
	// Generic errors
	ErrCodeUnknown ErrorCode = iota
	ErrCodeInternal
	ErrCodeInvalidArgument
	ErrCodeInvalidConfig

	// Replacer errors
	ErrCodeFrameOutOfRange
	ErrCodeFrameNotEvictable

	// Hash table errors
	ErrCodeDirectoryIndex
	ErrCodeHashExhausted

	// Buffer pool errors
	ErrCodePageNotFound
	ErrCodeNoFreeFrames
	ErrCodePagePinned
	ErrCodeInvalidPin
)

var errorCodeNames = map[ErrorCode]string{
	ErrCodeUnknown:           "unknown",
	ErrCodeInternal:          "internal",
	ErrCodeInvalidArgument:   "invalid_argument",
	ErrCodeInvalidConfig:     "invalid_config",
	ErrCodeFrameOutOfRange:   "frame_out_of_range",
	ErrCodeFrameNotEvictable: "frame_not_evictable",
	ErrCodeDirectoryIndex:    "directory_index",
	ErrCodeHashExhausted:     "hash_exhausted",
	ErrCodePageNotFound:      "page_not_found",
	ErrCodeNoFreeFrames:      "no_free_frames",
	ErrCodePagePinned:        "page_pinned",
	ErrCodeInvalidPin:        "invalid_pin",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error_code(%d)", int(c))
}

// StorageError represents a storage engine error with context
type StorageError struct {
	Code    ErrorCode
	Message string
	Op      string // Operation that failed
	Err     error  // Underlying error (if any)
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches a specific error code
func (e *StorageError) Is(target error) bool {
	if t, ok := target.(*StorageError); ok {
		return e.Code == t.Code
	}
	return false
}

// NewStorageError creates a new storage error
func NewStorageError(code ErrorCode, op, message string, err error) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Helper functions for common errors

func ErrInvalidArgument(op, message string) *StorageError {
	return NewStorageError(ErrCodeInvalidArgument, op, message, nil)
}

func ErrInvalidConfig(op string, err error) *StorageError {
	return NewStorageError(ErrCodeInvalidConfig, op, "invalid configuration", err)
}

func ErrFrameOutOfRange(op string, frameID FrameID, numFrames uint32) *StorageError {
	return NewStorageError(
		ErrCodeFrameOutOfRange,
		op,
		fmt.Sprintf("frame %d out of range [0, %d)", frameID, numFrames),
		nil,
	)
}

func ErrFrameNotEvictable(op string, frameID FrameID) *StorageError {
	return NewStorageError(
		ErrCodeFrameNotEvictable,
		op,
		fmt.Sprintf("frame %d is not evictable", frameID),
		nil,
	)
}

func ErrDirectoryIndex(op string, index, size int) *StorageError {
	return NewStorageError(
		ErrCodeDirectoryIndex,
		op,
		fmt.Sprintf("directory index %d out of range [0, %d)", index, size),
		nil,
	)
}

func ErrHashExhausted(op string, depth int) *StorageError {
	return NewStorageError(
		ErrCodeHashExhausted,
		op,
		fmt.Sprintf("cannot split bucket beyond global depth %d", depth),
		nil,
	)
}

func ErrPageNotFound(op string, pageID PageID) *StorageError {
	return NewStorageError(
		ErrCodePageNotFound,
		op,
		fmt.Sprintf("page %d not found", pageID),
		nil,
	)
}

func ErrNoFreeFrames(op string) *StorageError {
	return NewStorageError(
		ErrCodeNoFreeFrames,
		op,
		"no free or evictable frames available",
		nil,
	)
}

func ErrPagePinned(op string, pageID PageID, pinCount int) *StorageError {
	return NewStorageError(
		ErrCodePagePinned,
		op,
		fmt.Sprintf("page %d is pinned (pin count: %d)", pageID, pinCount),
		nil,
	)
}

func ErrInvalidPin(op string, pageID PageID) *StorageError {
	return NewStorageError(
		ErrCodeInvalidPin,
		op,
		fmt.Sprintf("page %d is not pinned", pageID),
		nil,
	)
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// GetErrorCode returns the error code from an error, or ErrCodeUnknown
func GetErrorCode(err error) ErrorCode {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeUnknown
}

// RecoverStorageError converts a recovered panic value into a *StorageError.
// Contract violations inside this package panic with *StorageError; any other
// value is wrapped as an internal error.
func RecoverStorageError(r any) *StorageError {
	switch v := r.(type) {
	case nil:
		return nil
	case *StorageError:
		return v
	case error:
		return NewStorageError(ErrCodeInternal, "", "unexpected panic", v)
	default:
		return NewStorageError(ErrCodeInternal, "", fmt.Sprintf("unexpected panic: %v", v), nil)
	}
}
