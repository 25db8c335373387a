// Package errors provides the error taxonomy of the dataflow core: classified
// errors, the sentinel for every failure kind an onramp, operator or pipeline
// can report, and helpers for consistent wrapping.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jaysonsantos/tremor-runtime/pkg/retry"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors caused by a single bad input; the
	// input is dropped and processing continues
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that must stop the component
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Failure kinds. Every error produced by the core wraps exactly one of these.
var (
	// ErrConfig is a construction-time failure: bad configuration, a durable
	// log that cannot be opened, a listener that cannot bind.
	ErrConfig = errors.New("configuration error")

	// ErrPreprocess is a per-message preprocessor failure.
	ErrPreprocess = errors.New("preprocessor error")

	// ErrDecode is a per-buffer codec failure.
	ErrDecode = errors.New("decode error")

	// ErrEncode is a per-event codec failure on the way out.
	ErrEncode = errors.New("encode error")

	// ErrAppend is a durable-write failure. The event that failed to persist
	// is never forwarded.
	ErrAppend = errors.New("append error")

	// ErrReplay is a failure to deserialize a logged entry during replay.
	ErrReplay = errors.New("replay error")

	// ErrDelivery is a per-destination mailbox failure.
	ErrDelivery = errors.New("delivery error")

	// ErrMailboxFull reports a destination mailbox at capacity.
	ErrMailboxFull = fmt.Errorf("mailbox full: %w", ErrDelivery)

	// ErrMailboxClosed reports a destination mailbox that no longer accepts messages.
	ErrMailboxClosed = fmt.Errorf("mailbox closed: %w", ErrDelivery)

	// ErrUnknownArtefact reports a registry lookup miss (codec, preprocessor,
	// operator, onramp or offramp type).
	ErrUnknownArtefact = fmt.Errorf("unknown artefact: %w", ErrConfig)
)

// Standard error variables for lifecycle and infrastructure conditions
var (
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrShuttingDown   = errors.New("component is shutting down")

	ErrConnectionTimeout  = errors.New("connection timeout")
	ErrConnectionLost     = errors.New("connection lost")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrStorageFull        = errors.New("storage full")
	ErrDataCorrupted      = errors.New("data corrupted")
	ErrInvalidData        = errors.New("invalid data format")
)

// ClassifiedError carries an explicit class for an error. The outermost
// explicit class in a chain wins over sentinel heuristics.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// explicitClass returns the class of the outermost ClassifiedError in err's chain
func explicitClass(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

var transientHints = []string{"timeout", "temporary", "unavailable", "busy"}

// IsTransient reports whether retrying err may succeed
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorTransient
	}
	if isAny(err, ErrConnectionTimeout, ErrConnectionLost, ErrStorageUnavailable, ErrDelivery, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range transientHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// IsFatal reports whether err must stop the component that saw it
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorFatal
	}
	return isAny(err, ErrConfig, ErrDataCorrupted, ErrStorageFull)
}

// IsInvalid reports whether err is confined to one bad input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := explicitClass(err); ok {
		return class == ErrorInvalid
	}
	return isAny(err, ErrInvalidData, ErrPreprocess, ErrDecode, ErrEncode, ErrReplay)
}

// Classify returns the class of err. Errors outside the taxonomy are
// transient so callers may retry them.
func Classify(err error) ErrorClass {
	switch {
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	default:
		return ErrorTransient
	}
}

// Kind returns a short label for the failure kind wrapped by err, suitable
// for metric labels. Errors outside the taxonomy report "other".
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMailboxFull):
		return "mailbox_full"
	case errors.Is(err, ErrMailboxClosed):
		return "mailbox_closed"
	case errors.Is(err, ErrDelivery):
		return "delivery"
	case errors.Is(err, ErrConfig):
		return "config"
	case errors.Is(err, ErrPreprocess):
		return "preprocess"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrEncode):
		return "encode"
	case errors.Is(err, ErrAppend):
		return "append"
	case errors.Is(err, ErrReplay):
		return "replay"
	default:
		return "other"
	}
}

// Wrap adds context in the form "component.method: action failed: err"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapAs(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient wraps err with context and marks it retryable
func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, err, component, method, action)
}

// WrapFatal wraps err with context and marks it as stopping the component
func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, err, component, method, action)
}

// WrapInvalid wraps err with context and marks it as a bad single input
func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, err, component, method, action)
}

// Mark joins err with a taxonomy sentinel so that errors.Is matches both.
// A nil err yields the sentinel itself.
func Mark(err, kind error) error {
	if err == nil {
		return kind
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Re-exported standard library helpers so callers only import one errors package.
var (
	Is   = errors.Is
	As   = errors.As
	New  = errors.New
	Join = errors.Join
)

// RetryConfig defines configuration for retrying transient failures
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

// DefaultRetryConfig returns the retry policy used for durable appends
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    2,
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      200 * time.Millisecond,
		BackoffFactor: 2.0,
	}
}

// ShouldRetry determines if an error should be retried based on config
func (rc RetryConfig) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= rc.MaxRetries {
		return false
	}
	return IsTransient(err)
}

// ToRetryConfig converts to the retry package's Config. MaxRetries counts
// additional attempts beyond the first, so one is added.
func (rc RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  rc.MaxRetries + 1,
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
		Multiplier:   rc.BackoffFactor,
		AddJitter:    true,
	}
}
