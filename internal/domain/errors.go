package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "snapshot")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrInvalidTradeParameters is returned when a trade is constructed
	// with a negative amount or price. Raised at construction, never
	// deferred to validation.
	ErrInvalidTradeParameters = errors.New("invalid trade parameters")

	// ErrInvalidPair is returned when a pair's base and quote coincide.
	ErrInvalidPair = errors.New("invalid trade pair")

	// ErrStreamClosed is returned by reads from a torn-down stream. The
	// owning cache recreates the stream on the next access.
	ErrStreamClosed = errors.New("stream closed")

	// ErrSnapshotTimeout is raised when the pending-delta buffer overflows
	// before the REST snapshot arrives. Fatal for the stream instance.
	ErrSnapshotTimeout = errors.New("snapshot timeout: pending delta buffer overflow")

	// ErrSequenceGap marks a delta whose SeqBegin does not continue the
	// book's sequence number.
	ErrSequenceGap = errors.New("sequence gap")

	// ErrNoLiquidity is returned when a spot price is requested from an
	// empty ladder.
	ErrNoLiquidity = errors.New("no liquidity")

	// ErrNotFakeOrder is returned when the simulation fill path is invoked
	// on an order that was really submitted.
	ErrNotFakeOrder = errors.New("order is not fake")

	// ErrProtocol is returned when a feed message has an unrecognized
	// shape. Logged and dropped; the stream continues.
	ErrProtocol = errors.New("unrecognized message shape")
)
