package gauge

import "errors"

var (
	// ErrTransportMissing is returned when an operation runs on a Gauge
	// without a Transport, or when the local transport could not be
	// reconfigured.
	ErrTransportMissing = errors.New("transport not available")

	// ErrWriteFailed is returned when the transport accepted fewer bytes
	// than the command length.
	ErrWriteFailed = errors.New("write to transport failed")

	// ErrResponseTooLong is returned when a response fills the response
	// buffer before its line terminator arrives.
	//
	// This typically indicates line noise, a baud rate mismatch, or the
	// sensor running in continuous mode.
	ErrResponseTooLong = errors.New("response line too long")

	// ErrResponseTimeout is returned when no complete line arrived within
	// the response timeout.
	ErrResponseTimeout = errors.New("response timed out")

	// ErrResponseMismatch is returned when a complete line arrived but did
	// not acknowledge the command that was sent.
	ErrResponseMismatch = errors.New("unexpected response")

	// ErrUnsupportedBaudRate is returned for rates outside rg15.BaudRates.
	ErrUnsupportedBaudRate = errors.New("unsupported baud rate")

	// ErrParseFailed is returned when a poll response does not follow the
	// measurement template.
	ErrParseFailed = errors.New("poll response not parseable")

	// ErrUnitMismatch is returned when a poll reports a unit other than the
	// configured one, or when an unsupported unit is requested.
	ErrUnitMismatch = errors.New("unit mismatch")

	// ErrInvalidConfig is returned by ConfigBuilder.Build for out of range
	// retry settings.
	ErrInvalidConfig = errors.New("invalid gauge configuration")
)

// Code classifies the outcome of the most recent operation.
type Code int

const (
	CodeOK Code = iota
	CodeTransportMissing
	CodeWriteFailed
	CodeResponseTooLong
	CodeResponseTimeout
	CodeResponseMismatch
	CodeUnsupportedBaudRate
	CodeParseFailed
	CodeUnitMismatch
	// CodeUnknown covers errors outside the taxonomy, such as a cancelled
	// context.
	CodeUnknown
)

var codeErrors = [...]struct {
	code Code
	err  error
}{
	{CodeTransportMissing, ErrTransportMissing},
	{CodeWriteFailed, ErrWriteFailed},
	{CodeResponseTooLong, ErrResponseTooLong},
	{CodeResponseTimeout, ErrResponseTimeout},
	{CodeResponseMismatch, ErrResponseMismatch},
	{CodeUnsupportedBaudRate, ErrUnsupportedBaudRate},
	{CodeParseFailed, ErrParseFailed},
	{CodeUnitMismatch, ErrUnitMismatch},
}

// CodeOf maps err to its Code.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	for _, ce := range codeErrors {
		if errors.Is(err, ce.err) {
			return ce.code
		}
	}
	return CodeUnknown
}

// Err returns the sentinel error for c, or nil for CodeOK.
func (c Code) Err() error {
	for _, ce := range codeErrors {
		if ce.code == c {
			return ce.err
		}
	}
	if c == CodeOK {
		return nil
	}
	return errors.New(c.String())
}

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeTransportMissing:
		return "transport_missing"
	case CodeWriteFailed:
		return "write_failed"
	case CodeResponseTooLong:
		return "response_too_long"
	case CodeResponseTimeout:
		return "response_timeout"
	case CodeResponseMismatch:
		return "response_mismatch"
	case CodeUnsupportedBaudRate:
		return "unsupported_baud_rate"
	case CodeParseFailed:
		return "parse_failed"
	case CodeUnitMismatch:
		return "unit_mismatch"
	default:
		return "unknown"
	}
}

func (c Code) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
