package errcode

import (
	"errors"

	"fuelgauge-go/drivers/bq27xx"
)

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK             Code = "ok"
	Busy           Code = "busy"
	Unsupported    Code = "unsupported"
	InvalidParams  Code = "invalid_params"
	InvalidPayload Code = "invalid_payload"

	BusError         Code = "bus_error"
	NotReady         Code = "not_ready"
	PollTimeout      Code = "poll_timeout"
	ChecksumMismatch Code = "checksum_mismatch"
	SelectFailed     Code = "select_failed"
	WriteFailed      Code = "write_failed"
	Sealed           Code = "sealed"
	UnknownChem      Code = "unknown_chem"
	UnknownChip      Code = "unknown_chip"
	Timeout          Code = "timeout"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// MapDriverErr maps gauge driver errors to a Code. Anything that is not one
// of the driver's sentinels is reported as a transport fault.
func MapDriverErr(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, bq27xx.ErrNotReady):
		return NotReady
	case errors.Is(err, bq27xx.ErrPollTimeout):
		return PollTimeout
	case errors.Is(err, bq27xx.ErrChecksum):
		return ChecksumMismatch
	case errors.Is(err, bq27xx.ErrSelectFailed):
		return SelectFailed
	case errors.Is(err, bq27xx.ErrWriteFailed):
		return WriteFailed
	case errors.Is(err, bq27xx.ErrSealed):
		return Sealed
	case errors.Is(err, bq27xx.ErrUnknownChem):
		return UnknownChem
	default:
		return BusError
	}
}
